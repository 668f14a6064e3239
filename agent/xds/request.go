// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

// buildRequest implements the request builder (component D, spec §4.4). It
// mutates table/pending/flags in place and returns the next Request to send.
func buildRequest(
	typeURL string,
	table *resourceTable,
	pending *pendingDelta,
	anyRequestSentYet *bool,
	wildcard *bool,
	ack *Ack,
) *Request {
	isFirstRequest := !*anyRequestSentYet
	if isFirstRequest {
		// First request on a fresh stream: tell the server the complete
		// interest set, even names already Waiting (spec §4.4 step 1).
		if !*wildcard {
			for _, name := range table.names() {
				pending.subscribe(name)
			}
		}
		pending.clearUnsubscribe()
		*anyRequestSentYet = true
	}

	var initialVersions map[string]string
	if isFirstRequest {
		initialVersions = buildInitialResourceVersions(table)
	}

	subscribeNames, unsubscribeNames := pending.drain()

	req := &Request{
		TypeUrl:                  typeURL,
		ResourceNamesSubscribe:   subscribeNames,
		ResourceNamesUnsubscribe: unsubscribeNames,
		InitialResourceVersions:  initialVersions,
	}

	if ack != nil {
		req.ResponseNonce = ack.Nonce
		req.ErrorDetail = ack.Error
	}

	return req
}

// buildInitialResourceVersions implements spec §4.4 step 1's "for each name
// whose state is Known{version}, set initial_resource_versions[name] =
// version; names in Waiting are omitted". Returns nil (an absent map) when
// there is nothing to report, since initial_resource_versions only appears
// on the first request per stream.
func buildInitialResourceVersions(table *resourceTable) map[string]string {
	var versions map[string]string
	for name, entry := range table.entries {
		if entry.isKnown() {
			if versions == nil {
				versions = make(map[string]string)
			}
			versions[name] = entry.version
		}
	}
	return versions
}
