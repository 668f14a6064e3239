// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

// heartbeatGate reports whether heartbeat classification is enabled for a
// type URL, the runtime-queryable feature gate from spec §6.
type heartbeatGate func() bool

// responseOutcome is everything handleResponse needs to report back to its
// caller (the Subscription), beyond the Ack it always returns.
type responseOutcome struct {
	ack             *Ack
	addedOrUpdated  []*Resource
	removedNames    []string
	systemVersion   string
	heartbeatsSeen  int
	validationError bool
}

// validateResponse runs every structural check from spec §4.5 before any
// mutation, so the "atomic apply or NACK" invariant is structural (spec §9:
// "an explicit result-typed validation pass that runs before any mutation").
func validateResponse(resp *Response) error {
	seen := make(map[string]struct{}, len(resp.GetResources()))
	for _, r := range resp.GetResources() {
		if _, dup := seen[r.GetName()]; dup {
			// Every resource.name must be unique within resources.
			return newValidationError("duplicate resource name %q in response", r.GetName())
		}
		seen[r.GetName()] = struct{}{}
	}

	for _, name := range resp.GetRemovedResources() {
		if _, dup := seen[name]; dup {
			// removed_resources must not overlap resources.name.
			return newValidationError("resource %q present in both resources and removed_resources", name)
		}
	}

	for _, r := range resp.GetResources() {
		payload := r.GetResource()
		if payload == nil {
			continue
		}
		// The payload's embedded type URL must match the response's outer
		// type_url.
		if payload.GetTypeUrl() != resp.GetTypeUrl() {
			return newValidationError(
				"resource %q payload type_url %q does not match response type_url %q",
				r.GetName(), payload.GetTypeUrl(), resp.GetTypeUrl(),
			)
		}
	}

	return nil
}

// isHeartbeat implements spec §4.5's heartbeat classification.
func isHeartbeat(table *resourceTable, heartbeatsEnabled bool, r *Resource) bool {
	if !heartbeatsEnabled {
		return false
	}
	entry, exists := table.get(r.GetName())
	if !exists || !entry.isKnown() {
		return false
	}
	if entry.version != r.GetVersion() {
		return false
	}
	return r.GetResource() == nil
}

// handleResponse implements spec §4.5 end to end: validate, classify
// heartbeats, mutate the table and TTL tracker, build the forwarding list,
// and construct the ack. The caller (Subscription.HandleResponse) is
// responsible for invoking the Watcher and deciding whether to NACK on a
// watcher-reported rejection (spec §7 item 2) since only the caller owns the
// Watcher reference.
func handleResponse(
	table *resourceTable,
	ttl *ttlTracker,
	heartbeatsEnabled bool,
	resp *Response,
) *responseOutcome {
	if err := validateResponse(resp); err != nil {
		return &responseOutcome{
			ack:             nackFor(resp, err),
			validationError: true,
		}
	}

	scope := ttl.scope()
	var (
		forwarded      = make([]*Resource, 0, len(resp.GetResources()))
		heartbeatsSeen int
	)

	for _, r := range resp.GetResources() {
		heartbeat := isHeartbeat(table, heartbeatsEnabled, r)

		// Step 1: update TTL for every resource, heartbeats included.
		if ttlDuration := r.GetTtl(); ttlDuration != nil {
			scope.arm(r.GetName(), ttlDuration.AsDuration())
		} else {
			scope.cancel(r.GetName())
		}

		if heartbeat {
			heartbeatsSeen++
			continue
		}

		// Step 2: non-heartbeat resources update the table.
		table.setKnown(r.GetName(), r.GetVersion())

		// Step 3: build the forwarding list. Alias-only entries (no
		// payload, non-empty aliases) are forwarded too; they contribute no
		// additional table entry beyond the setKnown above.
		forwarded = append(forwarded, r)
	}

	// Step 4: removed_resources go back to Waiting, retaining the table
	// entry so a later user-driven unsubscribe is still sent (spec §4.5
	// rationale).
	for _, name := range resp.GetRemovedResources() {
		if _, exists := table.get(name); exists {
			table.setWaiting(name)
		}
	}

	return &responseOutcome{
		ack:            ackFor(resp),
		addedOrUpdated: forwarded,
		removedNames:   resp.GetRemovedResources(),
		systemVersion:  resp.GetSystemVersionInfo(),
		heartbeatsSeen: heartbeatsSeen,
	}
}

func ackFor(resp *Response) *Ack {
	return &Ack{Nonce: resp.GetNonce(), TypeURL: resp.GetTypeUrl()}
}

func nackFor(resp *Response, err error) *Ack {
	return &Ack{Nonce: resp.GetNonce(), TypeURL: resp.GetTypeUrl(), Error: toStatus(err)}
}
