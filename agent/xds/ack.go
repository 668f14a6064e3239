// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

import (
	"errors"

	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
)

// Ack is the update acknowledgement from spec §3: a nonce copied verbatim
// from the triggering response, and an optional error. A nil Error means
// ACK; a non-nil Error means NACK.
type Ack struct {
	Nonce   string
	TypeURL string
	Error   *rpcstatus.Status
}

// toError renders a NACK's error_detail back into a plain Go error, for
// handing to Watcher.OnUpdateFailed.
func (a *Ack) toError() error {
	if a == nil || a.Error == nil {
		return nil
	}
	return errors.New(a.Error.GetMessage())
}
