// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

import (
	"fmt"

	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxErrorDetailLen bounds the NACK error message sent back to the server,
// per spec §7: "always truncated to a bounded length (protocol message-size
// safety)."
const maxErrorDetailLen = 4096

// validationError is a spec §4.5 structural validation failure. It always maps
// to a NACK with codes.Internal, matching the teacher's use of
// status.Error(codes.Internal, ...) for equivalent processing failures in
// agent/xds/delta.go.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func newValidationError(format string, args ...any) *validationError {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

// toStatus renders err as the rpc/status.Status this package attaches to a
// NACK's error_detail, truncating the message per maxErrorDetailLen.
func toStatus(err error) *rpcstatus.Status {
	s := status.New(codes.Internal, truncateErrorMessage(err.Error(), maxErrorDetailLen))
	return s.Proto()
}

func truncateErrorMessage(s string, max int) string {
	if len(s) <= max {
		return s
	}
	const suffix = "...(truncated)"
	if max <= len(suffix) {
		return s[:max]
	}
	return s[:max-len(suffix)] + suffix
}
