// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package xds implements the per-type-URL delta xDS subscription state
// machine: it turns a caller's evolving set of interesting resource names
// into delta discovery requests, consumes delta discovery responses, and
// delivers add/remove events to a watcher while preserving the
// acknowledgement and stream-resumption semantics an xDS management server
// requires.
//
// The gRPC transport, the multiplexer that fans a single stream across many
// subscriptions, and resource payload decoding are all external
// collaborators; this package only produces and consumes the decoded
// request/response records.
package xds

import (
	envoy_discovery_v3 "github.com/envoyproxy/go-control-plane/envoy/service/discovery/v3"
)

// Request is the delta discovery request record emitted by NextRequest.
type Request = envoy_discovery_v3.DeltaDiscoveryRequest

// Response is the delta discovery response record consumed by HandleResponse.
type Response = envoy_discovery_v3.DeltaDiscoveryResponse

// Resource is a single named, versioned resource carried on a Response, or
// forwarded to a Watcher as part of an added/updated list.
type Resource = envoy_discovery_v3.Resource
