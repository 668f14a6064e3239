// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package xds

import (
	"github.com/armon/go-metrics"
)

// Counter name suffixes, incremented the same way agent/xds/delta.go
// increments metrics.IncrCounter([]string{"xds", "server", ...}, 1). The core
// never wires a stats backend itself (spec §1: "Statistics... observed only
// as counters the core may increment"); callers that want these exported
// configure armon/go-metrics' global sink as usual. defaultMetricPrefix is
// prepended unless a Subscription is built with WithMetricsPrefix.
var (
	defaultMetricPrefix = []string{"xds", "subscription"}

	metricKeyAck              = []string{"ack"}
	metricKeyNack             = []string{"nack"}
	metricKeyUpdateRejected   = []string{"update_rejected"}
	metricKeyEstablishFailure = []string{"establishment_failure"}
	metricKeyTTLExpired       = []string{"ttl_expired"}
	metricKeyHeartbeat        = []string{"heartbeat_suppressed"}
)

func incrCounter(prefix []string, typeURL string, suffix []string) {
	key := make([]string, 0, len(prefix)+len(suffix))
	key = append(key, prefix...)
	key = append(key, suffix...)
	metrics.IncrCounterWithLabels(key, 1, []metrics.Label{{Name: "type_url", Value: typeURL}})
}
