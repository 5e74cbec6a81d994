// Copyright 2026 The Challenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package observe exposes Prometheus metrics for the bridge.
package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pollCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "challenger",
		Subsystem: "scheduler",
		Name:      "polls_total",
		Help:      "Number of tracker polls performed, by result.",
	}, []string{"result"})

	noticeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "challenger",
		Subsystem: "bridge",
		Name:      "notices_total",
		Help:      "Number of notices sent to rooms, by kind.",
	}, []string{"kind"})

	roomsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "challenger",
		Subsystem: "bridge",
		Name:      "rooms_tracked",
		Help:      "Number of rooms with an adopted challenge.",
	})
)

func init() {
	prometheus.MustRegister(pollCounter, noticeCounter, roomsGauge)
}

// RecordPoll counts one tracker poll. result is "ok" or "error".
func RecordPoll(result string) {
	pollCounter.WithLabelValues(result).Inc()
}

// RecordNotice counts one notice sent to a room. kind is "activity",
// "milestone", "tracking", or "welcome".
func RecordNotice(kind string) {
	noticeCounter.WithLabelValues(kind).Inc()
}

// SetRoomsTracked updates the tracked-room gauge.
func SetRoomsTracked(count int) {
	roomsGauge.Set(float64(count))
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
