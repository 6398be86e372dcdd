// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanche-consensus/utils/wrappers"
)

// HTTPInterceptor records the latency and failures of requests served by a
// wrapped handler, labeled by route.
type HTTPInterceptor interface {
	Wrap(route string, handler http.Handler) http.Handler
}

type httpInterceptor struct {
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
}

func NewHTTPInterceptor(namespace string, registerer prometheus.Registerer) (HTTPInterceptor, error) {
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration",
			Help:      "time (in ms) spent serving a request",
			Buckets:   MillisecondsHTTPBuckets,
		},
		[]string{"route"},
	)
	requestErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "request_error_count",
			Help:      "number of requests answered with a 5xx status",
		},
		[]string{"route"},
	)

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(requestDuration),
		registerer.Register(requestErrors),
	)
	return &httpInterceptor{
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
	}, errs.Err
}

func (h *httpInterceptor) Wrap(route string, handler http.Handler) http.Handler {
	duration := h.requestDuration.WithLabelValues(route)
	failures := h.requestErrors.WithLabelValues(route)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{
			ResponseWriter: w,
			status:         http.StatusOK,
		}
		handler.ServeHTTP(rw, r)

		duration.Observe(float64(time.Since(start).Milliseconds()))
		if rw.status >= http.StatusInternalServerError {
			failures.Inc()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
