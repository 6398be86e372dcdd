// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanche-consensus/utils/metric"
	"github.com/ava-labs/avalanche-consensus/utils/wrappers"
)

type networkMetrics struct {
	polls          prometheus.Counter
	failedPolls    prometheus.Counter
	pollDuration   prometheus.Histogram
	runningNodes   prometheus.Gauge
	finalizedNodes prometheus.Gauge
}

func newNetworkMetrics(namespace string, reg prometheus.Registerer) (*networkMetrics, error) {
	m := &networkMetrics{
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls",
			Help:      "Number of polls applied to simulated nodes",
		}),
		failedPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_failed",
			Help:      "Number of polls whose application returned an error",
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration",
			Help:      "Time (in ns) spent applying a poll to a simulated node",
			Buckets:   metric.NanosecondsBuckets,
		}),
		runningNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes_running",
			Help:      "Number of simulated nodes that have not finalized",
		}),
		finalizedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes_finalized",
			Help:      "Number of simulated nodes that have finalized",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.polls),
		reg.Register(m.failedPolls),
		reg.Register(m.pollDuration),
		reg.Register(m.runningNodes),
		reg.Register(m.finalizedNodes),
	)
	return m, errs.Err
}
