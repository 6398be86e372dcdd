// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowman

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/snow/choices"
	"github.com/ava-labs/avalanche-consensus/utils/linked"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
	"github.com/ava-labs/avalanche-consensus/utils/metric"
	"github.com/ava-labs/avalanche-consensus/utils/timer/mockable"
	"github.com/ava-labs/avalanche-consensus/utils/wrappers"
)

var pollBuckets = prometheus.ExponentialBuckets(1, 2, 8)

type processingStart struct {
	time       time.Time
	pollNumber uint64
}

type metrics struct {
	log   logging.Logger
	clock mockable.Clock

	lastAcceptedHeight    prometheus.Gauge
	lastAcceptedTimestamp prometheus.Gauge

	// processingBlocks keeps track of the [processingStart] that each block was
	// issued into the consensus instance. This is used to calculate the amount
	// of time to accept or reject the block.
	processingBlocks *linked.Hashmap[ids.ID, processingStart]

	// numProcessing keeps track of the number of processing blocks
	numProcessing prometheus.Gauge

	numAccepted, numRejected prometheus.Counter

	// latAccepted tracks the number of milliseconds that a block was processing
	// before being accepted
	latAccepted prometheus.Histogram
	// pollsAccepted tracks the number of polls that a block was in processing
	// for before being accepted
	pollsAccepted prometheus.Histogram
	// blockSizeAcceptedSum tracks the summation of all accepted blocks' sizes
	blockSizeAcceptedSum prometheus.Gauge

	latRejected          prometheus.Histogram
	pollsRejected        prometheus.Histogram
	blockSizeRejectedSum prometheus.Gauge

	// pollDuration tracks the number of nanoseconds spent applying a poll
	pollDuration prometheus.Histogram

	numSuccessfulPolls, numFailedPolls prometheus.Counter
}

func newMetrics(
	log logging.Logger,
	namespace string,
	reg prometheus.Registerer,
	lastAcceptedHeight uint64,
	lastAcceptedTime time.Time,
) (*metrics, error) {
	m := &metrics{
		log: log,

		lastAcceptedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_accepted_height",
			Help:      "Last height accepted",
		}),
		lastAcceptedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_accepted_timestamp",
			Help:      "Last accepted block timestamp",
		}),

		processingBlocks: linked.NewHashmap[ids.ID, processingStart](),

		numProcessing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blks_processing",
			Help:      "Number of currently processing blocks",
		}),

		numAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blks_accepted_count",
			Help:      "Number of blocks accepted",
		}),
		latAccepted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blks_accepted_latency",
			Help:      "Time spent processing before being accepted in milliseconds",
			Buckets:   metric.MillisecondsBuckets,
		}),
		pollsAccepted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blks_accepted_polls",
			Help:      "Number of polls from issuance of a block to its acceptance",
			Buckets:   pollBuckets,
		}),
		blockSizeAcceptedSum: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blks_accepted_container_size_sum",
			Help:      "Cumulative sum of container size of all accepted blocks",
		}),

		numRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blks_rejected_count",
			Help:      "Number of blocks rejected",
		}),
		latRejected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blks_rejected_latency",
			Help:      "Time spent processing before being rejected in milliseconds",
			Buckets:   metric.MillisecondsBuckets,
		}),
		pollsRejected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "blks_rejected_polls",
			Help:      "Number of polls from issuance of a block to its rejection",
			Buckets:   pollBuckets,
		}),
		blockSizeRejectedSum: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blks_rejected_container_size_sum",
			Help:      "Cumulative sum of container size of all rejected blocks",
		}),

		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration",
			Help:      "Time spent applying the results of a poll in nanoseconds",
			Buckets:   metric.NanosecondsBuckets,
		}),

		numSuccessfulPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_successful",
			Help:      "Number of polls that changed the confidence of at least one block",
		}),
		numFailedPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_failed",
			Help:      "Number of polls that did not reach alpha for any block",
		}),
	}

	// Initially set the metrics for the last accepted block.
	m.lastAcceptedHeight.Set(float64(lastAcceptedHeight))
	m.lastAcceptedTimestamp.Set(float64(lastAcceptedTime.Unix()))

	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(m.lastAcceptedHeight),
		reg.Register(m.lastAcceptedTimestamp),
		reg.Register(m.numProcessing),
		reg.Register(m.numAccepted),
		reg.Register(m.latAccepted),
		reg.Register(m.pollsAccepted),
		reg.Register(m.blockSizeAcceptedSum),
		reg.Register(m.numRejected),
		reg.Register(m.latRejected),
		reg.Register(m.pollsRejected),
		reg.Register(m.blockSizeRejectedSum),
		reg.Register(m.pollDuration),
		reg.Register(m.numSuccessfulPolls),
		reg.Register(m.numFailedPolls),
	)
	return m, errs.Err
}

func (m *metrics) Issued(blkID ids.ID, pollNumber uint64) {
	m.processingBlocks.Put(blkID, processingStart{
		time:       m.clock.Time(),
		pollNumber: pollNumber,
	})
	m.numProcessing.Inc()
}

func (m *metrics) Accepted(
	blkID ids.ID,
	height uint64,
	timestamp time.Time,
	pollNumber uint64,
	blockSize int,
) {
	m.lastAcceptedHeight.Set(float64(height))
	m.lastAcceptedTimestamp.Set(float64(timestamp.Unix()))

	start, ok := m.processingBlocks.Get(blkID)
	if !ok {
		m.log.Warn("unable to measure latency",
			zap.Stringer("blkID", blkID),
			zap.Stringer("status", choices.Accepted),
		)
		return
	}
	m.processingBlocks.Delete(blkID)
	m.numProcessing.Dec()
	m.numAccepted.Inc()

	duration := m.clock.Time().Sub(start.time)
	m.latAccepted.Observe(float64(duration.Milliseconds()))
	m.pollsAccepted.Observe(float64(pollNumber - start.pollNumber))
	m.blockSizeAcceptedSum.Add(float64(blockSize))
}

func (m *metrics) Rejected(blkID ids.ID, pollNumber uint64, blockSize int) {
	start, ok := m.processingBlocks.Get(blkID)
	if !ok {
		m.log.Warn("unable to measure latency",
			zap.Stringer("blkID", blkID),
			zap.Stringer("status", choices.Rejected),
		)
		return
	}
	m.processingBlocks.Delete(blkID)
	m.numProcessing.Dec()
	m.numRejected.Inc()

	duration := m.clock.Time().Sub(start.time)
	m.latRejected.Observe(float64(duration.Milliseconds()))
	m.pollsRejected.Observe(float64(pollNumber - start.pollNumber))
	m.blockSizeRejectedSum.Add(float64(blockSize))
}

// MeasureAndGetOldestDuration returns how long the oldest processing block has
// been processing for.
func (m *metrics) MeasureAndGetOldestDuration() time.Duration {
	_, oldestOp, exists := m.processingBlocks.Oldest()
	if !exists {
		return 0
	}
	return m.clock.Time().Sub(oldestOp.time)
}

func (m *metrics) PollApplied(start time.Time, successful bool) {
	m.pollDuration.Observe(float64(m.clock.Time().Sub(start)))
	if successful {
		m.numSuccessfulPolls.Inc()
	} else {
		m.numFailedPolls.Inc()
	}
}
