// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ava-labs/avalanche-consensus/api/health"
	"github.com/ava-labs/avalanche-consensus/api/metrics"
	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/snow"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowball"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowman"
	"github.com/ava-labs/avalanche-consensus/trace"
	"github.com/ava-labs/avalanche-consensus/utils/bag"
	"github.com/ava-labs/avalanche-consensus/utils/logging"
	"github.com/ava-labs/avalanche-consensus/utils/sampler"
)

const (
	NetworkID uint32 = 12345

	metricsNamespace = "sim"
)

var (
	errTooFewNodes   = errors.New("fewer nodes than the sample size")
	errNotFinalized  = errors.New("nodes did not finalize")
	errFailedToPoll  = errors.New("failed to sample peers")
	errNoSuchNode    = errors.New("no such node")
	errNodeUnhealthy = errors.New("node unhealthy")
)

// Network runs a population of Snowman instances that repeatedly poll random
// samples of each other until every instance has finalized.
type Network struct {
	params  snowball.Parameters
	seed    int64
	log     logging.Logger
	metrics *networkMetrics

	genesis *block
	blocks  []*block
	nodes   []*node

	// lock protects everything below
	lock      sync.Mutex
	rngSource sampler.Source
	rng       *rand.Rand
	running   []*node
	rounds    int
}

// NewNetwork builds [config.NumNodes] nodes that each process a private copy
// of the same [config.NumBlocks] blocks. The consensus metrics of each node are
// registered on [gatherer] under the node's name.
func NewNetwork(
	ctx context.Context,
	config Config,
	log logging.Logger,
	tracer trace.Tracer,
	registerer prometheus.Registerer,
	gatherer metrics.MultiGatherer,
) (*Network, error) {
	if config.NumNodes < config.Consensus.K {
		return nil, fmt.Errorf("%w: %d < %d", errTooFewNodes, config.NumNodes, config.Consensus.K)
	}

	m, err := newNetworkMetrics(metricsNamespace, registerer)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(config.Seed)) //#nosec G404
	genesis := newGenesis(config.Seed)
	n := &Network{
		params:    config.Consensus,
		seed:      config.Seed,
		log:       log,
		metrics:   m,
		genesis:   genesis,
		blocks:    buildBlocks(genesis, config.NumBlocks, config.Seed, rng),
		rngSource: sampler.NewSource(config.Seed),
		rng:       rng,
	}
	for i := 0; i < config.NumNodes; i++ {
		if err := n.addNode(ctx, i, tracer, gatherer); err != nil {
			return nil, err
		}
	}
	n.metrics.runningNodes.Set(float64(len(n.running)))
	n.metrics.finalizedNodes.Set(float64(len(n.nodes) - len(n.running)))

	log.Info("initialized network",
		zap.Int("numNodes", len(n.nodes)),
		zap.Int("numBlocks", len(n.blocks)),
		zap.Stringer("genesisID", genesis.ID()),
		zap.Int64("seed", config.Seed),
	)
	return n, nil
}

func (n *Network) addNode(ctx context.Context, index int, tracer trace.Tracer, gatherer metrics.MultiGatherer) error {
	nd := &node{
		index: index,
	}
	reg, err := metrics.MakeAndRegister(gatherer, nd.name())
	if err != nil {
		return err
	}
	nd.ctx = &snow.ConsensusContext{
		Context: &snow.Context{
			NetworkID: NetworkID,
			ChainID:   n.genesis.ID(),
			NodeID:    deriveNodeID(n.seed, uint64(index)),
			Log:       n.log,
		},
		Registerer: reg,
	}

	consensus := snowman.Trace(&snowman.Topological{}, tracer)
	if err := consensus.Initialize(
		nd.ctx,
		n.params,
		n.genesis.ID(),
		n.genesis.Height(),
		n.genesis.Timestamp(),
	); err != nil {
		return fmt.Errorf("failed to initialize %s: %w", nd.name(), err)
	}

	for _, blk := range copyBlocks(n.blocks, n.rng) {
		if err := consensus.Add(ctx, blk); err != nil {
			return fmt.Errorf("failed to add block %s to %s: %w", blk.ID(), nd.name(), err)
		}
	}

	nd.consensus = consensus
	n.nodes = append(n.nodes, nd)
	if !consensus.Finalized() {
		n.running = append(n.running, nd)
	}
	return nil
}

// RegisterHealthChecks registers the health check of every node on [h].
func (n *Network) RegisterHealthChecks(h health.Registerer) error {
	for _, nd := range n.nodes {
		if err := h.RegisterCheck(nd.name(), nd); err != nil {
			return err
		}
	}
	return nil
}

// Round has a random running node poll K random nodes for their preference.
// It is a no-op once every node has finalized.
func (n *Network) Round(ctx context.Context) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if len(n.running) == 0 {
		return nil
	}

	runningInd := n.rng.Intn(len(n.running))
	polled := n.running[runningInd]

	s := sampler.NewDeterministicUniform(n.rngSource)
	s.Initialize(uint64(len(n.nodes)))
	indices, ok := s.Sample(n.params.K)
	if !ok {
		return fmt.Errorf("%w: %d from %d", errFailedToPoll, n.params.K, len(n.nodes))
	}

	votes := bag.Bag[ids.ID]{}
	for _, index := range indices {
		votes.Add(n.nodes[index].preference())
	}

	start := time.Now()
	polled.ctx.Lock.Lock()
	err := polled.consensus.RecordPoll(ctx, votes)
	finalized := polled.consensus.Finalized()
	polled.ctx.Lock.Unlock()
	n.metrics.pollDuration.Observe(float64(time.Since(start)))

	n.rounds++
	n.metrics.polls.Inc()
	if err != nil {
		n.metrics.failedPolls.Inc()
		return fmt.Errorf("failed to record poll on %s: %w", polled.name(), err)
	}

	n.log.Verbo("applied poll",
		zap.Stringer("nodeID", polled.ctx.NodeID),
		zap.Stringer("votes", &votes),
	)

	// If this node has been finalized, remove it from the poller
	if finalized {
		newSize := len(n.running) - 1
		n.running[runningInd] = n.running[newSize]
		n.running = n.running[:newSize]

		n.metrics.runningNodes.Dec()
		n.metrics.finalizedNodes.Inc()
		n.log.Debug("node finalized",
			zap.Stringer("nodeID", polled.ctx.NodeID),
			zap.Int("round", n.rounds),
			zap.Int("remaining", newSize),
		)
	}
	return nil
}

// Run applies rounds until every node has finalized. When [maxRounds] is
// positive, at most [maxRounds] rounds are applied in total. If [limiter] is
// non-nil, every round waits on it.
func (n *Network) Run(ctx context.Context, limiter *rate.Limiter, maxRounds int) error {
	for !n.Finalized() {
		if maxRounds > 0 && n.Rounds() >= maxRounds {
			return fmt.Errorf("%w after %d rounds", errNotFinalized, maxRounds)
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := n.Round(ctx); err != nil {
			return err
		}
	}

	n.log.Info("network finalized",
		zap.Int("rounds", n.Rounds()),
		zap.Bool("agreement", n.Agreement()),
	)
	return nil
}

func (n *Network) Finalized() bool {
	n.lock.Lock()
	defer n.lock.Unlock()

	return len(n.running) == 0
}

func (n *Network) Rounds() int {
	n.lock.Lock()
	defer n.lock.Unlock()

	return n.rounds
}

// Agreement returns true if every node currently prefers the same block.
func (n *Network) Agreement() bool {
	if len(n.nodes) == 0 {
		return true
	}
	pref := n.nodes[0].preference()
	for _, nd := range n.nodes[1:] {
		if pref != nd.preference() {
			return false
		}
	}
	return true
}

func (n *Network) GenesisID() ids.ID {
	return n.genesis.ID()
}

func (n *Network) NumNodes() int {
	return len(n.nodes)
}

// Status returns a snapshot of the node at [index].
func (n *Network) Status(index int) (NodeStatus, error) {
	if index < 0 || index >= len(n.nodes) {
		return NodeStatus{}, fmt.Errorf("%w: %d", errNoSuchNode, index)
	}
	return n.nodes[index].status(), nil
}

// Statuses returns a snapshot of every node.
func (n *Network) Statuses() []NodeStatus {
	statuses := make([]NodeStatus, len(n.nodes))
	for i, nd := range n.nodes {
		statuses[i] = nd.status()
	}
	return statuses
}

// HealthCheck evaluates every node's health check directly.
func (n *Network) HealthCheck(ctx context.Context) (interface{}, error) {
	var (
		details   = make(map[string]interface{}, len(n.nodes))
		unhealthy []string
	)
	for _, nd := range n.nodes {
		nodeDetails, err := nd.HealthCheck(ctx)
		details[nd.name()] = nodeDetails
		if err != nil {
			unhealthy = append(unhealthy, nd.name())
		}
	}
	if len(unhealthy) > 0 {
		return details, fmt.Errorf("%w: %v", errNodeUnhealthy, unhealthy)
	}
	return details, nil
}
