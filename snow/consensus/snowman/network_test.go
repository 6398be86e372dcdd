// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowman

import (
	"context"
	"math/rand"
	"testing"

	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowball"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowman/snowmantest"
	"github.com/ava-labs/avalanche-consensus/snow/snowtest"
	"github.com/ava-labs/avalanche-consensus/utils/bag"
	"github.com/ava-labs/avalanche-consensus/utils/sampler"
)

type network struct {
	params         snowball.Parameters
	colors         []*snowmantest.Block
	rngSource      sampler.Source
	rng            *rand.Rand
	nodes, running []Consensus
}

func newNetwork(params snowball.Parameters, numColors int, seed int64) *network {
	n := &network{
		params:    params,
		rngSource: sampler.NewSource(seed),
		rng:       rand.New(rand.NewSource(seed)), //#nosec G404
	}

	n.colors = append(n.colors, snowmantest.BuildChildBlock(snowmantest.Genesis))
	for i := 1; i < numColors; i++ {
		dependency := n.colors[n.rng.Intn(len(n.colors))]
		n.colors = append(n.colors, snowmantest.BuildChildBlock(dependency))
	}
	return n
}

// shuffleColors returns a copy of the colors in a random topological order.
// Every node gets its own copies so that decisions are tracked per node.
func (n *network) shuffleColors() []*snowmantest.Block {
	colors := make([]*snowmantest.Block, len(n.colors))
	for i, color := range n.colors {
		blk := *color
		colors[i] = &blk
	}
	n.rng.Shuffle(len(colors), func(i, j int) {
		colors[i], colors[j] = colors[j], colors[i]
	})
	snowmantest.SortByHeight(colors)
	return colors
}

func (n *network) AddNode(t testing.TB, sm Consensus) error {
	snowCtx := snowtest.Context(t, ids.Empty)
	ctx := snowtest.ConsensusContext(snowCtx)
	if err := sm.Initialize(ctx, n.params, snowmantest.GenesisID, snowmantest.GenesisHeight, snowmantest.GenesisTimestamp); err != nil {
		return err
	}

	for _, blk := range n.shuffleColors() {
		if err := sm.Add(context.Background(), blk); err != nil {
			return err
		}
	}
	n.nodes = append(n.nodes, sm)
	n.running = append(n.running, sm)
	return nil
}

func (n *network) Finalized() bool {
	return len(n.running) == 0
}

// Round has a random running node poll K random nodes for their preference.
// The polling node is returned, or nil if every node has finalized.
func (n *network) Round() (Consensus, error) {
	if len(n.running) == 0 {
		return nil, nil
	}

	runningInd := n.rng.Intn(len(n.running))
	running := n.running[runningInd]

	s := sampler.NewDeterministicUniform(n.rngSource)
	s.Initialize(uint64(len(n.nodes)))
	indices, _ := s.Sample(n.params.K)
	sampledColors := bag.Bag[ids.ID]{}
	for _, index := range indices {
		peer := n.nodes[int(index)]
		sampledColors.Add(peer.Preference())
	}

	if err := running.RecordPoll(context.Background(), sampledColors); err != nil {
		return nil, err
	}

	// If this node has been finalized, remove it from the poller
	if running.Finalized() {
		newSize := len(n.running) - 1
		n.running[runningInd] = n.running[newSize]
		n.running = n.running[:newSize]
	}

	return running, nil
}

func (n *network) Agreement() bool {
	if len(n.nodes) == 0 {
		return true
	}
	pref := n.nodes[0].Preference()
	for _, node := range n.nodes {
		if pref != node.Preference() {
			return false
		}
	}
	return true
}
