// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowball

import (
	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/utils/bag"
	"github.com/ava-labs/avalanche-consensus/utils/sampler"
)

type Network struct {
	params         Parameters
	colors         []ids.ID
	rngSource      sampler.Source
	nodes, running []Consensus
}

// NewNetwork creates a new network of [numColors] choices driven by a
// deterministic source seeded with [seed].
func NewNetwork(params Parameters, numColors int, seed int64) *Network {
	n := &Network{
		params:    params,
		rngSource: sampler.NewSource(seed),
	}
	for i := 0; i < numColors; i++ {
		n.colors = append(n.colors, ids.Empty.Prefix(uint64(i)))
	}
	return n
}

// AddNode adds a node that was told about every color in a random order.
func (n *Network) AddNode(factory Factory) Consensus {
	s := sampler.NewDeterministicUniform(n.rngSource)
	s.Initialize(uint64(len(n.colors)))
	indices, _ := s.Sample(len(n.colors))

	consensus := factory.New(n.params, n.colors[int(indices[0])])
	for _, index := range indices[1:] {
		consensus.Add(n.colors[int(index)])
	}
	n.addNode(consensus)
	return consensus
}

// AddNodeSpecificColor adds a node that initially prefers
// [initialPreference] and additionally knows about each of [options].
func (n *Network) AddNodeSpecificColor(factory Factory, initialPreference int, options []int) Consensus {
	consensus := factory.New(n.params, n.colors[initialPreference])
	for _, i := range options {
		consensus.Add(n.colors[i])
	}
	n.addNode(consensus)
	return consensus
}

func (n *Network) addNode(consensus Consensus) {
	n.nodes = append(n.nodes, consensus)
	if !consensus.Finalized() {
		n.running = append(n.running, consensus)
	}
}

// Finalized returns true iff every node added to the network has finished
// running.
func (n *Network) Finalized() bool {
	return len(n.running) == 0
}

// Round simulates a round of consensus by picking a running node, sampling K
// peers, and applying the poll of their preferences.
func (n *Network) Round() {
	if len(n.running) == 0 {
		return
	}

	s := sampler.NewDeterministicUniform(n.rngSource)
	s.Initialize(uint64(len(n.running)))

	runningInd, _ := s.Next()
	running := n.running[runningInd]

	s.Initialize(uint64(len(n.nodes)))
	indices, _ := s.Sample(n.params.K)

	sampledColors := bag.Bag[ids.ID]{}
	for _, index := range indices {
		peer := n.nodes[int(index)]
		sampledColors.Add(peer.Preference())
	}

	running.RecordPoll(sampledColors)

	// If this node has been finalized, remove it from the poller
	if running.Finalized() {
		newSize := len(n.running) - 1
		n.running[runningInd] = n.running[newSize]
		n.running = n.running[:newSize]
	}
}

// Agreement returns true iff every node in the network prefers the same
// choice.
func (n *Network) Agreement() bool {
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
