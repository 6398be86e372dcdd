// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowball

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/utils/bag"
)

func TestSnowballGovernance(t *testing.T) {
	require := require.New(t)

	var (
		numColors    = 2
		numNodes     = 100
		numByzantine = 10
		numRed       = 55
		params       = Parameters{
			K: 20, Alpha: 15, BetaVirtuous: 20, BetaRogue: 30,
		}
		seed int64 = 0
	)

	nBitwise := NewNetwork(params, numColors, seed)

	for i := 0; i < numRed; i++ {
		nBitwise.AddNodeSpecificColor(TreeFactory{}, 0, []int{1})
	}

	for _, node := range nBitwise.nodes {
		require.Equal(nBitwise.colors[0], node.Preference())
	}

	for i := 0; i < numNodes-numByzantine-numRed; i++ {
		nBitwise.AddNodeSpecificColor(TreeFactory{}, 1, []int{0})
	}

	for i := 0; i < numByzantine; i++ {
		nBitwise.AddNodeSpecificColor(ByzantineFactory{}, 1, []int{0})
	}

	for !nBitwise.Finalized() {
		nBitwise.Round()
	}

	for _, node := range nBitwise.nodes {
		if _, ok := node.(*Byzantine); ok {
			continue
		}
		require.Equal(nBitwise.colors[0], node.Preference())
	}
}

func TestSnowballNetworkConsistency(t *testing.T) {
	require := require.New(t)

	numColors := 50
	numNodes := 100
	params := Parameters{
		K: 20, Alpha: 15, BetaVirtuous: 20, BetaRogue: 30,
	}
	var seed int64 = 0

	nBitwise := NewNetwork(params, numColors, seed)
	for i := 0; i < numNodes; i++ {
		nBitwise.AddNode(TreeFactory{})
	}

	for !nBitwise.Finalized() {
		nBitwise.Round()
	}

	require.True(nBitwise.Agreement())
}

func TestFlatNetworkMajority(t *testing.T) {
	require := require.New(t)

	params := Parameters{
		K: 20, Alpha: 15, BetaVirtuous: 20, BetaRogue: 30,
	}
	var seed int64 = 1

	n := NewNetwork(params, 2, seed)
	for i := 0; i < 70; i++ {
		n.AddNodeSpecificColor(FlatFactory{}, 0, []int{1})
	}
	for i := 0; i < 30; i++ {
		n.AddNodeSpecificColor(FlatFactory{}, 1, []int{0})
	}

	for !n.Finalized() {
		n.Round()
	}

	require.True(n.Agreement())
	require.Equal(n.colors[0], n.nodes[0].Preference())
}

func TestTreeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Every poll is either a single vote for one of the colors or, when the
	// index is out of range, an empty poll.
	properties.Property("decided prefix never shrinks", prop.ForAll(
		func(numColors int, polls []int) bool {
			params := Parameters{
				K: 1, Alpha: 1, BetaVirtuous: 2, BetaRogue: 3,
			}
			colors := make([]ids.ID, numColors)
			for i := range colors {
				colors[i] = ids.Empty.Prefix(uint64(i))
			}

			tree := NewTree(params, colors[0])
			decidedPrefix := tree.DecidedPrefix()
			for _, color := range colors[1:] {
				tree.Add(color)
				if tree.DecidedPrefix() < decidedPrefix {
					return false
				}
				decidedPrefix = tree.DecidedPrefix()
			}

			wasFinalized := false
			for _, poll := range polls {
				votes := bag.Bag[ids.ID]{}
				if poll < numColors {
					votes.Add(colors[poll])
				}
				tree.RecordPoll(votes)

				if tree.DecidedPrefix() < decidedPrefix {
					return false
				}
				decidedPrefix = tree.DecidedPrefix()

				if wasFinalized && !tree.Finalized() {
					return false
				}
				wasFinalized = tree.Finalized()
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.SliceOf(gen.IntRange(0, 8)),
	))

	properties.Property("preference is always an added color", prop.ForAll(
		func(numColors int, polls []int) bool {
			params := Parameters{
				K: 1, Alpha: 1, BetaVirtuous: 1, BetaRogue: 2,
			}
			colors := make(map[ids.ID]struct{}, numColors)
			tree := NewTree(params, ids.Empty.Prefix(0))
			colors[ids.Empty.Prefix(0)] = struct{}{}
			for i := 1; i < numColors; i++ {
				color := ids.Empty.Prefix(uint64(i))
				colors[color] = struct{}{}
				tree.Add(color)
			}

			for _, poll := range polls {
				tree.RecordPoll(bag.Of(ids.Empty.Prefix(uint64(poll % numColors))))
				if _, ok := colors[tree.Preference()]; !ok {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.SliceOf(gen.IntRange(0, 7)),
	))

	properties.TestingRun(t)
}
