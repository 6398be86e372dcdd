// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowman

import (
	"context"
	"errors"
	"path"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/snow"
	"github.com/ava-labs/avalanche-consensus/snow/choices"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowball"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowman/snowmantest"
	"github.com/ava-labs/avalanche-consensus/snow/snowtest"
	"github.com/ava-labs/avalanche-consensus/trace"
	"github.com/ava-labs/avalanche-consensus/utils/bag"
)

type testFunc func(*testing.T, Factory)

var (
	testFuncs = []testFunc{
		InitializeTest,
		InitializeInvalidParametersTest,
		NumProcessingTest,
		AddToTailTest,
		AddToNonTailTest,
		AddToUnknownTest,
		AddDuplicateTest,
		StatusOrProcessingPreviouslyAcceptedTest,
		StatusOrProcessingPreviouslyRejectedTest,
		StatusOrProcessingUnissuedTest,
		StatusOrProcessingIssuedTest,
		DecidedByHeightTest,
		RecordPollAcceptSingleBlockTest,
		RecordPollAcceptAndRejectTest,
		RecordPollSplitVoteNoChangeTest,
		RecordPollWhenFinalizedTest,
		RecordPollRejectTransitivelyTest,
		RecordPollTransitivelyResetConfidenceTest,
		RecordPollInvalidVoteTest,
		RecordPollTransitiveVotingTest,
		RecordPollDivergedVotingTest,
		RecordPollDivergedVotingWithNoConflictingBitTest,
		RecordPollChangePreferredChainTest,
		RecordPollEmptyBagTest,
		RecordPollVoteForLastAcceptedTest,
		RecordPollVoteForRejectedTest,
		SetPreferenceTest,
		LastAcceptedTest,
		MetricsProcessingErrorTest,
		MetricsAcceptedErrorTest,
		MetricsRejectedErrorTest,
		MetricsLastAcceptedHeightErrorTest,
		MetricsSuccessfulPollsErrorTest,
		ErrorOnInitialRejectionTest,
		ErrorOnAcceptTest,
		ErrorOnRejectSiblingTest,
		ErrorOnTransitiveRejectionTest,
		ErrorOnAddDecidedBlockTest,
		ErrorOnAddDuplicateBlockIDTest,
		HaltedAfterFatalErrorTest,
		HealthCheckTest,
		TracedConsensusTest,
		RandomizedConsistencyTest,
	}

	errTest = errors.New("non-nil error")
)

// Execute all tests against a consensus implementation
func runConsensusTests(t *testing.T, factory Factory) {
	for _, test := range testFuncs {
		t.Run(getTestName(test), func(tt *testing.T) {
			test(tt, factory)
		})
	}
}

func getTestName(i interface{}) string {
	return strings.Split(path.Base(runtime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()), ".")[1]
}

func TestTopological(t *testing.T) {
	runConsensusTests(t, TopologicalFactory{})
}

func testParameters(k, alpha, betaVirtuous, betaRogue int) snowball.Parameters {
	return snowball.Parameters{
		K:                     k,
		Alpha:                 alpha,
		BetaVirtuous:          betaVirtuous,
		BetaRogue:             betaRogue,
		ConcurrentRepolls:     1,
		OptimalProcessing:     1,
		MaxOutstandingItems:   1,
		MaxItemProcessingTime: 1,
	}
}

func newConsensus(
	t *testing.T,
	factory Factory,
	params snowball.Parameters,
) (Consensus, *snow.ConsensusContext) {
	require := require.New(t)

	snowCtx := snowtest.Context(t, ids.GenerateTestID())
	ctx := snowtest.ConsensusContext(snowCtx)
	sm := factory.New()
	require.NoError(sm.Initialize(
		ctx,
		params,
		snowmantest.GenesisID,
		snowmantest.GenesisHeight,
		snowmantest.GenesisTimestamp,
	))
	return sm, ctx
}

// blockWithID returns a processing child of [parent] whose ID is [blkID].
func blockWithID(blkID ids.ID, parent *snowmantest.Block) *snowmantest.Block {
	blk := snowmantest.BuildChildBlock(parent)
	blk.IDV = blkID
	blk.BytesV = blkID[:]
	return blk
}

func gatherCounterGauge(t *testing.T, reg prometheus.Gatherer) map[string]float64 {
	ms, err := reg.Gather()
	require.NoError(t, err)
	mss := make(map[string]float64)
	for _, mf := range ms {
		name := mf.GetName()
		for _, m := range mf.GetMetric() {
			if cnt := m.GetCounter(); cnt != nil {
				mss[name] = cnt.GetValue()
				break
			}
			if gg := m.GetGauge(); gg != nil {
				mss[name] = gg.GetValue()
				break
			}
		}
	}
	return mss
}

// requireConsistent verifies the structural properties of the processing
// tree that must hold between calls.
func requireConsistent(require *require.Assertions, sm Consensus) {
	ts, ok := sm.(*Topological)
	require.True(ok)

	head, ok := ts.blocks[ts.head]
	require.True(ok)
	require.True(head.Accepted())

	for blkID, blk := range ts.blocks {
		if blkID == ts.head {
			continue
		}
		require.Equal(choices.Processing, blk.blk.Status())
		_, ok := ts.blocks[blk.blk.Parent()]
		require.True(ok, "block %s has no parent in the tree", blkID)
	}

	for blkID := range ts.preferredIDs {
		require.True(ts.Processing(blkID))
	}

	blkID := ts.head
	for blk := ts.blocks[blkID]; blk.sb != nil; blk = ts.blocks[blkID] {
		blkID = blk.sb.Preference()
		require.True(ts.preferredIDs.Contains(blkID))
	}
	require.Equal(ts.tail, blkID)

	tailHeight := ts.height
	if tail := ts.blocks[ts.tail]; !tail.Accepted() {
		tailHeight = tail.blk.Height()
	}
	require.Len(ts.preferredIDs, int(tailHeight-ts.height))
}

func InitializeTest(t *testing.T, factory Factory) {
	require := require.New(t)

	params := testParameters(1, 1, 3, 5)
	sm, _ := newConsensus(t, factory, params)

	require.Equal(params, sm.Parameters())
	require.Equal(snowmantest.GenesisID, sm.Preference())
	require.Zero(sm.NumProcessing())
	require.True(sm.Finalized())

	lastAcceptedID, lastAcceptedHeight := sm.LastAccepted()
	require.Equal(snowmantest.GenesisID, lastAcceptedID)
	require.Equal(snowmantest.GenesisHeight, lastAcceptedHeight)
}

func InitializeInvalidParametersTest(t *testing.T, factory Factory) {
	require := require.New(t)

	snowCtx := snowtest.Context(t, ids.GenerateTestID())
	ctx := snowtest.ConsensusContext(snowCtx)
	sm := factory.New()

	params := testParameters(1, 2, 1, 1)
	err := sm.Initialize(
		ctx,
		params,
		snowmantest.GenesisID,
		snowmantest.GenesisHeight,
		snowmantest.GenesisTimestamp,
	)
	require.ErrorIs(err, snowball.ErrParametersInvalid)
}

func NumProcessingTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)

	require.Zero(sm.NumProcessing())

	// Adding to the previous preference will update the preference
	require.NoError(sm.Add(context.Background(), block))
	require.Equal(1, sm.NumProcessing())

	votes := bag.Of(block.ID())
	require.NoError(sm.RecordPoll(context.Background(), votes))
	require.Zero(sm.NumProcessing())
}

func AddToTailTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 3, 5))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1 := snowmantest.BuildChildBlock(block0)

	// Adding to the previous preference will update the preference
	require.NoError(sm.Add(context.Background(), block0))
	require.Equal(block0.ID(), sm.Preference())
	require.True(sm.IsPreferred(block0))

	require.NoError(sm.Add(context.Background(), block1))
	require.Equal(block1.ID(), sm.Preference())
	require.True(sm.IsPreferred(block0))
	require.True(sm.IsPreferred(block1))
	requireConsistent(require, sm)
}

func AddToNonTailTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 3, 5))

	firstBlock := snowmantest.BuildChildBlock(snowmantest.Genesis)
	secondBlock := snowmantest.BuildChildBlock(snowmantest.Genesis)

	// Adding to the previous preference will update the preference
	require.NoError(sm.Add(context.Background(), firstBlock))
	require.Equal(firstBlock.IDV, sm.Preference())

	// Adding to something other than the previous preference won't update the
	// preference
	require.NoError(sm.Add(context.Background(), secondBlock))
	require.Equal(firstBlock.IDV, sm.Preference())
	require.False(sm.IsPreferred(secondBlock))
	requireConsistent(require, sm)
}

func AddToUnknownTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, ctx := newConsensus(t, factory, testParameters(1, 1, 3, 5))

	parent := &snowmantest.Block{TestDecidable: choices.TestDecidable{
		IDV:     ids.GenerateTestID(),
		StatusV: choices.Unknown,
	}}
	block := snowmantest.BuildChildBlock(parent)

	// Adding a block with an unknown parent should cause the block to be
	// rejected immediately.
	require.NoError(sm.Add(context.Background(), block))
	require.Equal(choices.Rejected, block.Status())
	require.Equal(snowmantest.GenesisID, sm.Preference())
	require.False(sm.Processing(block.ID()))
	require.Zero(sm.NumProcessing())

	metrics := gatherCounterGauge(t, ctx.Registerer)
	require.Equal(float64(1), metrics["blks_rejected_count"])
	require.Zero(metrics["blks_processing"])
}

func AddDuplicateTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 3, 5))

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	require.NoError(sm.Add(context.Background(), block))

	preference := sm.Preference()
	numProcessing := sm.NumProcessing()

	err := sm.Add(context.Background(), block)
	require.ErrorIs(err, errDuplicateAdd)
	require.Equal(preference, sm.Preference())
	require.Equal(numProcessing, sm.NumProcessing())
	require.Equal(choices.Processing, block.Status())
}

func StatusOrProcessingPreviouslyAcceptedTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 3, 5))

	require.Equal(choices.Accepted, snowmantest.Genesis.Status())
	require.False(sm.Processing(snowmantest.Genesis.ID()))
	require.True(sm.Decided(snowmantest.Genesis))
	require.True(sm.IsPreferred(snowmantest.Genesis))
}

func StatusOrProcessingPreviouslyRejectedTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 3, 5))

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	require.NoError(block.Reject(context.Background()))

	require.Equal(choices.Rejected, block.Status())
	require.False(sm.Processing(block.ID()))
	require.True(sm.Decided(block))
	require.False(sm.IsPreferred(block))
}

func StatusOrProcessingUnissuedTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 3, 5))

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)

	require.Equal(choices.Processing, block.Status())
	require.False(sm.Processing(block.ID()))
	require.False(sm.Decided(block))
	require.False(sm.IsPreferred(block))
}

func StatusOrProcessingIssuedTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 3, 5))

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)

	require.NoError(sm.Add(context.Background(), block))
	require.Equal(choices.Processing, block.Status())
	require.True(sm.Processing(block.ID()))
	require.False(sm.Decided(block))
	require.True(sm.IsPreferred(block))
}

func DecidedByHeightTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	unissued := snowmantest.BuildChildBlock(snowmantest.Genesis)

	require.NoError(sm.Add(context.Background(), block))
	require.NoError(sm.RecordPoll(context.Background(), bag.Of(block.ID())))
	require.Equal(choices.Accepted, block.Status())

	// A processing block at or below the last accepted height can never be
	// accepted, so it is reported as decided.
	require.Equal(choices.Processing, unissued.Status())
	require.True(sm.Decided(unissued))
	require.False(sm.Processing(unissued.ID()))

	// The parent of [unissued] was pruned when [block] was accepted, so it is
	// rejected on arrival.
	require.NoError(sm.Add(context.Background(), unissued))
	require.Equal(choices.Rejected, unissued.Status())
	require.Zero(sm.NumProcessing())

	// A decided block whose parent is still tracked is a duplicate.
	decided := snowmantest.BuildChildBlock(block)
	require.NoError(decided.Accept(context.Background()))
	err := sm.Add(context.Background(), decided)
	require.ErrorIs(err, errDuplicateAdd)
}

func RecordPollAcceptSingleBlockTest(t *testing.T, factory Factory) {
	require := require.New(t)

	genesisID := ids.ID{0x00}
	snowCtx := snowtest.Context(t, ids.GenerateTestID())
	ctx := snowtest.ConsensusContext(snowCtx)
	sm := factory.New()
	require.NoError(sm.Initialize(
		ctx,
		testParameters(1, 1, 2, 5),
		genesisID,
		snowmantest.GenesisHeight,
		snowmantest.GenesisTimestamp,
	))

	genesis := &snowmantest.Block{
		TestDecidable: choices.TestDecidable{
			IDV:     genesisID,
			StatusV: choices.Accepted,
		},
		HeightV:    snowmantest.GenesisHeight,
		TimestampV: snowmantest.GenesisTimestamp,
	}
	block := blockWithID(ids.ID{0x01}, genesis)

	require.NoError(sm.Add(context.Background(), block))

	votes := bag.Of(block.ID())
	require.NoError(sm.RecordPoll(context.Background(), votes))
	require.Equal(block.ID(), sm.Preference())
	require.Equal(1, sm.NumProcessing())
	require.Equal(choices.Processing, block.Status())
	requireConsistent(require, sm)

	require.NoError(sm.RecordPoll(context.Background(), votes))
	require.Equal(block.ID(), sm.Preference())
	require.Zero(sm.NumProcessing())
	require.True(sm.Finalized())
	require.Equal(choices.Accepted, block.Status())

	_, height := sm.LastAccepted()
	require.Equal(uint64(1), height)
	requireConsistent(require, sm)

	metrics := gatherCounterGauge(t, ctx.Registerer)
	require.Equal(float64(1), metrics["blks_accepted_count"])
	require.Equal(float64(1), metrics["last_accepted_height"])
	require.Equal(float64(2), metrics["polls_successful"])
}

func RecordPollAcceptAndRejectTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 2))

	firstBlock := blockWithID(ids.ID{0x01}, snowmantest.Genesis)
	secondBlock := blockWithID(ids.ID{0x02}, snowmantest.Genesis)

	require.NoError(sm.Add(context.Background(), firstBlock))
	require.NoError(sm.Add(context.Background(), secondBlock))

	votes := bag.Of(firstBlock.ID())

	require.NoError(sm.RecordPoll(context.Background(), votes))
	require.Equal(firstBlock.ID(), sm.Preference())
	require.Equal(2, sm.NumProcessing())
	require.Equal(choices.Processing, firstBlock.Status())
	require.Equal(choices.Processing, secondBlock.Status())

	require.NoError(sm.RecordPoll(context.Background(), votes))
	require.Equal(firstBlock.ID(), sm.Preference())
	require.Zero(sm.NumProcessing())
	require.True(sm.Finalized())
	require.Equal(choices.Accepted, firstBlock.Status())
	require.Equal(choices.Rejected, secondBlock.Status())
	requireConsistent(require, sm)
}

func RecordPollSplitVoteNoChangeTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, ctx := newConsensus(t, factory, testParameters(2, 2, 1, 2))

	// The first bit is shared by both blocks while the second bit is split.
	firstBlock := blockWithID(ids.ID{0x01}, snowmantest.Genesis)
	secondBlock := blockWithID(ids.ID{0x03}, snowmantest.Genesis)

	require.NoError(sm.Add(context.Background(), firstBlock))
	require.NoError(sm.Add(context.Background(), secondBlock))

	votes := bag.Of(firstBlock.ID(), secondBlock.ID())

	// The first poll will accept shared bits
	require.NoError(sm.RecordPoll(context.Background(), votes))
	require.Equal(firstBlock.ID(), sm.Preference())
	require.False(sm.Finalized())

	metrics := gatherCounterGauge(t, ctx.Registerer)
	require.Zero(metrics["polls_failed"])
	require.Equal(float64(1), metrics["polls_successful"])

	// The second poll will do nothing
	require.NoError(sm.RecordPoll(context.Background(), votes))
	require.Equal(firstBlock.ID(), sm.Preference())
	require.False(sm.Finalized())
	require.Equal(choices.Processing, firstBlock.Status())
	require.Equal(choices.Processing, secondBlock.Status())

	metrics = gatherCounterGauge(t, ctx.Registerer)
	require.Equal(float64(1), metrics["polls_failed"])
	require.Equal(float64(1), metrics["polls_successful"])
	requireConsistent(require, sm)
}

func RecordPollWhenFinalizedTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 2))

	votes := bag.Of(snowmantest.GenesisID)
	require.NoError(sm.RecordPoll(context.Background(), votes))
	require.True(sm.Finalized())
	require.Equal(snowmantest.GenesisID, sm.Preference())

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	require.NoError(sm.Add(context.Background(), block))
	require.NoError(sm.RecordPoll(context.Background(), bag.Of(block.ID())))
	require.True(sm.Finalized())
	require.Equal(block.ID(), sm.Preference())

	// Once finalized, polls must not move the preference.
	for _, votes := range []bag.Bag[ids.ID]{
		{},
		bag.Of(block.ID()),
		bag.Of(snowmantest.GenesisID),
		bag.Of(ids.GenerateTestID()),
	} {
		require.NoError(sm.RecordPoll(context.Background(), votes))
		require.True(sm.Finalized())
		require.Equal(block.ID(), sm.Preference())
		require.Equal(choices.Accepted, block.Status())
	}
}

func RecordPollRejectTransitivelyTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block2 := snowmantest.BuildChildBlock(block1)

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))
	require.NoError(sm.Add(context.Background(), block2))

	// Current graph structure:
	//   G
	//  / \
	// 0   1
	//     |
	//     2
	// Tail = 0

	votes := bag.Of(block0.ID())
	require.NoError(sm.RecordPoll(context.Background(), votes))

	// Current graph structure:
	// 0
	// Tail = 0

	require.Zero(sm.NumProcessing())
	require.True(sm.Finalized())
	require.Equal(block0.ID(), sm.Preference())
	require.Equal(choices.Accepted, block0.Status())
	snowmantest.RequireStatusIs(require, choices.Rejected, block1, block2)
	requireConsistent(require, sm)
}

func RecordPollTransitivelyResetConfidenceTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 2, 2))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block2 := snowmantest.BuildChildBlock(block1)
	block3 := snowmantest.BuildChildBlock(block1)

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))
	require.NoError(sm.Add(context.Background(), block2))
	require.NoError(sm.Add(context.Background(), block3))

	// Current graph structure:
	//   G
	//  / \
	// 0   1
	//    / \
	//   2   3

	votesFor2 := bag.Of(block2.ID())
	require.NoError(sm.RecordPoll(context.Background(), votesFor2))
	require.False(sm.Finalized())
	require.Equal(block2.ID(), sm.Preference())

	emptyVotes := bag.Bag[ids.ID]{}
	require.NoError(sm.RecordPoll(context.Background(), emptyVotes))
	require.False(sm.Finalized())
	require.Equal(block2.ID(), sm.Preference())

	require.NoError(sm.RecordPoll(context.Background(), votesFor2))
	require.False(sm.Finalized())
	require.Equal(block2.ID(), sm.Preference())
	snowmantest.RequireStatusIs(require, choices.Processing, block0, block1, block2, block3)

	votesFor3 := bag.Of(block3.ID())
	require.NoError(sm.RecordPoll(context.Background(), votesFor3))
	require.False(sm.Finalized())
	require.Equal(block2.ID(), sm.Preference())
	require.Equal(choices.Rejected, block0.Status())
	require.Equal(choices.Accepted, block1.Status())
	snowmantest.RequireStatusIs(require, choices.Processing, block2, block3)
	requireConsistent(require, sm)

	require.NoError(sm.RecordPoll(context.Background(), votesFor3))
	require.True(sm.Finalized())
	require.Equal(block3.ID(), sm.Preference())
	require.Equal(choices.Rejected, block2.Status())
	require.Equal(choices.Accepted, block3.Status())
	requireConsistent(require, sm)
}

func RecordPollInvalidVoteTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 2, 2))

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	unknownBlockID := ids.GenerateTestID()

	require.NoError(sm.Add(context.Background(), block))

	validVotes := bag.Of(block.ID())
	require.NoError(sm.RecordPoll(context.Background(), validVotes))

	invalidVotes := bag.Of(unknownBlockID)
	require.NoError(sm.RecordPoll(context.Background(), invalidVotes))
	require.NoError(sm.RecordPoll(context.Background(), validVotes))
	require.False(sm.Finalized())
	require.Equal(block.ID(), sm.Preference())
	require.Equal(choices.Processing, block.Status())
}

func RecordPollTransitiveVotingTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(3, 3, 1, 1))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1 := snowmantest.BuildChildBlock(block0)
	block2 := snowmantest.BuildChildBlock(block1)
	block3 := snowmantest.BuildChildBlock(block0)
	block4 := snowmantest.BuildChildBlock(block3)

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))
	require.NoError(sm.Add(context.Background(), block2))
	require.NoError(sm.Add(context.Background(), block3))
	require.NoError(sm.Add(context.Background(), block4))

	// Current graph structure:
	//   G
	//   |
	//   0
	//  / \
	// 1   3
	// |   |
	// 2   4
	// Tail = 2

	votes0_2_4 := bag.Of(block0.ID(), block2.ID(), block4.ID())
	require.NoError(sm.RecordPoll(context.Background(), votes0_2_4))

	// Current graph structure:
	//   0
	//  / \
	// 1   3
	// |   |
	// 2   4
	// Tail = 2

	require.False(sm.Finalized())
	require.Equal(block2.ID(), sm.Preference())
	require.Equal(choices.Accepted, block0.Status())
	snowmantest.RequireStatusIs(require, choices.Processing, block1, block2, block3, block4)
	requireConsistent(require, sm)

	dep2_2_2 := bag.Of(block2.ID(), block2.ID(), block2.ID())
	require.NoError(sm.RecordPoll(context.Background(), dep2_2_2))

	// Current graph structure:
	//   2
	// Tail = 2

	require.True(sm.Finalized())
	require.Equal(block2.ID(), sm.Preference())
	snowmantest.RequireStatusIs(require, choices.Accepted, block0, block1, block2)
	snowmantest.RequireStatusIs(require, choices.Rejected, block3, block4)
	requireConsistent(require, sm)
}

func RecordPollDivergedVotingTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 2))

	block0 := blockWithID(ids.ID{0x0f}, snowmantest.Genesis) // 0b1111
	block1 := blockWithID(ids.ID{0x08}, snowmantest.Genesis) // 0b1000
	block2 := blockWithID(ids.ID{0x01}, snowmantest.Genesis) // 0b0001
	block3 := blockWithID(ids.Empty.Prefix(1), block2)

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))

	// The first bit is contested as either 0 or 1. When voting for [block0]
	// and when the first bit is 1, the following bits have been decided to
	// follow the 255 remaining bits of [block0].
	votes0 := bag.Of(block0.ID())
	require.NoError(sm.RecordPoll(context.Background(), votes0))

	// Although we are adding in [block2] here - the underlying snowball
	// instance has already decided it is rejected. Snowman doesn't actually
	// know that though, because that is an implementation detail of the
	// Snowball trie that is used.
	require.NoError(sm.Add(context.Background(), block2))

	// Because [block2] is effectively rejected, [block3] is also effectively
	// rejected.
	require.NoError(sm.Add(context.Background(), block3))

	require.Equal(block0.ID(), sm.Preference())
	snowmantest.RequireStatusIs(require, choices.Processing, block0, block1, block2, block3)

	// Current graph structure:
	//       G
	//     /   \
	//    *     |
	//   / \    |
	//  0   2   1
	//      |
	//      3
	// Tail = 0

	// Transitively votes for [block2] by voting for its child [block3].
	// Because [block2] shares the first bit with [block0] and the following
	// bits have been finalized for [block0], the voting results in accepting
	// [block0]. When [block0] is accepted, [block1] and [block2] are rejected
	// as conflicting. [block2]'s child, [block3], is then rejected
	// transitively.
	votes3 := bag.Of(block3.ID())
	require.NoError(sm.RecordPoll(context.Background(), votes3))

	require.True(sm.Finalized())
	require.Equal(block0.ID(), sm.Preference())
	require.Equal(choices.Accepted, block0.Status())
	snowmantest.RequireStatusIs(require, choices.Rejected, block1, block2, block3)
	requireConsistent(require, sm)
}

func RecordPollDivergedVotingWithNoConflictingBitTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 2))

	block0 := blockWithID(ids.ID{0x06}, snowmantest.Genesis) // 0b0110
	block1 := blockWithID(ids.ID{0x08}, snowmantest.Genesis) // 0b1000
	block2 := blockWithID(ids.ID{0x01}, snowmantest.Genesis) // 0b0001
	block3 := blockWithID(ids.Empty.Prefix(1), block2)

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))

	// When voting for [block0], we end up finalizing the first bit as 0. The
	// second bit is contested as either 0 or 1. For when the second bit is 1,
	// the following bits have been decided to follow the 254 remaining bits of
	// [block0].
	votes0 := bag.Of(block0.ID())
	require.NoError(sm.RecordPoll(context.Background(), votes0))

	// Although we are adding in [block2] here - the underlying snowball
	// instance has already decided it is rejected. Snowman doesn't actually
	// know that though, because that is an implementation detail of the
	// Snowball trie that is used.
	require.NoError(sm.Add(context.Background(), block2))

	// Because [block2] is effectively rejected, [block3] is also effectively
	// rejected.
	require.NoError(sm.Add(context.Background(), block3))

	require.Equal(block0.ID(), sm.Preference())
	snowmantest.RequireStatusIs(require, choices.Processing, block0, block1, block2, block3)

	// Transitively increases the confidence of [block2] by voting for its
	// child [block3]. Because [block2] has already been rejected by the
	// snowball trie of genesis, the vote is dropped there.
	votes3 := bag.Of(block3.ID())
	require.NoError(sm.RecordPoll(context.Background(), votes3))

	require.False(sm.Finalized())
	require.Equal(block0.ID(), sm.Preference())
	snowmantest.RequireStatusIs(require, choices.Processing, block0, block1, block2, block3)
	requireConsistent(require, sm)
}

func RecordPollChangePreferredChainTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 10, 10))

	a1Block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	b1Block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	a2Block := snowmantest.BuildChildBlock(a1Block)
	b2Block := snowmantest.BuildChildBlock(b1Block)

	require.NoError(sm.Add(context.Background(), a1Block))
	require.NoError(sm.Add(context.Background(), a2Block))
	require.NoError(sm.Add(context.Background(), b1Block))
	require.NoError(sm.Add(context.Background(), b2Block))

	require.Equal(a2Block.ID(), sm.Preference())

	require.True(sm.IsPreferred(a1Block))
	require.True(sm.IsPreferred(a2Block))
	require.False(sm.IsPreferred(b1Block))
	require.False(sm.IsPreferred(b2Block))

	b2Votes := bag.Of(b2Block.ID())
	require.NoError(sm.RecordPoll(context.Background(), b2Votes))

	require.Equal(b2Block.ID(), sm.Preference())
	require.False(sm.IsPreferred(a1Block))
	require.False(sm.IsPreferred(a2Block))
	require.True(sm.IsPreferred(b1Block))
	require.True(sm.IsPreferred(b2Block))
	requireConsistent(require, sm)

	a1Votes := bag.Of(a1Block.ID())
	require.NoError(sm.RecordPoll(context.Background(), a1Votes))
	require.NoError(sm.RecordPoll(context.Background(), a1Votes))

	require.Equal(a2Block.ID(), sm.Preference())
	require.True(sm.IsPreferred(a1Block))
	require.True(sm.IsPreferred(a2Block))
	require.False(sm.IsPreferred(b1Block))
	require.False(sm.IsPreferred(b2Block))
	requireConsistent(require, sm)
}

func RecordPollEmptyBagTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, ctx := newConsensus(t, factory, testParameters(1, 1, 2, 2))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block2 := snowmantest.BuildChildBlock(block0)

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))
	require.NoError(sm.Add(context.Background(), block2))

	preference := sm.Preference()
	require.NoError(sm.RecordPoll(context.Background(), bag.Bag[ids.ID]{}))

	ts := sm.(*Topological)
	require.True(ts.blocks[snowmantest.GenesisID].shouldFalter)
	require.False(ts.blocks[block0.ID()].shouldFalter)
	require.Equal(preference, sm.Preference())
	require.Equal(3, sm.NumProcessing())
	snowmantest.RequireStatusIs(require, choices.Processing, block0, block1, block2)
	requireConsistent(require, sm)

	metrics := gatherCounterGauge(t, ctx.Registerer)
	require.Equal(float64(1), metrics["polls_failed"])
	require.Zero(metrics["polls_successful"])
}

func RecordPollVoteForLastAcceptedTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(2, 1, 1, 1))

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	require.NoError(sm.Add(context.Background(), block))

	// Votes for the last accepted block are dropped.
	require.NoError(sm.RecordPoll(context.Background(), bag.Of(snowmantest.GenesisID, snowmantest.GenesisID)))
	require.Equal(choices.Processing, block.Status())
	require.Equal(1, sm.NumProcessing())

	require.NoError(sm.RecordPoll(context.Background(), bag.Of(snowmantest.GenesisID, block.ID())))
	require.Equal(choices.Accepted, block.Status())
	require.True(sm.Finalized())
}

func RecordPollVoteForRejectedTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(2, 1, 1, 1))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block2 := snowmantest.BuildChildBlock(block0)
	block3 := snowmantest.BuildChildBlock(block1)

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))
	require.NoError(sm.Add(context.Background(), block2))
	require.NoError(sm.Add(context.Background(), block3))

	require.NoError(sm.RecordPoll(context.Background(), bag.Of(block0.ID())))
	require.Equal(choices.Accepted, block0.Status())
	snowmantest.RequireStatusIs(require, choices.Rejected, block1, block3)

	// The vote for [block3], whose parent was rejected, is dropped while the
	// vote for [block2] is applied.
	require.NoError(sm.RecordPoll(context.Background(), bag.Of(block3.ID(), block2.ID())))
	require.Equal(choices.Accepted, block2.Status())
	require.Equal(choices.Rejected, block3.Status())
	require.True(sm.Finalized())
}

func SetPreferenceTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 10, 10))

	a1Block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	b1Block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	a2Block := snowmantest.BuildChildBlock(a1Block)
	b2Block := snowmantest.BuildChildBlock(b1Block)

	require.NoError(sm.Add(context.Background(), a1Block))
	require.NoError(sm.Add(context.Background(), a2Block))
	require.NoError(sm.Add(context.Background(), b1Block))
	require.NoError(sm.Add(context.Background(), b2Block))
	require.Equal(a2Block.ID(), sm.Preference())

	require.NoError(sm.SetPreference(b1Block.ID()))
	require.Equal(b2Block.ID(), sm.Preference())
	require.True(sm.IsPreferred(b1Block))
	require.True(sm.IsPreferred(b2Block))
	require.False(sm.IsPreferred(a1Block))
	require.False(sm.IsPreferred(a2Block))

	err := sm.SetPreference(ids.GenerateTestID())
	require.ErrorIs(err, ErrUnknownBlock)
	require.Equal(b2Block.ID(), sm.Preference())

	// The next poll recomputes the preferred chain.
	require.NoError(sm.RecordPoll(context.Background(), bag.Of(a2Block.ID())))
	require.Equal(a2Block.ID(), sm.Preference())
	require.True(sm.IsPreferred(a1Block))
	require.False(sm.IsPreferred(b1Block))
	requireConsistent(require, sm)

	// Setting the preference to the last accepted block follows the snowball
	// preferences from the root.
	require.NoError(sm.SetPreference(snowmantest.GenesisID))
	require.Equal(a2Block.ID(), sm.Preference())
}

func LastAcceptedTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1 := snowmantest.BuildChildBlock(block0)
	block2 := snowmantest.BuildChildBlock(block1)
	block1Conflict := snowmantest.BuildChildBlock(block0)

	lastAcceptedID, lastAcceptedHeight := sm.LastAccepted()
	require.Equal(snowmantest.GenesisID, lastAcceptedID)
	require.Equal(snowmantest.GenesisHeight, lastAcceptedHeight)

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))
	require.NoError(sm.Add(context.Background(), block1Conflict))
	require.NoError(sm.Add(context.Background(), block2))

	lastAcceptedID, lastAcceptedHeight = sm.LastAccepted()
	require.Equal(snowmantest.GenesisID, lastAcceptedID)
	require.Equal(snowmantest.GenesisHeight, lastAcceptedHeight)

	require.NoError(sm.RecordPoll(context.Background(), bag.Of(block0.ID())))

	lastAcceptedID, lastAcceptedHeight = sm.LastAccepted()
	require.Equal(block0.ID(), lastAcceptedID)
	require.Equal(block0.Height(), lastAcceptedHeight)

	require.NoError(sm.RecordPoll(context.Background(), bag.Of(block1.ID())))

	lastAcceptedID, lastAcceptedHeight = sm.LastAccepted()
	require.Equal(block1.ID(), lastAcceptedID)
	require.Equal(block1.Height(), lastAcceptedHeight)
	require.Equal(choices.Rejected, block1Conflict.Status())

	require.NoError(sm.RecordPoll(context.Background(), bag.Of(block2.ID())))

	lastAcceptedID, lastAcceptedHeight = sm.LastAccepted()
	require.Equal(block2.ID(), lastAcceptedID)
	require.Equal(block2.Height(), lastAcceptedHeight)
	require.True(sm.Finalized())
}

func metricsRegistrationErrorTest(t *testing.T, factory Factory, name string, help string) {
	require := require.New(t)

	snowCtx := snowtest.Context(t, ids.GenerateTestID())
	ctx := snowtest.ConsensusContext(snowCtx)

	require.NoError(ctx.Registerer.Register(prometheus.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: help,
	})))

	sm := factory.New()
	err := sm.Initialize(
		ctx,
		testParameters(1, 1, 1, 1),
		snowmantest.GenesisID,
		snowmantest.GenesisHeight,
		snowmantest.GenesisTimestamp,
	)
	var alreadyRegistered prometheus.AlreadyRegisteredError
	require.ErrorAs(err, &alreadyRegistered)
}

func MetricsProcessingErrorTest(t *testing.T, factory Factory) {
	metricsRegistrationErrorTest(t, factory, "blks_processing", "Number of currently processing blocks")
}

func MetricsAcceptedErrorTest(t *testing.T, factory Factory) {
	metricsRegistrationErrorTest(t, factory, "blks_accepted_count", "Number of blocks accepted")
}

func MetricsRejectedErrorTest(t *testing.T, factory Factory) {
	metricsRegistrationErrorTest(t, factory, "blks_rejected_count", "Number of blocks rejected")
}

func MetricsLastAcceptedHeightErrorTest(t *testing.T, factory Factory) {
	metricsRegistrationErrorTest(t, factory, "last_accepted_height", "Last height accepted")
}

func MetricsSuccessfulPollsErrorTest(t *testing.T, factory Factory) {
	metricsRegistrationErrorTest(t, factory, "polls_successful", "Number of polls that changed the confidence of at least one block")
}

func ErrorOnInitialRejectionTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	rejectedBlock := snowmantest.BuildChildBlock(snowmantest.Genesis)
	require.NoError(rejectedBlock.Reject(context.Background()))

	block := snowmantest.BuildChildBlock(rejectedBlock)
	block.RejectV = errTest

	err := sm.Add(context.Background(), block)
	require.ErrorIs(err, errTest)
}

func ErrorOnAcceptTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block.AcceptV = errTest

	require.NoError(sm.Add(context.Background(), block))

	votes := bag.Of(block.ID())
	err := sm.RecordPoll(context.Background(), votes)
	require.ErrorIs(err, errTest)
}

func ErrorOnRejectSiblingTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1.RejectV = errTest

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))

	votes := bag.Of(block0.ID())
	err := sm.RecordPoll(context.Background(), votes)
	require.ErrorIs(err, errTest)
}

func ErrorOnTransitiveRejectionTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block1 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	block2 := snowmantest.BuildChildBlock(block1)
	block2.RejectV = errTest

	require.NoError(sm.Add(context.Background(), block0))
	require.NoError(sm.Add(context.Background(), block1))
	require.NoError(sm.Add(context.Background(), block2))

	votes := bag.Of(block0.ID())
	err := sm.RecordPoll(context.Background(), votes)
	require.ErrorIs(err, errTest)
}

func ErrorOnAddDecidedBlockTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	require.NoError(block0.Accept(context.Background()))

	err := sm.Add(context.Background(), block0)
	require.ErrorIs(err, errDuplicateAdd)

	err = sm.Add(context.Background(), snowmantest.Genesis)
	require.ErrorIs(err, errDuplicateAdd)
}

func ErrorOnAddDuplicateBlockIDTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	block0 := blockWithID(ids.ID{0x03}, snowmantest.Genesis)
	block1 := blockWithID(ids.ID{0x03}, block0)

	require.NoError(sm.Add(context.Background(), block0))
	err := sm.Add(context.Background(), block1)
	require.ErrorIs(err, errDuplicateAdd)
	require.Equal(1, sm.NumProcessing())
}

func HaltedAfterFatalErrorTest(t *testing.T, factory Factory) {
	require := require.New(t)

	sm, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))

	ctrl := gomock.NewController(t)
	blkID := ids.GenerateTestID()
	block := NewMockBlock(ctrl)
	block.EXPECT().ID().Return(blkID).AnyTimes()
	block.EXPECT().Parent().Return(ids.GenerateTestID()).AnyTimes()
	block.EXPECT().Reject(gomock.Any()).Return(errTest)

	err := sm.Add(context.Background(), block)
	require.ErrorIs(err, errTest)

	// Every mutating call must now refuse to run.
	next := snowmantest.BuildChildBlock(snowmantest.Genesis)
	err = sm.Add(context.Background(), next)
	require.ErrorIs(err, ErrHalted)
	require.ErrorIs(err, errTest)
	require.Equal(choices.Processing, next.Status())

	err = sm.RecordPoll(context.Background(), bag.Of(next.ID()))
	require.ErrorIs(err, ErrHalted)

	err = sm.SetPreference(snowmantest.GenesisID)
	require.ErrorIs(err, ErrHalted)

	require.Zero(sm.NumProcessing())
}

func HealthCheckTest(t *testing.T, factory Factory) {
	require := require.New(t)

	params := testParameters(1, 1, 10, 10)
	params.MaxOutstandingItems = 1
	params.MaxItemProcessingTime = time.Second
	sm, _ := newConsensus(t, factory, params)

	ts := sm.(*Topological)
	now := time.Now()
	ts.metrics.clock.Set(now)

	details, err := sm.HealthCheck(context.Background())
	require.NoError(err)
	require.Equal(0, details.(map[string]interface{})["outstandingBlocks"])

	block0 := snowmantest.BuildChildBlock(snowmantest.Genesis)
	require.NoError(sm.Add(context.Background(), block0))

	_, err = sm.HealthCheck(context.Background())
	require.NoError(err)

	// Too many processing blocks
	block1 := snowmantest.BuildChildBlock(block0)
	require.NoError(sm.Add(context.Background(), block1))

	details, err = sm.HealthCheck(context.Background())
	require.ErrorIs(err, errUnhealthy)
	require.Equal(2, details.(map[string]interface{})["outstandingBlocks"])

	// Processing for too long
	params.MaxOutstandingItems = 2
	ts.params = params
	ts.metrics.clock.Set(now.Add(2 * time.Second))

	details, err = sm.HealthCheck(context.Background())
	require.ErrorIs(err, errUnhealthy)
	require.Equal((2 * time.Second).String(), details.(map[string]interface{})["longestRunningBlock"])
}

func TracedConsensusTest(t *testing.T, factory Factory) {
	require := require.New(t)

	inner, _ := newConsensus(t, factory, testParameters(1, 1, 1, 1))
	sm := Trace(inner, trace.Noop)

	block := snowmantest.BuildChildBlock(snowmantest.Genesis)
	require.NoError(sm.Add(context.Background(), block))
	require.True(inner.Processing(block.ID()))

	require.NoError(sm.SetPreference(block.ID()))
	require.Equal(block.ID(), sm.Preference())

	require.NoError(sm.RecordPoll(context.Background(), bag.Of(block.ID())))
	require.Equal(choices.Accepted, block.Status())
	require.True(sm.Finalized())
}

func RandomizedConsistencyTest(t *testing.T, factory Factory) {
	require := require.New(t)

	var (
		numColors = 50
		numNodes  = 100
		params    = snowball.Parameters{
			K:                     20,
			Alpha:                 15,
			BetaVirtuous:          20,
			BetaRogue:             30,
			ConcurrentRepolls:     1,
			OptimalProcessing:     1,
			MaxOutstandingItems:   1,
			MaxItemProcessingTime: 1,
		}
		seed int64 = 0
	)

	n := newNetwork(params, numColors, seed)

	for i := 0; i < numNodes; i++ {
		require.NoError(n.AddNode(t, factory.New()))
	}

	for !n.Finalized() {
		running, err := n.Round()
		require.NoError(err)
		if running != nil {
			requireConsistent(require, running)
		}
	}

	require.True(n.Agreement())
}
