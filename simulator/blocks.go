// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulator

import (
	"cmp"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/snow/choices"
	"github.com/ava-labs/avalanche-consensus/snow/consensus/snowman"
	"github.com/ava-labs/avalanche-consensus/utils/hashing"
)

var (
	_ snowman.Block = (*block)(nil)

	genesisTimestamp = time.Unix(1, 0)

	errInvalidTransition = errors.New("invalid status transition")
)

// block is an opaque simulated block. Every node decides its own copy.
type block struct {
	id        ids.ID
	parentID  ids.ID
	height    uint64
	timestamp time.Time
	status    choices.Status
}

func (b *block) ID() ids.ID {
	return b.id
}

func (b *block) Accept(context.Context) error {
	if b.status != choices.Processing {
		return fmt.Errorf("%w: %s from %s to %s", errInvalidTransition, b.id, b.status, choices.Accepted)
	}
	b.status = choices.Accepted
	return nil
}

func (b *block) Reject(context.Context) error {
	if b.status != choices.Processing {
		return fmt.Errorf("%w: %s from %s to %s", errInvalidTransition, b.id, b.status, choices.Rejected)
	}
	b.status = choices.Rejected
	return nil
}

func (b *block) Status() choices.Status {
	return b.status
}

func (b *block) Parent() ids.ID {
	return b.parentID
}

func (*block) Verify(context.Context) error {
	return nil
}

func (b *block) Bytes() []byte {
	return b.id[:]
}

func (b *block) Height() uint64 {
	return b.height
}

func (b *block) Timestamp() time.Time {
	return b.timestamp
}

// deriveID returns the ID of the [index]th block of the simulation seeded with
// [seed].
func deriveID(seed int64, index uint64) ids.ID {
	var preimage [2 * binary.MaxVarintLen64]byte
	n := binary.PutVarint(preimage[:], seed)
	n += binary.PutUvarint(preimage[n:], index)
	return ids.ID(hashing.ComputeHash256Array(preimage[:n]))
}

func deriveNodeID(seed int64, index uint64) ids.NodeID {
	blkID := deriveID(^seed, index)
	var nodeID ids.NodeID
	copy(nodeID[:], blkID[:])
	return nodeID
}

func newGenesis(seed int64) *block {
	return &block{
		id:        deriveID(seed, 0),
		timestamp: genesisTimestamp,
		status:    choices.Accepted,
	}
}

// buildBlocks returns [numBlocks] processing blocks that form a random tree
// rooted at [genesis]. Every block is issued after its parent.
func buildBlocks(genesis *block, numBlocks int, seed int64, rng *rand.Rand) []*block {
	blocks := make([]*block, 0, numBlocks)
	for i := 0; i < numBlocks; i++ {
		parent := genesis
		if parentIndex := rng.Intn(i + 1); parentIndex < i {
			parent = blocks[parentIndex]
		}

		blocks = append(blocks, &block{
			id:        deriveID(seed, uint64(i+1)),
			parentID:  parent.id,
			height:    parent.height + 1,
			timestamp: parent.timestamp.Add(time.Second),
			status:    choices.Processing,
		})
	}
	return blocks
}

// copyBlocks returns a private copy of [blocks] in a random order that still
// issues every parent before its children.
func copyBlocks(blocks []*block, rng *rand.Rand) []*block {
	copied := make([]*block, len(blocks))
	for i, blk := range blocks {
		blkCopy := *blk
		copied[i] = &blkCopy
	}
	rng.Shuffle(len(copied), func(i, j int) {
		copied[i], copied[j] = copied[j], copied[i]
	})
	slices.SortStableFunc(copied, func(a, b *block) int {
		return cmp.Compare(a.height, b.height)
	})
	return copied
}
