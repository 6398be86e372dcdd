// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowball

import (
	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/utils/bag"
)

var _ Consensus = (*Flat)(nil)

func NewFlat(params Parameters, choice ids.ID) *Flat {
	return &Flat{
		nnarySnowball: newNnarySnowball(params.BetaVirtuous, params.BetaRogue, choice),
		params:        params,
	}
}

// Flat is a naive implementation of a multi-choice snowball instance
type Flat struct {
	// wraps the n-nary snowball logic
	nnarySnowball

	// params contains all the configurations of a snowball instance
	params Parameters
}

func (f *Flat) Parameters() Parameters {
	return f.params
}

func (f *Flat) RecordPoll(votes bag.Bag[ids.ID]) bool {
	if pollMode, numVotes := votes.Mode(); numVotes >= f.params.Alpha {
		f.RecordSuccessfulPoll(pollMode)
		return true
	}

	f.RecordUnsuccessfulPoll()
	return false
}
