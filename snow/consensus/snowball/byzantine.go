// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowball

import (
	"github.com/ava-labs/avalanche-consensus/ids"
	"github.com/ava-labs/avalanche-consensus/utils/bag"
)

var (
	_ Factory   = ByzantineFactory{}
	_ Consensus = (*Byzantine)(nil)
)

// ByzantineFactory implements Factory by returning a byzantine struct
type ByzantineFactory struct{}

func (ByzantineFactory) New(params Parameters, choice ids.ID) Consensus {
	return NewByzantine(params, choice)
}

func NewByzantine(params Parameters, choice ids.ID) *Byzantine {
	return &Byzantine{
		params:     params,
		preference: choice,
	}
}

// Byzantine is a naive implementation of a multi-choice snowball instance that
// never changes its preference.
type Byzantine struct {
	// params contains all the configurations of a snowball instance
	params Parameters

	// Hardcode the preference
	preference ids.ID
}

func (b *Byzantine) Parameters() Parameters {
	return b.params
}

func (*Byzantine) Add(ids.ID) {}

func (b *Byzantine) Preference() ids.ID {
	return b.preference
}

func (*Byzantine) RecordPoll(bag.Bag[ids.ID]) bool {
	return false
}

func (*Byzantine) RecordUnsuccessfulPoll() {}

func (*Byzantine) Finalized() bool {
	return true
}

func (b *Byzantine) String() string {
	return b.preference.String()
}
