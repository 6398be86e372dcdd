// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowball

import "github.com/ava-labs/avalanche-consensus/ids"

var (
	_ Factory = TreeFactory{}
	_ Factory = FlatFactory{}
)

// Factory returns new instances of Consensus
type Factory interface {
	New(params Parameters, choice ids.ID) Consensus
}

// TreeFactory implements Factory by returning a tree struct
type TreeFactory struct{}

func (TreeFactory) New(params Parameters, choice ids.ID) Consensus {
	return NewTree(params, choice)
}

// FlatFactory implements Factory by returning a flat struct
type FlatFactory struct{}

func (FlatFactory) New(params Parameters, choice ids.ID) Consensus {
	return NewFlat(params, choice)
}
