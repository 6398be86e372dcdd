// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package snowmantest

import (
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanche-consensus/snow/choices"
)

func RequireStatusIs(require *require.Assertions, status choices.Status, blks ...*Block) {
	for i, blk := range blks {
		require.Equal(status, blk.Status(), i)
	}
}
