// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ids

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/ava-labs/avalanche-consensus/utils/hashing"
)

var offset = uint64(0)

// GenerateTestID returns a new ID that should only be used for testing. The
// 8 byte preimage never matches a Prefix preimage.
func GenerateTestID() ID {
	n := atomic.AddUint64(&offset, 1)
	return hashing.ComputeHash256Array(binary.BigEndian.AppendUint64(nil, n))
}

// GenerateTestNodeID returns a new ID that should only be used for testing
func GenerateTestNodeID() NodeID {
	newID := GenerateTestID()
	return NodeID(newID[:NodeIDLen])
}
