// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

const Client = "snowsim"

var (
	Current = &Semantic{
		Major: 0,
		Minor: 1,
		Patch: 0,
	}

	// GitCommit is set in the build script at compile time
	GitCommit string
)
