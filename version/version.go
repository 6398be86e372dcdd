// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package version

import (
	"cmp"
	"fmt"
)

// Semantic is a major.minor.patch version.
type Semantic struct {
	Major int `json:"major" yaml:"major"`
	Minor int `json:"minor" yaml:"minor"`
	Patch int `json:"patch" yaml:"patch"`
}

func (s *Semantic) String() string {
	return fmt.Sprintf("v%d.%d.%d", s.Major, s.Minor, s.Patch)
}

// Compare returns
//
//	-1 if s < o
//	 0 if s == o
//	+1 if s > o
func (s *Semantic) Compare(o *Semantic) int {
	if c := cmp.Compare(s.Major, o.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(s.Minor, o.Minor); c != 0 {
		return c
	}
	return cmp.Compare(s.Patch, o.Patch)
}
