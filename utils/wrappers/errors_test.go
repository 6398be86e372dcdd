// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wrappers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	errFirst  = errors.New("first")
	errSecond = errors.New("second")
)

func TestErrsKeepsFirst(t *testing.T) {
	require := require.New(t)

	errs := Errs{}
	require.False(errs.Errored())

	errs.Add(nil)
	require.False(errs.Errored())

	errs.Add(nil, errFirst, errSecond)
	require.True(errs.Errored())
	require.ErrorIs(errs.Err, errFirst)

	errs.Add(errSecond)
	require.ErrorIs(errs.Err, errFirst)
}

func TestNewAggregate(t *testing.T) {
	require := require.New(t)

	require.NoError(NewAggregate(nil))
	require.NoError(NewAggregate([]error{nil, nil}))

	err := NewAggregate([]error{errFirst, nil, errSecond})
	require.ErrorIs(err, errFirst)
	require.ErrorIs(err, errSecond)
	require.Equal("[first],[second]", err.Error())
}
