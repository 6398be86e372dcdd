// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sampler

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUniformInitializeMaxUint64(t *testing.T) {
	s := NewUniform()
	s.Initialize(1 << 63)

	for i := 0; i < 1000; i++ {
		_, ok := s.Next()
		require.True(t, ok)
	}
}

func TestUniformOutOfRange(t *testing.T) {
	s := NewUniform()
	s.Initialize(0)

	_, ok := s.Sample(1)
	require.False(t, ok)
}

func TestUniformEmpty(t *testing.T) {
	require := require.New(t)

	s := NewUniform()
	s.Initialize(1)

	val, ok := s.Sample(0)
	require.True(ok)
	require.Empty(val)
}

func TestUniformSingleton(t *testing.T) {
	require := require.New(t)

	s := NewUniform()
	s.Initialize(1)

	val, ok := s.Sample(1)
	require.True(ok)
	require.Equal([]uint64{0}, val)
}

func TestUniformDistribution(t *testing.T) {
	require := require.New(t)

	s := NewUniform()
	s.Initialize(3)

	val, ok := s.Sample(3)
	require.True(ok)

	slices.Sort(val)
	require.Equal([]uint64{0, 1, 2}, val)
}

func TestUniformOverSample(t *testing.T) {
	s := NewUniform()
	s.Initialize(3)

	_, ok := s.Sample(4)
	require.False(t, ok)
}

func TestUniformLazilySample(t *testing.T) {
	require := require.New(t)

	s := NewUniform()
	s.Initialize(3)

	for j := 0; j < 2; j++ {
		sampled := map[uint64]bool{}
		for i := 0; i < 3; i++ {
			val, ok := s.Next()
			require.True(ok)
			require.False(sampled[val])

			sampled[val] = true
		}

		_, ok := s.Next()
		require.False(ok)

		s.Reset()
	}
}

func TestDeterministicUniformIsReproducible(t *testing.T) {
	require := require.New(t)

	s1 := NewDeterministicUniform(NewSource(42))
	s1.Initialize(100)
	s2 := NewDeterministicUniform(NewSource(42))
	s2.Initialize(100)

	for i := 0; i < 10; i++ {
		v1, ok := s1.Sample(20)
		require.True(ok)
		v2, ok := s2.Sample(20)
		require.True(ok)
		require.Equal(v1, v2)
	}
}
