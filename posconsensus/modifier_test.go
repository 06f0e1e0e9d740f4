// Copyright (c) 2014-2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posconsensus

import (
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/stakechain/posd/chaincfg"
	"github.com/stakechain/posd/chainindex"
)

func chainOf(n int, interval int64) []*chainindex.Entry {
	entries := make([]*chainindex.Entry, n)
	var parent *chainindex.Entry
	for i := 0; i < n; i++ {
		h := chainhash.HashH([]byte{byte(i), byte(i >> 8)})
		e := &chainindex.Entry{
			Hash:   h,
			Parent: parent,
			Height: int32(i),
			Time:   int64(i) * interval,
		}
		if i == 0 {
			e.GeneratedModifier = true
			e.StakeModifier = sentinelModifier
		}
		entries[i] = e
		parent = e
	}
	return entries
}

func TestComputeNextStakeModifierGenesis(t *testing.T) {
	params := &chaincfg.MainNetParams
	result, err := ComputeNextStakeModifier(params, nil, nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.True(t, result.Generated)
	require.Equal(t, uint64(0), result.Modifier)
}

func TestComputeNextStakeModifierFirstBlock(t *testing.T) {
	params := &chaincfg.MainNetParams
	entries := chainOf(2, 30)
	result, err := ComputeNextStakeModifier(params, entries[0], nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.True(t, result.Generated)
	require.Equal(t, sentinelModifier, result.Modifier)
}

func TestComputeNextStakeModifierReusesWithinInterval(t *testing.T) {
	params := &chaincfg.MainNetParams
	entries := chainOf(3, 1)
	lookup := func(h chainhash.Hash) *chainindex.Entry {
		for _, e := range entries {
			if e.Hash == h {
				return e
			}
		}
		return nil
	}
	result, err := ComputeNextStakeModifier(params, entries[2], lookup, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.False(t, result.Generated)
	require.Equal(t, sentinelModifier, result.Modifier)
}

func TestSelectionIntervalSectionsSumToSelectionInterval(t *testing.T) {
	params := &chaincfg.MainNetParams
	var sum int64
	for i := 0; i < 64; i++ {
		sum += selectionIntervalSection(params, i)
	}
	require.Equal(t, selectionInterval(params), sum)
}

func TestHashLessIsLittleEndianMSBFirst(t *testing.T) {
	var a, b chainhash.Hash
	a[31] = 1
	b[31] = 2
	require.True(t, hashLess(a, b))
	require.False(t, hashLess(b, a))
}

func TestSortCandidatesStableOnEqualTime(t *testing.T) {
	candidates := []candidate{
		{time: 100, hash: chainhash.HashH([]byte("a"))},
		{time: 100, hash: chainhash.HashH([]byte("b"))},
		{time: 50, hash: chainhash.HashH([]byte("c"))},
	}
	sortCandidates(rand.New(rand.NewSource(7)), candidates)
	require.Equal(t, int64(50), candidates[0].time)
	require.True(t, candidates[1].time <= candidates[2].time)
	require.True(t, hashLess(candidates[1].hash, candidates[2].hash))
}
