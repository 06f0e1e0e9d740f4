// Copyright (c) 2014-2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posconsensus

import (
	"errors"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/stakechain/posd/chaincfg"
	"github.com/stakechain/posd/chainindex"
)

func easyTarget() *big.Int {
	// The loosest target validateTarget still accepts: the network's
	// proof-of-stake limit itself, easy enough that any realistic proof
	// hash clears it once weighted by a nonzero coin value.
	return hashBytesToBig(chaincfg.MainNetParams.PowLimit[:])
}

func impossibleTarget() *big.Int {
	// Smallest valid target: passes validateTarget but no proof hash will
	// ever clear it once multiplied by any realistic coin value.
	return big.NewInt(1)
}

func fixedModifier(modifier uint64) ModifierLookup {
	return func(prev *chainindex.Entry, blockFrom *chainindex.Entry, txTime int64) (uint64, int32, int64, error) {
		return modifier, prev.Height, prev.Time, nil
	}
}

func TestCheckStakeKernelHashRejectsStakeTooYoung(t *testing.T) {
	params := &chaincfg.MainNetParams
	prev := &chainindex.Entry{Height: 100, Time: 1000}
	k := Kernel{
		BlockFrom: &chainindex.Entry{Height: 90, Time: 500},
		Outpoint:  wire.OutPoint{Hash: chainhash.HashH([]byte("a")), Index: 0},
		CoinValue: 100000,
		BlockTime: 500,
		StakeTime: 500 + params.StakeMinAgeFor(101) - 1,
	}
	_, err := CheckStakeKernelHash(params, 100, k, easyTarget(), fixedModifier(1), prev)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrKernelMissStakeTooOld))
}

func TestCheckStakeKernelHashAcceptsWithEasyTarget(t *testing.T) {
	params := &chaincfg.MainNetParams
	prev := &chainindex.Entry{Height: 100, Time: 100000}
	k := Kernel{
		BlockFrom: &chainindex.Entry{Height: 90, Time: 1000},
		Outpoint:  wire.OutPoint{Hash: chainhash.HashH([]byte("b")), Index: 1},
		CoinValue: 5_000_000,
		BlockTime: 1000,
		StakeTime: 1000 + params.StakeMinAgeFor(101) + 3600,
	}
	result, err := CheckStakeKernelHash(params, 100, k, easyTarget(), fixedModifier(42), prev)
	require.NoError(t, err)
	require.NotEqual(t, chainhash.Hash{}, result.ProofHash)
}

func TestCheckStakeKernelHashRejectsImpossibleTarget(t *testing.T) {
	params := &chaincfg.MainNetParams
	prev := &chainindex.Entry{Height: 100, Time: 100000}
	k := Kernel{
		BlockFrom: &chainindex.Entry{Height: 90, Time: 1000},
		Outpoint:  wire.OutPoint{Hash: chainhash.HashH([]byte("c")), Index: 0},
		CoinValue: 5_000_000,
		BlockTime: 1000,
		StakeTime: 1000 + params.StakeMinAgeFor(101) + 3600,
	}
	_, err := CheckStakeKernelHash(params, 100, k, impossibleTarget(), fixedModifier(42), prev)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrKernelMiss))
}

func TestSearchKernelStopsOnTipChange(t *testing.T) {
	params := &chaincfg.MainNetParams
	prev := &chainindex.Entry{Height: 100, Time: 100000}
	k := Kernel{
		BlockFrom: &chainindex.Entry{Height: 90, Time: 1000},
		Outpoint:  wire.OutPoint{Hash: chainhash.HashH([]byte("d")), Index: 0},
		CoinValue: 5_000_000,
		BlockTime: 1000,
	}
	_, err := SearchKernel(params, 100, k, impossibleTarget(), fixedModifier(42), prev, 2_000_000, 900, func() bool { return true })
	require.Error(t, err)
}

func TestSearchKernelFindsWinWithEasyTarget(t *testing.T) {
	params := &chaincfg.MainNetParams
	prev := &chainindex.Entry{Height: 100, Time: 100000}
	k := Kernel{
		BlockFrom: &chainindex.Entry{Height: 90, Time: 1000},
		Outpoint:  wire.OutPoint{Hash: chainhash.HashH([]byte("e")), Index: 0},
		CoinValue: 5_000_000,
		BlockTime: 1000,
	}
	now := 1000 + params.StakeMinAgeFor(101) + 3600
	result, err := SearchKernel(params, 100, k, easyTarget(), fixedModifier(42), prev, now, 900, func() bool { return false })
	require.NoError(t, err)
	require.Equal(t, int64(0), result.StakeTime&int64(params.StakeTimestampMask))
}
