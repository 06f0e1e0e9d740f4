// Copyright (c) 2009-2020 The Bitcoin Core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blocktemplate

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/stakechain/posd/chainiface"
)

// fakeSnapshot is a minimal in-memory chainiface.MempoolSnapshot for
// exercising Select without a real mempool.
type fakeSnapshot struct {
	entries     []*chainiface.MempoolEntry
	parents     map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry
	descendants map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry
}

func (f *fakeSnapshot) ByAncestorFeerate() []*chainiface.MempoolEntry {
	out := append([]*chainiface.MempoolEntry(nil), f.entries...)
	return out
}

func (f *fakeSnapshot) CalculateAncestors(e *chainiface.MempoolEntry) []*chainiface.MempoolEntry {
	return f.parents[e]
}

func (f *fakeSnapshot) CalculateDescendants(e *chainiface.MempoolEntry) []*chainiface.MempoolEntry {
	return f.descendants[e]
}

func TestSelectOrdersByAncestorFeerate(t *testing.T) {
	high := &chainiface.MempoolEntry{
		Size: 200, Weight: 800, Fee: 2000, ModifiedFee: 2000,
		SizeWithAncestors: 200, ModFeeWithAncestors: 2000, Seq: 1,
	}
	low := &chainiface.MempoolEntry{
		Size: 200, Weight: 800, Fee: 200, ModifiedFee: 200,
		SizeWithAncestors: 200, ModFeeWithAncestors: 200, Seq: 2,
	}
	snap := &fakeSnapshot{
		// ByAncestorFeerate's contract is descending feerate order.
		entries:     []*chainiface.MempoolEntry{high, low},
		parents:     map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
		descendants: map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
	}

	sel := Select(snap, Limits{MaxWeight: 1_000_000, MaxSigOpCost: 80_000})
	require.Len(t, sel.Entries, 2)
	require.Same(t, high, sel.Entries[0])
	require.Same(t, low, sel.Entries[1])
}

func TestSelectPullsInUnconfirmedAncestorAsPackage(t *testing.T) {
	parent := &chainiface.MempoolEntry{
		Size: 200, Weight: 800, Fee: 100, ModifiedFee: 100,
		SizeWithAncestors: 200, ModFeeWithAncestors: 100, Seq: 1,
	}
	child := &chainiface.MempoolEntry{
		Size: 200, Weight: 800, Fee: 5000, ModifiedFee: 5000,
		SizeWithAncestors: 400, ModFeeWithAncestors: 5100, Seq: 2,
	}
	snap := &fakeSnapshot{
		entries: []*chainiface.MempoolEntry{child},
		parents: map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{
			child: {parent},
		},
		descendants: map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{
			parent: {child},
		},
	}

	sel := Select(snap, Limits{MaxWeight: 1_000_000, MaxSigOpCost: 80_000})
	require.Len(t, sel.Entries, 2)
	require.Contains(t, sel.Entries, parent)
	require.Contains(t, sel.Entries, child)
}

func TestSelectRespectsWeightLimit(t *testing.T) {
	a := &chainiface.MempoolEntry{
		Size: 4000, Weight: 16000, Fee: 1000, ModifiedFee: 1000,
		SizeWithAncestors: 4000, ModFeeWithAncestors: 1000, Seq: 1,
	}
	b := &chainiface.MempoolEntry{
		Size: 4000, Weight: 16000, Fee: 900, ModifiedFee: 900,
		SizeWithAncestors: 4000, ModFeeWithAncestors: 900, Seq: 2,
	}
	snap := &fakeSnapshot{
		entries:     []*chainiface.MempoolEntry{a, b},
		parents:     map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
		descendants: map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
	}

	sel := Select(snap, Limits{MaxWeight: 16000, MaxSigOpCost: 80_000})
	require.Len(t, sel.Entries, 1)
	require.Same(t, a, sel.Entries[0])
	require.Equal(t, btcutil.Amount(1000), sel.Entries[0].Fee)
}

func TestSelectRejectsPackageBelowMinFeeRate(t *testing.T) {
	// 249 sat over 250 bytes is just under a 1000 sat/kvB floor.
	belowFloor := &chainiface.MempoolEntry{
		Size: 250, Weight: 1000, Fee: 249, ModifiedFee: 249,
		SizeWithAncestors: 250, ModFeeWithAncestors: 249, Seq: 1,
	}
	snap := &fakeSnapshot{
		entries:     []*chainiface.MempoolEntry{belowFloor},
		parents:     map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
		descendants: map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
	}

	sel := Select(snap, Limits{MaxWeight: 1_000_000, MaxSigOpCost: 80_000, MinFeeRate: 1000})
	require.Empty(t, sel.Entries)
}

func TestSelectAdmitsPackageAtMinFeeRate(t *testing.T) {
	// 250 sat over 250 bytes clears the same 1000 sat/kvB floor exactly.
	atFloor := &chainiface.MempoolEntry{
		Size: 250, Weight: 1000, Fee: 250, ModifiedFee: 250,
		SizeWithAncestors: 250, ModFeeWithAncestors: 250, Seq: 1,
	}
	snap := &fakeSnapshot{
		entries:     []*chainiface.MempoolEntry{atFloor},
		parents:     map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
		descendants: map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
	}

	sel := Select(snap, Limits{MaxWeight: 1_000_000, MaxSigOpCost: 80_000, MinFeeRate: 1000})
	require.Len(t, sel.Entries, 1)
}

func TestSelectRejectsNonFinalPackage(t *testing.T) {
	nonFinal := &chainiface.MempoolEntry{
		Tx:   btcutil.NewTx(&wire.MsgTx{LockTime: 500_000_000, TxIn: []*wire.TxIn{{Sequence: 0}}}),
		Size: 200, Weight: 800, Fee: 1000, ModifiedFee: 1000,
		SizeWithAncestors: 200, ModFeeWithAncestors: 1000, Seq: 1,
	}
	snap := &fakeSnapshot{
		entries:     []*chainiface.MempoolEntry{nonFinal},
		parents:     map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
		descendants: map[*chainiface.MempoolEntry][]*chainiface.MempoolEntry{},
	}

	sel := Select(snap, Limits{
		MaxWeight: 1_000_000, MaxSigOpCost: 80_000,
		IsFinal: func(tx *btcutil.Tx) bool { return false },
	})
	require.Empty(t, sel.Entries)
}
