// Copyright (c) 2009-2020 The Bitcoin Core developers
// Copyright (c) 2012-2020 The Peercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blocktemplate selects mempool transactions for a new block by
// ancestor feerate and assembles the finished block.
package blocktemplate

import (
	"sort"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/stakechain/posd/chainiface"
)

// maxConsecutiveFailures bounds how many ancestor-package rejections in a
// row PackageSelector tolerates before giving up on the remaining mempool
// once the block is within 4000 weight units of its limit, matching
// addPackageTxs's MAX_CONSECUTIVE_FAILURES heuristic.
const maxConsecutiveFailures = 1000

// Limits bounds what a selected package may add to the block being built.
type Limits struct {
	MaxWeight    int64
	MaxSigOpCost int64

	// MinFeeRate is the lowest ancestor feerate, in satoshis per 1000
	// bytes of ancestor size, a package may carry. A candidate whose ancestor
	// feerate falls below this floor ends selection entirely, matching
	// addPackageTxs's descending-feerate early exit: since entries are
	// visited best-feerate-first, nothing that follows could qualify
	// either.
	MinFeeRate int64

	// IsFinal reports whether tx's locktime/sequence finality and any
	// witness-activation gating is satisfied; nil disables the check.
	IsFinal func(tx *btcutil.Tx) bool
}

// Selection is the ordered set of transactions chosen for the block, plus
// the resource totals they consume.
type Selection struct {
	Entries      []*chainiface.MempoolEntry
	TotalFees    int64
	TotalWeight  int64
	TotalSigOps  int64
}

// modifiedEntry tracks an entry whose ancestor aggregates have been
// reduced because some of its ancestors already made it into the block,
// mirroring miner.cpp's CTxMemPoolModifiedEntry.
type modifiedEntry struct {
	entry               *chainiface.MempoolEntry
	sizeWithAncestors    int64
	modFeeWithAncestors  int64
	sigOpCostWithAncestors int64
}

func (m *modifiedEntry) feerate() (num, den int64) {
	return m.modFeeWithAncestors, m.sizeWithAncestors
}

// betterOrEqual compares two candidates by ancestor feerate (modFee/size),
// falling back to Seq to keep the order deterministic on exact ties,
// matching CompareTxMemPoolEntryByAncestorFee.
func betterOrEqual(aFee, aSize int64, aSeq uint64, bFee, bSize int64, bSeq uint64) bool {
	lhs := aFee * bSize
	rhs := bFee * aSize
	if lhs != rhs {
		return lhs > rhs
	}
	return aSeq < bSeq
}

// Select runs the ancestor-feerate package selection algorithm over
// snapshot, returning every transaction admitted within limits. This is
// the direct translation of BlockAssembler::addPackageTxs.
func Select(snapshot chainiface.MempoolSnapshot, limits Limits) Selection {
	ordered := snapshot.ByAncestorFeerate()

	inBlock := make(map[*chainiface.MempoolEntry]bool)
	failedTx := make(map[*chainiface.MempoolEntry]bool)
	modified := make(map[*chainiface.MempoolEntry]*modifiedEntry)

	var sel Selection
	consecutiveFailures := 0
	idx := 0

	for idx < len(ordered) || len(modified) > 0 {
		var candidate *chainiface.MempoolEntry
		var candFee, candSize int64
		var candSeq uint64
		fromModified := false

		for idx < len(ordered) && (inBlock[ordered[idx]] || failedTx[ordered[idx]] || modified[ordered[idx]] != nil) {
			idx++
		}

		if idx < len(ordered) {
			candidate = ordered[idx]
			candFee = int64(candidate.ModFeeWithAncestors)
			candSize = candidate.SizeWithAncestors
			candSeq = candidate.Seq
		}

		for _, m := range modified {
			mFee, mSize := m.feerate()
			if candidate == nil || betterOrEqual(mFee, mSize, m.entry.Seq, candFee, candSize, candSeq) {
				candidate = m.entry
				candFee, candSize, candSeq = mFee, mSize, m.entry.Seq
				fromModified = true
			}
		}

		if candidate == nil {
			break
		}

		if limits.MinFeeRate > 0 && candFee*1000 < candSize*limits.MinFeeRate {
			// Entries are visited in descending ancestor-feerate order,
			// so once one candidate falls below the floor every
			// remaining candidate would too: stop entirely rather than
			// skip just this one.
			break
		}

		if !fromModified {
			idx++
		} else {
			delete(modified, candidate)
		}

		if inBlock[candidate] || failedTx[candidate] {
			continue
		}

		ancestors := snapshot.CalculateAncestors(candidate)
		_, packageWeight, packageSigOps, _ := packageTotals(candidate, ancestors, inBlock)

		if sel.TotalWeight+packageWeight > limits.MaxWeight {
			if fromModified {
				failedTx[candidate] = true
			}
			consecutiveFailures++
			if consecutiveFailures > maxConsecutiveFailures && sel.TotalWeight > limits.MaxWeight-4000 {
				break
			}
			continue
		}
		if sel.TotalSigOps+packageSigOps > limits.MaxSigOpCost {
			failedTx[candidate] = true
			consecutiveFailures++
			if consecutiveFailures > maxConsecutiveFailures && sel.TotalWeight > limits.MaxWeight-4000 {
				break
			}
			continue
		}
		if limits.IsFinal != nil && !packageIsFinal(candidate, ancestors, inBlock, limits.IsFinal) {
			failedTx[candidate] = true
			consecutiveFailures++
			if consecutiveFailures > maxConsecutiveFailures && sel.TotalWeight > limits.MaxWeight-4000 {
				break
			}
			continue
		}

		consecutiveFailures = 0

		toAdd := append(ancestors, candidate)
		var added []*chainiface.MempoolEntry
		for _, a := range toAdd {
			if inBlock[a] {
				continue
			}
			inBlock[a] = true
			added = append(added, a)
			sel.Entries = append(sel.Entries, a)
			sel.TotalFees += int64(a.Fee)
			sel.TotalWeight += a.Weight
			sel.TotalSigOps += a.SigOpCost
		}

		updateModifiedForDescendants(snapshot, added, inBlock, modified)
	}

	return sel
}

// packageIsFinal reports whether every not-yet-included transaction in
// candidate's package (candidate plus its ancestors) passes isFinal,
// so a package can never be admitted around a non-final member.
func packageIsFinal(candidate *chainiface.MempoolEntry, ancestors []*chainiface.MempoolEntry, inBlock map[*chainiface.MempoolEntry]bool, isFinal func(*btcutil.Tx) bool) bool {
	if !isFinal(candidate.Tx) {
		return false
	}
	for _, a := range ancestors {
		if inBlock[a] {
			continue
		}
		if !isFinal(a.Tx) {
			return false
		}
	}
	return true
}

// packageTotals sums the weight/sigop/fee cost of adding candidate and
// its not-yet-included ancestors as one atomic package.
func packageTotals(candidate *chainiface.MempoolEntry, ancestors []*chainiface.MempoolEntry, inBlock map[*chainiface.MempoolEntry]bool) (size, weight, sigOps, fee int64) {
	weight += candidate.Weight
	sigOps += candidate.SigOpCost
	fee += int64(candidate.Fee)
	size += candidate.Size
	for _, a := range ancestors {
		if inBlock[a] {
			continue
		}
		weight += a.Weight
		sigOps += a.SigOpCost
		fee += int64(a.Fee)
		size += a.Size
	}
	return
}

// updateModifiedForDescendants adjusts the cached ancestor aggregates of
// every not-yet-included descendant of the entries just added, the way
// UpdatePackagesForAdded keeps mapModifiedTx in sync.
func updateModifiedForDescendants(
	snapshot chainiface.MempoolSnapshot,
	added []*chainiface.MempoolEntry,
	inBlock map[*chainiface.MempoolEntry]bool,
	modified map[*chainiface.MempoolEntry]*modifiedEntry,
) {
	for _, a := range added {
		for _, d := range snapshot.CalculateDescendants(a) {
			if inBlock[d] {
				continue
			}
			m, ok := modified[d]
			if !ok {
				m = &modifiedEntry{
					entry:                  d,
					sizeWithAncestors:      d.SizeWithAncestors,
					modFeeWithAncestors:    int64(d.ModFeeWithAncestors),
					sigOpCostWithAncestors: d.SigOpCostWithAncestors,
				}
				modified[d] = m
			}
			m.sizeWithAncestors -= a.Size
			m.modFeeWithAncestors -= int64(a.ModifiedFee)
			m.sigOpCostWithAncestors -= a.SigOpCost
		}
	}
}

// sortForBlock orders a selection's entries by ancestor count ascending,
// a cheap approximation of topological order used only as a starting
// point before the assembler's canonical witness-hash sort (SortForBlock
// in miner.cpp serves the same transitional role).
func sortForBlock(entries []*chainiface.MempoolEntry, snapshot chainiface.MempoolSnapshot) {
	sort.SliceStable(entries, func(i, j int) bool {
		return len(snapshot.CalculateAncestors(entries[i])) < len(snapshot.CalculateAncestors(entries[j]))
	})
}
