// Copyright (c) 2014-2014 PPCD developers.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posconsensus

import "github.com/stakechain/posd/chainindex"

// HowSuperMajority counts, among the nToCheck most recent proof-of-stake
// ancestors of entry (inclusive), how many have Version >= minVersion. A
// non-PoS ancestor (a proof-of-work block, during the mixed-era chain)
// is skipped without consuming the nToCheck budget, matching
// IsSuperMajority's walk in kernel.cpp, which only advances its counter
// on a proof-of-stake block.
func HowSuperMajority(entry *chainindex.Entry, minVersion int32, nToCheck int) int {
	found := 0
	checked := 0
	walk := entry
	for checked < nToCheck && walk != nil {
		if !walk.ProofOfStake {
			walk = walk.Parent
			continue
		}
		if walk.Version >= minVersion {
			found++
		}
		checked++
		walk = walk.Parent
	}
	return found
}

// IsSuperMajority reports whether at least nRequired of the nToCheck most
// recent ancestors of entry have Version >= minVersion.
func IsSuperMajority(entry *chainindex.Entry, minVersion int32, nRequired, nToCheck int) bool {
	return HowSuperMajority(entry, minVersion, nToCheck) >= nRequired
}
