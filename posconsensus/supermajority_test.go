// Copyright (c) 2014-2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posconsensus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stakechain/posd/chainindex"
)

func versionChain(versions ...int32) *chainindex.Entry {
	var parent *chainindex.Entry
	var head *chainindex.Entry
	for i, v := range versions {
		e := &chainindex.Entry{Height: int32(i), Version: v, Parent: parent, ProofOfStake: true}
		parent = e
		head = e
	}
	return head
}

func TestIsSuperMajority(t *testing.T) {
	tip := versionChain(1, 4, 4, 4, 4, 4)
	require.True(t, IsSuperMajority(tip, 4, 4, 5))
	require.False(t, IsSuperMajority(tip, 4, 6, 5))
}

func TestHowSuperMajorityCountsAllMatchingAncestors(t *testing.T) {
	tip := versionChain(4, 4, 1, 4)
	require.Equal(t, 3, HowSuperMajority(tip, 4, 4))
}
