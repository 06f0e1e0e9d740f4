// Copyright (c) 2014-2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainiface declares the narrow chain/UTXO/mempool collaborator
// interfaces this core consumes, so the higher-level components can be
// built and tested against fakes without pulling in block database or
// reorg code.
package chainiface

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/stakechain/posd/chainindex"
)

// Chain is the read-only view over the active chain and its index that
// the consensus core needs.
type Chain interface {
	Tip() *chainindex.Entry
	Height() int32
	MedianTimePast(entry *chainindex.Entry) int64
	Ancestor(entry *chainindex.Entry, height int32) *chainindex.Entry
	Contains(entry *chainindex.Entry) bool
	Next(entry *chainindex.Entry) *chainindex.Entry
	LookupEntry(hash *chainhash.Hash) *chainindex.Entry

	NextWorkRequired(prev *chainindex.Entry, header *wire.BlockHeader) uint32
	ComputeVersion(prev *chainindex.Entry, proofOfStake bool) int32
	BlockSubsidy(height int32, proofOfStake bool, coinAge uint64) btcutil.Amount

	// TestBlockValidity is the external validation gate BlockAssembler
	// must pass before returning a template. It runs full consensus
	// validation minus PoW/merkle-root checks (those are recomputed
	// locally after assembly).
	TestBlockValidity(block *wire.MsgBlock, prev *chainindex.Entry) error
}

// Coin is a UTXO as exposed by the view: value, locking script, and the
// height it was mined at.
type Coin struct {
	Value  btcutil.Amount
	Script []byte
	Height int32
}

// UtxoView resolves outpoints to coins. Spent or unknown outpoints report
// ok=false.
type UtxoView interface {
	Get(outpoint wire.OutPoint) (coin Coin, ok bool)
	CoinAge(tx *wire.MsgTx, blockTime int64) (uint64, error)
}

// MempoolEntry is the read-only reference to one mempool transaction with
// its cached ancestor-set aggregates.
type MempoolEntry struct {
	Tx *btcutil.Tx

	Size        int64
	Weight      int64
	Fee         btcutil.Amount
	ModifiedFee btcutil.Amount
	SigOpCost   int64

	SizeWithAncestors      int64
	ModFeeWithAncestors    btcutil.Amount
	SigOpCostWithAncestors int64

	// Seq is the order this entry was added to the mempool, used only to
	// break exact feerate ties deterministically.
	Seq uint64
}

// MempoolSnapshot is a borrowed, lock-scoped view over the mempool. It
// must not be retained past the joint chain/mempool lock the caller holds
// while driving package selection.
type MempoolSnapshot interface {
	// ByAncestorFeerate returns entries ordered by descending
	// ModFeeWithAncestors/SizeWithAncestors, ties broken by Seq.
	ByAncestorFeerate() []*MempoolEntry

	CalculateDescendants(entry *MempoolEntry) []*MempoolEntry
	CalculateAncestors(entry *MempoolEntry) []*MempoolEntry
}
