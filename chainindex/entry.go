// Copyright (c) 2014-2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainindex defines the per-block record this core reads and
// writes stake-consensus fields on. Ownership of the record (allocation,
// persistence, reorg handling) belongs to the chain layer; this core only
// ever holds a *Entry reference and must not assume any lifetime beyond a
// single call.
package chainindex

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// Entry is one node's worth of block-index metadata: enough for the
// stake-modifier and kernel-hash algorithms to walk the chain without
// touching the full block body.
type Entry struct {
	Hash   chainhash.Hash
	Parent *Entry
	Child  *Entry // nil unless this entry is on the currently active chain

	Height  int32
	Time    int64
	Version int32

	// EntropyBit is the single deterministic bit this block contributes
	// to future stake modifiers.
	EntropyBit uint8

	// GeneratedModifier is true iff this block computed a fresh stake
	// modifier rather than inheriting its parent's.
	GeneratedModifier bool

	// StakeModifier is the 64-bit modifier in effect as of this block.
	StakeModifier uint64

	// StakeModifierChecksum is the 32-bit checksum of StakeModifier,
	// chained with the parent's checksum and this block's proof hash;
	// consulted against chaincfg.Params.StakeModifierCheckpoints.
	StakeModifierChecksum uint32

	// ProofOfStake is true iff this block's second transaction is a
	// coinstake.
	ProofOfStake bool

	// HashProofOfStake is the kernel's proof hash, set once
	// CheckStakeKernelHash succeeds for this block; zero for PoW blocks.
	HashProofOfStake chainhash.Hash
}

// IsProofOfStake reports whether e represents a proof-of-stake block.
func (e *Entry) IsProofOfStake() bool {
	return e != nil && e.ProofOfStake
}

// Ancestor walks Parent links back to the given height. It returns nil if
// height is out of range ([0, e.Height]).
func (e *Entry) Ancestor(height int32) *Entry {
	if e == nil || height < 0 || height > e.Height {
		return nil
	}
	walk := e
	for walk != nil && walk.Height > height {
		walk = walk.Parent
	}
	return walk
}
