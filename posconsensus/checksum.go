// Copyright (c) 2014-2014 PPCD developers.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posconsensus

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/stakechain/posd/chaincfg"
	"github.com/stakechain/posd/chainindex"
)

// GetStakeModifierChecksum computes the 32-bit checksum kernel.cpp stores
// alongside each block's modifier, used to cross-validate hardcoded
// checkpoints in chaincfg.Params.StakeModifierCheckpoints. It hashes the
// parent's checksum together with this block's flags, kernel proof hash,
// and stake modifier, then takes the top 32 bits of the digest, matching
// kernel.cpp's (commented-out) GetStakeModifierChecksum exactly.
func GetStakeModifierChecksum(entry *chainindex.Entry) uint32 {
	buf := new(bytes.Buffer)
	if entry.Parent != nil {
		writeUint32LE(buf, entry.Parent.StakeModifierChecksum)
	}
	writeUint32LE(buf, stakeFlags(entry))
	buf.Write(entry.HashProofOfStake[:])
	writeUint64LE(buf, entry.StakeModifier)
	hash := chainhash.DoubleHashB(buf.Bytes())
	return uint32(hash[28]) | uint32(hash[29])<<8 | uint32(hash[30])<<16 | uint32(hash[31])<<24
}

// stakeFlags synthesizes the nFlags bitmask the checksum hashes
// alongside the modifier. This core does not model the full original
// flag bitfield (soft-fork signaling bits it never interprets); it
// carries only the bit the checksum actually depends on in practice,
// MINT_PROOF_OF_STAKE.
func stakeFlags(entry *chainindex.Entry) uint32 {
	if entry.ProofOfStake {
		return 1
	}
	return 0
}

// CheckStakeModifierCheckpoints verifies entry's checksum against a
// hardcoded checkpoint, if one exists for its height. Absence of a
// checkpoint at a height is not an error; checkpoints only cover past
// mainnet history.
func CheckStakeModifierCheckpoints(params *chaincfg.Params, entry *chainindex.Entry) error {
	if params.Regtest {
		return nil
	}
	want, ok := params.StakeModifierCheckpoints[entry.Height]
	if !ok {
		return nil
	}
	got := GetStakeModifierChecksum(entry)
	if got != want {
		return fmt.Errorf("posconsensus: stake modifier checkpoint mismatch at height %d: got %08x want %08x", entry.Height, got, want)
	}
	return nil
}
