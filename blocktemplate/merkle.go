// Copyright (c) 2013 Conformal Systems LLC.
// Copyright (c) 2009-2020 The Bitcoin Core developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blocktemplate

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// buildMerkleRoot computes a block's merkle root from its transactions'
// leaf hashes, following the historical BuildMerkleTreeStore algorithm:
// pairwise double-SHA256 up the tree, duplicating the final node of any
// odd-length level.
func buildMerkleRoot(leaves []chainhash.Hash) chainhash.Hash {
	if len(leaves) == 0 {
		return chainhash.Hash{}
	}
	level := leaves
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			next[i] = hashMerkleBranches(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

// hashMerkleBranches combines two merkle tree nodes into their parent,
// double-SHA256 of their concatenation.
func hashMerkleBranches(left, right chainhash.Hash) chainhash.Hash {
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], left[:])
	copy(buf[chainhash.HashSize:], right[:])
	return chainhash.DoubleHashH(buf[:])
}

// calcTxMerkleRoot computes the legacy (txid-based) merkle root for a
// finished block's transaction list.
func calcTxMerkleRoot(txs []*wire.MsgTx) chainhash.Hash {
	leaves := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.TxHash()
	}
	return buildMerkleRoot(leaves)
}

// calcWitnessCommitment computes the BIP141 witness commitment for a
// finished, canonically-ordered transaction list: the merkle root of
// wtxids (the coinbase's wtxid counts as all-zero), double-SHA256'd
// together with the 32-byte witness reserved value.
func calcWitnessCommitment(txs []*wire.MsgTx) []byte {
	leaves := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		if i == 0 {
			leaves[i] = chainhash.Hash{}
			continue
		}
		leaves[i] = tx.WitnessHash()
	}
	witnessRoot := buildMerkleRoot(leaves)

	var reserved chainhash.Hash
	var buf [chainhash.HashSize * 2]byte
	copy(buf[:chainhash.HashSize], witnessRoot[:])
	copy(buf[chainhash.HashSize:], reserved[:])
	commitment := chainhash.DoubleHashB(buf[:])
	return commitment
}

// witnessCommitmentScript wraps a commitment in the standard
// OP_RETURN <magic><commitment> coinbase output script.
func witnessCommitmentScript(commitment []byte) ([]byte, error) {
	payload := make([]byte, 0, len(witnessMagicBytes)+len(commitment))
	payload = append(payload, witnessMagicBytes...)
	payload = append(payload, commitment...)
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(payload).
		Script()
}
