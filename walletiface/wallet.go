// Copyright (c) 2014-2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package walletiface declares the wallet collaborator interface this core
// consumes for coin selection and signing.
package walletiface

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// StakeCoin is one spendable, stake-eligible output as reported by the
// wallet, in the wallet's own iteration order.
type StakeCoin struct {
	Outpoint wire.OutPoint
	Value    btcutil.Amount
	Script   []byte
}

// Wallet is the subset of wallet functionality CoinstakeBuilder and
// MinterLoop need.
type Wallet interface {
	SelectStakeCoins() ([]StakeCoin, error)
	AvailableCoins() ([]StakeCoin, error)
	IsLocked() bool

	// GetKey returns the private key controlling keyID, if known.
	GetKey(keyID [20]byte) (*btcec.PrivateKey, bool)

	// Sign computes a signature for input nIn of tx, spending a prevout
	// carrying script and value, under sighash type sighash.
	Sign(script []byte, tx *wire.MsgTx, nIn int, value btcutil.Amount, sighash txscript.SigHashType) ([]byte, error)

	// SignBlock applies the staking key's signature to a finished PoS
	// block header.
	SignBlock(block *wire.MsgBlock) error
}
