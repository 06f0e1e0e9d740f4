// Copyright (c) 2014-2014 PPCD developers.
// Copyright (c) 2012-2020 The Peercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package coinstake builds and signs the coinstake transaction that proves
// a winning kernel and carries the block reward.
package coinstake

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/stakechain/posd/chaincfg"
	"github.com/stakechain/posd/chainiface"
	"github.com/stakechain/posd/chainindex"
	"github.com/stakechain/posd/posconsensus"
	"github.com/stakechain/posd/walletiface"
)

// Errors this package returns.
var (
	ErrNoKernelFound    = errors.New("coinstake: no stake coin produced a kernel")
	ErrWalletLocked     = errors.New("coinstake: wallet is locked")
	ErrUnsignableScript = errors.New("coinstake: coin script is not stakeable")
)

// PubKeyResolver resolves the public key bytes backing a P2PKH/P2WKH
// source script, so the reward output can be rewritten to plain P2PK.
// Wallets implement this by hashing each known pubkey and matching
// against the script's embedded hash.
type PubKeyResolver func(script []byte, class txscript.ScriptClass) ([]byte, error)

// Builder constructs coinstake transactions against one wallet and chain
// view.
type Builder struct {
	Params      *chaincfg.Params
	Wallet      walletiface.Wallet
	Chain       chainiface.Chain
	ResolvePubKey PubKeyResolver
}

// NewBuilder constructs a Builder. If opts.ResolvePubKey is nil, it
// defaults to walletPubKeyResolver, which looks keys up through
// opts.Wallet.GetKey directly, matching CreateCoinStake's behavior of
// going straight to the wallet's own keystore for the reward script.
func NewBuilder(opts Builder) *Builder {
	b := opts
	if b.ResolvePubKey == nil {
		b.ResolvePubKey = walletPubKeyResolver(b.Wallet)
	}
	return &b
}

// walletPubKeyResolver resolves a P2PKH/P2WKH source script's pubkey by
// extracting the embedded 20-byte hash and asking wallet for the key
// that controls it.
func walletPubKeyResolver(wallet walletiface.Wallet) PubKeyResolver {
	return func(script []byte, class txscript.ScriptClass) ([]byte, error) {
		pushes, err := txscript.PushedData(script)
		if err != nil {
			return nil, fmt.Errorf("coinstake: %w", err)
		}
		var keyID [20]byte
		found := false
		for _, push := range pushes {
			if len(push) == 20 {
				copy(keyID[:], push)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: no key hash in script", ErrUnsignableScript)
		}
		priv, ok := wallet.GetKey(keyID)
		if !ok {
			return nil, fmt.Errorf("%w: key %x not found", ErrUnsignableScript, keyID)
		}
		return priv.PubKey().SerializeCompressed(), nil
	}
}

// SearchParams carries the per-attempt values the kernel search needs
// beyond the wallet/chain fixtures.
type SearchParams struct {
	Prev        *chainindex.Entry
	Target      *big.Int
	Now         int64
	FutureDrift int64
	TipChanged  func() bool
	Lookup      posconsensus.ModifierLookup
}

// Search runs SearchKernel against every wallet coin in turn; earliest
// winning (coin, timestamp) pair wins, mirroring CreateCoinStake's
// SelectStakeCoins loop in miner.cpp.
func (b *Builder) Search(sp SearchParams, coins []walletiface.StakeCoin, utxo chainiface.UtxoView) (walletiface.StakeCoin, posconsensus.SearchResult, error) {
	if b.Wallet.IsLocked() {
		return walletiface.StakeCoin{}, posconsensus.SearchResult{}, ErrWalletLocked
	}

	minDepth := b.Params.StakeMinDepthFor(sp.Prev.Height + 1)

	for _, coin := range coins {
		src, ok := utxo.Get(coin.Outpoint)
		if !ok {
			continue
		}
		if sp.Prev.Height+1-src.Height < minDepth {
			continue
		}
		blockFrom := b.Chain.Ancestor(sp.Prev, src.Height)
		if blockFrom == nil {
			continue
		}

		k := posconsensus.Kernel{
			BlockFrom: blockFrom,
			Outpoint:  coin.Outpoint,
			CoinValue: int64(coin.Value),
			BlockTime: blockFrom.Time,
		}

		result, err := posconsensus.SearchKernel(
			b.Params, sp.Prev.Height, k, sp.Target,
			sp.Lookup, sp.Prev, sp.Now, sp.FutureDrift, sp.TipChanged,
		)
		if err != nil {
			continue
		}
		return coin, result, nil
	}
	return walletiface.StakeCoin{}, posconsensus.SearchResult{}, ErrNoKernelFound
}

// Build assembles the signed coinstake transaction once a winning kernel
// has been found: empty marker output, credit+reward output rewritten to
// a signable P2PK form, treasury split outputs, fully signed.
func (b *Builder) Build(kernelCoin walletiface.StakeCoin, reward btcutil.Amount, nextHeight int32) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.LockTime = 0

	txIn := wire.NewTxIn(&kernelCoin.Outpoint, nil, nil)
	txIn.Sequence = wire.MaxTxInSequenceNum - 1
	tx.AddTxIn(txIn)

	// First output is the empty coinstake marker.
	tx.AddTxOut(wire.NewTxOut(0, nil))

	payScript, err := b.stakeablePayScript(kernelCoin.Script)
	if err != nil {
		return nil, fmt.Errorf("coinstake: %w", err)
	}

	credit := kernelCoin.Value + reward
	treasuryCut, payees := splitTreasury(credit, nextHeight, b.Params)
	credit -= treasuryCut

	tx.AddTxOut(wire.NewTxOut(int64(credit), payScript))
	for _, payee := range payees {
		tx.AddTxOut(wire.NewTxOut(int64(payee.amount), payee.script))
	}

	sig, err := b.Wallet.Sign(kernelCoin.Script, tx, 0, kernelCoin.Value, txscript.SigHashAll)
	if err != nil {
		return nil, fmt.Errorf("coinstake: signing input: %w", err)
	}
	tx.TxIn[0].SignatureScript = sig

	log.Debugf("coinstake: built tx spending %s credit=%s treasury=%s", kernelCoin.Outpoint, credit, treasuryCut)
	return tx, nil
}

// stakeablePayScript rewrites a P2PKH or P2WKH source script to the plain
// P2PK form the reward output is paid to, matching CreateCoinStake's
// script-type branch; P2PK sources pass through unchanged.
func (b *Builder) stakeablePayScript(sourceScript []byte) ([]byte, error) {
	class := txscript.GetScriptClass(sourceScript)
	switch class {
	case txscript.PubKeyTy:
		return sourceScript, nil
	case txscript.PubKeyHashTy, txscript.WitnessV0PubKeyHashTy:
		pubKey, err := b.ResolvePubKey(sourceScript, class)
		if err != nil {
			return nil, err
		}
		script, err := txscript.NewScriptBuilder().AddData(pubKey).AddOp(txscript.OP_CHECKSIG).Script()
		if err != nil {
			return nil, err
		}
		return script, nil
	default:
		return nil, fmt.Errorf("%w: class=%s", ErrUnsignableScript, class)
	}
}

type treasuryPayment struct {
	script []byte
	amount btcutil.Amount
}

// splitTreasury computes the treasury cut and per-payee amounts out of
// credit, once the treasury-payments start height has been reached.
func splitTreasury(credit btcutil.Amount, nextHeight int32, params *chaincfg.Params) (btcutil.Amount, []treasuryPayment) {
	if params.TreasuryPaymentsStartHeight == 0 || nextHeight < params.TreasuryPaymentsStartHeight {
		return 0, nil
	}
	var total btcutil.Amount
	payments := make([]treasuryPayment, 0, len(params.TreasuryPayees))
	for _, payee := range params.TreasuryPayees {
		amount := credit * btcutil.Amount(payee.Percent) / 100
		total += amount
		payments = append(payments, treasuryPayment{script: payee.Script, amount: amount})
	}
	return total, payments
}
