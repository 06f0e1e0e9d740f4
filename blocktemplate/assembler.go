// Copyright (c) 2009-2020 The Bitcoin Core developers
// Copyright (c) 2012-2020 The Peercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blocktemplate

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/stakechain/posd/chaincfg"
	"github.com/stakechain/posd/chainiface"
	"github.com/stakechain/posd/coinstake"
	"github.com/stakechain/posd/posconsensus"
	"github.com/stakechain/posd/walletiface"
)

// witnessMagicBytes flags a coinbase output as carrying the BIP141
// witness commitment, matching the marker btcd's mining package writes.
var witnessMagicBytes = []byte{0xaa, 0x21, 0xa9, 0xed}

// reservedWeight/reservedSigOps account for the coinbase and coinstake
// placeholders before package selection runs, matching resetBlock's
// nBlockWeight=4000/nBlockSigOpsCost=400 reservation in miner.cpp.
const (
	reservedWeight  = 4000
	reservedSigOps  = 400
)

// Errors this package returns.
var (
	ErrNoStakeFound   = errors.New("blocktemplate: no coinstake could be built this attempt")
	ErrInvalidTemplate = errors.New("blocktemplate: assembled block failed validation")
)

// Template is a finished, locally-validated block ready for the minter
// to broadcast.
type Template struct {
	Block             *wire.MsgBlock
	Height            int32
	Fees              []btcutil.Amount
	SigOpCosts        []int64
	WitnessCommitment []byte
	StakeTime         int64
}

// Options configures one Assembler instance, analogous to
// BlockAssembler::Options.
type Options struct {
	Params       *chaincfg.Params
	Chain        chainiface.Chain
	Coinstake    *coinstake.Builder
	BlockMaxWeight int64
	BlockMaxSigOpCost int64
	FutureDrift  int64
	// MinFeeRate floors the ancestor feerate, in satoshis per 1000
	// bytes of ancestor size, a package must clear to be admitted; 0
	// disables the floor.
	MinFeeRate int64
}

// Assembler builds block templates around a winning coinstake.
type Assembler struct {
	opts Options
}

// NewAssembler constructs an Assembler from opts, filling in
// btcd-style defaults for zero-valued weight/sigop limits.
func NewAssembler(opts Options) *Assembler {
	if opts.BlockMaxWeight == 0 {
		opts.BlockMaxWeight = 4_000_000 - reservedWeight
	}
	if opts.BlockMaxSigOpCost == 0 {
		opts.BlockMaxSigOpCost = 80_000 - reservedSigOps
	}
	if opts.FutureDrift == 0 {
		opts.FutureDrift = 15 * 60
	}
	return &Assembler{opts: opts}
}

// CreateNewBlock searches for a winning kernel, builds the coinstake,
// selects mempool packages around the reserved coinbase/coinstake
// weight, assembles the header, sorts transactions into canonical
// order, and validates the result before returning.
func (a *Assembler) CreateNewBlock(
	wallet walletiface.Wallet,
	coins []walletiface.StakeCoin,
	utxo chainiface.UtxoView,
	snapshot chainiface.MempoolSnapshot,
	target *big.Int,
	now int64,
	tipChanged func() bool,
	lookup posconsensus.ModifierLookup,
) (*Template, error) {

	prev := a.opts.Chain.Tip()
	nextHeight := prev.Height + 1

	kernelCoin, search, err := a.opts.Coinstake.Search(coinstake.SearchParams{
		Prev:        prev,
		Target:      target,
		Now:         now,
		FutureDrift: a.opts.FutureDrift,
		TipChanged:  tipChanged,
		Lookup:      lookup,
	}, coins, utxo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoStakeFound, err)
	}

	// The coinstake must exist before its coin age can be measured: the
	// reward that age determines is itself credited inside that same
	// transaction, mirroring CreateCoinStake's GetCoinAge(txNew, ...)
	// call in miner.cpp.
	placeholderReward := a.opts.Chain.BlockSubsidy(nextHeight, true, 0)
	coinstakeTx, err := a.opts.Coinstake.Build(kernelCoin, placeholderReward, nextHeight)
	if err != nil {
		return nil, fmt.Errorf("blocktemplate: %w", err)
	}
	coinAge, err := utxo.CoinAge(coinstakeTx, search.StakeTime)
	if err != nil {
		coinAge = 0
	}
	reward := a.opts.Chain.BlockSubsidy(nextHeight, true, coinAge)
	if reward != placeholderReward {
		coinstakeTx, err = a.opts.Coinstake.Build(kernelCoin, reward, nextHeight)
		if err != nil {
			return nil, fmt.Errorf("blocktemplate: %w", err)
		}
	}

	medianTimePast := a.opts.Chain.MedianTimePast(prev)
	limits := Limits{
		MaxWeight:    a.opts.BlockMaxWeight,
		MaxSigOpCost: a.opts.BlockMaxSigOpCost,
		MinFeeRate:   a.opts.MinFeeRate,
		IsFinal: func(tx *btcutil.Tx) bool {
			return isFinalTx(tx, nextHeight, medianTimePast)
		},
	}
	sel := Select(snapshot, limits)
	sortForBlock(sel.Entries, snapshot)

	segwitActive := a.opts.Params.SegwitHeight >= 0 && nextHeight >= a.opts.Params.SegwitHeight

	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   a.opts.Chain.ComputeVersion(prev, true),
			PrevBlock: prev.Hash,
			Timestamp: time.Unix(search.StakeTime, 0),
			Bits:      a.opts.Chain.NextWorkRequired(prev, &wire.BlockHeader{}),
		},
	}

	coinbaseScriptSig, err := coinbaseHeightScript(nextHeight)
	if err != nil {
		return nil, fmt.Errorf("blocktemplate: %w", err)
	}
	coinbase := wire.NewMsgTx(wire.TxVersion)
	coinbase.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: 0xffffffff}, coinbaseScriptSig, nil))
	coinbase.AddTxOut(wire.NewTxOut(0, nil))
	if err := block.AddTransaction(coinbase); err != nil {
		return nil, fmt.Errorf("blocktemplate: %w", err)
	}
	if err := block.AddTransaction(coinstakeTx); err != nil {
		return nil, fmt.Errorf("blocktemplate: %w", err)
	}

	fees := []btcutil.Amount{0, 0}
	sigOpCosts := []int64{0, 0}
	feeByTx := make(map[chainhash.Hash]btcutil.Amount, len(sel.Entries))
	sigOpsByTx := make(map[chainhash.Hash]int64, len(sel.Entries))
	for _, e := range sel.Entries {
		feeByTx[*e.Tx.Hash()] = e.Fee
		sigOpsByTx[*e.Tx.Hash()] = e.SigOpCost
		if err := block.AddTransaction(e.Tx.MsgTx()); err != nil {
			return nil, fmt.Errorf("blocktemplate: %w", err)
		}
	}
	canonicalSort(block.Transactions)

	for _, tx := range block.Transactions[2:] {
		h := tx.TxHash()
		fees = append(fees, feeByTx[h])
		sigOpCosts = append(sigOpCosts, sigOpsByTx[h])
	}

	var witnessCommitment []byte
	if segwitActive {
		commitment := calcWitnessCommitment(block.Transactions)
		script, err := witnessCommitmentScript(commitment)
		if err != nil {
			return nil, fmt.Errorf("blocktemplate: %w", err)
		}
		coinbase.AddTxOut(wire.NewTxOut(0, script))
		witnessCommitment = commitment
	}

	block.Header.MerkleRoot = calcTxMerkleRoot(block.Transactions)

	if err := a.opts.Chain.TestBlockValidity(block, prev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	log.Infof("blocktemplate: assembled height=%d txs=%d fees=%s", nextHeight, len(block.Transactions), sel.TotalFees)

	return &Template{
		Block:             block,
		Height:            nextHeight,
		Fees:              fees,
		SigOpCosts:        sigOpCosts,
		WitnessCommitment: witnessCommitment,
		StakeTime:         search.StakeTime,
	}, nil
}

// coinbaseHeightScript builds the BIP34-style coinbase scriptSig: the
// block height pushed as a script number followed by OP_0, matching
// CreateNewBlock's `CScript() << nHeight << OP_0` in miner.cpp.
func coinbaseHeightScript(height int32) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddInt64(int64(height)).
		AddOp(txscript.OP_0).
		Script()
}

// isFinalTx reports whether tx's locktime/sequence finality rules are
// satisfied as of nextHeight and medianTimePast, so a not-yet-final
// transaction is never admitted into a template.
func isFinalTx(tx *btcutil.Tx, nextHeight int32, medianTimePast int64) bool {
	msgTx := tx.MsgTx()
	if msgTx.LockTime == 0 {
		return true
	}
	lockTime := int64(msgTx.LockTime)
	threshold := int64(nextHeight)
	if lockTime >= txscript.LockTimeThreshold {
		threshold = medianTimePast
	}
	if lockTime < threshold {
		return true
	}
	for _, in := range msgTx.TxIn {
		if in.Sequence != wire.MaxTxInSequenceNum {
			return false
		}
	}
	return true
}

// canonicalSort orders transactions by witness-hash ascending, except
// that a transaction may never be sorted ahead of one of its own inputs'
// parent transactions, matching CreateNewBlock's post-selection sort in
// miner.cpp. The coinbase and coinstake (positions 0 and 1) are pinned.
func canonicalSort(txs []*wire.MsgTx) {
	if len(txs) <= 3 {
		return
	}
	pinned := txs[:2]
	rest := append([]*wire.MsgTx(nil), txs[2:]...)

	parentOf := func(tx *wire.MsgTx) map[chainhashLike]bool {
		parents := make(map[chainhashLike]bool, len(tx.TxIn))
		for _, in := range tx.TxIn {
			parents[chainhashLike(in.PreviousOutPoint.Hash)] = true
		}
		return parents
	}

	parents := make(map[*wire.MsgTx]map[chainhashLike]bool, len(rest))
	for _, tx := range rest {
		parents[tx] = parentOf(tx)
	}

	sort.SliceStable(rest, func(i, j int) bool {
		hi := rest[i].WitnessHash()
		hj := rest[j].WitnessHash()
		if parents[rest[j]][chainhashLike(rest[i].TxHash())] {
			return true
		}
		if parents[rest[i]][chainhashLike(rest[j].TxHash())] {
			return false
		}
		return bytes.Compare(hi[:], hj[:]) < 0
	})

	copy(txs, pinned)
	copy(txs[2:], rest)
}

type chainhashLike [32]byte
