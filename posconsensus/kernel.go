// Copyright (c) 2014-2014 PPCD developers.
// Copyright (c) 2012-2020 The Peercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posconsensus

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/stakechain/posd/chaincfg"
	"github.com/stakechain/posd/chainindex"
)

// Kernel-check errors.
var (
	ErrStakeModifierUnavailable = errors.New("posconsensus: stake modifier unavailable for kernel")
	ErrKernelMissStakeTooOld    = errors.New("posconsensus: stake age below minimum")
	ErrKernelMiss               = errors.New("posconsensus: proof hash does not meet target")
	ErrPreconditionViolation    = errors.New("posconsensus: kernel precondition violated")
)

// Kernel describes the inputs CheckStakeKernelHash needs: the single UTXO
// a coinstake is proving ownership of, and the coinstake's own timestamp.
type Kernel struct {
	BlockFrom   *chainindex.Entry
	Outpoint    wire.OutPoint
	CoinValue   int64
	BlockTime   int64 // blockFrom.Time, cached for convenience
	StakeTime   int64 // the coinstake transaction's own timestamp
}

// stakeHash computes the proof hash for one candidate timestamp:
// H(modifier || blockFromTime || outpoint.Index || outpoint.Hash ||
// stakeTime), all fields little-endian.
func stakeHash(modifier uint64, blockFromTime int64, outpoint wire.OutPoint, stakeTime int64) chainhash.Hash {
	buf := new(bytes.Buffer)
	writeUint64LE(buf, modifier)
	writeInt64LE(buf, blockFromTime)
	writeUint32LE(buf, outpoint.Index)
	buf.Write(outpoint.Hash[:])
	writeInt64LE(buf, stakeTime)
	return chainhash.DoubleHashH(buf.Bytes())
}

func writeInt64LE(buf *bytes.Buffer, v int64) {
	writeUint64LE(buf, uint64(v))
}

func writeUint32LE(buf *bytes.Buffer, v uint32) {
	var scratch [4]byte
	for i := 0; i < 4; i++ {
		scratch[i] = byte(v >> (8 * uint(i)))
	}
	buf.Write(scratch[:])
}

// stakeTargetHit reports whether proofHash, weighted by the kernel's coin
// value, clears the difficulty target: proofHash <= target*weight.
//
// weight is coinValue itself under the current (V0.5) kernel protocol, or
// coinValue/100 under the legacy V0.3 protocol, matching
// bnCoinDayWeight's fNewWeight branch in kernel.cpp. There is no
// time-elapsed term; coin age only gates eligibility (the minimum-age
// check in CheckStakeKernelHash), it does not scale the target.
func stakeTargetHit(proofHash chainhash.Hash, coinValue int64, kernelProtocol int, target *big.Int) bool {
	weight := big.NewInt(coinValue)
	if kernelProtocol == 0 {
		weight.Div(weight, big.NewInt(100))
	}
	weighted := new(big.Int).Mul(target, weight)
	proofInt := hashBytesToBig(proofHash[:])
	return proofInt.Cmp(weighted) <= 0
}

// validateTarget enforces the consensus range every difficulty target
// must fall in: strictly positive, and no easier than the network's
// proof-of-stake limit.
func validateTarget(params *chaincfg.Params, target *big.Int) error {
	if target.Sign() <= 0 {
		return fmt.Errorf("%w: target must be positive", ErrPreconditionViolation)
	}
	powLimit := hashBytesToBig(params.PowLimit[:])
	if target.Cmp(powLimit) > 0 {
		return fmt.Errorf("%w: target exceeds pow limit", ErrPreconditionViolation)
	}
	return nil
}

// CheckResult carries the proof hash produced by a successful kernel
// check, which callers persist into the block's chainindex.Entry.
type CheckResult struct {
	ProofHash chainhash.Hash
}

// CheckStakeKernelHash validates that a specific (kernel, stakeTime) pair
// satisfies the PoS difficulty target under the active modifier-lookup
// protocol.
func CheckStakeKernelHash(
	params *chaincfg.Params,
	tipHeight int32,
	k Kernel,
	target *big.Int,
	lookup ModifierLookup,
	prev *chainindex.Entry,
) (CheckResult, error) {

	if err := validateTarget(params, target); err != nil {
		return CheckResult{}, err
	}

	minAge := params.StakeMinAgeFor(tipHeight + 1)
	if k.StakeTime < k.BlockTime+minAge {
		return CheckResult{}, fmt.Errorf("%w: stakeTime=%d blockFromTime=%d minAge=%d", ErrKernelMissStakeTooOld, k.StakeTime, k.BlockTime, minAge)
	}

	modifier, modHeight, modTime, err := lookup(prev, k.BlockFrom, k.StakeTime)
	if err != nil {
		return CheckResult{}, fmt.Errorf("%w: %v", ErrStakeModifierUnavailable, err)
	}
	log.Debugf("CheckStakeKernelHash: modifier=%d from height=%d time=%d", modifier, modHeight, modTime)

	proofHash := stakeHash(modifier, k.BlockTime, k.Outpoint, k.StakeTime)
	kernelProtocol := params.KernelProtocol(tipHeight + 1)

	if !stakeTargetHit(proofHash, k.CoinValue, kernelProtocol, target) {
		return CheckResult{}, fmt.Errorf("%w: outpoint=%s stakeTime=%d", ErrKernelMiss, k.Outpoint, k.StakeTime)
	}

	return CheckResult{ProofHash: proofHash}, nil
}

// SearchResult reports the winning timestamp from a kernel search.
type SearchResult struct {
	StakeTime int64
	Proof     CheckResult
}

// SearchKernel scans candidate timestamps in the slot-masked grid
// between now and now+futureDrift, earliest win, stopping early if
// tipChanged reports the chain moved.
func SearchKernel(
	params *chaincfg.Params,
	tipHeight int32,
	k Kernel,
	target *big.Int,
	lookup ModifierLookup,
	prev *chainindex.Entry,
	now int64,
	futureDrift int64,
	tipChanged func() bool,
) (SearchResult, error) {

	mask := int64(params.StakeTimestampMask)
	start := now &^ mask
	end := (now + futureDrift) &^ mask

	var lastErr error
	for t := start; t <= end; t += mask + 1 {
		if tipChanged() {
			return SearchResult{}, errors.New("posconsensus: search aborted, chain tip changed")
		}
		trial := k
		trial.StakeTime = t
		result, err := CheckStakeKernelHash(params, tipHeight, trial, target, lookup, prev)
		if err == nil {
			return SearchResult{StakeTime: t, Proof: result}, nil
		}
		lastErr = err
	}
	return SearchResult{}, fmt.Errorf("%w: exhausted search window: %v", ErrKernelMiss, lastErr)
}
