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
	"math/rand"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/stakechain/posd/chaincfg"
	"github.com/stakechain/posd/chainiface"
	"github.com/stakechain/posd/chainindex"
)

// sentinelModifier is the fixed modifier assigned to the first block after
// genesis, and to every regtest block: ASCII "stakemod".
const sentinelModifier uint64 = 0x7374616b656d6f64

var (
	// ErrNoGeneration is returned when walking back for the last
	// generated modifier runs off the genesis block without finding one.
	ErrNoGeneration = errors.New("posconsensus: no stake modifier generation at genesis block")

	// ErrBlockNotIndexed is returned when a referenced block hash has no
	// corresponding chain index entry.
	ErrBlockNotIndexed = errors.New("posconsensus: block not indexed")

	// ErrBestTipTooOld is the V0.5 modifier-lookup guard violation: the
	// tip has not moved far enough past the kernel's source block yet.
	ErrBestTipTooOld = errors.New("posconsensus: best block too old for stake")

	// ErrBestBlockReached is the V0.3 modifier-lookup guard violation.
	ErrBestBlockReached = errors.New("posconsensus: reached best block walking forward from kernel source")

	// ErrGenesisReached is returned by the V0.5 walk if it runs off
	// genesis, which should not happen on a well-formed chain.
	ErrGenesisReached = errors.New("posconsensus: reached genesis block computing kernel stake modifier")
)

// selectionIntervalSection returns the length, in seconds, of round
// nSection's selection window.
func selectionIntervalSection(params *chaincfg.Params, nSection int) int64 {
	return params.ModifierInterval * 63 / (63 + (63-int64(nSection))*(params.ModifierIntervalRatio-1))
}

// selectionInterval is the sum of all 64 section lengths.
func selectionInterval(params *chaincfg.Params) int64 {
	var total int64
	for i := 0; i < 64; i++ {
		total += selectionIntervalSection(params, i)
	}
	return total
}

// getLastStakeModifier walks Parent links until it finds a block that
// generated its own modifier, returning that modifier and its block time.
func getLastStakeModifier(entry *chainindex.Entry) (modifier uint64, modifierTime int64, err error) {
	if entry == nil {
		return 0, 0, errors.New("posconsensus: nil entry")
	}
	walk := entry
	for walk.Parent != nil && !walk.GeneratedModifier {
		walk = walk.Parent
	}
	if !walk.GeneratedModifier {
		return 0, 0, ErrNoGeneration
	}
	return walk.StakeModifier, walk.Time, nil
}

type candidate struct {
	time int64
	hash chainhash.Hash
}

// sortCandidates implements the shuffle-then-stable-sort used to pick a
// round's candidate block: a Fisher-Yates pre-shuffle (whose outcome only
// matters for
// equal-timestamp tie order, which the subsequent sort then fixes
// deterministically by hash), followed by a stable sort on
// (time, hash-as-little-endian-u256).
func sortCandidates(rng *rand.Rand, candidates []candidate) {
	for i := len(candidates) - 1; i > 1; i-- {
		j := rng.Intn(i + 1)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].time != candidates[j].time {
			return candidates[i].time < candidates[j].time
		}
		return hashLess(candidates[i].hash, candidates[j].hash)
	})
}

// hashLess compares two hashes as little-endian 256-bit integers, most
// significant byte (index 31) first.
func hashLess(a, b chainhash.Hash) bool {
	for k := chainhash.HashSize - 1; k >= 0; k-- {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return false
}

// selectBlockFromCandidates picks the candidate with lowest selectionHash,
// among those not yet selected and with time <= stop; PoS candidates'
// selection hashes are right-shifted 32 bits so PoS always wins ties
// against PoW.
func selectBlockFromCandidates(
	lookup func(chainhash.Hash) *chainindex.Entry,
	candidates []candidate,
	selected map[chainhash.Hash]bool,
	stop int64,
	prevModifier uint64,
) (*chainindex.Entry, error) {

	var best *chainindex.Entry
	var bestHash *big.Int
	chosen := false

	for _, c := range candidates {
		entry := lookup(c.hash)
		if entry == nil {
			return nil, fmt.Errorf("%w: %s", ErrBlockNotIndexed, c.hash)
		}
		if chosen && entry.Time > stop {
			break
		}
		if selected[entry.Hash] {
			continue
		}

		buf := new(bytes.Buffer)
		buf.Write(entry.Hash[:])
		writeUint64LE(buf, prevModifier)
		selHash := chainhash.DoubleHashB(buf.Bytes())

		selInt := hashBytesToBig(selHash)
		if entry.ProofOfStake {
			selInt.Rsh(selInt, 32)
		}

		if !chosen {
			chosen = true
			bestHash = selInt
			best = entry
			continue
		}
		if selInt.Cmp(bestHash) < 0 {
			bestHash = selInt
			best = entry
		}
	}

	if !chosen {
		return nil, errors.New("posconsensus: no candidate selected")
	}
	return best, nil
}

// hashBytesToBig interprets a 32-byte digest as a little-endian unsigned
// integer, matching chainhash's own HashToBig convention.
func hashBytesToBig(b []byte) *big.Int {
	buf := make([]byte, len(b))
	for i, v := range b {
		buf[len(b)-1-i] = v
	}
	return new(big.Int).SetBytes(buf)
}

func writeUint64LE(buf *bytes.Buffer, v uint64) {
	var scratch [8]byte
	for i := 0; i < 8; i++ {
		scratch[i] = byte(v >> (8 * uint(i)))
	}
	buf.Write(scratch[:])
}

// ModifierResult is the outcome of computing the modifier a new block
// should carry.
type ModifierResult struct {
	Modifier uint64
	// Generated is true iff Modifier was freshly computed rather than
	// inherited from prev.
	Generated bool
}

// ComputeNextStakeModifier evaluates the modifier recomputation predicate
// and, when due, runs the 64-round selection algorithm. prev is the chain
// tip the new block extends; lookup resolves a candidate block hash to
// its index entry.
func ComputeNextStakeModifier(
	params *chaincfg.Params,
	prev *chainindex.Entry,
	lookup func(chainhash.Hash) *chainindex.Entry,
	rng *rand.Rand,
) (ModifierResult, error) {

	if prev == nil {
		return ModifierResult{Modifier: 0, Generated: true}, nil
	}
	if prev.Height == 0 || params.Regtest {
		return ModifierResult{Modifier: sentinelModifier, Generated: true}, nil
	}

	modifier, modifierTime, err := getLastStakeModifier(prev)
	if err != nil {
		return ModifierResult{}, fmt.Errorf("ComputeNextStakeModifier: %w", err)
	}

	if modifierTime/params.ModifierInterval >= prev.Time/params.ModifierInterval {
		// Still inside the same interval as the last generation: reuse.
		return ModifierResult{Modifier: modifier, Generated: false}, nil
	}

	selInterval := selectionInterval(params)
	intervalStart := (prev.Time/params.ModifierInterval)*params.ModifierInterval - selInterval

	var candidates []candidate
	for walk := prev; walk != nil && walk.Time >= intervalStart; walk = walk.Parent {
		candidates = append(candidates, candidate{time: walk.Time, hash: walk.Hash})
	}
	sortCandidates(rng, candidates)

	var newModifier uint64
	stop := intervalStart
	selected := make(map[chainhash.Hash]bool, 64)
	rounds := len(candidates)
	if rounds > 64 {
		rounds = 64
	}
	for round := 0; round < rounds; round++ {
		stop += selectionIntervalSection(params, round)
		chosen, err := selectBlockFromCandidates(lookup, candidates, selected, stop, modifier)
		if err != nil {
			return ModifierResult{}, fmt.Errorf("ComputeNextStakeModifier: round %d: %w", round, err)
		}
		newModifier |= uint64(chosen.EntropyBit) << uint(round)
		selected[chosen.Hash] = true
		log.Debugf("ComputeNextStakeModifier: round %d height=%d bit=%d", round, chosen.Height, chosen.EntropyBit)
	}

	return ModifierResult{Modifier: newModifier, Generated: true}, nil
}

// EntropyBit computes the entropy bit a block contributes to future stake
// modifiers, used by the chain layer when populating a new
// chainindex.Entry. hash160 is injected so this
// package need not depend on btcutil directly for a single call.
func EntropyBit(params *chaincfg.Params, version int32, blockHash chainhash.Hash, blockSig []byte, hash160 func([]byte) []byte) uint8 {
	if version >= params.EntropyBitUpgradeVersion {
		return uint8(blockHash[0] & 1)
	}
	digest := hash160(blockSig)
	word4 := uint32(digest[16]) | uint32(digest[17])<<8 | uint32(digest[18])<<16 | uint32(digest[19])<<24
	return uint8(word4 >> 31)
}

// GetKernelStakeModifierV05 implements the current (V0.5) kernel-modifier
// lookup: walk back from prev until the modifier is at least
// (stakeMinAge - selectionInterval) older than txTime, returning the
// last-encountered block that generated a modifier.
func GetKernelStakeModifierV05(params *chaincfg.Params, prev *chainindex.Entry, txTime int64) (modifier uint64, height int32, modTime int64, err error) {
	walk := prev
	height = walk.Height
	modTime = walk.Time
	selInterval := selectionInterval(params)

	if modTime+params.StakeMinAge[1]-selInterval <= txTime {
		return 0, 0, 0, ErrBestTipTooOld
	}

	for modTime+params.StakeMinAge[1]-selInterval > txTime {
		if walk.Parent == nil {
			return 0, 0, 0, ErrGenesisReached
		}
		walk = walk.Parent
		if walk.GeneratedModifier {
			height = walk.Height
			modTime = walk.Time
		}
	}
	return walk.StakeModifier, height, modTime, nil
}

// GetKernelStakeModifierV03 implements the legacy (V0.3) kernel-modifier
// lookup: walk forward from the kernel's source block until a modifier
// generated at least a selection interval after it is found. It walks the
// active chain through activeNext, except where prev's branch is off the
// active chain: that part is walked along a path it builds back from prev.
func GetKernelStakeModifierV03(
	params *chaincfg.Params,
	prev *chainindex.Entry,
	blockFrom *chainindex.Entry,
	activeNext func(*chainindex.Entry) *chainindex.Entry,
	activeContains func(*chainindex.Entry) bool,
) (modifier uint64, height int32, modTime int64, err error) {

	height = blockFrom.Height
	modTime = blockFrom.Time
	selInterval := selectionInterval(params)

	var tmpChain []*chainindex.Entry
	depth := prev.Height - (blockFrom.Height - 1)
	it := prev
	for i := int32(1); i <= depth && !activeContains(it); i++ {
		tmpChain = append(tmpChain, it)
		it = it.Parent
	}
	for i, j := 0, len(tmpChain)-1; i < j; i, j = i+1, j-1 {
		tmpChain[i], tmpChain[j] = tmpChain[j], tmpChain[i]
	}

	n := 0
	walk := blockFrom
	for modTime < blockFrom.Time+selInterval {
		if len(tmpChain) != 0 && walk.Height >= tmpChain[0].Height-1 && n < len(tmpChain) {
			walk = tmpChain[n]
			n++
		} else {
			walk = activeNext(walk)
		}
		if n > len(tmpChain) || walk == nil {
			return 0, 0, 0, fmt.Errorf("%w: from height=%d", ErrBestBlockReached, height)
		}
		if walk.GeneratedModifier {
			height = walk.Height
			modTime = walk.Time
		}
	}
	return walk.StakeModifier, height, modTime, nil
}

// ModifierLookup resolves the kernel stake modifier covering a
// (blockFrom, txTime) pair against the chain ending at prev.
type ModifierLookup func(prev *chainindex.Entry, blockFrom *chainindex.Entry, txTime int64) (modifier uint64, height int32, modTime int64, err error)

// NewModifierLookup returns the single dispatch point between the legacy
// (V0.3) and current (V0.5) kernel-modifier lookup strategies, selecting
// by the kernel protocol in effect for the block prev extends. Every
// caller that needs a modifier lookup goes through this constructor
// rather than hardcoding GetKernelStakeModifierV05 directly, so a network
// whose kernel protocol has not yet upgraded still resolves correctly.
func NewModifierLookup(params *chaincfg.Params, chain chainiface.Chain) ModifierLookup {
	return func(prev *chainindex.Entry, blockFrom *chainindex.Entry, txTime int64) (uint64, int32, int64, error) {
		if params.KernelProtocol(prev.Height+1) == 0 {
			return GetKernelStakeModifierV03(params, prev, blockFrom, chain.Next, chain.Contains)
		}
		return GetKernelStakeModifierV05(params, prev, txTime)
	}
}
