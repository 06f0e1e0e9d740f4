// Copyright (c) 2014-2020 The btcsuite developers
// Copyright (c) 2012-2020 The Peercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the consensus parameters for the proof-of-stake
// core: stake age and depth tables, modifier timing, kernel protocol
// activation heights, the treasury payee table, and the hard stake-modifier
// checkpoints. It mirrors the shape of github.com/btcsuite/btcd/chaincfg's
// Params but carries only the fields this core's consensus rules consult.
package chaincfg

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// TreasuryPayee is one entry of the static treasury split table. Order is
// significant: it determines vout position in the coinstake, hence txid.
type TreasuryPayee struct {
	Script  []byte
	Percent int64
}

// Params holds the consensus parameters this core needs to evaluate stake
// modifiers, kernel hashes, and block templates for one network.
type Params struct {
	// Name identifies the network ("mainnet", "testnet", "regtest").
	Name string

	// Regtest marks the network as exempt from the peer/sync readiness
	// gates in the minter loop and from the stake modifier checkpoint
	// table, and gives every block the fixed sentinel stake modifier.
	Regtest bool

	// PowLimit is the highest (easiest) proof-of-work/proof-of-stake
	// target permitted for the network.
	PowLimit chainhash.Hash

	// ModifierInterval is the number of seconds that must elapse,
	// relative to the last-generated modifier's block time, before a new
	// stake modifier is generated. 60s on every known network to date.
	ModifierInterval int64

	// ModifierIntervalRatio biases later selection-interval sections to
	// be shorter, per GetStakeModifierSelectionIntervalSection.
	ModifierIntervalRatio int64

	// StakeMinAge is indexed by kernel protocol: [0] is the legacy V0.3
	// minimum coin age, [1] is the current (V0.5) minimum coin age, in
	// seconds.
	StakeMinAge [2]int64

	// StakeMinDepth is indexed the same way as StakeMinAge: minimum
	// number of confirmations a kernel's source output must have.
	StakeMinDepth [2]int32

	// StakeTimestampMask is the low-order bit mask that every PoS block
	// time (and coinstake nTime) must clear. 0xf gives 16-second slots.
	StakeTimestampMask uint32

	// MandatoryUpgradeBlock is indexed by kernel protocol the same way
	// as StakeMinAge/StakeMinDepth: [0] is the height the V0.3-depth
	// rule switched over, [1] is the height the V0.5 modifier/kernel
	// protocol became mandatory.
	MandatoryUpgradeBlock [2]int32

	// EntropyBitUpgradeVersion is the block version at or above which
	// the entropy bit is taken from the block hash rather than
	// Hash160(blockSignature).
	EntropyBitUpgradeVersion int32

	// StakeModifierCheckpoints hard-checks computed modifier checksums
	// against known-good values at specific heights.
	StakeModifierCheckpoints map[int32]uint32

	// TreasuryPayees is the static (script, percent) split applied to
	// every coinstake's reward, in deterministic order.
	TreasuryPayees []TreasuryPayee

	// TreasuryPaymentsStartHeight is the height at which treasury
	// payments begin; 0 disables treasury payments entirely.
	TreasuryPaymentsStartHeight int32

	// CoinbaseMaturity is the number of blocks a coinbase/coinstake
	// output must be buried before it is spendable.
	CoinbaseMaturity int32

	// SegwitHeight is the activation height for witness transactions.
	// -1 disables segwit outright (used in some regtest configurations).
	SegwitHeight int32
}

// easyLimit builds a PowLimit value with topByte as its most significant
// byte and every lower byte saturated, giving a deliberately loose
// (easy) ceiling without hand-maintaining a 64-hex-digit literal.
func easyLimit(topByte byte) chainhash.Hash {
	var h chainhash.Hash
	for i := 0; i < chainhash.HashSize-1; i++ {
		h[i] = 0xff
	}
	h[chainhash.HashSize-1] = topByte
	return h
}

// KernelProtocol reports which stake-minimum-age/-depth table slot applies
// at nextHeight: 0 for legacy (V0.3), 1 once the V0.5 mandatory-upgrade
// height has been reached.
//
// The upstream source keys the min-depth upgrade off MandatoryUpgradeBlock[0]
// and the min-age upgrade off MandatoryUpgradeBlock[1] independently; callers
// that need exactly that split should index StakeMinAge/StakeMinDepth
// directly rather than going through this helper. KernelProtocol is provided
// for the common case (modifier-variant dispatch) where both move together.
func (p *Params) KernelProtocol(nextHeight int32) int {
	if nextHeight >= p.MandatoryUpgradeBlock[1] {
		return 1
	}
	return 0
}

// StakeMinAgeFor returns the coin-age floor that applies to a kernel
// evaluated for block nextHeight.
func (p *Params) StakeMinAgeFor(nextHeight int32) int64 {
	return p.StakeMinAge[p.KernelProtocol(nextHeight)]
}

// StakeMinDepthFor returns the confirmation-depth floor for nextHeight.
// Min-depth activates independently of min-age, per kernel.cpp.
func (p *Params) StakeMinDepthFor(nextHeight int32) int32 {
	if nextHeight >= p.MandatoryUpgradeBlock[0] {
		return p.StakeMinDepth[1]
	}
	return p.StakeMinDepth[0]
}

// TreasuryPayeesScripts returns the payee scripts as parsed txscript class
// hints; callers that only need raw bytes should use TreasuryPayees
// directly. This exists so callers can validate the table at startup
// without reimplementing script classification.
func (p *Params) TreasuryPayeesScripts() []txscript.ScriptClass {
	classes := make([]txscript.ScriptClass, len(p.TreasuryPayees))
	for i, payee := range p.TreasuryPayees {
		classes[i] = txscript.GetScriptClass(payee.Script)
	}
	return classes
}

// MainNetParams are the production network parameters, grounded in the
// original implementation's chainparams.cpp CMainParams constructor.
var MainNetParams = Params{
	Name:                     "mainnet",
	PowLimit:                 easyLimit(0x0f),
	ModifierInterval:         60,
	ModifierIntervalRatio:    3,
	StakeMinAge:              [2]int64{2 * 60 * 60, 12 * 60 * 60},
	StakeMinDepth:            [2]int32{200, 600},
	StakeTimestampMask:       0xf,
	MandatoryUpgradeBlock:    [2]int32{1030000, 1450000},
	EntropyBitUpgradeVersion: 4,
	StakeModifierCheckpoints: map[int32]uint32{
		0: 0xfd11f4e7,
	},
	TreasuryPaymentsStartHeight: 1030000,
	CoinbaseMaturity:            500,
	SegwitHeight:                -1,
}

// TestNetParams are the public test network parameters.
var TestNetParams = Params{
	Name:                     "testnet",
	PowLimit:                 easyLimit(0x1f),
	ModifierInterval:         60,
	ModifierIntervalRatio:    3,
	StakeMinAge:              [2]int64{60 * 60, 60 * 60},
	StakeMinDepth:            [2]int32{100, 100},
	StakeTimestampMask:       0xf,
	MandatoryUpgradeBlock:    [2]int32{0, 0},
	EntropyBitUpgradeVersion: 4,
	StakeModifierCheckpoints: map[int32]uint32{
		0: 0xfd11f4e7,
	},
	CoinbaseMaturity: 60,
	SegwitHeight:      -1,
}

// RegressionNetParams are the parameters used for regtest: fast timestamp
// slots, no minimum depth floor (the minimum age stays one hour), and no
// peer/sync readiness gates.
var RegressionNetParams = Params{
	Name:                  "regtest",
	Regtest:               true,
	PowLimit:              easyLimit(0x7f),
	ModifierInterval:      60,
	ModifierIntervalRatio: 3,
	StakeMinAge:           [2]int64{60 * 60, 60 * 60},
	StakeMinDepth:         [2]int32{0, 0},
	StakeTimestampMask:    0x3,
	MandatoryUpgradeBlock: [2]int32{0, 0},
	CoinbaseMaturity:      1,
	SegwitHeight:          0,
}
