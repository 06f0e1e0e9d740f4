// Copyright (c) 2014-2014 PPCD developers.
// Copyright (c) 2012-2020 The Peercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package minter runs the proof-of-stake minting worker loop: gate on
// wallet/peer/sync readiness, search for a kernel, assemble and submit a
// block, rest, repeat.
package minter

import (
	"errors"
	"math"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/stakechain/posd/blockiface"
	"github.com/stakechain/posd/blocktemplate"
	"github.com/stakechain/posd/chaincfg"
	"github.com/stakechain/posd/chainiface"
	"github.com/stakechain/posd/chainindex"
	"github.com/stakechain/posd/netiface"
	"github.com/stakechain/posd/posconsensus"
	"github.com/stakechain/posd/walletiface"
)

// State is the minter's current readiness state.
type State int

const (
	Disabled State = iota
	WalletLocked
	AwaitingPeers
	Syncing
	Ready
)

func (s State) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case WalletLocked:
		return "wallet-locked"
	case AwaitingPeers:
		return "awaiting-peers"
	case Syncing:
		return "syncing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Outcome reports what one mint attempt did, for tests and logging.
type Outcome int

const (
	OutcomeIdle Outcome = iota
	OutcomeNoKernel
	OutcomeStaleTip
	OutcomeSubmitted
	OutcomeRejected

	// OutcomeFatalKeypool reports that the wallet holds no stakeable
	// coins at all: continuing to retry cannot find a kernel, so run
	// terminates the worker instead of looping forever, mirroring
	// WalletKeypoolEmpty's user-visible-warning-then-stop behavior.
	OutcomeFatalKeypool
)

// verificationProgressThreshold matches PoSMiner's 0.996 chain-sync
// floor below which the loop refuses to mint, to avoid staking on a
// stale view of the chain.
const verificationProgressThreshold = 0.996

// Config wires a Loop to its collaborators. All fields are required.
type Config struct {
	Params    *chaincfg.Params
	Chain     chainiface.Chain
	Wallet    walletiface.Wallet
	Net       netiface.Network
	Processor blockiface.Processor
	Assembler *blocktemplate.Assembler

	Mempool func() chainiface.MempoolSnapshot
	Utxo    func() chainiface.UtxoView
	Target  func(prev *chainindex.Entry) *big.Int
	Lookup  posconsensus.ModifierLookup

	// StakeTimeout is the base wait, in milliseconds, between mint
	// attempts before the coin-count scaling term is added; defaults to
	// 500 (the original -staketimio default).
	StakeTimeout int
}

// Loop drives the minting worker goroutine.
type Loop struct {
	cfg Config

	mu      sync.Mutex
	enabled bool
	state   State

	quit chan struct{}
	wg   sync.WaitGroup
	rng  *rand.Rand
}

// New constructs a Loop. The loop does not run until Start is called.
func New(cfg Config) *Loop {
	if cfg.StakeTimeout == 0 {
		cfg.StakeTimeout = 500
	}
	return &Loop{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(1)),
	}
}

// Start launches the worker goroutine if not already running.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.enabled {
		return
	}
	l.enabled = true
	l.quit = make(chan struct{})
	l.wg.Add(1)
	go l.run(l.quit)
}

// Stop signals the worker to exit and waits for it to do so.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.enabled {
		l.mu.Unlock()
		return
	}
	l.enabled = false
	quit := l.quit
	l.mu.Unlock()

	close(quit)
	l.wg.Wait()
}

// State reports the loop's last-observed readiness state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// run is the worker goroutine body, grounded in PoSMiner's loop
// structure: wallet-locked wait, peer/sync wait, attempt, rest.
func (l *Loop) run(quit chan struct{}) {
	defer l.wg.Done()
	log.Debugf("minter: loop started")

	for {
		select {
		case <-quit:
			log.Debugf("minter: loop stopped")
			return
		case <-l.cfg.Net.Interrupt():
			return
		default:
		}

		if l.cfg.Wallet.IsLocked() {
			l.setState(WalletLocked)
			if !sleep(quit, 3*time.Second) {
				return
			}
			continue
		}

		regtest := l.cfg.Params != nil && l.cfg.Params.Regtest
		if !regtest && (l.cfg.Net.PeerCount() == 0 || l.cfg.Net.IsInitialBlockDownload() ||
			l.cfg.Net.VerificationProgress() < verificationProgressThreshold) {
			if l.cfg.Net.PeerCount() == 0 {
				l.setState(AwaitingPeers)
			} else {
				l.setState(Syncing)
			}
			if !sleep(quit, 10*time.Second) {
				return
			}
			continue
		}

		l.setState(Ready)
		outcome := l.attempt(quit)
		log.Debugf("minter: attempt outcome=%d", outcome)

		switch outcome {
		case OutcomeSubmitted:
			rest := 60*time.Second + time.Duration(l.rng.Intn(4))*time.Second
			if !sleep(quit, rest) {
				return
			}
		case OutcomeFatalKeypool:
			log.Warnf("minter: wallet has no stakeable coins; stake worker stopping until restarted")
			return
		default:
			coins, err := l.cfg.Wallet.AvailableCoins()
			n := 0
			if err == nil {
				n = len(coins)
			}
			if !sleep(quit, stakeTimeout(l.cfg.StakeTimeout, n)) {
				return
			}
		}
	}
}

// stakeTimeout computes the per-attempt wait: base + 30ms per sqrt(coin
// count), matching PoSMiner's pos_timio formula.
func stakeTimeout(baseMillis, numCoins int) time.Duration {
	ms := float64(baseMillis) + 30*math.Sqrt(float64(numCoins))
	return time.Duration(ms) * time.Millisecond
}

// sleep waits for d or returns false early if quit fires.
func sleep(quit chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-quit:
		return false
	case <-t.C:
		return true
	}
}

// attempt runs exactly one create-sign-submit cycle.
func (l *Loop) attempt(quit chan struct{}) Outcome {
	prevAtStart := l.cfg.Chain.Tip()

	coins, err := l.cfg.Wallet.AvailableCoins()
	if err != nil {
		return OutcomeNoKernel
	}
	if len(coins) == 0 {
		return OutcomeFatalKeypool
	}

	now := time.Now().Unix()
	tipChanged := func() bool {
		select {
		case <-quit:
			return true
		default:
		}
		return l.cfg.Chain.Tip() != prevAtStart
	}

	template, err := l.cfg.Assembler.CreateNewBlock(
		l.cfg.Wallet,
		coins,
		l.cfg.Utxo(),
		l.cfg.Mempool(),
		l.cfg.Target(prevAtStart),
		now,
		tipChanged,
		l.cfg.Lookup,
	)
	if err != nil {
		if errors.Is(err, blocktemplate.ErrInvalidTemplate) {
			log.Criticalf("minter: %v", err)
		}
		return OutcomeNoKernel
	}

	if l.cfg.Chain.Tip() != prevAtStart {
		return OutcomeStaleTip
	}

	if err := l.cfg.Wallet.SignBlock(template.Block); err != nil {
		log.Errorf("minter: signing block failed: %v", err)
		return OutcomeRejected
	}

	accepted, err := l.cfg.Processor.ProcessNewBlock(template.Block, true)
	if err != nil || !accepted {
		log.Errorf("minter: block rejected at height %d: %v", template.Height, err)
		return OutcomeRejected
	}

	log.Infof("minter: new proof-of-stake block at height %d", template.Height)
	return OutcomeSubmitted
}
