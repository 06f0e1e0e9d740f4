// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package log centralizes the per-subsystem loggers used across this
// module, wired the way btcd's internal/log package wires blockchain,
// mempool, mining, and txscript: one backend, one btclog.Logger per
// subsystem, dynamically adjustable levels.
package log

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"

	"github.com/stakechain/posd/blocktemplate"
	"github.com/stakechain/posd/coinstake"
	"github.com/stakechain/posd/minter"
	"github.com/stakechain/posd/posconsensus"
)

// logWriter writes to both stdout and the rotator, mirroring btcd's
// internal/log logWriter.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if LogRotator != nil {
		LogRotator.Write(p)
	}
	return len(p), nil
}

var (
	backendLog = btclog.NewBackend(logWriter{})

	// LogRotator is the rotating file output. It must be initialized with
	// InitLogRotator before any subsystem logger is used, or log lines
	// are dropped on the floor (stdout still receives them).
	LogRotator *rotator.Rotator

	// PosConsensusLog covers stake modifier and kernel hash evaluation.
	PosConsensusLog = backendLog.Logger("POSC")
	// CoinstakeLog covers coinstake construction.
	CoinstakeLog = backendLog.Logger("CSTK")
	// BlockTemplateLog covers package selection and block assembly.
	BlockTemplateLog = backendLog.Logger("BTPL")
	// MinterLog covers the minter worker loop.
	MinterLog = backendLog.Logger("MINT")
)

// Wire package loggers to their subsystem backend at import time, the way
// btcd's internal/log init() wires blockchain/mempool/mining/txscript.
func init() {
	posconsensus.UseLogger(PosConsensusLog)
	coinstake.UseLogger(CoinstakeLog)
	blocktemplate.UseLogger(BlockTemplateLog)
	minter.UseLogger(MinterLog)
}

// SubsystemLoggers maps each subsystem identifier to its logger, for
// dynamic level adjustment from the -debug flag.
var SubsystemLoggers = map[string]btclog.Logger{
	"POSC": PosConsensusLog,
	"CSTK": CoinstakeLog,
	"BTPL": BlockTemplateLog,
	"MINT": MinterLog,
}

// InitLogRotator initializes the rotating log file writer. It must be
// called before any subsystem logger writes, typically from main().
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}
	LogRotator = r
	return nil
}

// SetLogLevel sets the level of one subsystem; unknown subsystems are
// ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := SubsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets every subsystem logger to the same level.
func SetLogLevels(logLevel string) {
	for subsystemID := range SubsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}
