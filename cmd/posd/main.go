// Copyright (c) 2013-2020 The btcsuite developers
// Copyright (c) 2012-2020 The Peercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/stakechain/posd/config"
	poslog "github.com/stakechain/posd/internal/log"
)

func posdMain() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		fmt.Println("posd")
		return nil
	}

	if err := poslog.InitLogRotator(filepath.Join(cfg.LogDir, "posd.log")); err != nil {
		return fmt.Errorf("failed to init log rotation: %w", err)
	}
	poslog.SetLogLevels(cfg.DebugLevel)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	poslog.PosConsensusLog.Infof("posd starting, network=%s staking=%v", cfg.ActiveNetParams().Name, cfg.Staking)

	<-interrupt
	poslog.PosConsensusLog.Infof("posd shutting down")
	return nil
}

func main() {
	if err := posdMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
