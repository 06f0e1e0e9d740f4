// Copyright (c) 2013-2020 The btcsuite developers
// Copyright (c) 2012-2020 The Peercoin developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config defines the command-line and config-file surface for
// the posd minter daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/stakechain/posd/chaincfg"
)

const (
	defaultConfigFilename  = "posd.conf"
	defaultLogFilename     = "posd.log"
	defaultLogLevel        = "info"
	defaultStakeTimeoutMs  = 500
	defaultBlockMaxWeight  = 4_000_000 - 4000
	defaultBlockMinTxFee   = 1000
	defaultFutureDriftSecs = 15 * 60
)

var (
	defaultHomeDir   = posdHomeDir()
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultLogDir    = filepath.Join(defaultHomeDir, "logs")
)

// Config holds every flag/config-file option posd recognizes.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level applied to every subsystem {trace, debug, info, warn, error, critical}; per-subsystem <subsystem>=<level> settings are not supported"`

	TestNet3       bool `long:"testnet" description:"Use the test network"`
	RegressionTest bool `long:"regtest" description:"Use the regression test network"`

	Staking    bool `long:"staking" description:"Enable proof-of-stake minting"`
	Minting    bool `long:"minting" description:"Alias of -staking, kept for compatibility with older config files"`
	StakeTimeout int `long:"staketimio" description:"Base milliseconds to wait between stake kernel search attempts"`

	BlockMaxWeight  int64 `long:"blockmaxweight" description:"Maximum block weight to be used when creating a block template"`
	BlockMinTxFee   int64 `long:"blockmintxfee" description:"Minimum fee rate (in satoshis/kvB) for transactions to be treated as free for mining purposes"`
	PrintPriority   bool  `long:"printpriority" description:"Log transaction priority and fee per kB when creating a block template"`
	PrintStakeModifier bool `long:"printstakemodifier" description:"Log the stake modifier computed for each new block"`

	SegwitHeight int32    `long:"segwitheight" description:"Block height at which segwit activates; -1 to disable"`
	VBParams     []string `long:"vbparams" description:"Override version bits parameters as deploymentId:startTime:timeout:threshold"`
}

func posdHomeDir() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "posd")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".posd")
	}
	return "."
}

// Defaults returns a Config pre-populated with posd's defaults, before
// flag parsing overrides fields.
func Defaults() *Config {
	return &Config{
		ConfigFile:     defaultConfigFile,
		DataDir:        filepath.Join(defaultHomeDir, "data"),
		LogDir:         defaultLogDir,
		DebugLevel:     defaultLogLevel,
		StakeTimeout:   defaultStakeTimeoutMs,
		BlockMaxWeight: defaultBlockMaxWeight,
		BlockMinTxFee:  defaultBlockMinTxFee,
		SegwitHeight:   -1,
	}
}

// Load parses args twice: once to resolve -C/-V early, then again over
// the config-file-loaded defaults so command-line flags take final
// precedence.
func Load(args []string) (*Config, error) {
	preCfg := Defaults()
	preParser := flags.NewParser(preCfg, flags.Default)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}
	if preCfg.ShowVersion {
		return preCfg, nil
	}

	cfg := Defaults()
	if _, err := os.Stat(preCfg.ConfigFile); err == nil {
		iniParser := flags.NewIniParser(flags.NewParser(cfg, flags.Default))
		if err := iniParser.ParseFile(preCfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", preCfg.ConfigFile, err)
		}
	}

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.TestNet3 && cfg.RegressionTest {
		return nil, fmt.Errorf("config: -testnet and -regtest cannot both be specified")
	}

	cfg.Staking = cfg.Staking || cfg.Minting

	return cfg, nil
}

// ActiveNetParams resolves the chain parameters selected by the network
// flags, mainnet by default.
func (c *Config) ActiveNetParams() *chaincfg.Params {
	switch {
	case c.RegressionTest:
		return &chaincfg.RegressionNetParams
	case c.TestNet3:
		return &chaincfg.TestNetParams
	default:
		return &chaincfg.MainNetParams
	}
}
