// Copyright (c) 2014-2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockiface declares the block-processor collaborator interface
// MinterLoop submits finished blocks to.
package blockiface

import "github.com/btcsuite/btcd/wire"

// Processor accepts newly minted blocks for the same validation and
// acceptance path as network-received blocks.
type Processor interface {
	// ProcessNewBlock runs block through full acceptance. forceProcessing
	// requests that DoS/orphan bookkeeping be skipped since the block was
	// locally produced.
	ProcessNewBlock(block *wire.MsgBlock, forceProcessing bool) (accepted bool, err error)
}
