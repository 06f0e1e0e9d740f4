// Copyright (c) 2014-2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package posconsensus

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger directs package output at logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
