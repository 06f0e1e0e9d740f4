// Copyright (c) 2014-2020 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinstake

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/stakechain/posd/chaincfg"
	"github.com/stakechain/posd/walletiface"
)

// fakeKeyWallet answers GetKey for a single known key hash and panics on
// every other Wallet method, which walletPubKeyResolver never calls.
type fakeKeyWallet struct {
	keyID [20]byte
	priv  *btcec.PrivateKey
}

func (f fakeKeyWallet) SelectStakeCoins() ([]walletiface.StakeCoin, error) { panic("unused") }
func (f fakeKeyWallet) AvailableCoins() ([]walletiface.StakeCoin, error)   { panic("unused") }
func (f fakeKeyWallet) IsLocked() bool                                     { panic("unused") }
func (f fakeKeyWallet) GetKey(keyID [20]byte) (*btcec.PrivateKey, bool) {
	if keyID == f.keyID {
		return f.priv, true
	}
	return nil, false
}
func (f fakeKeyWallet) Sign([]byte, *wire.MsgTx, int, btcutil.Amount, txscript.SigHashType) ([]byte, error) {
	panic("unused")
}
func (f fakeKeyWallet) SignBlock(*wire.MsgBlock) error { panic("unused") }

func TestSplitTreasuryBeforeStartHeightIsZero(t *testing.T) {
	params := &chaincfg.Params{TreasuryPaymentsStartHeight: 1000}
	cut, payees := splitTreasury(100000, 500, params)
	require.Equal(t, btcutil.Amount(0), cut)
	require.Empty(t, payees)
}

func TestSplitTreasuryAppliesPercentTable(t *testing.T) {
	params := &chaincfg.Params{
		TreasuryPaymentsStartHeight: 1000,
		TreasuryPayees: []chaincfg.TreasuryPayee{
			{Script: []byte{0x01}, Percent: 25},
			{Script: []byte{0x02}, Percent: 25},
			{Script: []byte{0x03}, Percent: 50},
		},
	}
	cut, payees := splitTreasury(100000, 1000, params)
	require.Equal(t, btcutil.Amount(100000), cut)
	require.Len(t, payees, 3)
	require.Equal(t, btcutil.Amount(25000), payees[0].amount)
	require.Equal(t, btcutil.Amount(50000), payees[2].amount)
}

func TestStakeablePayScriptPassesThroughP2PK(t *testing.T) {
	b := &Builder{}
	pubKey := make([]byte, 33)
	pubKey[0] = 0x02
	script, err := txscript.NewScriptBuilder().
		AddData(pubKey).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	out, err := b.stakeablePayScript(script)
	require.NoError(t, err)
	require.Equal(t, script, out)
}

func TestStakeablePayScriptRejectsUnknownClass(t *testing.T) {
	b := &Builder{}
	_, err := b.stakeablePayScript([]byte{txscript.OP_RETURN, 0x01})
	require.Error(t, err)
}

func TestStakeablePayScriptResolvesP2PKH(t *testing.T) {
	pubKey := make([]byte, 33)
	pubKey[0] = 0x02
	b := &Builder{
		ResolvePubKey: func(script []byte, class txscript.ScriptClass) ([]byte, error) {
			return pubKey, nil
		},
	}
	hash := btcutil.Hash160([]byte("test"))
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	out, err := b.stakeablePayScript(script)
	require.NoError(t, err)
	require.True(t, bytes.Contains(out, pubKey))
}

func TestNewBuilderDefaultsResolvePubKeyToWalletGetKey(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pubKey := priv.PubKey().SerializeCompressed()
	hash := btcutil.Hash160(pubKey)
	var keyID [20]byte
	copy(keyID[:], hash)

	wallet := fakeKeyWallet{keyID: keyID, priv: priv}
	b := NewBuilder(Builder{Wallet: wallet})

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	out, err := b.stakeablePayScript(script)
	require.NoError(t, err)
	require.True(t, bytes.Contains(out, pubKey))
}

func TestNewBuilderDefaultResolverErrorsOnUnknownKey(t *testing.T) {
	wallet := fakeKeyWallet{}
	b := NewBuilder(Builder{Wallet: wallet})

	hash := btcutil.Hash160([]byte("unknown"))
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	_, err = b.stakeablePayScript(script)
	require.Error(t, err)
}
