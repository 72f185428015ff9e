package service

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// Well-known development key pair (hardhat account #0).
const (
	devPrivHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	devMnemonic = "test test test test test test test test test test test junk"
)

func TestNewSignerFromHex(t *testing.T) {
	signer, err := NewSignerFromHex(devPrivHex, 1)
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress(devAddress), signer.Address())
	require.Equal(t, big.NewInt(1), signer.ChainID())

	// 0x prefix is accepted.
	prefixed, err := NewSignerFromHex("0x"+devPrivHex, 1)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), prefixed.Address())

	_, err = NewSignerFromHex("not-a-key", 1)
	require.Error(t, err)
}

func TestNewSignerFromMnemonic(t *testing.T) {
	signer, err := NewSignerFromMnemonic(devMnemonic, 1)
	require.NoError(t, err)
	// First account at m/44'/60'/0'/0/0 for this mnemonic.
	require.Equal(t, common.HexToAddress(devAddress), signer.Address())

	_, err = NewSignerFromMnemonic("definitely not twelve valid words", 1)
	require.Error(t, err)
}

func TestSignTx(t *testing.T) {
	signer, err := NewSignerFromHex(devPrivHex, 31337)
	require.NoError(t, err)

	to := common.HexToAddress("0x1")
	tx := types.NewTransaction(0, to, big.NewInt(0), 21000, big.NewInt(1), nil)
	signed, err := signer.SignTx(tx)
	require.NoError(t, err)

	from, err := types.Sender(types.NewLondonSigner(big.NewInt(31337)), signed)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), from)
}
