package service

import (
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// Signer holds the escrow wallet's signing key. The key comes from a raw hex
// private key or is derived from a bip39 mnemonic at the standard ethereum
// path m/44'/60'/0'/0/0.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
}

func NewSignerFromHex(privHex string, chainID int64) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key")
	}
	return newSigner(key, chainID), nil
}

func NewSignerFromMnemonic(mnemonic string, chainID int64) (*Signer, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}
	seed := bip39.NewSeed(mnemonic, "")

	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrap(err, "derive master key")
	}
	// m/44'/60'/0'/0/0
	path := []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
		0,
	}
	child := master
	for _, idx := range path {
		child, err = child.Derive(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "derive index %d", idx)
		}
	}
	btcKey, err := child.ECPrivKey()
	if err != nil {
		return nil, errors.Wrap(err, "extract private key")
	}
	return newSigner(btcKey.ToECDSA(), chainID), nil
}

func newSigner(key *ecdsa.PrivateKey, chainID int64) *Signer {
	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chainID: big.NewInt(chainID),
	}
}

func (s *Signer) Address() common.Address { return s.address }

func (s *Signer) ChainID() *big.Int { return s.chainID }

func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.NewLondonSigner(s.chainID), s.key)
}
