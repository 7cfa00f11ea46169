// Package wallet holds the client's signing credential: one secp256k1
// keypair whose derived account address is the participant identity for
// every message the relay sends about this client.
package wallet

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"stonkroyale.gg/internal/chain"
)

type Wallet struct {
	priv    *btcec.PrivateKey
	address string
}

// Generate creates a fresh keypair.
func Generate() (*Wallet, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return fromPriv(priv), nil
}

// FromBytes restores a wallet from raw private key bytes.
func FromBytes(b []byte) (*Wallet, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return fromPriv(priv), nil
}

// FromHex restores a wallet from a hex-encoded private key.
func FromHex(s string) (*Wallet, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid privkey hex: %w", err)
	}
	return FromBytes(b)
}

func fromPriv(priv *btcec.PrivateKey) *Wallet {
	return &Wallet{priv: priv, address: chain.PubKeyAddress(priv.PubKey())}
}

// Address is the lower-cased 0x-hex account address.
func (w *Wallet) Address() string { return w.address }

// SignTx signs tx and returns the raw transaction blob.
func (w *Wallet) SignTx(tx chain.Tx) (string, error) {
	blob, _, err := chain.SignTx(w.priv, tx)
	return blob, err
}

// SignTxHash signs tx and also returns the local transaction hash.
func (w *Wallet) SignTxHash(tx chain.Tx) (blob, txHash string, err error) {
	return chain.SignTx(w.priv, tx)
}

func (w *Wallet) privBytes() []byte {
	return w.priv.Serialize()
}
