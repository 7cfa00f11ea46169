// Package chain builds and signs the raw transactions the relay forwards
// to the ledger verbatim. The reconciliation core only sees the Signer
// boundary and the resulting opaque blob.
package chain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	becdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"
)

// Fixed network parameters. Neither is negotiated per transaction.
const (
	ChainID  uint64 = 10143
	GasPrice uint64 = 0x21d664903c
)

// Tx is an unsigned legacy transaction.
type Tx struct {
	Nonce    uint64
	GasPrice uint64
	GasLimit uint64
	To       string // 0x-prefixed 20-byte hex
	Value    uint64
	Data     []byte
}

// Signer turns an unsigned transaction into a submitted-ready blob. The
// game core treats it as an opaque, correct primitive.
type Signer interface {
	Address() string
	SignTx(tx Tx) (blob string, err error)
}

// Keccak256 returns the legacy Keccak-256 digest of data.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

func selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

func uint256Arg(v uint64) []byte {
	out := make([]byte, 32)
	for i := 0; i < 8; i++ {
		out[31-i] = byte(v >> (8 * uint(i)))
	}
	return out
}

// RegisterCall is the calldata for register().
func RegisterCall() []byte {
	return selector("register()")
}

// BuyCall is the calldata for buy(uint256 amount).
func BuyCall(amount uint64) []byte {
	return append(selector("buy(uint256)"), uint256Arg(amount)...)
}

// SellCall is the calldata for sell(uint256 amount).
func SellCall(amount uint64) []byte {
	return append(selector("sell(uint256)"), uint256Arg(amount)...)
}

func addressBytes(addr string) ([]byte, error) {
	s := strings.TrimPrefix(strings.TrimSpace(addr), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad address %q: %w", addr, err)
	}
	if len(b) != 20 {
		return nil, fmt.Errorf("bad address %q: want 20 bytes, got %d", addr, len(b))
	}
	return b, nil
}

// SigningHash is the EIP-155 digest signed for tx on the fixed chain:
// keccak(rlp([nonce, gasPrice, gasLimit, to, value, data, chainId, 0, 0])).
func SigningHash(tx Tx) ([]byte, error) {
	to, err := addressBytes(tx.To)
	if err != nil {
		return nil, err
	}
	enc := rlpList(
		rlpUint(tx.Nonce),
		rlpUint(tx.GasPrice),
		rlpUint(tx.GasLimit),
		rlpBytes(to),
		rlpUint(tx.Value),
		rlpBytes(tx.Data),
		rlpUint(ChainID),
		rlpUint(0),
		rlpUint(0),
	)
	return Keccak256(enc), nil
}

// SignTx signs tx with priv and returns the 0x-hex raw transaction blob
// plus its transaction hash.
func SignTx(priv *btcec.PrivateKey, tx Tx) (blob string, txHash string, err error) {
	digest, err := SigningHash(tx)
	if err != nil {
		return "", "", err
	}
	// Compact form is [recovery+27, r, s]; EIP-155 wants
	// v = recovery + chainId*2 + 35.
	compact := becdsa.SignCompact(priv, digest, false)
	recovery := uint64(compact[0] - 27)
	v := recovery + ChainID*2 + 35
	r := trimLeadingZeros(compact[1:33])
	s := trimLeadingZeros(compact[33:65])

	to, err := addressBytes(tx.To)
	if err != nil {
		return "", "", err
	}
	enc := rlpList(
		rlpUint(tx.Nonce),
		rlpUint(tx.GasPrice),
		rlpUint(tx.GasLimit),
		rlpBytes(to),
		rlpUint(tx.Value),
		rlpBytes(tx.Data),
		rlpUint(v),
		rlpBytes(r),
		rlpBytes(s),
	)
	return "0x" + hex.EncodeToString(enc), "0x" + hex.EncodeToString(Keccak256(enc)), nil
}

// RecoverAddress recovers the sender address from a signing digest and a
// compact signature. Used in tests to check sign/derive consistency.
func RecoverAddress(digest, compact []byte) (string, error) {
	pub, _, err := becdsa.RecoverCompact(compact, digest)
	if err != nil {
		return "", err
	}
	return PubKeyAddress(pub), nil
}

// PubKeyAddress derives the 0x-hex account address for a public key:
// the last 20 bytes of keccak(uncompressed pubkey without its 0x04 tag).
func PubKeyAddress(pub *btcec.PublicKey) string {
	raw := pub.SerializeUncompressed()
	digest := Keccak256(raw[1:])
	return "0x" + hex.EncodeToString(digest[12:])
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	return b[i:]
}
