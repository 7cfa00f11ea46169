package wallet

import (
	"path/filepath"
	"strings"
	"testing"

	"stonkroyale.gg/internal/chain"
)

func TestGenerate_AddressFormat(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := w.Address()
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		t.Fatalf("bad address: %s", addr)
	}
	if addr != strings.ToLower(addr) {
		t.Fatalf("address must be lower-cased: %s", addr)
	}
}

func TestKeystore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, KeystoreFile)

	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := Save(path, "hunter2", w); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path, "hunter2")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Address() != w.Address() {
		t.Fatalf("address changed across round trip: %s != %s", got.Address(), w.Address())
	}
}

func TestKeystore_WrongPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, KeystoreFile)
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := Save(path, "right", w); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := Load(path, "wrong"); err == nil {
		t.Fatalf("expected error for wrong password")
	}
}

func TestLoadOrCreate_FirstRunThenReload(t *testing.T) {
	dir := t.TempDir()

	w1, created, err := LoadOrCreate(dir, "")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !created {
		t.Fatalf("first run should create the credential")
	}

	w2, created, err := LoadOrCreate(dir, "")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if created {
		t.Fatalf("second run must reuse the persisted credential")
	}
	if w1.Address() != w2.Address() {
		t.Fatalf("identity changed across restart: %s != %s", w1.Address(), w2.Address())
	}
}

func TestSignTx(t *testing.T) {
	w, err := Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	blob, txHash, err := w.SignTxHash(chain.Tx{
		Nonce:    0,
		GasPrice: chain.GasPrice,
		GasLimit: 115000,
		To:       "0x00000000000000000000000000000000000000aa",
		Data:     chain.RegisterCall(),
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !strings.HasPrefix(blob, "0x") || !strings.HasPrefix(txHash, "0x") {
		t.Fatalf("blob/hash not hex-prefixed: %s %s", blob, txHash)
	}
}
