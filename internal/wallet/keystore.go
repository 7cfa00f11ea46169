package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

// KeystoreFile is the fixed name the credential is persisted under.
const KeystoreFile = "wallet.json"

const pbkdf2Iterations = 4096

type keystoreFile struct {
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipher_text"`
}

// Save encrypts the private key with password and writes it to path.
func Save(path, password string, w *Wallet) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	cipherText := gcm.Seal(nil, nonce, w.privBytes(), nil)

	ks := keystoreFile{
		Address:    w.Address(),
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(cipherText),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load decrypts the keystore at path using password.
func Load(path, password string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, fmt.Errorf("keystore salt: %w", err)
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, fmt.Errorf("keystore nonce: %w", err)
	}
	cipherText, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return nil, fmt.Errorf("keystore cipher text: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	privBytes, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, errors.New("wrong password or corrupted keystore")
	}
	return FromBytes(privBytes)
}

// LoadOrCreate loads the persisted credential, generating and persisting
// a fresh one on first run.
func LoadOrCreate(dataDir, password string) (w *Wallet, created bool, err error) {
	path := filepath.Join(dataDir, KeystoreFile)
	if _, statErr := os.Stat(path); statErr == nil {
		w, err = Load(path, password)
		return w, false, err
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return nil, false, statErr
	}
	w, err = Generate()
	if err != nil {
		return nil, false, err
	}
	if err := Save(path, password, w); err != nil {
		return nil, false, err
	}
	return w, true, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
