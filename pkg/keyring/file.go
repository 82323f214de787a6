package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
)

// File layout: magic, 12-byte GCM nonce, ciphertext of the JSON-encoded
// entry map. The cipher key is SHA-256 of the master key, so master
// keys of any permitted length map onto a full AES-256 key.
var fileMagic = []byte("MRKR\x00\x02")

const nonceSize = 12

// Save encrypts the keyring under masterKey and writes it to path with
// owner-only permissions.
func (k *Keyring) Save(path, masterKey string) error {
	if len(masterKey) == 0 {
		return fmt.Errorf("keyring master key is empty")
	}
	if len(masterKey) > MaxKeyLength {
		return fmt.Errorf("keyring master key is too long (%d, max %d)", len(masterKey), MaxKeyLength)
	}
	plaintext, err := json.Marshal(k.entries)
	if err != nil {
		return fmt.Errorf("serializing keyring: %w", err)
	}
	aead, err := newAEAD(masterKey)
	if err != nil {
		return err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating keyring nonce: %w", err)
	}
	data := append(append(append([]byte{}, fileMagic...), nonce...),
		aead.Seal(nil, nonce, plaintext, fileMagic)...)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing keyring file %s: %w", path, err)
	}
	return nil
}

// Load reads and decrypts the keyring at path. A wrong master key or a
// truncated file both surface as a decryption failure.
func Load(path, masterKey string) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyring file %s: %w", path, err)
	}
	if len(data) < len(fileMagic)+nonceSize || string(data[:len(fileMagic)]) != string(fileMagic) {
		return nil, fmt.Errorf("invalid keyring file %s", path)
	}
	aead, err := newAEAD(masterKey)
	if err != nil {
		return nil, err
	}
	nonce := data[len(fileMagic) : len(fileMagic)+nonceSize]
	plaintext, err := aead.Open(nil, nonce, data[len(fileMagic)+nonceSize:], fileMagic)
	if err != nil {
		return nil, fmt.Errorf("decrypting keyring file %s: wrong master key or corrupted file", path)
	}
	k := New()
	if err := json.Unmarshal(plaintext, &k.entries); err != nil {
		return nil, fmt.Errorf("parsing keyring file %s: %w", path, err)
	}
	return k, nil
}

func newAEAD(masterKey string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(masterKey))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
