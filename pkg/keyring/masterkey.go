package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// GenerateMasterKey returns a fresh random master key, hex-encoded so
// it survives being stored in a text file.
func GenerateMasterKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating master key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ReadMasterKeyFile reads the master key stored at path. Error messages
// name the given path; callers writing through a temporary file must
// pass the final path here.
func ReadMasterKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("Invalid master key file %s: %w", path, err)
	}
	key := strings.TrimRight(string(data), "\r\n")
	if len(key) == 0 {
		return "", fmt.Errorf("Invalid master key file %s", path)
	}
	if len(key) > MaxKeyLength {
		return "", fmt.Errorf("Invalid master key file %s: key too long (max %d)", path, MaxKeyLength)
	}
	return key, nil
}

// WriteMasterKeyFile stores the master key at path, readable by the
// owner only.
func WriteMasterKeyFile(path, key string) error {
	if err := os.WriteFile(path, []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("writing master key file %s: %w", path, err)
	}
	return nil
}
