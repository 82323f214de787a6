package bootstrap

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const passwordLength = 16

// RandomGenerator produces the random identifiers baked into a
// deployment: account passwords and the username suffix. Injected so
// tests can script deterministic values.
type RandomGenerator interface {
	Generate(length int) string
}

// CryptoRandomGenerator draws from crypto/rand. The character set is
// alphanumeric so generated values survive quoting in SQL statements
// and configuration files.
type CryptoRandomGenerator struct{}

const randomChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func (CryptoRandomGenerator) Generate(length int) string {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(randomChars)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("system random source unavailable: %v", err))
		}
		buf[i] = randomChars[n.Int64()]
	}
	return string(buf)
}

// FakeRandomGenerator cycles 012345678901234... which makes generated
// usernames and passwords predictable in tests.
type FakeRandomGenerator struct{}

func (FakeRandomGenerator) Generate(length int) string {
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = byte('0' + i%10)
	}
	return string(buf)
}
