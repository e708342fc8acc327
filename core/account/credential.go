package account

import (
	"crypto/rand"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

const (
	tempCredentialLetters = 4
	tempCredentialDigits  = 4

	upperAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitAlphabet = "0123456789"
)

// GenerateTemporaryCredential returns a fresh one-time password: four random
// uppercase letters followed by four random digits, from a CSPRNG.
func GenerateTemporaryCredential() (string, error) {
	buf := make([]byte, 0, tempCredentialLetters+tempCredentialDigits)
	for i := 0; i < tempCredentialLetters; i++ {
		c, err := randByte(upperAlphabet)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	for i := 0; i < tempCredentialDigits; i++ {
		c, err := randByte(digitAlphabet)
		if err != nil {
			return "", err
		}
		buf = append(buf, c)
	}
	return string(buf), nil
}

func randByte(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, errors.Wrap(err, "reading random bytes")
	}
	return alphabet[n.Int64()], nil
}

// ComputeTempCredentialExpiry returns the moment a temporary credential issued
// now stops being accepted.
func ComputeTempCredentialExpiry(now time.Time, validity time.Duration) time.Time {
	return now.Add(validity).UTC()
}
