package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	sessionIDSize = 16
	linkTokenSize = 32
)

// NewSessionID returns 16 random bytes, hex encoded.
func NewSessionID() (string, error) {
	return randomHex(sessionIDSize)
}

// NewLinkToken returns the opaque value carried in verification and magic-link URLs.
func NewLinkToken() (string, error) {
	return randomHex(linkTokenSize)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NewOTP returns a numeric code of the given length drawn from crypto/rand.
// The first digit is never zero so the code always has exactly digits characters
// when rendered as a number in an email client.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	for i := 0; i < digits; i++ {
		lo, span := int64(0), int64(10)
		if i == 0 {
			lo, span = 1, 9
		}
		n, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + lo + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// NormalizeEmail trims surrounding space and lowercases the address. It is the only
// form used for lookups, uniqueness and limiter keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
