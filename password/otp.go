package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// OTPHasher hashes short numeric verification codes with bcrypt. Codes live for
// minutes and are single-use, so bcrypt's fixed cost is sufficient.
type OTPHasher struct {
	cost int
}

// NewOTPHasher returns a hasher at the given bcrypt cost. Zero selects cost 10.
func NewOTPHasher(cost int) (*OTPHasher, error) {
	if cost == 0 {
		cost = 10
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("otp bcrypt cost out of range")
	}
	return &OTPHasher{cost: cost}, nil
}

// Hash returns the bcrypt hash of code.
func (h *OTPHasher) Hash(code string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether code matches hash. Mismatch is not an error.
func (h *OTPHasher) Verify(code, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}
