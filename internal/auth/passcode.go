package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasscodeMismatch = errors.New("passcode mismatch")

// HashPasscode hashes a private table's passcode for storage.
func HashPasscode(passcode string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
}

// VerifyPasscode checks a join attempt against the stored hash.
func VerifyPasscode(hash []byte, passcode string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(passcode)); err != nil {
		return ErrPasscodeMismatch
	}
	return nil
}
