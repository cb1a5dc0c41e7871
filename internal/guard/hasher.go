package guard

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"hisaab/internal/core"
)

// Hasher turns secrets into salted one-way hashes and checks them.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

// BcryptHasher salts every hash independently.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher falls back to bcrypt.DefaultCost for out of range costs.
func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return BcryptHasher{Cost: cost}
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password too long", core.ErrValidation)
		}
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(b), nil
}

func (h BcryptHasher) Compare(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
