// Package hash provides password digesting for the users table.
package hash

import "golang.org/x/crypto/bcrypt"

// DefaultCost matches the cost the rest of the platform hashes with, so
// digests written here verify everywhere.
const DefaultCost = 10

// Hasher digests plaintext secrets before they reach storage.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// Bcrypt is the production Hasher.
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a Bcrypt hasher at DefaultCost.
func NewBcrypt() *Bcrypt {
	return &Bcrypt{Cost: DefaultCost}
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (b *Bcrypt) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
