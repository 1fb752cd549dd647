// Package hashing is the single place secrets are hashed and verified.
//
// Two algorithms are provided. Bcrypt is slow and salted and is used for
// passwords. SHA256 is deterministic and is used for bearer secrets (reset
// tokens, OTP codes) that must be looked up by their digest.
package hashing

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher turns a secret into a digest and checks a secret against one.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Cost() int { return b.cost }

func (b *Bcrypt) Hash(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

// Verify runs the bcrypt comparison, which is constant time in the secret.
func (b *Bcrypt) Verify(secret, digest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	return err == nil
}

// NeedsRehash reports whether digest was produced with a different cost.
func (b *Bcrypt) NeedsRehash(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return true
	}
	return cost != b.cost
}

type SHA256 struct{}

func (SHA256) Hash(secret string) (string, error) {
	return Digest(secret), nil
}

func (SHA256) Verify(secret, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(secret)), []byte(digest)) == 1
}

// Digest is the hex SHA-256 of secret.
func Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
