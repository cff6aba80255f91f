package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	AlgoHMAC   = "hmac"
	AlgoBcrypt = "bcrypt"
)

// legacyKey is the fixed HMAC key every stored digest was produced with.
// Changing it invalidates all existing passwords.
var legacyKey = []byte("password")

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) bool
}

// New returns the hasher registered under name. An empty name selects the HMAC hasher.
func New(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AlgoHMAC:
		return HMACHasher{}, nil
	case AlgoBcrypt:
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password hash %q", name)
	}
}

// Unsalted reports whether h produces equal digests for equal passwords.
func Unsalted(h Hasher) bool {
	_, ok := h.(HMACHasher)
	return ok
}

// HMACHasher is deterministic and unsalted: equal passwords give equal digests.
type HMACHasher struct{}

func (HMACHasher) Hash(password string) (string, error) {
	mac := hmac.New(sha256.New, legacyKey)
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func (h HMACHasher) Verify(password, digest string) bool {
	sum, _ := h.Hash(password)
	return hmac.Equal([]byte(sum), []byte(digest))
}

type BcryptHasher struct {
	Cost int
}

func (b BcryptHasher) Hash(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashbytes), nil
}

func (BcryptHasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
