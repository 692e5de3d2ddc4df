package domain

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	DefaultShortCodeLength = 10
	MinShortCodeLength     = 3
	MaxShortCodeLength     = 20
)

const shortCodeAlphabet = "abcd1234"

var shortCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ShortCode is a value object identifying a clip.
// It is immutable, comparable and usable as a map key.
type ShortCode struct {
	value string
}

// NewShortCode creates a new ShortCode from a string, validating the format.
func NewShortCode(code string) (ShortCode, error) {
	if err := validateShortCode(code); err != nil {
		return ShortCode{}, err
	}
	return ShortCode{value: code}, nil
}

// MustShortCode is like NewShortCode but panics on an invalid code.
func MustShortCode(code string) ShortCode {
	sc, err := NewShortCode(code)
	if err != nil {
		panic(err)
	}
	return sc
}

// GenerateShortCode creates a random ShortCode of DefaultShortCodeLength.
func GenerateShortCode() (ShortCode, error) {
	max := big.NewInt(int64(len(shortCodeAlphabet)))
	code := make([]byte, DefaultShortCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return ShortCode{}, err
		}
		code[i] = shortCodeAlphabet[n.Int64()]
	}
	return ShortCode{value: string(code)}, nil
}

// String returns the string representation of the ShortCode.
func (s ShortCode) String() string {
	return s.value
}

// IsEmpty returns true if the ShortCode is empty.
func (s ShortCode) IsEmpty() bool {
	return s.value == ""
}

func validateShortCode(code string) error {
	if len(code) < MinShortCodeLength || len(code) > MaxShortCodeLength {
		return ErrInvalidCode
	}
	if !shortCodeRegex.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}
