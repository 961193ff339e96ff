package currency

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Currency identifies a supported faucet currency family.
type Currency string

const (
	NANO Currency = "NANO"
	XDG  Currency = "XDG"
	BAN  Currency = "BAN"
)

// Supported is the default set of currencies the faucet knows how to pay.
var Supported = []Currency{NANO, XDG, BAN}

// addressBody matches the account part of a NANO-family address (after the prefix).
var addressBody = regexp.MustCompile(`^[13][13456789abcdefghijkmnopqrstuwxyz]{59}$`)

// Parse converts a case-insensitive code into a supported Currency.
func Parse(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if !IsSupported(c) {
		return "", fmt.Errorf("unsupported currency %q", code)
	}
	return c, nil
}

// IsSupported reports whether c is part of the supported set.
func IsSupported(c Currency) bool {
	return lo.Contains(Supported, c)
}

// FromAddress derives the currency from an address prefix, e.g. "ban_1abc..." -> BAN.
func FromAddress(address string) (Currency, bool) {
	prefix, _, ok := strings.Cut(address, "_")
	if !ok {
		return "", false
	}
	c := Currency(strings.ToUpper(prefix))
	if !IsSupported(c) {
		return "", false
	}
	return c, true
}

// ValidAddress performs a format check of a prefixed address.
// Checksum verification is left to the wallet layer.
func ValidAddress(address string) bool {
	if _, ok := FromAddress(address); !ok {
		return false
	}
	_, body, _ := strings.Cut(address, "_")
	return addressBody.MatchString(body)
}

// Normalize lower-cases the prefix so "NANO_1abc" and "nano_1abc" name the same account.
// Addresses without a prefix are returned unchanged.
func Normalize(address string) string {
	prefix, body, ok := strings.Cut(address, "_")
	if !ok {
		return address
	}
	return strings.ToLower(prefix) + "_" + body
}

// String implements fmt.Stringer
func (c Currency) String() string {
	return string(c)
}

// Lower returns the lowercase code, as used for address prefixes and storage.
func (c Currency) Lower() string {
	return strings.ToLower(string(c))
}
