package ledger

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"

	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
)

// Address is a ledger account identifier: a CRC32 checksum followed by the
// SHA-224 of the owning principal and subaccount.
type Address [32]byte

// Subaccount selects one of a principal's accounts. The zero value is the
// default account.
type Subaccount [32]byte

var domainSeparator = []byte("\x0Aaccount-id")

// AccountAddress derives the ledger address owned by p.
func AccountAddress(p domain.Principal, sub Subaccount) Address {
	h := sha256.New224()
	h.Write(domainSeparator)
	h.Write([]byte(p))
	h.Write(sub[:])
	sum := h.Sum(nil)

	var a Address
	binary.BigEndian.PutUint32(a[:4], crc32.ChecksumIEEE(sum))
	copy(a[4:], sum)
	return a
}

// DefaultAddress is AccountAddress with the zero subaccount.
func DefaultAddress(p domain.Principal) Address {
	return AccountAddress(p, Subaccount{})
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes a hex address and validates its checksum.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("ledger: address %q: %w", s, err)
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("ledger: address %q: want %d bytes, got %d", s, len(a), len(raw))
	}
	copy(a[:], raw)
	if binary.BigEndian.Uint32(a[:4]) != crc32.ChecksumIEEE(a[4:]) {
		return a, fmt.Errorf("ledger: address %q: bad checksum", s)
	}
	return a, nil
}
