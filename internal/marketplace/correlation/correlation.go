// Package correlation derives the identifier that binds an off-ledger
// reservation to the ledger transfer paying for it.
//
// Ids are a 64-bit xxhash of the unit-separator delimited tuple
// (item id, requester, unix nanos). Uniqueness is probabilistic: two
// reservations collide only on a hash collision, which is not detected.
package correlation

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
)

const sep = '\x1f'

// Generate is deterministic for the same (itemID, requester, at) triple.
func Generate(itemID string, requester domain.Principal, at time.Time) uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, len(itemID)+len(requester)+24)
	buf = append(buf, itemID...)
	buf = append(buf, sep)
	buf = append(buf, requester...)
	buf = append(buf, sep)
	buf = strconv.AppendInt(buf, at.UnixNano(), 10)
	_, _ = d.Write(buf)
	return d.Sum64()
}

// Key renders an id as a fixed-width storage key so that lexical and numeric
// order agree.
func Key(id uint64) string {
	s := strconv.FormatUint(id, 10)
	const width = 20
	if len(s) >= width {
		return s
	}
	pad := make([]byte, width-len(s), width)
	for i := range pad {
		pad[i] = '0'
	}
	return string(append(pad, s...))
}
