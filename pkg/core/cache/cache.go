// Package cache stores generated answers keyed by question. It is a pure
// optimization: a miss or a backend failure never changes what ask returns.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long an answer stays fresh.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is the answer cache contract. Get returns ok=false on a miss or a
// stale entry. Put overwrites any existing entry and refreshes its age.
type Cache interface {
	Get(ctx context.Context, key string) (answer string, ok bool, err error)
	Put(ctx context.Context, key, answer string) error
}

// Purger is implemented by backends without native expiry.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PlainKey is the key for ordinary questions: the exact question text with
// surrounding whitespace removed. Case is preserved.
func PlainKey(question string) string {
	return strings.TrimSpace(question)
}

// ScopedKey is the key for questions asked against a chosen set of filings.
// Filing ids are sorted so the key does not depend on the order they were given in.
func ScopedKey(ticker string, filingIDs []int64, question string) string {
	ids := append([]int64(nil), filingIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	sum := md5.Sum([]byte(strings.TrimSpace(question)))
	return ticker + ":" + strings.Join(parts, ",") + ":" + hex.EncodeToString(sum[:])
}

// Expired reports whether an entry created at createdAt is stale at now.
func Expired(createdAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(createdAt) >= ttl
}
