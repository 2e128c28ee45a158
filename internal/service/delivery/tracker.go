package delivery

import (
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// PrefixTracker remembers, per file version, how many leading bytes clients have received
// through contiguous responses, so a file counts as delivered only once every byte was sent.
type PrefixTracker struct {
	// mu makes the read-modify-write of a prefix atomic.
	mu sync.Mutex
	// prefixes maps a file version to the end of its delivered prefix.
	prefixes *expirable.LRU[string, int64]
}

// NewPrefixTracker creates a tracker remembering at most capacity files for ttl each.
func NewPrefixTracker(capacity int, ttl time.Duration) *PrefixTracker {
	return &PrefixTracker{
		prefixes: expirable.NewLRU[string, int64](max(capacity, 1), nil, ttl),
	}
}

// Record adds a served response of name and reports whether the file has now been
// delivered from its first byte to its last. Responses starting after the delivered
// prefix, such as tail reads, never complete a file.
func (t *PrefixTracker) Record(name string, result *Result) bool {
	key := name + "\x00" + strconv.FormatInt(result.Size, 10) + "\x00" +
		strconv.FormatInt(result.ModifiedAt.UnixNano(), 10)

	t.mu.Lock()
	defer t.mu.Unlock()

	prefix, _ := t.prefixes.Get(key)
	if result.Start > prefix {
		return false
	}

	prefix = max(prefix, result.Start+result.Written)
	if prefix >= result.Size {
		t.prefixes.Remove(key)

		return true
	}

	t.prefixes.Add(key, prefix)

	return false
}
