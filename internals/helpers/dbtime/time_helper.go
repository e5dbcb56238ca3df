package dbtime

import (
	"strings"
	"sync"
	"time"
)

// DefaultTimezone is used for receipts and mail when TEMPLE_TIMEZONE is unset.
const DefaultTimezone = "Asia/Kolkata"

var (
	mu  sync.RWMutex
	loc = mustLoad(DefaultTimezone)
)

func mustLoad(name string) *time.Location {
	if l, err := time.LoadLocation(name); err == nil {
		return l
	}
	// tzdata missing in the image
	return time.FixedZone("IST", 5*60*60+30*60)
}

// SetTimezone switches the local zone. An empty name keeps the current one.
func SetTimezone(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	l, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	mu.Lock()
	loc = l
	mu.Unlock()
	return nil
}

// Location returns the temple's local zone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return loc
}

// ToLocal converts a stored (UTC) time to local time. Zero stays zero.
func ToLocal(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(Location())
}

func ToLocalPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	lt := ToLocal(*t)
	return &lt
}
