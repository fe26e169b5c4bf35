package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stxfxno/listify/ratelimit"
)

func TestJitter(t *testing.T) {
	t.Parallel()
	base := 3 * time.Second
	for range 100 {
		d := ratelimit.Jitter(base)
		if d < base || d >= base+time.Second {
			t.Errorf("expected %s <= d < %s, got %s", base, base+time.Second, d)
		}
	}
}
