package realtime

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeenSet_Observe(t *testing.T) {
	s := newSeenSet(4)

	assert.True(t, s.Observe("a"))
	assert.False(t, s.Observe("a"), "second sighting is a duplicate")
	assert.True(t, s.Observe("b"))
}

func TestSeenSet_EvictsOldest(t *testing.T) {
	s := newSeenSet(3)

	for _, id := range []string{"a", "b", "c"} {
		assert.True(t, s.Observe(id))
	}

	// "d" evicts "a"; "a" becomes observable again.
	assert.True(t, s.Observe("d"))
	assert.True(t, s.Observe("a"))
	assert.False(t, s.Observe("d"))
}

func TestSeenSet_BoundedUnderChurn(t *testing.T) {
	s := newSeenSet(16)
	for i := 0; i < 1000; i++ {
		s.Observe(fmt.Sprintf("id-%d", i))
	}
	assert.LessOrEqual(t, len(s.set), 16)
}
