package projects

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublicID(t *testing.T) {
	pattern := regexp.MustCompile(`^prj-\d{5}-\d{4}$`)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := NewPublicID("prj")
		require.NoError(t, err)
		assert.Regexp(t, pattern, id)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 1, "ids should not collide constantly")
}
