package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLengthAndAlphabet(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		s, err := New()
		require.NoError(t, err)
		assert.Len(t, s, Length)
		for _, r := range s {
			assert.Contains(t, alphabet, string(r))
		}
		_, dup := seen[s]
		assert.False(t, dup, "unexpected collision across %d draws", i)
		seen[s] = struct{}{}
	}
}
