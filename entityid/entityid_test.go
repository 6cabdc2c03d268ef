package entityid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id, err := New()
		require.NoError(t, err)

		s := id.String()
		assert.Len(t, s, Length)

		got, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestParseWrongLength(t *testing.T) {
	_, err := Parse("short")
	require.Error(t, err)
	assert.IsType(t, ErrWrongLength{}, err)

	_, err = Parse("waytoolongforsure")
	require.Error(t, err)
	assert.IsType(t, ErrWrongLength{}, err)
}

func TestParseOutOfBounds(t *testing.T) {
	// "00000000" decodes to 0, below Min.
	_, err := Parse("00000000")
	require.Error(t, err)
	assert.IsType(t, ErrOutOfBounds{}, err)
}

func TestParseBadCharacter(t *testing.T) {
	_, err := Parse("AAAAAAA!")
	require.Error(t, err)
	assert.IsType(t, ErrBadCharacter{}, err)
}

func TestBoundsAreEightCharsWide(t *testing.T) {
	assert.Equal(t, Length, len(ID(Min).String()))
	assert.Equal(t, Length, len(ID(Max-1).String()))
}
