package uuid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewIDIsV7(t *testing.T) {
	t.Parallel()

	g := NewUUIDGenerator()
	id, err := g.NewID()
	require.NoError(t, err)
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), parsed.Version())
}

func TestGeneratorIDsAreOrderedAndUnique(t *testing.T) {
	t.Parallel()

	g := NewUUIDGenerator()
	first := g.MustNewID()
	second := g.MustNewID()
	require.NotEqual(t, first, second)
	require.Less(t, first, second)
}
