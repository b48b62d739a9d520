package env

import (
	"context"
	"testing"

	"github.com/bnema/grader/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreVariableName(t *testing.T) {
	t.Parallel()

	store := NewStore("")
	assert.Equal(t, "GRADER_SECRET_REFERENCE_KEY", store.VariableName("reference.key"))
	assert.Equal(t, "GRADER_SECRET_TOOLS_C_INTRO_REFERENCE_KEY", store.VariableName("tools/c-intro/reference.key"))
}

func TestStoreGet(t *testing.T) {
	t.Parallel()

	store := NewStore("TEST_")
	store.lookup = func(name string) (string, bool) {
		switch name {
		case "TEST_REFERENCE_KEY":
			return " a2V5 \n", true
		case "TEST_BLANK":
			return "  ", true
		}
		return "", false
	}

	value, err := store.Get(context.Background(), "reference.key")
	require.NoError(t, err)
	assert.Equal(t, "a2V5", value)

	_, err = store.Get(context.Background(), "blank")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	_, err = store.Get(context.Background(), "admin.token")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreIsReadOnly(t *testing.T) {
	t.Parallel()

	store := NewStore("")
	require.ErrorIs(t, store.Put(context.Background(), "reference.key", "v"), ErrReadOnly)
	require.ErrorIs(t, store.Delete(context.Background(), "reference.key"), ErrReadOnly)
}
