package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

func TestOptionalInt(t *testing.T) {
	args := map[string]any{"a": float64(3), "b": "12", "c": 1.5, "d": true, "e": ""}

	v, err := optionalInt(args, "a")
	require.NoError(t, err)
	require.Equal(t, 3, *v)

	v, err = optionalInt(args, "b")
	require.NoError(t, err)
	require.Equal(t, 12, *v)

	_, err = optionalInt(args, "c")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = optionalInt(args, "d")
	require.ErrorIs(t, err, domain.ErrValidation)

	v, err = optionalInt(args, "e")
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = optionalInt(args, "missing")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestStringList(t *testing.T) {
	list, err := stringList(map[string]any{"include": []any{"journals", "watchers"}}, "include")
	require.NoError(t, err)
	require.Equal(t, []string{"journals", "watchers"}, list)

	list, err = stringList(map[string]any{"include": "journals,relations"}, "include")
	require.NoError(t, err)
	require.Equal(t, []string{"journals", "relations"}, list)

	_, err = stringList(map[string]any{"include": []any{1}}, "include")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestUserIDArg(t *testing.T) {
	id, err := userIDArg(map[string]any{"user_id": float64(42)})
	require.NoError(t, err)
	require.Equal(t, "42", *id)

	id, err = userIDArg(map[string]any{})
	require.NoError(t, err)
	require.Nil(t, id)
}
