package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDriverURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/gw?sslmode=disable", driverURL("postgres://u:p@db:5432/gw?sslmode=disable"))
	require.Equal(t, "pgx5://db/gw", driverURL("postgresql://db/gw"))
	require.Equal(t, "pgx5://db/gw", driverURL("pgx5://db/gw"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	require.True(t, names["000001_create_user_credentials.up.sql"])
	require.True(t, names["000001_create_user_credentials.down.sql"])
	require.True(t, names["000002_create_oauth_clients.up.sql"])
	require.True(t, names["000002_create_oauth_clients.down.sql"])
}
