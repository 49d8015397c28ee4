package password

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifySecret(t *testing.T) {
	secret, err := GenerateSecret(32)
	require.NoError(t, err)
	require.Len(t, secret, 64)

	encoded, err := HashSecret(secret)
	require.NoError(t, err)
	require.NotContains(t, encoded, secret)

	ok, err := VerifySecret(secret, encoded)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifySecret("wrong", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifySecretMalformed(t *testing.T) {
	for _, bad := range []string{"", "plain", "$bcrypt$v=19$m=1,t=1,p=1$a$b", "$argon2id$v=19$junk$a$b"} {
		_, err := VerifySecret("x", bad)
		require.ErrorIs(t, err, ErrMalformedHash)
	}
}
