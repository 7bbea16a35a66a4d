package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("exports/projects_20260101_120000.csv")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	path, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "exports/projects_20260101_120000.csv", path)
	require.WithinDuration(t, expiresAt, parsedExpiry, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Millisecond*10)
	token, _, err := signer.Generate("exports/file.csv")
	require.NoError(t, err)
	time.Sleep(time.Millisecond * 20)

	_, _, err = signer.Parse(token)
	require.Error(t, err)
}

func TestSignedURLSignerRejectsTamperedSignature(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("exports/file.csv")
	require.NoError(t, err)

	_, _, err = signer.Parse(token + "0")
	require.Error(t, err)
}

func TestSignedURLSignerRejectsForeignSecret(t *testing.T) {
	token, _, err := NewSignedURLSigner("secret-a", time.Hour).Generate("exports/file.csv")
	require.NoError(t, err)

	_, _, err = NewSignedURLSigner("secret-b", time.Hour).Parse(token)
	require.Error(t, err)
}

func TestSignedURLSignerRejectsMalformedToken(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)

	for _, token := range []string{"", "only-one-part", strings.Repeat(".", 5)} {
		_, _, err := signer.Parse(token)
		require.Error(t, err)
	}
}

func TestSignedURLSignerRequiresPath(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, err := signer.Generate("")
	require.Error(t, err)
}
