package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var key = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ciphertext, err := Encrypt([]byte("refresh-token-value"), key)
	require.NoError(t, err)
	require.NotContains(t, ciphertext, "refresh-token-value")

	plaintext, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	require.Equal(t, "refresh-token-value", string(plaintext))
}

func TestDecryptWrongKeyFails(t *testing.T) {
	ciphertext, err := Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	other := []byte("fedcba9876543210fedcba9876543210")
	_, err = Decrypt(ciphertext, other)
	require.Error(t, err)
}

func TestDecryptGarbageFails(t *testing.T) {
	_, err := Decrypt("not-base64!!", key)
	require.Error(t, err)

	_, err = Decrypt("YWJj", key) // valid base64, too short for a nonce
	require.Error(t, err)
}

func TestEncryptRejectsBadKeyLength(t *testing.T) {
	_, err := Encrypt([]byte("data"), []byte("short"))
	require.Error(t, err)
}

func TestGenerateTokenIsURLSafe(t *testing.T) {
	token, err := GenerateToken(48)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, strings.ContainsAny(token, "+/="))

	other, err := GenerateToken(48)
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}
