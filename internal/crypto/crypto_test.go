package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret := "unit-test-secret"

	cases := map[string]string{
		"empty":      "",
		"single":     "x",
		"short":      "hello world",
		"multibyte":  "héllo wörld 秘密のメッセージ 🔒",
		"block-size": strings.Repeat("a", 16),
		"multi-kb":   strings.Repeat("sensitive payload ", 256),
	}

	for name, plaintext := range cases {
		t.Run(name, func(t *testing.T) {
			envelope, err := Encrypt(plaintext, secret)
			require.NoError(t, err)
			assert.Contains(t, envelope, ":")

			got, err := Decrypt(envelope, secret)
			require.NoError(t, err)
			assert.Equal(t, plaintext, got)
		})
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	a, err := Encrypt("same content", "k")
	require.NoError(t, err)
	b, err := Encrypt("same content", "k")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	cases := map[string]string{
		"no separator":  "deadbeef",
		"empty":         "",
		"bad iv hex":    "zzzz:deadbeef",
		"short iv":      "dead:beefbeefbeefbeefbeefbeefbeefbeef",
		"bad ct hex":    strings.Repeat("ab", 16) + ":nothex",
		"empty ct":      strings.Repeat("ab", 16) + ":",
		"ragged ct len": strings.Repeat("ab", 16) + ":abcdef",
	}

	for name, envelope := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := Decrypt(envelope, "secret")
			assert.ErrorIs(t, err, ErrDecrypt)
			assert.Empty(t, out)
		})
	}
}

func TestDecryptWrongKeyNeverLeaksPlaintext(t *testing.T) {
	const plaintext = "the launch code is 0000"
	envelope, err := Encrypt(plaintext, "right-key")
	require.NoError(t, err)

	out, err := Decrypt(envelope, "wrong-key")
	if err == nil {
		// CBC padding can decode by chance under a wrong key; the result
		// must still never be the original content.
		assert.NotEqual(t, plaintext, out)
	} else {
		assert.ErrorIs(t, err, ErrDecrypt)
	}
}

func TestDigestAnswer(t *testing.T) {
	d := DigestAnswer("blue")

	assert.Len(t, d, 64)
	assert.Equal(t, d, DigestAnswer("blue"), "digest must be deterministic")
	assert.NotEqual(t, d, DigestAnswer("red"))
	assert.NotEqual(t, d, DigestAnswer("Blue"), "digest is case sensitive")
}

func TestVerifyAnswer(t *testing.T) {
	d := DigestAnswer("blue")

	assert.True(t, VerifyAnswer("blue", d))
	assert.False(t, VerifyAnswer("red", d))
	assert.False(t, VerifyAnswer("", d))
}

func TestGenerateHandle(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		h := GenerateHandle()
		assert.True(t, strings.HasPrefix(h, "pro_"))
		assert.False(t, seen[h], "handles must be unique")
		seen[h] = true
	}
}

func TestDeriveKeyLength(t *testing.T) {
	assert.Len(t, deriveKey(""), keyLength)
	assert.Len(t, deriveKey("short"), keyLength)
	assert.Len(t, deriveKey(strings.Repeat("x", 100)), keyLength)

	// Padding is deterministic so envelopes survive restarts.
	assert.Equal(t, deriveKey("abc"), deriveKey("abc"))
}
