package keystore

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/oracle-resolver/internal/apperror"
)

// Well-known test key; never funded.
const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestParseHex(t *testing.T) {
	for _, in := range []string{testKey, "0x" + testKey, " " + testKey + "\n"} {
		key, err := ParseHex(in)
		require.NoError(t, err)
		assert.Equal(t, testKey, hex.EncodeToString(crypto.FromECDSA(key)))
	}

	_, err := ParseHex("nothex")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSigningKey))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	data, err := Encrypt("0x"+testKey, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(data), testKey)

	got, err := Decrypt(data, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKey, got)

	_, err = Decrypt(data, "wrong")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSigningKey))

	_, err = Decrypt(data, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationMissing))
}

func TestLoad(t *testing.T) {
	data, err := Encrypt(testKey, "pw")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	fromFile, err := Load(Source{KeyFile: path, Password: "pw"})
	require.NoError(t, err)
	fromHex, err := Load(Source{PrivateKey: testKey, KeyFile: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(fromHex.PublicKey), crypto.PubkeyToAddress(fromFile.PublicKey))

	_, err = Load(Source{})
	assert.True(t, apperror.HasCode(err, apperror.CodeConfigurationMissing))

	_, err = Load(Source{KeyFile: filepath.Join(t.TempDir(), "missing.json"), Password: "pw"})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSigningKey))
}

func TestEncrypt_RejectsBadInput(t *testing.T) {
	_, err := Encrypt(testKey, "")
	assert.Error(t, err)
	_, err = Encrypt("abcd", "pw")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidSigningKey))
}
