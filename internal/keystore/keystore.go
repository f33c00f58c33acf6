// Package keystore loads the signing key from hex or from a password
// encrypted file.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"

	"github.com/fd1az/oracle-resolver/internal/apperror"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	fileVersion      = 1
)

type encryptedFile struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Source names where the key comes from. PrivateKey wins over KeyFile.
type Source struct {
	PrivateKey string
	KeyFile    string
	Password   string
}

// Load resolves the signing key.
func Load(src Source) (*ecdsa.PrivateKey, error) {
	switch {
	case src.PrivateKey != "":
		return ParseHex(src.PrivateKey)
	case src.KeyFile != "":
		data, err := os.ReadFile(src.KeyFile)
		if err != nil {
			return nil, apperror.New(apperror.CodeInvalidSigningKey,
				apperror.WithContext(src.KeyFile), apperror.WithCause(err))
		}
		keyHex, err := Decrypt(data, src.Password)
		if err != nil {
			return nil, err
		}
		return ParseHex(keyHex)
	default:
		return nil, apperror.New(apperror.CodeConfigurationMissing, apperror.WithContext("signing key"))
	}
}

// ParseHex parses a hex key with or without the 0x prefix.
func ParseHex(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		// The cause never includes key material.
		return nil, apperror.New(apperror.CodeInvalidSigningKey, apperror.WithCause(err))
	}
	return key, nil
}

// Encrypt seals a hex key with PBKDF2-SHA256 and AES-256-GCM and returns the
// JSON file contents.
func Encrypt(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "empty password")
	}
	keyBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil || len(keyBytes) != 32 {
		return nil, apperror.New(apperror.CodeInvalidSigningKey, apperror.WithContext("expected 32 byte hex key"))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keystore: salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keystore: nonce: %w", err)
	}

	return json.MarshalIndent(encryptedFile{
		Version:    fileVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, keyBytes, nil)),
	}, "", "  ")
}

// Decrypt opens a file produced by Encrypt and returns the hex key.
func Decrypt(data []byte, password string) (string, error) {
	if password == "" {
		return "", apperror.New(apperror.CodeConfigurationMissing, apperror.WithContext("key password"))
	}

	var f encryptedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", apperror.New(apperror.CodeInvalidSigningKey, apperror.WithCause(err))
	}
	if f.Version != fileVersion {
		return "", apperror.New(apperror.CodeInvalidSigningKey,
			apperror.WithContext(fmt.Sprintf("unsupported version %d", f.Version)))
	}

	salt, err1 := base64.StdEncoding.DecodeString(f.Salt)
	nonce, err2 := base64.StdEncoding.DecodeString(f.Nonce)
	ciphertext, err3 := base64.StdEncoding.DecodeString(f.Ciphertext)
	for _, err := range []error{err1, err2, err3} {
		if err != nil {
			return "", apperror.New(apperror.CodeInvalidSigningKey, apperror.WithCause(err))
		}
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}
	if len(nonce) != gcm.NonceSize() {
		return "", apperror.New(apperror.CodeInvalidSigningKey, apperror.WithContext("bad nonce"))
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperror.New(apperror.CodeInvalidSigningKey,
			apperror.WithContext("wrong password or corrupted file"), apperror.WithCause(err))
	}
	return hex.EncodeToString(plain), nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("keystore: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keystore: gcm: %w", err)
	}
	return gcm, nil
}
