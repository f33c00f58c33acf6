package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fd1az/oracle-resolver/internal/apperror"
	"github.com/fd1az/oracle-resolver/internal/config"
	"github.com/fd1az/oracle-resolver/internal/keystore"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signer.json")
	var out bytes.Buffer

	cfg := config.ChainConfig{PrivateKey: "0x" + testKey, KeyPassword: "hunter2"}
	if err := encryptKey(cfg, []string{path}, &out); err != nil {
		t.Fatalf("encryptKey: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := keystore.Decrypt(data, "hunter2")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if strings.TrimPrefix(got, "0x") != testKey {
		t.Errorf("decrypted key mismatch")
	}
	if strings.Contains(string(data), testKey) {
		t.Error("key file contains the plaintext key")
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("output %q does not name the file", out.String())
	}
}

func TestEncryptKey_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.ChainConfig
		args []string
		code apperror.Code
	}{
		{"missing file argument", config.ChainConfig{PrivateKey: testKey, KeyPassword: "x"}, nil, apperror.CodeInvalidInput},
		{"no key", config.ChainConfig{KeyPassword: "x"}, []string{filepath.Join(dir, "a.json")}, apperror.CodeConfigurationMissing},
		{"no password", config.ChainConfig{PrivateKey: testKey}, []string{filepath.Join(dir, "b.json")}, apperror.CodeInvalidInput},
		{"bad key", config.ChainConfig{PrivateKey: "abcd", KeyPassword: "x"}, []string{filepath.Join(dir, "c.json")}, apperror.CodeInvalidSigningKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := encryptKey(tt.cfg, tt.args, &bytes.Buffer{})
			if !apperror.HasCode(err, tt.code) {
				t.Fatalf("err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestParseBetArgs(t *testing.T) {
	id, outcome, err := parseBetArgs([]string{"7", "no", "1"})
	if err != nil {
		t.Fatal(err)
	}
	if id != 7 || outcome.String() != "NO" {
		t.Errorf("got %d %s", id, outcome)
	}

	if _, _, err := parseBetArgs([]string{"-1", "yes", "1"}); !apperror.HasCode(err, apperror.CodeInvalidInput) {
		t.Errorf("negative id: err = %v", err)
	}
	if _, _, err := parseBetArgs([]string{"1", "maybe", "1"}); !apperror.HasCode(err, apperror.CodeInvalidOutcome) {
		t.Errorf("bad outcome: err = %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("Will BTC close above 50k?", 10); got != "Will BT..." {
		t.Errorf("got %q", got)
	}
}

func TestHumanize(t *testing.T) {
	err := apperror.Validation(apperror.CodeInvalidInput, "usage: marketctl show <market>")
	if got := humanize(err); !strings.Contains(got, "usage: marketctl show <market>") {
		t.Errorf("humanize = %q", got)
	}
}
