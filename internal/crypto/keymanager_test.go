package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("round trip = %s, want %s", got, testKeyHex)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if _, err := DecryptKey(blob, "*******"); err == nil {
		t.Fatalf("DecryptKey accepted the wrong password")
	}
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		password string
	}{
		{"empty_password", testKeyHex, ""},
		{"not_hex", "zzzz", "pw"},
		{"short_key", "abcd", "pw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncryptKey(tt.key, tt.password); err == nil {
				t.Fatalf("EncryptKey(%q, %q) succeeded", tt.key, tt.password)
			}
		})
	}
}

func TestLoadKeyFromRawHex(t *testing.T) {
	for _, raw := range []string{testKeyHex, "0x" + testKeyHex} {
		key, err := LoadKey(KeyConfig{RawPrivateKey: raw})
		if err != nil {
			t.Fatalf("LoadKey(%q): %v", raw, err)
		}
		want, _ := ethcrypto.HexToECDSA(testKeyHex)
		if ethcrypto.PubkeyToAddress(key.PublicKey) != ethcrypto.PubkeyToAddress(want.PublicKey) {
			t.Fatalf("LoadKey(%q) parsed a different key", raw)
		}
	}
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "key.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	key, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	want, _ := ethcrypto.HexToECDSA(testKeyHex)
	if ethcrypto.PubkeyToAddress(key.PublicKey) != ethcrypto.PubkeyToAddress(want.PublicKey) {
		t.Fatalf("decrypted key does not match the original")
	}
}

func TestLoadKeyNoSource(t *testing.T) {
	if _, err := LoadKey(KeyConfig{}); err == nil || !strings.Contains(err.Error(), "no private key source") {
		t.Fatalf("err = %v, want no-source error", err)
	}
}
