package securestore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// IsStorageConfigured reports whether encrypted persistence is configured.
func IsStorageConfigured(path, secret string) bool {
	return strings.TrimSpace(path) != "" && strings.TrimSpace(secret) != ""
}

// ReadEncryptedJSON decrypts path into v. A missing file leaves v untouched.
func ReadEncryptedJSON(path, secret string, v any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	plaintext, err := Decrypt(secret, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(plaintext, v)
}

// WriteEncryptedJSON marshals, encrypts and replaces path via a temp file rename.
func WriteEncryptedJSON(path, secret string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	encrypted, err := Encrypt(secret, payload)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encrypted, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
