// Package resource reads the resources SST links to a function: an AES-GCM
// encrypted JSON document at SST_KEY_FILE, overlaid with SST_RESOURCE_*
// environment variables.
package resource

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrNotFound = errors.New("not found")

type Resources map[string]any

// Load decrypts the linked resources. It returns an empty set when the
// process was not started by SST.
func Load(key string, keyFile string) (Resources, error) {
	resources := Resources{}
	if key != "" && keyFile != "" {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("decode key: %w", err)
		}
		encrypted, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		decrypted, err := decrypt(decoded, encrypted)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(decrypted, &resources); err != nil {
			return nil, fmt.Errorf("parse resources: %w", err)
		}
	}

	for _, item := range os.Environ() {
		name, value, ok := strings.Cut(item, "=")
		if !ok || !strings.HasPrefix(name, "SST_RESOURCE_") {
			continue
		}
		var result map[string]any
		if err := json.Unmarshal([]byte(value), &result); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		resources[strings.TrimPrefix(name, "SST_RESOURCE_")] = result
	}
	return resources, nil
}

func decrypt(key []byte, data []byte) ([]byte, error) {
	if len(data) < 16 {
		return nil, errors.New("key file too short")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	// the file is ciphertext followed by the auth tag, which is the layout
	// Open expects; the nonce is all zeroes
	nonce := make([]byte, aesGCM.NonceSize())
	decrypted, err := aesGCM.Open(nil, nonce, data, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt resources: %w", err)
	}
	return decrypted, nil
}

func (r Resources) Get(path ...string) (any, error) {
	return get(map[string]any(r), path...)
}

// String returns the value at path when it is a string.
func (r Resources) String(path ...string) (string, error) {
	value, err := r.Get(path...)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", ErrNotFound
	}
	return s, nil
}

func get(input any, path ...string) (any, error) {
	if len(path) == 0 {
		return input, nil
	}
	casted, ok := input.(map[string]any)
	if !ok {
		return nil, ErrNotFound
	}
	next, ok := casted[path[0]]
	if !ok {
		return nil, ErrNotFound
	}
	return get(next, path[1:]...)
}
