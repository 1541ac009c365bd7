package resource

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyFile(t *testing.T, plaintext string) (string, string) {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	sealed := gcm.Seal(nil, make([]byte, gcm.NonceSize()), []byte(plaintext), nil)

	path := filepath.Join(t.TempDir(), "resources.enc")
	require.NoError(t, os.WriteFile(path, sealed, 0o600))
	return base64.StdEncoding.EncodeToString(key), path
}

func TestLoadDecryptsLinkedResources(t *testing.T) {
	key, path := writeKeyFile(t, `{"Table":{"name":"saas-dev-table","type":"sst.aws.Dynamo"}}`)

	resources, err := Load(key, path)
	require.NoError(t, err)

	name, err := resources.String("Table", "name")
	require.NoError(t, err)
	assert.Equal(t, "saas-dev-table", name)

	_, err = resources.Get("Bucket", "name")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadEnvironmentOverlay(t *testing.T) {
	t.Setenv("SST_RESOURCE_Uploads", `{"name":"uploads-bucket"}`)

	resources, err := Load("", "")
	require.NoError(t, err)

	name, err := resources.String("Uploads", "name")
	require.NoError(t, err)
	assert.Equal(t, "uploads-bucket", name)
}

func TestLoadRejectsTamperedFile(t *testing.T) {
	key, path := writeKeyFile(t, `{"Table":{"name":"x"}}`)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = Load(key, path)
	assert.Error(t, err)
}

func TestStringRejectsNonString(t *testing.T) {
	resources := Resources{"Table": map[string]any{"port": 5432.0}}
	_, err := resources.String("Table", "port")
	assert.ErrorIs(t, err, ErrNotFound)
}
