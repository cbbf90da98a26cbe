// internal/vault/vault.go
//
// HashiCorp Vault KV-v2 helper.
//
// Context
// -------
// The only secret this engine needs from Vault is the database password, so
// the wrapper stays deliberately small: one lazily-created client, a KV-v2
// read helper, and Resolve(), which turns a `vault:<mount/path>#<key>` URI
// from the config tree into its plain value.
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – token with read access to the secret path.
package vault

import (
	"context"
	"fmt"
	"strings"
	"sync"

	vaultapi "github.com/hashicorp/vault/api"
)

// URIPrefix marks config values that must be resolved through Vault.
const URIPrefix = "vault:"

var (
	mu     sync.Mutex
	client *vaultapi.Client
)

func getClient() (*vaultapi.Client, error) {
	mu.Lock()
	defer mu.Unlock()
	if client != nil {
		return client, nil
	}
	c, err := vaultapi.NewClient(vaultapi.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	client = c
	return client, nil
}

// Resolve fetches the secret behind a `vault:<mount/path>#<key>` URI.
func Resolve(ctx context.Context, uri string) (string, error) {
	ref := strings.TrimPrefix(uri, URIPrefix)
	path, key, ok := strings.Cut(ref, "#")
	if !ok || path == "" || key == "" {
		return "", fmt.Errorf("vault: malformed secret URI %q", uri)
	}

	c, err := getClient()
	if err != nil {
		return "", err
	}

	mount, rest, ok := strings.Cut(path, "/")
	if !ok {
		return "", fmt.Errorf("vault: secret path %q lacks a mount", path)
	}

	sec, err := c.KVv2(mount).Get(ctx, rest)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", path, err)
	}
	val, ok := sec.Data[key].(string)
	if !ok {
		return "", fmt.Errorf("vault: key %q missing at %s", key, path)
	}
	return val, nil
}
