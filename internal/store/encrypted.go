package store

import (
	"context"
	"time"

	"github.com/dropDatabas3/msalbridge/internal/security/secretbox"
)

// encryptedClient envuelve un Client cifrando los valores con secretbox.
// Las keys quedan en claro (se necesitan para scans por prefijo).
type encryptedClient struct {
	inner Client
	box   *secretbox.Box
}

// NewEncrypted envuelve inner con cifrado at-rest usando la clave maestra
// de SECRETBOX_MASTER_KEY.
func NewEncrypted(inner Client) (Client, error) {
	box, err := secretbox.FromEnv()
	if err != nil {
		return nil, err
	}
	return &encryptedClient{inner: inner, box: box}, nil
}

// NewEncryptedWithBox envuelve inner con un Box explícito. Para tests.
func NewEncryptedWithBox(inner Client, box *secretbox.Box) Client {
	return &encryptedClient{inner: inner, box: box}
}

func (c *encryptedClient) Get(ctx context.Context, key string) (string, error) {
	ct, err := c.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return c.box.Open(ct)
}

func (c *encryptedClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ct, err := c.box.Seal(value)
	if err != nil {
		return err
	}
	return c.inner.Set(ctx, key, ct, ttl)
}

func (c *encryptedClient) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}

func (c *encryptedClient) Keys(ctx context.Context, prefix string) ([]string, error) {
	return c.inner.Keys(ctx, prefix)
}

func (c *encryptedClient) Ping(ctx context.Context) error { return c.inner.Ping(ctx) }

func (c *encryptedClient) Close() error { return c.inner.Close() }
