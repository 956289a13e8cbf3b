package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrSecretNotFound is returned when a provider has no value for a name.
var ErrSecretNotFound = errors.New("secret not found")

// Provider fetches credentials by name.
type Provider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvProvider resolves secrets from environment variables named after the secret.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider reads from the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	value, ok := p.lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// CachedProvider memoizes successful lookups for the life of the process. Failed
// lookups are not cached, so a later call retries the underlying provider.
type CachedProvider struct {
	next Provider

	mu     sync.RWMutex
	values map[string]string
}

// NewCachedProvider wraps next.
func NewCachedProvider(next Provider) *CachedProvider {
	return &CachedProvider{next: next, values: make(map[string]string)}
}

func (c *CachedProvider) GetSecret(ctx context.Context, name string) (string, error) {
	c.mu.RLock()
	value, ok := c.values[name]
	c.mu.RUnlock()
	if ok {
		return value, nil
	}

	value, err := c.next.GetSecret(ctx, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.values[name] = value
	c.mu.Unlock()
	return value, nil
}
