package adapter

import (
	"context"
	"time"
)

// Cipher seals secrets at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(sealed string) (string, error)
}

// Throttle is a fixed-window counter keyed by caller.
type Throttle interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
