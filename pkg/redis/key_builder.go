package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string // Environment prefix (staging/prod)
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	switch environment {
	case "development", "staging", "test", "local":
		prefix = "staging"
	}

	return &KeyBuilder{prefix: prefix}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("creatorfeed:%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

func (kb *KeyBuilder) KeyVideoStats(videoID string) string {
	return kb.BuildKey(fmt.Sprintf(KeyVideoStats, videoID))
}

func (kb *KeyBuilder) KeyRunLock(scope string) string {
	return kb.BuildKey(fmt.Sprintf(KeyRunLock, scope))
}

func (kb *KeyBuilder) KeyLastRun() string {
	return kb.BuildKey(KeyLastRun)
}
