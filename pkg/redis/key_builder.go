package redis

import "fmt"

// KeyBuilder provides environment-aware Redis key building functionality
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = "staging"
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a Redis key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

// KeyResourceList returns the cache key for a collection's public list
func (kb *KeyBuilder) KeyResourceList(collection string) string {
	return kb.BuildKey(fmt.Sprintf(KeyResourceList, collection))
}

// KeyHomepageSettings returns the cache key for the homepage settings document
func (kb *KeyBuilder) KeyHomepageSettings() string {
	return kb.BuildKey(KeyHomepageSettings)
}
