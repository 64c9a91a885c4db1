package config

// DefaultConfig returns the built-in configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Generation: GenerationConfig{
			MaxParallel:    3,
			RetryOnFailure: true,
			MaxRetries:     2,
			OutputDir:      "chapters",
		},
		Provider: ProviderConfig{
			Model:      "gpt-4o",
			APIKey:     "${OPENAI_API_KEY}",
			MaxTokens:  8192,
			RateLimit:  60,
			MaxRetries: 3,
		},
	}
}
