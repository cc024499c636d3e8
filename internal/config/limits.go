package config

type Limits struct {
	MaxRetries     int             `yaml:"max_retries" validate:"min=0,max=10"`
	MaxPromptBytes int             `yaml:"max_prompt_bytes" validate:"required,min=1000,max=1000000"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" validate:"required"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"required,min=1,max=1000"`
	BurstSize         int `yaml:"burst_size" validate:"required,min=1,max=100"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxRetries:     2,
		MaxPromptBytes: 100000,
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
		},
	}
}
