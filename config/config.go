package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Port string `env:"PORT" envDefault:"5000"`

		// Origins allowed by CORS; "*" allows any
		AllowedOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

		GinMode string `env:"GIN_MODE" envDefault:"release"`
	}

	Database struct {
		// sqlite or postgres
		Driver string `env:"DB_DRIVER" envDefault:"sqlite"`
		DSN    string `env:"DATABASE_URL" envDefault:"data/listmyspace.db"`
	}

	Auth struct {
		JWTSecret string        `env:"JWT_SECRET_KEY"`
		TokenTTL  time.Duration `env:"JWT_ACCESS_TOKEN_EXPIRES" envDefault:"3h"`
	}

	Geocoding struct {
		// Geoapify key; Nominatim is used when empty
		APIKey   string        `env:"API_KEY_LAT_LONG"`
		CacheDir string        `env:"GEOCODE_CACHE_DIR" envDefault:"data/geocode_cache"`
		Throttle time.Duration `env:"GEOCODE_THROTTLE" envDefault:"1s"`
		Timeout  time.Duration `env:"GEOCODE_TIMEOUT" envDefault:"10s"`
	}

	Uploads struct {
		Dir     string `env:"UPLOAD_FOLDER" envDefault:"uploads"`
		BaseURL string `env:"UPLOAD_BASE_URL" envDefault:"/uploads"`

		// Maximum number of images per listing
		MaxFiles    int   `env:"UPLOAD_MAX_FILES" envDefault:"10"`
		MaxFileSize int64 `env:"UPLOAD_MAX_FILE_BYTES" envDefault:"10485760"`
	}

	Notifications struct {
		// Buffered batches before Push reports the queue as full
		QueueSize int `env:"NOTIFICATION_QUEUE_SIZE" envDefault:"256"`

		// Read notifications older than this are pruned
		Retention     time.Duration `env:"NOTIFICATION_RETENTION" envDefault:"720h"`
		PruneInterval time.Duration `env:"NOTIFICATION_PRUNE_INTERVAL" envDefault:"1h"`
	}

	// BatchProcessing configures the writers that persist notification batches
	BatchProcessing struct {
		// Maximum number of rows per insert statement
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"100"`

		// Number of concurrent batch processors
		ProcessorCount int `env:"BATCH_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"BATCH_RETRY_DELAY" envDefault:"5"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL" envDefault:"info"`
	}
}

// LoadConfig reads the environment, first seeding it from envFiles when they exist.
// Variables already set in the environment win over the files.
func LoadConfig(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// RetryDelay returns the batch retry delay as a duration
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.BatchProcessing.RetryDelay) * time.Second
}
