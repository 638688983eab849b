package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config is read from the environment, after loading .env.local if it
// exists. Command line flags take precedence over it.
type Config struct {
	URL       string `env:"HERALD_URL,default=nats://127.0.0.1:4222"`
	Name      string `env:"HERALD_NAME"`
	User      string `env:"HERALD_USER"`
	Password  string `env:"HERALD_PASSWORD"`
	Token     string `env:"HERALD_TOKEN"`
	LogLevel  string `env:"HERALD_LOG_LEVEL,default=info"`
	DebugHTTP bool   `env:"HERALD_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
