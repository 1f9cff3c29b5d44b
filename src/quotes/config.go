package quotes

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LookupTimeout  time.Duration `envconfig:"QUOTE_LOOKUP_TIMEOUT" default:"5s"`
	MaxConcurrency int           `envconfig:"QUOTE_MAX_CONCURRENCY" default:"4"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
