package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AlphaVantageAPIKey  string `envconfig:"ALPHAVANTAGE_API_KEY"`
	AlphaVantageBaseURL string `envconfig:"ALPHAVANTAGE_BASE_URL" default:"https://www.alphavantage.co"`

	// free tier budget, counted per UTC day
	AlphaVantageDailyLimit   int           `envconfig:"ALPHAVANTAGE_DAILY_LIMIT" default:"25"`
	AlphaVantageCacheTTL     time.Duration `envconfig:"ALPHAVANTAGE_CACHE_TTL" default:"15m"`
	AlphaVantageNameCacheTTL time.Duration `envconfig:"ALPHAVANTAGE_NAME_CACHE_TTL" default:"24h"`
	AlphaVantageTimeout      time.Duration `envconfig:"ALPHAVANTAGE_TIMEOUT" default:"10s"`
	AlphaVantageRetryCount   int           `envconfig:"ALPHAVANTAGE_RETRY_COUNT" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
