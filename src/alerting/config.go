package alerting

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Optional webhook endpoint for alert delivery; empty disables it
	WebhookURL    string `envconfig:"GUARDIAN_WEBHOOK_URL" default:""`
	WebhookSecret string `envconfig:"GUARDIAN_WEBHOOK_SECRET" default:""`

	WebhookTimeoutSeconds int `envconfig:"GUARDIAN_WEBHOOK_TIMEOUT_SECONDS" default:"5"`
	WebhookRetryCount     int `envconfig:"GUARDIAN_WEBHOOK_RETRY_COUNT" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
