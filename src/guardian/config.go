package guardian

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Hard ceiling on a single action dispatch; a hanging handler is
	// treated as FAILED after this long
	DispatchTimeoutSeconds int `envconfig:"GUARDIAN_DISPATCH_TIMEOUT_SECONDS" default:"30"`

	// Cap applied to stored stack traces
	MaxStackTraceBytes int `envconfig:"GUARDIAN_MAX_STACK_TRACE_BYTES" default:"8192"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
