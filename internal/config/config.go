// Package config holds the explicitly constructed server configuration,
// passed to constructors instead of read from process globals.
package config

import "time"

// DefaultAckText is the legal-authorization statement an operator must
// submit verbatim before any evidentiary operation is allowed.
const DefaultAckText = "I confirm that I am legally authorized to process this evidence."

// Config collects all server settings. It is populated from flags in
// cmd/server and treated as read-only afterwards.
type Config struct {
	Addr string
	DSN  string

	VaultDir string

	JWTKey    []byte
	AccessTTL time.Duration

	AckText string

	LoginRateLimit  int
	LoginRateWindow time.Duration

	Workers      int
	PollInterval time.Duration

	// Bootstrap admin account, created at startup when absent. Empty
	// username disables bootstrap.
	AdminUser     string
	AdminPassword string
}

// Default returns the configuration defaults applied before flag parsing.
func Default() Config {
	return Config{
		Addr:            ":8080",
		VaultDir:        "vault",
		AccessTTL:       30 * time.Minute,
		AckText:         DefaultAckText,
		LoginRateLimit:  25,
		LoginRateWindow: 5 * time.Minute,
		Workers:         2,
		PollInterval:    time.Second,
	}
}
