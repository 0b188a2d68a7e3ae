// Package config loads and validates Neogend Core configuration.
//
// Values come from hardcoded defaults, then a YAML file, then NEOGEND_*
// environment variables. Secrets (JWT signing key, database DSN, broker
// credentials) should be supplied through the environment and the config
// file kept at 0600.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	ttl := cfg.Security.JWT.AccessTTL()
package config
