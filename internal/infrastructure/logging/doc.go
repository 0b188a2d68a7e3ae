// Package logging provides structured logging for Neogend Core.
//
// It wraps log/slog so every entry carries the service name and build
// version. JSON output is the production default; text output is meant for
// local development.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log credentials. Tokens are identified in logs by their jti and
// accounts by id and nipol.
package logging
