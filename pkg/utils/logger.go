package utils

import "go.uber.org/zap"

// NewLogger builds the process logger: the development config (console,
// debug level) when debug is set, the production config (JSON, info level)
// otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
