package config

import (
	"go.uber.org/zap"
)

// NewLogger returns a JSON production logger, or a console development logger
// outside production.
func NewLogger(app AppConfig) (*zap.Logger, error) {
	if app.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
