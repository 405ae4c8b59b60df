// Package logging configures the zap logger shared by the ctxsnap commands.
package logging

import (
	"go.uber.org/zap"
)

// Setup builds the application logger. Verbose runs get the development
// config (human-readable, debug level); everything else uses the production
// config. The returned logger is also installed as zap's global.
func Setup(verbose bool, appName, appVersion string) (*zap.Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		// The document goes to stdout in dry runs; keep logs off it.
		cfg.OutputPaths = []string{"stderr"}
	}

	cfg.InitialFields = map[string]interface{}{
		"appName":    appName,
		"appVersion": appVersion,
	}

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewExample(), err
	}

	zap.ReplaceGlobals(logger)
	return logger, nil
}
