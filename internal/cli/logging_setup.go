package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rshade/tablesync/internal/config"
	"github.com/rshade/tablesync/internal/logging"
)

// setupLogging configures logging from the effective config and CLI flags and
// stores the logger and a request id on the command context.
func setupLogging(cmd *cobra.Command, cfg *config.Config, debug bool) *logging.Result {
	loggingCfg := cfg.LoggerConfig()
	if debug {
		loggingCfg.Level = "debug"
	}

	loggingCfg.Writer = cmd.ErrOrStderr()
	if _, fullScreen := cmd.Annotations[annotationTUI]; fullScreen && loggingCfg.Output != logging.OutputFile {
		// Anything written to stderr would tear the alternate screen.
		loggingCfg.Writer = io.Discard
	}

	result, err := logging.New(loggingCfg)
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v; logging to stderr\n", err)
	}
	logger = logging.ComponentLogger(result.Logger, "cli")

	ctx := cmd.Context()
	ctx = logging.ContextWithRequestID(ctx, logging.GetOrGenerateRequestID(ctx))
	ctx = logger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Debug().
		Ctx(ctx).
		Str("command", cmd.CommandPath()).
		Str("request_id", logging.RequestIDFromContext(ctx)).
		Msg("command started")

	return result
}

// cleanupLogging closes the log file handle, if any.
func cleanupLogging(logResult *logging.Result) error {
	if logResult == nil {
		return nil
	}
	return logResult.Close()
}
