/*
Package log provides structured logging for entsync using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific child loggers and configurable log levels. All logs
include timestamps and support filtering by severity level.

# Usage

Initialize once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Then create component loggers anywhere:

	logger := log.WithComponent("pull-cache")
	logger.Warn().Str("path", path).Msg("server unreachable, using cached status")

# Logging discipline

The error-handling design masks transport detail from user-facing errors:
anything diagnostic (which endpoint failed, what the server said, which
cache file was stale) belongs in the log, and the returned error stays
generic. Components therefore log at the point of failure before wrapping
or swallowing, and callers never re-log what a component already recorded.

Console output (JSONOutput: false) is intended for interactive CLI runs;
JSON output is for the agent running under a service manager.
*/
package log
