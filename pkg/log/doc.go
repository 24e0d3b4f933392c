/*
Package log provides structured logging for Warden using zerolog.

It wraps zerolog with a package-level global Logger, a small Config for
picking JSON vs console output, and helper constructors for component- and
request-scoped child loggers shared by the Authority, Worker, and
Synchronizer services.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	authLog := log.WithComponent("authority")
	authLog.Info().Uint64("nonce", uint64(nonce)).Msg("permission added")

	log.Logger.Error().Err(err).Str("component", "worker").Msg("witness refresh failed")

# Fields

WithComponent tags a logger with "authority"/"worker"/"synchronizer".
WithNonce and WithRequestID add request-scoped fields threaded through a
single operation's log lines.
*/
package log
