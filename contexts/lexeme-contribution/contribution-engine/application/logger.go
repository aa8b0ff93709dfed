package application

import "log/slog"

// ModuleName tags every log record written by this service.
const ModuleName = "lexeme-contribution/contribution-engine"

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
