package svn2svn

import "log/slog"

var logger *slog.Logger = slog.Default()

// SetLogger sets the logger used by the package.
func SetLogger(l *slog.Logger) {
	logger = l
}
