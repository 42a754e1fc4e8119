package rtp

import "log/slog"

// logger wraps a *slog.Logger so that a nil logger is safe to call on;
// an Endpoint with no logger configured pays nothing for log calls.
type logger struct {
	log *slog.Logger
}

func (l logger) Debug(msg string, args ...any) {
	if l.log != nil {
		l.log.Debug(msg, args...)
	}
}

func (l logger) Info(msg string, args ...any) {
	if l.log != nil {
		l.log.Info(msg, args...)
	}
}

func (l logger) Error(msg string, args ...any) {
	if l.log != nil {
		l.log.Error(msg, args...)
	}
}
