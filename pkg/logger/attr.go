package logger

import "log/slog"

// Common attribute constructors so log keys stay consistent across packages.

func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func EventID(id string) slog.Attr {
	return slog.String("event_id", id)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}
