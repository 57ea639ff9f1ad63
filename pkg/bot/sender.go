package bot

import (
	"context"
	"log/slog"
)

// LogSender records outgoing messages instead of delivering them. It stands
// in when no chat transport is configured so the dispatcher stays usable in
// development deployments.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) SendMessage(_ context.Context, chatID int64, text string) error {
	s.Logger.Info("outgoing chat message", "chat", chatID, "text", text)
	return nil
}
