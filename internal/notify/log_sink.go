package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jcourtner/wayfarer/pkg/character"
	"github.com/jcourtner/wayfarer/pkg/travel"
)

// LogSink writes journey notifications to the log. It stands in for the
// Discord gateway sink during development and in tests, and doubles as the
// formatter the gateway sink wraps.
type LogSink struct {
	logger *slog.Logger
}

var _ travel.Sink = (*LogSink)(nil)

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) NotifyProgress(ctx context.Context, view travel.SessionView) error {
	s.logger.Info("Travel progress",
		"guild_id", view.GuildID,
		"user_id", view.UserID,
		"destination", view.Destination,
		"progress", fmt.Sprintf("%.0f%%", view.Progress*100),
		"eta", FormatRemaining(view.Remaining),
		"encounters", len(view.Encounters))
	return nil
}

func (s *LogSink) NotifyArrival(ctx context.Context, c *character.Character, scene string) error {
	s.logger.Info("Travel arrival",
		"guild_id", c.GuildID,
		"user_id", c.UserID,
		"area", c.CurrentArea,
		"scene", scene)
	return nil
}

func (s *LogSink) NotifyCancelled(ctx context.Context, view travel.SessionView) error {
	s.logger.Info("Travel cancelled",
		"guild_id", view.GuildID,
		"user_id", view.UserID,
		"destination", view.Destination,
		"progress", fmt.Sprintf("%.0f%%", view.Progress*100))
	return nil
}

// FormatRemaining renders a remaining duration for players, e.g.
// "3 minutes from now".
func FormatRemaining(d time.Duration) string {
	return humanize.Time(time.Now().Add(d))
}
