package notify

import (
	"context"

	"github.com/alxayo/hlssink/internal/logger"
)

// LogNotifier writes every event through internal/logger (zerolog),
// adapted from the teacher's StdioHook but always structured — the teacher's
// "env" output format doesn't carry over since zerolog already gives us one
// canonical structured sink.
type LogNotifier struct {
	id string
}

// NewLogNotifier creates a LogNotifier identified by id.
func NewLogNotifier(id string) *LogNotifier {
	return &LogNotifier{id: id}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	fields := make([]any, 0, 4+2*len(e.Data))
	fields = append(fields, "track_id", e.TrackID, "at", e.At)
	for k, v := range e.Data {
		fields = append(fields, k, v)
	}
	logger.Info(string(e.Type), fields...)
	return nil
}

// Type implements Notifier.
func (n *LogNotifier) Type() string { return "log" }

// ID implements Notifier.
func (n *LogNotifier) ID() string { return n.id }
