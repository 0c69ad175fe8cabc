package progress

import "go.uber.org/zap"

// LogListener reports task progress through a zap logger.
type LogListener struct {
	logger *zap.Logger
}

// NewLogListener creates a listener which logs to l.
func NewLogListener(l *zap.Logger) *LogListener {
	return &LogListener{logger: l}
}

// Updated implements Listener.
func (l *LogListener) Updated(message string, current, total int) {
	l.logger.Debug(message, zap.Int("current", current), zap.Int("total", total))
}

// Cancelled implements Listener.
func (l *LogListener) Cancelled() {
	l.logger.Warn("task cancelled")
}

// Warning implements Listener.
func (l *LogListener) Warning(err error) {
	l.logger.Warn("task warning", zap.Error(err))
}

// Complete implements Listener.
func (l *LogListener) Complete(tag string, _ any) {
	l.logger.Info("task complete", zap.String("task", tag))
}
