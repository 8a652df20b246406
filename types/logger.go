package types

// Logger is the structured logger used throughout the client.
//
// Messages carry alternating key/value pairs. *zap.SugaredLogger satisfies
// this interface; internal/logging adapts a plain *zap.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Fatal(msg string, keysAndValues ...any)
}
