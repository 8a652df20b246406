package logging

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arloliu/tugraph/types"
)

// ZapLogger adapts a *zap.Logger to types.Logger.
//
// Key/value pairs become zap.Any fields. A trailing key without a value is
// kept under "!BADKEY" rather than dropped.
type ZapLogger struct {
	logger *zap.Logger
}

var _ types.Logger = (*ZapLogger)(nil)

// NewZapLogger wraps a zap logger. A nil logger yields zap.NewNop().
//
// Parameters:
//   - logger: The zap logger to write to
//
// Returns:
//   - *ZapLogger: An adapter implementing types.Logger
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ZapLogger{logger: logger}
}

// Debug logs at debug level.
func (l *ZapLogger) Debug(msg string, kv ...any) { l.logger.Debug(msg, fields(kv)...) }

// Info logs at info level.
func (l *ZapLogger) Info(msg string, kv ...any) { l.logger.Info(msg, fields(kv)...) }

// Warn logs at warn level.
func (l *ZapLogger) Warn(msg string, kv ...any) { l.logger.Warn(msg, fields(kv)...) }

// Error logs at error level.
func (l *ZapLogger) Error(msg string, kv ...any) { l.logger.Error(msg, fields(kv)...) }

// Fatal logs at fatal level and exits the process.
func (l *ZapLogger) Fatal(msg string, kv ...any) { l.logger.Fatal(msg, fields(kv)...) }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

func fields(kv []any) []zap.Field {
	if len(kv) == 0 {
		return nil
	}

	flds := make([]zap.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		if i+1 == len(kv) {
			flds = append(flds, zap.Any("!BADKEY", kv[i]))
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if err, isErr := kv[i+1].(error); isErr {
			flds = append(flds, zap.NamedError(key, err))
			continue
		}
		flds = append(flds, zap.Any(key, kv[i+1]))
	}

	return flds
}
