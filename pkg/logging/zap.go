package logging

import "go.uber.org/zap"

// ZapLogger backs the Logger port with go.uber.org/zap's sugared
// logger, the structured-logging dependency the rest of the retrieval
// pack (iamprashant-voice-ai) already carries.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a production zap config (JSON, info level) and
// wraps it as a Logger.
func NewZapLogger() (*ZapLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: l.Sugar()}, nil
}

// NewZapLoggerFromSugar wraps an already-configured zap logger,
// letting callers (tests, CLI flag handling) control the zap.Config.
func NewZapLoggerFromSugar(sugar *zap.SugaredLogger) *ZapLogger {
	return &ZapLogger{sugar: sugar}
}

func (z *ZapLogger) Debug(msg string, args ...interface{}) { z.sugar.Debugw(msg, args...) }
func (z *ZapLogger) Info(msg string, args ...interface{})  { z.sugar.Infow(msg, args...) }
func (z *ZapLogger) Warn(msg string, args ...interface{})  { z.sugar.Warnw(msg, args...) }
func (z *ZapLogger) Error(msg string, args ...interface{}) { z.sugar.Errorw(msg, args...) }

// Sync flushes any buffered log entries; callers should defer it.
func (z *ZapLogger) Sync() error { return z.sugar.Sync() }
