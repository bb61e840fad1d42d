package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"arena-bots/server/logging"
)

// Zap forwards events to a zap logger as structured entries.
type Zap struct {
	logger *zap.Logger
}

// NewZap wraps logger. A nil logger builds a production (or development)
// logger according to cfg.
func NewZap(logger *zap.Logger, cfg logging.ZapConfig) (*Zap, error) {
	if logger == nil {
		var err error
		if cfg.Development {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return nil, err
		}
	}
	return &Zap{logger: logger}, nil
}

func (s *Zap) Write(event logging.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	fields := make([]zap.Field, 0, 8)
	fields = append(fields,
		zap.Uint64("tick", event.Tick),
		zap.String("actor", formatEntity(event.Actor)),
	)
	if event.Category != "" {
		fields = append(fields, zap.String("category", event.Category))
	}
	if event.TraceID != "" {
		fields = append(fields, zap.String("run", event.TraceID))
	}
	if len(event.Targets) > 0 {
		fields = append(fields, zap.Any("targets", event.Targets))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	if len(event.Extra) > 0 {
		fields = append(fields, zap.Any("extra", event.Extra))
	}
	if ce := s.logger.Check(zapLevel(event.Severity), string(event.Type)); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func (s *Zap) Close(context.Context) error {
	if s == nil || s.logger == nil {
		return nil
	}
	// Sync reports EINVAL for terminal outputs.
	_ = s.logger.Sync()
	return nil
}

func zapLevel(sev logging.Severity) zapcore.Level {
	switch sev {
	case logging.SeverityDebug:
		return zapcore.DebugLevel
	case logging.SeverityWarn:
		return zapcore.WarnLevel
	case logging.SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
