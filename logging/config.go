package logging

import "time"

type Config struct {
	EnabledSinks    []string
	BufferSize      int
	MinimumSeverity Severity
	// CategorySeverity overrides MinimumSeverity per event category, so
	// chatty categories like goals can be raised without hiding warnings
	// from the others.
	CategorySeverity map[string]Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	Zap              ZapConfig
	Memory           MemoryConfig
	DropWarnInterval time.Duration
}

// MemoryConfig sizes the in-memory recent events ring.
type MemoryConfig struct {
	Capacity int
}

// ZapConfig tunes the zap backed sink.
type ZapConfig struct {
	Development bool
}

type JSONConfig struct {
	FilePath      string
	MaxBatch      int
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	Prefix string
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
		},
		Memory: MemoryConfig{Capacity: 256},
	}
}

// ParseSeverity maps a textual level onto a Severity, defaulting to info.
func ParseSeverity(level string) Severity {
	switch level {
	case "debug":
		return SeverityDebug
	case "warn", "warning":
		return SeverityWarn
	case "error":
		return SeverityError
	default:
		return SeverityInfo
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	cloned := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		cloned[k] = v
	}
	return cloned
}

func (c Config) CloneCategorySeverity() map[string]Severity {
	if len(c.CategorySeverity) == 0 {
		return nil
	}
	cloned := make(map[string]Severity, len(c.CategorySeverity))
	for k, v := range c.CategorySeverity {
		cloned[k] = v
	}
	return cloned
}
