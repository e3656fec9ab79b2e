package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives diagnostic lines. Implementations must not block for long;
// a failing sink never affects the caller.
type Sink interface {
	Log(level, message string)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(level, message string)

// Log implements Sink
func (f SinkFunc) Log(level, message string) { f(level, message) }

// Nop discards everything
var Nop Sink = SinkFunc(func(string, string) {})

// Fanout sends each line to every registered sink. A panicking sink is
// skipped.
type Fanout struct {
	sinks []Sink
	mu    sync.RWMutex
}

// NewFanout creates a fanout over sinks
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Add registers a sink
func (f *Fanout) Add(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

// Log implements Sink
func (f *Fanout) Log(level, message string) {
	f.mu.RLock()
	sinks := append([]Sink(nil), f.sinks...)
	f.mu.RUnlock()

	for _, s := range sinks {
		safeLog(s, level, message)
	}
}

func safeLog(s Sink, level, message string) {
	defer func() { _ = recover() }()
	s.Log(level, message)
}

// ZapSink writes sink lines to a zap logger
type ZapSink struct {
	Logger *zap.Logger
}

// Log implements Sink
func (z ZapSink) Log(level, message string) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl = zapcore.InfoLevel
	}
	if ce := z.Logger.Check(lvl, message); ce != nil {
		ce.Write()
	}
}

// sinkCore is a zapcore.Core that renders entries as "message k=v" lines
type sinkCore struct {
	zapcore.LevelEnabler
	sink   Sink
	fields []zapcore.Field
}

// NewSinkCore returns a core that forwards entries at or above level to sink
func NewSinkCore(sink Sink, level zapcore.LevelEnabler) zapcore.Core {
	return &sinkCore{LevelEnabler: level, sink: sink}
}

func (c *sinkCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *sinkCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *sinkCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	var b strings.Builder
	b.WriteString(e.Message)
	for _, k := range sortedKeys(enc.Fields) {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(toString(enc.Fields[k]))
	}
	safeLog(c.sink, e.Level.String(), b.String())
	return nil
}

func (c *sinkCore) Sync() error { return nil }
