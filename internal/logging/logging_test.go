package logging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordSink struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordSink) Log(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, level+" "+message)
}

func TestNew(t *testing.T) {
	logger, err := New("debug", "json")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("nonsense", "console")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestFanout_SurvivesPanickingSink(t *testing.T) {
	rec := &recordSink{}
	f := NewFanout(SinkFunc(func(string, string) { panic("boom") }))
	f.Add(rec)

	assert.NotPanics(t, func() { f.Log("info", "hello") })
	assert.Equal(t, []string{"info hello"}, rec.lines)
}

func TestWithSink(t *testing.T) {
	rec := &recordSink{}
	core, logs := observer.New(zapcore.DebugLevel)
	logger := WithSink(zap.New(core), rec, zapcore.InfoLevel)

	logger.Debug("not forwarded")
	logger.With(zap.String("printer", "usb_0")).Info("printed", zap.Int("bytes", 42), zap.Error(errors.New("x")))

	assert.Equal(t, 2, logs.Len())
	require.Len(t, rec.lines, 1)
	assert.Equal(t, "info printed bytes=42 error=x printer=usb_0", rec.lines[0])
}

func TestWithSink_Nil(t *testing.T) {
	logger := zap.NewNop()
	assert.Same(t, logger, WithSink(logger, nil, zapcore.InfoLevel))
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := ZapSink{Logger: zap.New(core)}

	s.Log("warn", "paper low")
	s.Log("bogus", "defaulted")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop.Log("info", "x") })
}
