package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	errs "github.com/turtacn/defectkit/pkg/errors"
)

// Helper to create a logger that writes to a buffer for verification
func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)
	core := zapcore.NewCore(encoder, buf, zapcore.DebugLevel)
	return &zapLogger{z: zap.New(core)}, buf
}

func newObservedLogger(t *testing.T) (Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_JSONFormat(t *testing.T) {
	l, err := NewLogger(Config{Level: "info", Format: "json", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	l, err := NewLogger(Config{Level: "debug", Format: "console", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_DefaultsToStderr(t *testing.T) {
	l, err := NewLogger(Config{})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	l, err := NewLogger(Config{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)

	l, err = NewLogger(Config{Level: "loud"})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("d")
		l.Info("i", String("k", "v"))
		l.Warn("w")
		l.Error("e", Err(errors.New("boom")))
	})
	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("x"))
	assert.Equal(t, l, l.WithContext(context.Background()))
	assert.Equal(t, l, l.WithError(errors.New("boom")))
	assert.NoError(t, l.Sync())
}

func TestZapLogger_LevelsWriteLog(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	assert.Contains(t, out, `"level":"debug"`)
	assert.Contains(t, out, "info message")
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "error message")
	assert.Len(t, buf.Lines(), 4)
}

func TestZapLogger_With_AddsFields(t *testing.T) {
	l, buf := newTestLogger(t)
	l.With(String("target", "MgO"), Int("vertices", 2)).Info("built")
	assert.Contains(t, buf.String(), `"target":"MgO"`)
	assert.Contains(t, buf.String(), `"vertices":2`)
}

func TestZapLogger_Named(t *testing.T) {
	l, logs := newObservedLogger(t)
	l.Named("cpd").Info("hello")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "cpd", logs.All()[0].LoggerName)
}

func TestZapLogger_FieldTypes(t *testing.T) {
	l, logs := newObservedLogger(t)
	l.Info("fields",
		Strings("elements", []string{"Mg", "O"}),
		Ints("removed", []int{7}),
		Int64("n", 3),
		Float64("e", -3.5),
		Bool("shallow", true),
		Duration("took", time.Second),
		Any("map", map[string]int{"a": 1}),
	)
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, int64(3), ctx["n"])
	assert.Equal(t, -3.5, ctx["e"])
	assert.Equal(t, true, ctx["shallow"])
	assert.Equal(t, time.Second, ctx["took"])
	assert.Equal(t, []interface{}{"Mg", "O"}, ctx["elements"])
}

func TestZapLogger_WithContext_ExtractsRunID(t *testing.T) {
	l, logs := newObservedLogger(t)
	ctx := WithRunID(context.Background(), "run-123")
	l.WithContext(ctx).Info("with run")
	l.WithContext(context.Background()).Info("without run")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "run-123", entries[0].ContextMap()[FieldRunID])
	_, ok := entries[1].ContextMap()[FieldRunID]
	assert.False(t, ok)
}

func TestZapLogger_WithError_AppError(t *testing.T) {
	l, logs := newObservedLogger(t)
	err := errs.New(errs.CodeTargetNotFound, "target missing").WithDetail("target=ZnO")
	l.WithError(err).Error("failed")

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "CPD_002", ctx[FieldErrorCode])
	assert.Contains(t, ctx["error"], "target missing")
}

func TestZapLogger_WithError_StandardError(t *testing.T) {
	l, logs := newObservedLogger(t)
	l.WithError(errors.New("plain")).Error("failed")

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "plain", ctx["error"])
	_, ok := ctx[FieldErrorCode]
	assert.False(t, ok)
}

func TestZapLogger_WithError_NilError(t *testing.T) {
	l, _ := newObservedLogger(t)
	assert.Same(t, l, l.WithError(nil))
}

func TestSetDefault_UpdatesDefault(t *testing.T) {
	orig := Default()
	t.Cleanup(func() { SetDefault(orig) })

	l, _ := newObservedLogger(t)
	SetDefault(l)
	assert.Same(t, l, Default())

	SetDefault(nil)
	assert.Same(t, l, Default())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
	assert.Equal(t, "info", LevelInfo.String())
}

func TestLogOperationDuration(t *testing.T) {
	l, logs := newObservedLogger(t)
	LogOperationDuration(l, "cpd.build", time.Now().Add(-5*time.Millisecond), String("target", "MgO"))

	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, "operation completed", e.Message)
	ctx := e.ContextMap()
	assert.Equal(t, "cpd.build", ctx[FieldOperation])
	assert.Equal(t, "MgO", ctx["target"])
	assert.GreaterOrEqual(t, ctx[FieldDuration].(float64), 5.0)
}

func TestLogStoreQuery(t *testing.T) {
	l, logs := newObservedLogger(t)
	LogStoreQuery(l, "find_all", time.Millisecond, 3, nil)
	LogStoreQuery(l, "find_all", time.Millisecond, 0, errs.New(errs.CodeStoreUnavailable, "closed"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, int64(3), entries[0].ContextMap()["rows"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "STO_001", entries[1].ContextMap()[FieldErrorCode])
}

func TestErr_Nil(t *testing.T) {
	f := Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, "<nil>", f.Value)
}
