package logger

import (
	"context"
	"os"
	"path/filepath"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Context keys read by the ctx-aware helpers. gin.Context resolves string keys
// through c.Get, so the same keys work for handlers and plain contexts.
const (
	TraceIdKey   = "trace_id"
	RequestIdKey = "request_id"
)

// Log is the process-wide logger. It is a no-op until Init is called so
// packages can log from tests without setup.
var Log = zap.NewNop()

// Init builds the JSON logger for serviceName at the given level
// (debug, info, warn, error) writing to stdout and logs/{serviceName}.log.
func Init(serviceName string, level string) {
	InitWithFile(serviceName, level, "")
}

// InitWithFile is Init with an explicit log file path.
func InitWithFile(serviceName string, level string, logFile string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.MessageKey = "msg"

	writeSyncers := []zapcore.WriteSyncer{
		zapcore.AddSync(os.Stdout),
	}

	if logFile == "" {
		logFile = filepath.Join("logs", serviceName+".log")
	}
	// A missing log directory degrades to stdout only.
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err == nil {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			writeSyncers = append(writeSyncers, zapcore.AddSync(file))
		}
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(writeSyncers...),
		zapLevel,
	)

	// CallerSkip 1 so the caller line points past this wrapper.
	Log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", serviceName))
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Info(msg, withContext(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Error(msg, withContext(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Warn(msg, withContext(ctx, fields)...)
}

func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Debug(msg, withContext(ctx, fields)...)
}

// Fatal logs and exits the process.
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	Log.Fatal(msg, withContext(ctx, fields)...)
}

// withContext appends the OpenTelemetry trace id (or a plain trace_id value)
// and the request id found in ctx.
func withContext(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	if sc := oteltrace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String(TraceIdKey, sc.TraceID().String()))
	} else if traceID, ok := ctx.Value(TraceIdKey).(string); ok && traceID != "" {
		fields = append(fields, zap.String(TraceIdKey, traceID))
	}
	if rid, ok := ctx.Value(RequestIdKey).(string); ok && rid != "" {
		fields = append(fields, zap.String(RequestIdKey, rid))
	}
	return fields
}

// Sync flushes buffered entries; call it from main via defer.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}
