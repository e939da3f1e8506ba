package logging

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON production logger at the given level and installs it as the global logger
func New(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// FromContext returns the global logger annotated with the active span's trace and span ids
func FromContext(ctx context.Context) *zap.Logger {
	return WithTrace(ctx, zap.L())
}

// WithTrace annotates logger with the trace and span ids carried by ctx, if any
func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if ctx == nil {
		return logger
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// MaskToken hides all but the last four characters of a credential
func MaskToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

// MaskAuthorization masks an Authorization header value, preserving the scheme
func MaskAuthorization(value string) string {
	parts := strings.Fields(value)
	if len(parts) == 2 {
		return parts[0] + " " + MaskToken(parts[1])
	}
	return MaskToken(value)
}

// MaskHeaders returns a copy of headers with credentials masked
func MaskHeaders(headers http.Header) map[string]string {
	masked := make(map[string]string, len(headers))
	for key, values := range headers {
		joined := strings.Join(values, ",")
		switch strings.ToLower(key) {
		case "authorization":
			masked[key] = MaskAuthorization(joined)
		case "x-com-zoho-organizationid":
			masked[key] = MaskToken(joined)
		default:
			masked[key] = joined
		}
	}
	return masked
}
