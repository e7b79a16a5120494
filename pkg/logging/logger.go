// Package logging 结构化日志
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	TraceIDKey    ContextKey = "trace_id"
	GenomeIDKey   ContextKey = "genome_id"
	CampaignIDKey ContextKey = "campaign_id"
	MutationIDKey ContextKey = "mutation_id"
)

// Logger 结构化日志器
type Logger struct {
	*slog.Logger
	component string
}

// Config 日志配置
type Config struct {
	Level     string `json:"level"`
	Format    string `json:"format"` // json or text
	Output    string `json:"output"` // stdout, stderr, or file path
	Component string `json:"component"`
}

// New 创建新的日志器
func New(cfg Config) *Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			output = os.Stdout
		} else {
			output = f
		}
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		Logger:    slog.New(handler),
		component: cfg.Component,
	}
}

// Default 创建默认日志器
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// WithContext 从上下文提取追踪信息
func (l *Logger) WithContext(ctx context.Context) *Logger {
	attrs := []any{slog.String("component", l.component)}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		attrs = append(attrs, slog.String("trace_id", traceID))
	}
	if genomeID, ok := ctx.Value(GenomeIDKey).(string); ok && genomeID != "" {
		attrs = append(attrs, slog.String("genome_id", genomeID))
	}
	if campaignID, ok := ctx.Value(CampaignIDKey).(string); ok && campaignID != "" {
		attrs = append(attrs, slog.String("campaign_id", campaignID))
	}
	if mutationID, ok := ctx.Value(MutationIDKey).(string); ok && mutationID != "" {
		attrs = append(attrs, slog.String("mutation_id", mutationID))
	}

	return &Logger{
		Logger:    l.Logger.With(attrs...),
		component: l.component,
	}
}

// WithCampaignID 添加 Campaign ID
func (l *Logger) WithCampaignID(campaignID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("campaign_id", campaignID)),
		component: l.component,
	}
}

// WithMutationID 添加 Mutation ID
func (l *Logger) WithMutationID(mutationID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("mutation_id", mutationID)),
		component: l.component,
	}
}

// WithGenomeID 添加 Genome ID
func (l *Logger) WithGenomeID(genomeID string) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.String("genome_id", genomeID)),
		component: l.component,
	}
}

// WithError 添加错误信息
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{
		Logger:    l.Logger.With(slog.String("error", err.Error())),
		component: l.component,
	}
}

// WithDuration 添加持续时间
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{
		Logger:    l.Logger.With(slog.Float64("duration_ms", float64(d.Milliseconds()))),
		component: l.component,
	}
}

// HTTPRequestLog HTTP 请求日志
func (l *Logger) HTTPRequestLog(method, path string, status int, duration time.Duration, clientIP string) {
	l.Logger.Info("HTTP request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
		slog.String("client_ip", clientIP),
	)
}

// DBQueryLog 数据库查询日志
func (l *Logger) DBQueryLog(operation, table string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("table", table),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.Logger.Error("DB query failed", attrs...)
	} else {
		l.Logger.Debug("DB query", attrs...)
	}
}

// MutationLog 变异生命周期日志
func (l *Logger) MutationLog(action, campaignID, mutationID string, extra ...any) {
	attrs := []any{
		slog.String("action", action),
		slog.String("campaign_id", campaignID),
		slog.String("mutation_id", mutationID),
	}
	attrs = append(attrs, extra...)
	l.Logger.Info("Mutation event", attrs...)
}
