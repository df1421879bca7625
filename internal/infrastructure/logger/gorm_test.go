package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func query(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func fieldValue(entry observer.LoggedEntry, key string) (string, bool) {
	for _, f := range entry.Context {
		if f.Key == key {
			return f.String, true
		}
	}
	return "", false
}

func TestGormLogger_Options(t *testing.T) {
	gormLog := NewGormLogger(zap.NewNop(), gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
		WithIgnoreDuplicateKeyError(false),
	)

	assert.Equal(t, 500*time.Millisecond, gormLog.slowThreshold)
	assert.False(t, gormLog.ignoreRecordNotFoundError)
	assert.False(t, gormLog.ignoreDuplicateKeyError)

	warn, ok := gormLog.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, warn.logLevel)
	assert.Equal(t, gormlogger.Info, gormLog.logLevel, "LogMode must not mutate the receiver")
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		opts      []GormLoggerOption
		begin     time.Time
		err       error
		wantMsg   string
		wantLevel zapcore.Level
	}{
		{
			name:      "error",
			level:     gormlogger.Error,
			err:       errors.New("boom"),
			wantMsg:   "SQL error",
			wantLevel: zapcore.ErrorLevel,
		},
		{
			name:  "record not found ignored",
			level: gormlogger.Error,
			err:   gormlogger.ErrRecordNotFound,
		},
		{
			name:      "duplicate key demoted",
			level:     gormlogger.Error,
			err:       fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey),
			wantMsg:   "sql duplicate key",
			wantLevel: zapcore.DebugLevel,
		},
		{
			name:      "duplicate key reported when not ignored",
			level:     gormlogger.Error,
			opts:      []GormLoggerOption{WithIgnoreDuplicateKeyError(false)},
			err:       gorm.ErrDuplicatedKey,
			wantMsg:   "SQL error",
			wantLevel: zapcore.ErrorLevel,
		},
		{
			name:      "slow query",
			level:     gormlogger.Warn,
			opts:      []GormLoggerOption{WithSlowThreshold(time.Nanosecond)},
			begin:     time.Now().Add(-time.Second),
			wantMsg:   "Slow SQL",
			wantLevel: zapcore.WarnLevel,
		},
		{
			name:      "normal query at info",
			level:     gormlogger.Info,
			wantMsg:   "sql query",
			wantLevel: zapcore.DebugLevel,
		},
		{
			name:  "silent",
			level: gormlogger.Silent,
			err:   errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gormLog := NewGormLogger(zap.New(core), tt.level, tt.opts...)
			begin := tt.begin
			if begin.IsZero() {
				begin = time.Now()
			}

			gormLog.Trace(context.Background(), begin, query("SELECT * FROM items", 1), tt.err)

			logs := recorded.All()
			if tt.wantMsg == "" {
				assert.Empty(t, logs)
				return
			}
			require.Len(t, logs, 1)
			assert.Contains(t, logs[0].Message, tt.wantMsg)
			assert.Equal(t, tt.wantLevel, logs[0].Level)
		})
	}
}

func TestGormLogger_Trace_CarriesRequestAndWebhookIDs(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Info)

	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-1")
	ctx, _ = WithWebhook(ctx, zap.NewNop(), "wh-9", "orders/create")

	gormLog.Trace(ctx, time.Now(), query("SELECT 1", 1), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	requestID, ok := fieldValue(logs[0], "request_id")
	require.True(t, ok)
	assert.Equal(t, "req-1", requestID)
	webhookID, ok := fieldValue(logs[0], "webhook_id")
	require.True(t, ok)
	assert.Equal(t, "wh-9", webhookID)
}

func TestGormLogger_MessagesRespectLevel(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gormLog := NewGormLogger(zap.New(core), gormlogger.Warn)

	gormLog.Info(context.Background(), "hidden %d", 1)
	gormLog.Warn(context.Background(), "shown %d", 2)
	gormLog.Error(context.Background(), "shown %d", 3)

	logs := recorded.All()
	require.Len(t, logs, 2)
	assert.Equal(t, "shown 2", logs[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, logs[1].Level)
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"WARN", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}

var _ gormlogger.Interface = (*GormLogger)(nil)
