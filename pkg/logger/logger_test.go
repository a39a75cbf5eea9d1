package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core)).With("job", "email_scan")

	log.Info("Account scan failed", "accountID", 7)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Account scan failed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "email_scan", fields["job"])
	assert.EqualValues(t, 7, fields["accountID"])
}

func TestNewLoggerWithLevel_UnknownFallsBackToInfo(t *testing.T) {
	log := NewLoggerWithLevel("chatty")
	assert.True(t, log.logger.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.logger.Desugar().Core().Enabled(zapcore.DebugLevel))

	debug := NewLoggerWithLevel("debug")
	assert.True(t, debug.logger.Desugar().Core().Enabled(zapcore.DebugLevel))
}
