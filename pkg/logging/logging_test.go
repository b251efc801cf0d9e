package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewZap_Levels(t *testing.T) {
	zl, err := NewZap(Options{AppName: "fern", Level: "warn"})
	require.NoError(t, err)
	assert.False(t, zl.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, zl.Core().Enabled(zapcore.WarnLevel))

	zl, err = NewZap(Options{Level: "debug", Pretty: true})
	require.NoError(t, err)
	assert.True(t, zl.Core().Enabled(zapcore.DebugLevel))
}

func TestNewZap_InvalidLevel(t *testing.T) {
	_, err := NewZap(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	logger, zl, err := New(Options{Level: "info"})
	require.NoError(t, err)
	require.NotNil(t, zl)
	logger.WithField("session_id", "s-1").Info("hello")

	Discard().Info("dropped")
}
