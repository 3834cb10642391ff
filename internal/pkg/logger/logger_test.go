package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_ContextFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewFromZap(zap.New(core))

	ctx := WithFrontEnd(WithRequestID(WithSessionID(context.Background(), "s-1"), "r-1"), "http")
	l.Infof(ctx, "analysis %s", "started")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "analysis started", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "s-1", fields["session_id"])
	require.Equal(t, "r-1", fields["request_id"])
	require.Equal(t, "http", fields["front_end"])
}

func TestNewZapLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := NewZapLogger("verbose")
	require.NoError(t, err)
	require.NotNil(t, l)
}
