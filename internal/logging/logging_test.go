package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "json", Output: &buf})

	l.With(String("component", "feed")).Warn(context.Background(), "poll failed",
		Err(errors.New("boom")), Float("lat", 51.6))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "WARN", rec["level"])
	require.Equal(t, "poll failed", rec["msg"])
	require.Equal(t, "feed", rec["component"])
	require.Equal(t, "boom", rec["error"])
	require.Equal(t, 51.6, rec["lat"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "error", Output: &buf})

	l.Info(context.Background(), "hidden")
	require.Zero(t, buf.Len())

	l.Error(context.Background(), "shown")
	require.Contains(t, buf.String(), "shown")
}

func TestNoop(t *testing.T) {
	l := Noop().With(Int("n", 1))
	l.Error(context.Background(), "dropped")
}
