package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestCommandLogger(t *testing.T) {
	l := newLogger(&bytes.Buffer{}, LogDebug)
	ctx := contextWithLogger(context.Background(), l)
	assert.Same(t, l, commandLogger(ctx))

	assert.Same(t, log.Default(), commandLogger(context.Background()))
	assert.Same(t, log.Default(), commandLogger(contextWithLogger(context.Background(), nil)))
}

func TestStopwatch(t *testing.T) {
	var buf bytes.Buffer
	sw := startStopwatch(newLogger(&buf, LogInfo))
	sw.stop("Rendered 2 frames", "key", "demo")

	out := buf.String()
	assert.Contains(t, out, "scenerender")
	assert.Contains(t, out, "Rendered 2 frames")
	assert.Contains(t, out, "key=demo")
	assert.Contains(t, out, "elapsed=")
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, LogInfo)
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(LogDebug)
	l.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}
