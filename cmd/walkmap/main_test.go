package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseValue(t *testing.T) {
	assert.Equal(t, 12.5, parseValue("12.5"))
	assert.Equal(t, -1.0, parseValue(" -1 "))
	assert.Equal(t, "park", parseValue("park"))
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseLoggedWarnsOnError(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	closeLogged(closerFunc(func() error { return nil }))
	assert.Zero(t, logs.Len())

	closeLogged(closerFunc(func() error { return errors.New("database is locked") }))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "server close failed", entry.Message)
	assert.Equal(t, "database is locked", entry.ContextMap()["error"])
}
