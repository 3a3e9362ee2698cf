package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sameep.log")
	logger, closer, err := New(Options{Level: "debug", File: path, JSON: true})
	require.NoError(t, err)

	require.Equal(t, logrus.DebugLevel, logger.GetLevel())
	logger.WithField("component", "test").Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"component":"test"`)
	require.Contains(t, string(data), `"msg":"hello"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, closer, err := New(Options{Level: "loud"})
	require.Error(t, err)
	require.NotNil(t, closer)
}
