package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	for _, mode := range []string{"release", "debug", "test", ""} {
		log, err := New(mode)
		require.NoError(t, err, mode)
		assert.NotNil(t, log)
	}

	release, _ := New("release")
	assert.False(t, release.Core().Enabled(zap.DebugLevel))
	debug, _ := New("debug")
	assert.True(t, debug.Core().Enabled(zap.DebugLevel))
}
