package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info().Msg("filtered out")
	assert.Empty(t, buf.String())

	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_LevelIsPerLogger(t *testing.T) {
	var quiet, chatty bytes.Buffer
	quietLog := New(Config{Level: "error", Output: &quiet})
	chattyLog := New(Config{Level: "debug", Output: &chatty})

	quietLog.Debug().Msg("suppressed")
	chattyLog.Debug().Msg("emitted")

	assert.Empty(t, quiet.String())
	assert.Contains(t, chatty.String(), "emitted")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "bogus", Output: &buf})

	log.Debug().Msg("filtered out")
	assert.Empty(t, buf.String())

	log.Info().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}
