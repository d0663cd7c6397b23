package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	cases := map[string]zap.AtomicLevel{
		"debug": zap.NewAtomicLevelAt(zap.DebugLevel),
		"warn":  zap.NewAtomicLevelAt(zap.WarnLevel),
		"":      zap.NewAtomicLevelAt(zap.InfoLevel),
		"bogus": zap.NewAtomicLevelAt(zap.InfoLevel),
	}
	for level, want := range cases {
		l := New("prod", level)
		assert.True(t, l.Core().Enabled(want.Level()), "level %q", level)
		if want.Level() > zap.DebugLevel {
			assert.False(t, l.Core().Enabled(zap.DebugLevel), "level %q", level)
		}
	}
}

func TestNew_DevEncoder(t *testing.T) {
	l := New("dev", "debug")
	assert.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}
