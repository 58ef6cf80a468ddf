package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	require.NoError(t, SetLevel("local"))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	require.NoError(t, SetLevel("prod"))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	require.NoError(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	assert.Error(t, SetLevel("loud"))
}

func TestComponentAndCronLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	Init(&buf)

	l := Component("scheduler")
	l.Info().Msg("tick")
	assert.Contains(t, buf.String(), `"component":"scheduler"`)

	buf.Reset()
	CronLogger{L: l}.Error(errors.New("job panicked"), "panic", "job", "rollover")
	assert.Contains(t, buf.String(), `"error":"job panicked"`)
	assert.Contains(t, buf.String(), `"job":"rollover"`)
}
