package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmlls/xmlls/internal/locator"
	"github.com/xmlls/xmlls/internal/xmlserver"
)

func TestParseConfig(t *testing.T) {
	t.Run("full", func(t *testing.T) {
		config, err := parseConfig([]byte(`
debounce = "200ms"
cacheTTL = "1m"
workers = 2
watchSchemas = true

[[schemaLocators]]
rootElement = true
searchPaths = ["xsd"]

[[schemaLocators]]
patterns = [{pattern = "pom.xml", path = "xsd/maven.xsd", useDefaultNamespace = true}]
`))
		require.NoError(t, err)

		var opts xmlserver.Options
		require.NoError(t, config.apply(&opts))

		assert.Equal(t, 200*time.Millisecond, opts.DebounceDelay)
		assert.Equal(t, time.Minute, opts.CacheTTL)
		assert.Equal(t, 2, opts.Workers)
		assert.True(t, opts.WatchSchemas)
		assert.Equal(t, []locator.Locator{
			locator.RootElement{SearchPaths: []string{"xsd"}},
			locator.PatternSet{Rules: []locator.PatternRule{
				{Pattern: "pom.xml", SchemaPath: "xsd/maven.xsd", UseDefaultNamespace: true},
			}},
		}, opts.DefaultLocators)
	})

	t.Run("empty", func(t *testing.T) {
		config, err := parseConfig(nil)
		require.NoError(t, err)

		var opts xmlserver.Options
		require.NoError(t, config.apply(&opts))
		assert.Zero(t, opts.DebounceDelay)
		assert.Nil(t, opts.DefaultLocators)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := parseConfig([]byte(`debounc = "200ms"`))
		assert.Error(t, err)
	})

	t.Run("invalid duration", func(t *testing.T) {
		config, err := parseConfig([]byte(`debounce = "-1s"`))
		require.NoError(t, err)
		assert.ErrorContains(t, config.apply(&xmlserver.Options{}), "debounce")
	})

	t.Run("invalid locator", func(t *testing.T) {
		config, err := parseConfig([]byte("[[schemaLocators]]\nrootElement = false\n"))
		require.NoError(t, err)
		assert.ErrorIs(t, config.apply(&xmlserver.Options{}), locator.ErrInvalidLocator)
	})
}

func TestParseLogLevel(t *testing.T) {
	levels := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"critical": zerolog.FatalLevel,
		"DEBUG":    zerolog.DebugLevel,
		"INFO":     zerolog.InfoLevel,
		"WARNING":  zerolog.WarnLevel,
		"Error":    zerolog.ErrorLevel,
		"CRITICAL": zerolog.FatalLevel,
	}
	for name, expected := range levels {
		level, err := parseLogLevel(name)
		if assert.NoError(t, err, name) {
			assert.Equal(t, expected, level)
		}
	}

	_, err := parseLogLevel("verbose")
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		logger, closeLog, err := setupLogging("", DEFAULT_LOG_LEVEL, false, &bytes.Buffer{})
		require.NoError(t, err)
		defer closeLog()
		assert.Equal(t, zerolog.Disabled, logger.GetLevel())
	})

	t.Run("log file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "server.log")

		logger, closeLog, err := setupLogging(logFile, "warning", true, &bytes.Buffer{})
		require.NoError(t, err)

		logger.Info().Msg("hidden")
		logger.Warn().Msg("shown")
		closeLog()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.NotContains(t, string(content), "hidden")
		assert.Contains(t, string(content), "shown")
	})

	t.Run("log file in a missing directory", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "xmlls", "server.log")
		errOutput := &bytes.Buffer{}

		logger, closeLog, err := setupLogging(logFile, "info", true, errOutput)
		require.NoError(t, err)

		logger.Info().Msg("message")
		closeLog()

		assert.Empty(t, errOutput.String())
		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "message")
	})

	t.Run("invalid log file", func(t *testing.T) {
		t.Setenv("TMPDIR", t.TempDir())
		errOutput := &bytes.Buffer{}

		logger, closeLog, err := setupLogging(t.TempDir(), "info", true, errOutput)
		require.NoError(t, err)

		logger.Info().Msg("message")
		closeLog()

		assert.Contains(t, errOutput.String(), defaultLogFile())
		content, err := os.ReadFile(defaultLogFile())
		require.NoError(t, err)
		assert.Contains(t, string(content), "message")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, _, err := setupLogging("", "verbose", true, &bytes.Buffer{})
		assert.Error(t, err)
	})
}

func TestVersionFlag(t *testing.T) {
	out := &bytes.Buffer{}
	statusCode := _main([]string{COMMAND_NAME, "--version"}, &bytes.Buffer{}, out, &bytes.Buffer{})

	assert.Zero(t, statusCode)
	assert.Contains(t, out.String(), version)
}
