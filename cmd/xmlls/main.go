package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/xmlls/xmlls/internal/lsp"
	"github.com/xmlls/xmlls/internal/xmlserver"
)

const (
	ERROR_STATUS_CODE = 1

	COMMAND_NAME = "xmlls"

	LOG_FILE_FLAG     = "log-file"
	LOG_LEVEL_FLAG    = "log-level"
	CONFIG_FLAG       = "config"
	DEFAULT_LOG_LEVEL = "info"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	statusCode := _main(os.Args, os.Stdin, os.Stdout, os.Stderr)
	if statusCode != 0 {
		os.Exit(statusCode)
	}
}

func _main(args []string, in io.Reader, outW io.Writer, errW io.Writer) (statusCode int) {
	app := &cli.App{
		Name:      COMMAND_NAME,
		Usage:     "XML language server validating documents against XSD schemas",
		Version:   version,
		Reader:    in,
		Writer:    outW,
		ErrWriter: errW,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  LOG_FILE_FLAG,
				Usage: "file the logs are written to, logging is enabled if this flag or --log-level is set",
			},
			&cli.StringFlag{
				Name:  LOG_LEVEL_FLAG,
				Usage: "one of debug, info, warning, error & critical",
				Value: DEFAULT_LOG_LEVEL,
			},
			&cli.StringFlag{
				Name:    CONFIG_FLAG,
				Aliases: []string{"c"},
				Usage:   "TOML file with the server defaults",
			},
		},
		Action: func(c *cli.Context) error {
			return serve(c, in, outW, errW)
		},
	}

	if err := app.Run(args); err != nil {
		fmt.Fprintln(errW, err)
		return ERROR_STATUS_CODE
	}
	return 0
}

func serve(c *cli.Context, in io.Reader, outW io.Writer, errW io.Writer) error {
	logger, closeLog, err := setupLogging(c.String(LOG_FILE_FLAG), c.String(LOG_LEVEL_FLAG), c.IsSet(LOG_FILE_FLAG) || c.IsSet(LOG_LEVEL_FLAG), errW)
	if err != nil {
		return err
	}
	defer closeLog()

	opts := xmlserver.Options{
		Logger:  logger,
		Version: version,
	}

	if configFile := c.String(CONFIG_FLAG); configFile != "" {
		config, err := readConfigFile(configFile)
		if err != nil {
			return err
		}
		if err := config.apply(&opts); err != nil {
			return fmt.Errorf("%s: %w", configFile, err)
		}
	}

	if wd, err := os.Getwd(); err == nil {
		opts.WorkDir = wd
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("version", version).Msg("start")

	err = xmlserver.Run(ctx, opts, lsp.Config{
		StdioInput:  in,
		StdioOutput: outW,
	})

	if err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func parseLogLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "critical":
		return zerolog.FatalLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q, the level should be one of debug, info, warning, error & critical", name)
	}
}
