package main

import (
	"context"
	"os"

	"github.com/leandroluk/mongomoron/config"
	"github.com/leandroluk/mongomoron/core"
	driver "github.com/leandroluk/mongomoron/driver/mongo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// rootFlags holds the persistent flags shared by every command.
type rootFlags struct {
	configFile string
	envDir     string
	uri        string
	database   string
	logLevel   string
	logFormat  string
}

// app is the state shared by commands once the root command ran its setup.
type app struct {
	flags  rootFlags
	conf   *config.Config
	log    *zap.Logger
	conn   *core.Connection
	closer func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:          "mongomoron",
		Short:        "Compile and run MongoDB operations",
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "path to a config file")
	pf.StringVar(&a.flags.envDir, "env-dir", "", "directory holding .env and .env.local")
	pf.StringVar(&a.flags.uri, "uri", "", "MongoDB connection string")
	pf.StringVarP(&a.flags.database, "database", "d", "", "database name")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "console or json")

	rootCmd.AddCommand(a.pingCmd())
	rootCmd.AddCommand(a.collectionsCmd())
	rootCmd.AddCommand(a.indexCmd())
	rootCmd.AddCommand(a.findCmd())
	rootCmd.AddCommand(a.aggregateCmd())
	rootCmd.AddCommand(a.countCmd())

	return rootCmd
}

// setup loads the config, builds the logger and connects.
func (a *app) setup(cmd *cobra.Command) error {
	if a.conn != nil {
		return nil
	}
	overrides := map[string]any{}
	for key, value := range map[string]string{
		"uri":        a.flags.uri,
		"database":   a.flags.database,
		"log_level":  a.flags.logLevel,
		"log_format": a.flags.logFormat,
	} {
		if value != "" {
			overrides[key] = value
		}
	}

	conf, err := config.Load(config.Options{
		ConfigFile: a.flags.configFile,
		EnvDir:     a.flags.envDir,
		Overrides:  overrides,
	})
	if err != nil {
		return err
	}
	a.conf = conf

	level, err := zapcore.ParseLevel(conf.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	a.log = newLoggerWithOutput(conf.LogFormat == "json", level, zapcore.Lock(os.Stderr))

	ctx := cmd.Context()
	backend, err := driver.NewBackend(ctx, conf.URI, conf.Database,
		driver.WithConnectTimeout(conf.ConnectTimeout),
		driver.WithServerSelectionTimeout(conf.ServerSelectionTimeout),
		driver.WithAppName(conf.AppName),
	)
	if err != nil {
		a.log.Error("failed to connect", zap.String("database", conf.Database), zap.Error(err))
		return err
	}
	conn, err := core.NewConnection(backend, core.WithLogger(a.log))
	if err != nil {
		return err
	}
	a.conn = conn
	a.closer = conn.Close
	a.log.Debug("connected", zap.String("database", conf.Database))
	return nil
}

func (a *app) close(ctx context.Context) error {
	if a.closer == nil {
		return nil
	}
	err := a.closer(ctx)
	a.closer = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
	return err
}

// run wraps a command body with setup and teardown.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.setup(cmd); err != nil {
			return err
		}
		defer func() {
			if closeErr := a.close(cmd.Context()); err == nil {
				err = closeErr
			}
		}()
		if err := fn(cmd, args); err != nil {
			a.log.Debug("command failed", zap.String("command", cmd.CommandPath()), zap.Error(err))
			return err
		}
		return nil
	}
}

// newLoggerWithOutput creates a logger writing to output at level.
func newLoggerWithOutput(json bool, level zapcore.Level, output zapcore.WriteSyncer) *zap.Logger {
	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		TimeKey:        "ts",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	var core zapcore.Core

	if json {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(econf), output, level)
	} else {
		econf.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(econf), output, level)
	}
	return zap.New(core)
}
