// Package session wires the collaborators shared by the cometx commands
// (settings, history, event publisher, router) from flags, environment,
// config.toml and credentials.toml.
package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/cometx/cmd/cometx/sqlitepath"
	"github.com/papercomputeco/cometx/pkg/config"
	"github.com/papercomputeco/cometx/pkg/credentials"
	"github.com/papercomputeco/cometx/pkg/eventstream"
	"github.com/papercomputeco/cometx/pkg/eventstream/async"
	"github.com/papercomputeco/cometx/pkg/eventstream/kafka"
	"github.com/papercomputeco/cometx/pkg/eventstream/nop"
	"github.com/papercomputeco/cometx/pkg/history"
	"github.com/papercomputeco/cometx/pkg/history/inmemory"
	"github.com/papercomputeco/cometx/pkg/history/sqlite"
	"github.com/papercomputeco/cometx/pkg/logger"
	"github.com/papercomputeco/cometx/pkg/page"
	"github.com/papercomputeco/cometx/pkg/router"
	"github.com/papercomputeco/cometx/pkg/settings"
)

// Flags holds the targets of the shared model and storage flags.
type Flags struct {
	Endpoint     string
	Deployment   string
	APIVersion   string
	MaxTokens    int
	Temperature  float64
	SQLitePath   string
	KafkaBrokers string
	KafkaTopic   string
}

var (
	modelFlagKeys = []string{
		config.FlagEndpoint,
		config.FlagDeployment,
		config.FlagAPIVersion,
		config.FlagMaxTokens,
		config.FlagTemperature,
	}

	storageFlagKeys = []string{
		config.FlagSQLite,
		config.FlagKafkaBroker,
		config.FlagKafkaTopic,
	}
)

// AddModelFlags registers --endpoint, --deployment, --api-version,
// --max-tokens and --temperature on cmd.
func AddModelFlags(cmd *cobra.Command, f *Flags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &f.Endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagDeployment, &f.Deployment)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIVersion, &f.APIVersion)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxTokens, &f.MaxTokens)
	config.AddFloat64Flag(cmd, config.Flags, config.FlagTemperature, &f.Temperature)
}

// AddStorageFlags registers --sqlite, --kafka-brokers and --kafka-topic on cmd.
func AddStorageFlags(cmd *cobra.Command, f *Flags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.SQLitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBroker, &f.KafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &f.KafkaTopic)
}

// Session is everything a command needs to talk to the model.
type Session struct {
	Config    *config.Config
	ConfigDir string
	Logger    *slog.Logger
	Settings  settings.Store
	Router    *router.Router

	// KeySource tells where the API key came from.
	KeySource credentials.Source

	logFile *os.File
}

type options struct {
	persistent      bool
	discoverHistory bool
	logWriter       io.Writer
	logFile         string
}

// Option configures Open.
type Option func(*options)

// WithFileSettings backs the router with the settings files, so saves made
// through the router are written to disk. Without it the settings resolved
// at startup (including flags and environment) are held in memory.
func WithFileSettings() Option {
	return func(o *options) { o.persistent = true }
}

// WithHistoryDiscovery opens an existing history database found by
// sqlitepath when none is configured, instead of an empty in-memory store.
func WithHistoryDiscovery() Option {
	return func(o *options) { o.discoverHistory = true }
}

// WithLogFile additionally appends JSON logs to path.
func WithLogFile(path string) Option {
	return func(o *options) { o.logFile = path }
}

// WithLogWriter sends logs to w instead of stderr.
func WithLogWriter(w io.Writer) Option {
	return func(o *options) { o.logWriter = w }
}

// Open resolves the effective configuration for cmd with precedence
// flag > COMETX_ env > config.toml > defaults, and builds the router.
func Open(cmd *cobra.Command, opts ...Option) (_ *Session, err error) {
	o := &options{logWriter: os.Stderr}
	for _, opt := range opts {
		opt(o)
	}

	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")

	log := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithWriter(o.logWriter),
	)

	var logFile *os.File
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		defer func() {
			if err != nil {
				_ = logFile.Close()
			}
		}()
		log = logger.Tee(log, logger.New(
			logger.WithDebug(debug),
			logger.WithJSON(true),
			logger.WithWriter(f),
		))
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, append(modelFlagKeys, storageFlagKeys...))

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.discoverHistory && cfg.History.SQLitePath == "" {
		if path, err := sqlitepath.ResolveSQLitePath("", configDir); err == nil {
			cfg.History.SQLitePath = path
		}
	}

	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	key, source, err := creds.ResolveKey(credentials.ProviderAzure)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	var store settings.Store
	if o.persistent {
		store, err = settings.NewFileStore(configDir)
		if err != nil {
			return nil, err
		}
	} else {
		store = settings.NewStaticStore(settings.FromConfig(cfg, key))
	}

	hist, err := newHistory(cfg, log)
	if err != nil {
		return nil, err
	}

	pub, err := newPublisher(cfg, log)
	if err != nil {
		_ = hist.Close()
		return nil, err
	}

	r := router.New(store,
		router.WithExtractor(page.NewHTTPExtractor(page.WithLogger(log))),
		router.WithHistory(hist),
		router.WithPublisher(pub),
		router.WithLogger(log),
	)

	log.Debug("session opened",
		"endpoint", cfg.Azure.Endpoint,
		"deployment", cfg.Azure.Deployment,
		"key_source", string(source),
		logger.Secret("api_key", key),
	)

	return &Session{
		Config:    cfg,
		ConfigDir: configDir,
		Logger:    log,
		Settings:  store,
		Router:    r,
		KeySource: source,
		logFile:   logFile,
	}, nil
}

// Close releases the history store, the publisher and the log file.
func (s *Session) Close() error {
	err := s.Router.Close()
	if s.logFile != nil {
		err = errors.Join(err, s.logFile.Close())
	}
	return err
}

func newHistory(cfg *config.Config, log *slog.Logger) (history.Store, error) {
	if cfg.History.SQLitePath != "" {
		store, err := sqlite.NewStore(cfg.History.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite history: %w", err)
		}
		log.Debug("using SQLite history", "path", cfg.History.SQLitePath)
		return store, nil
	}

	log.Debug("using in-memory history")
	return inmemory.NewStore(), nil
}

func newPublisher(cfg *config.Config, log *slog.Logger) (eventstream.Publisher, error) {
	if len(cfg.Events.KafkaBrokers) == 0 {
		return nop.NewPublisher(), nil
	}

	kp, err := kafka.NewPublisher(kafka.Config{
		Brokers: cfg.Events.KafkaBrokers,
		Topic:   cfg.Events.KafkaTopic,
	}, kafka.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	pub, err := async.NewPublisher(async.Config{Publisher: kp, Logger: log})
	if err != nil {
		_ = kp.Close()
		return nil, err
	}
	log.Info("publishing chat events to kafka",
		"brokers", cfg.Events.KafkaBrokers,
		"topic", cfg.Events.KafkaTopic,
	)
	return pub, nil
}
