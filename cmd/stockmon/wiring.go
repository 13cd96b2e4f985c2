package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/farmstock/stockmon/internal/category"
	"github.com/farmstock/stockmon/internal/config"
	"github.com/farmstock/stockmon/internal/daemon"
	"github.com/farmstock/stockmon/internal/domain"
	"github.com/farmstock/stockmon/internal/infra"
	"github.com/farmstock/stockmon/internal/infra/push"
	"github.com/farmstock/stockmon/internal/infra/stockapi"
	"github.com/farmstock/stockmon/internal/usecase"
)

const daemonOutputFile = "stockmon.out"

// localStore is what the CLI needs from either store backend.
type localStore interface {
	domain.KeyValueStore
	domain.DaemonStateStore
	Path() string
}

// app holds the components shared by the commands.
type app struct {
	cfg      *config.Config
	execMode *infra.ExecModeConfig
	dataDir  string
	logger   *zap.Logger

	store    localStore
	auth     *infra.StoredTokenSource
	push     *infra.StoredTokenSource
	client   *stockapi.Client
	registry *category.Registry
	notifier domain.DeviceNotifier
	settings *usecase.SettingsStore
	devices  *usecase.DeviceService
	pm       *infra.ProcessManagerImpl
	clock    infra.SystemClock
}

// loadConfig reads the env file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads configuration and builds the app. Callers must call close.
func setup() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := createLogger(cfg)

	a, err := newApp(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	execMode := infra.DetectExecMode()
	dir := execMode.ResolveDataDir(cfg.DataDir)

	store, err := openStore(cfg, dir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		execMode: execMode,
		dataDir:  dir,
		logger:   logger,
		store:    store,
		registry: category.NewRegistry(),
		pm:       infra.NewProcessManager(),
	}
	a.auth = infra.NewStoredTokenSource(store, infra.AuthTokenKey, cfg.APIToken, logger)
	a.push = infra.NewStoredTokenSource(store, usecase.PushTokenKey, "", logger)
	a.client = stockapi.NewClient(cfg.APIURL, a.auth, cfg.RequestsPerMinute, cfg.RequestTimeout, logger)
	a.settings = usecase.NewSettingsStore(a.client, store, a.auth, cfg.RequestTimeout, logger)
	a.devices = usecase.NewDeviceService(a.client, store, a.auth, logger)

	switch cfg.PushProvider {
	case config.PushLog:
		a.notifier = push.NewLogNotifier(logger)
	default:
		url := cfg.PushURL
		if url == "" {
			url = push.DefaultExpoURL
		}
		a.notifier = push.NewExpoNotifier(url, a.push, cfg.RequestTimeout, logger)
	}
	return a, nil
}

func openStore(cfg *config.Config, dir string) (localStore, error) {
	if cfg.Store == config.StoreFile {
		store, err := infra.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	var provider domain.KeyProvider = infra.NewFileKeyProvider(dir)
	if cfg.StoreKey != "" {
		provider = infra.NewStaticKeyProvider(cfg.StoreKey)
	}
	key, err := infra.EnsureKey(provider)
	if err != nil {
		return nil, fmt.Errorf("store key: %w", err)
	}
	store, err := infra.NewEncryptedStore(dir, key)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newRunner builds the cycle runner and everything it fetches and
// dispatches through.
func (a *app) newRunner() *usecase.CycleRunner {
	seed := uint64(time.Now().UnixNano())
	sleeper := infra.ContextSleeper{}

	gateway := stockapi.NewGateway(a.client, a.registry, a.clock, a.cfg.PollInterval, a.logger)
	limiter := usecase.NewRateLimiter(a.clock)
	dispatcher := usecase.NewDispatcher(
		usecase.DefaultDispatcherConfig(),
		a.notifier,
		a.client,
		a.registry,
		sleeper,
		a.clock,
		rand.New(rand.NewPCG(seed, rand.Uint64())),
		a.logger,
	)
	return usecase.NewCycleRunner(
		usecase.DefaultCycleConfig(),
		a.registry,
		gateway,
		a.settings,
		limiter,
		dispatcher,
		a.auth,
		sleeper,
		a.clock,
		rand.New(rand.NewPCG(seed, rand.Uint64())),
		a.logger,
	)
}

func (a *app) newPoller(runner daemon.CycleRunner) *daemon.Poller {
	return daemon.NewPoller(daemon.PollerConfig{
		StartupDelay: a.cfg.StartupDelay,
		Interval:     a.cfg.PollInterval,
	}, runner, a.logger)
}

// daemonPID returns the PID of a live daemon, or 0.
func (a *app) daemonPID() (int, *domain.DaemonState) {
	state, err := a.store.LoadState()
	if err != nil || state == nil {
		return 0, nil
	}
	if !a.pm.IsRunning(state.PID) {
		return 0, state
	}
	return state.PID, state
}

func (a *app) outputPath() string {
	return filepath.Join(a.dataDir, daemonOutputFile)
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// createLogger builds the zap logger from configuration.
// Production logs are JSON with ISO8601 times; development logs are console.
func createLogger(cfg *config.Config) *zap.Logger {
	var zc zap.Config
	if cfg.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zc.Level = level
	}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err == nil {
			zc.OutputPaths = []string{cfg.LogFile}
			zc.ErrorOutputPaths = []string{cfg.LogFile}
		}
	}

	logger, err := zc.Build()
	if err != nil {
		// Fallback to stderr
		logger, _ = zap.NewProduction()
	}
	return logger
}
