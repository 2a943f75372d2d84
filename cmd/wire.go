package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/bnema/mirrorctl/internal/adapters/adb"
	"github.com/bnema/mirrorctl/internal/adapters/local"
	statusadapter "github.com/bnema/mirrorctl/internal/adapters/render/status"
	tomlrepo "github.com/bnema/mirrorctl/internal/adapters/repo/toml"
	"github.com/bnema/mirrorctl/internal/adapters/scrcpy"
	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/logger"
	"github.com/bnema/mirrorctl/internal/ports"
)

const (
	configDirName = ".mirrorctl"
	configName    = "config"
	configType    = "toml"
	envPrefix     = "MIRRORCTL"
)

const (
	keyADBPath         = "adb.path"
	keyScrcpyPath      = "scrcpy.path"
	keyRefreshInterval = "poll.refresh_interval"
	keySessionInterval = "poll.session_interval"
	keyStatusInterval  = "poll.status_interval"
	keyStatsInterval   = "poll.stats_interval"
	keyIntentTTL       = "intent.ttl"
	keyWirelessPort    = "wireless.port"
	keyWirelessSettle  = "wireless.settle"
	keyLogLevel        = "log.level"
	keyServerAddr      = "server.addr"
)

type appConfig struct {
	ADBPath         string
	ScrcpyPath      string
	RefreshInterval time.Duration
	SessionInterval time.Duration
	StatusInterval  time.Duration
	StatsInterval   time.Duration
	IntentTTL       time.Duration
	WirelessPort    int
	WirelessSettle  time.Duration
	LogLevel        string
	ServerAddr      string
}

type app struct {
	config         appConfig
	configFile     string
	settingsPath   string
	log            zerolog.Logger
	settings       *application.SettingsService
	adb            *adb.Client
	scrcpy         *scrcpy.Manager
	backend        ports.Backend
	statusRenderer func(application.Snapshot, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
}

func wireApp() (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	v, err := loadConfig(filepath.Join(homeDir, configDirName))
	if err != nil {
		return nil, err
	}
	cfg := readAppConfig(v)

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Console: true}, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("configure logger: %w", err)
	}

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire settings repository: %w", err)
	}

	adbClient := adb.NewClient(cfg.ADBPath)
	// scrcpy finds adb on PATH unless told otherwise.
	scrcpyADB := ""
	if cfg.ADBPath != "adb" {
		scrcpyADB = cfg.ADBPath
	}
	manager := scrcpy.NewManager(cfg.ScrcpyPath, scrcpyADB, ports.SystemClock{}, log)

	return &app{
		config:       cfg,
		configFile:   v.ConfigFileUsed(),
		settingsPath: repo.Path(),
		log:          log,
		settings:     application.NewSettingsService(repo, ports.SystemClock{}),
		adb:          adbClient,
		scrcpy:       manager,
		backend: local.NewBackend(adbClient, manager, log,
			local.WithWirelessPort(cfg.WirelessPort),
			local.WithSettleDelay(cfg.WirelessSettle),
		),
		statusRenderer: statusadapter.Render,
		now:            time.Now,
	}, nil
}

func loadConfig(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyADBPath, "adb")
	v.SetDefault(keyScrcpyPath, "scrcpy")
	v.SetDefault(keyRefreshInterval, application.DefaultRefreshInterval)
	v.SetDefault(keySessionInterval, application.DefaultSessionInterval)
	v.SetDefault(keyStatusInterval, application.DefaultStatusInterval)
	v.SetDefault(keyStatsInterval, application.DefaultStatsInterval)
	v.SetDefault(keyIntentTTL, application.DefaultIntentTTL)
	v.SetDefault(keyWirelessPort, local.DefaultWirelessPort)
	v.SetDefault(keyWirelessSettle, local.DefaultSettleDelay)
	v.SetDefault(keyLogLevel, "warn")
	v.SetDefault(keyServerAddr, "127.0.0.1:7790")
	v.SetDefault(tomlrepo.SettingsPathKey, filepath.Join(configDir, "settings.toml"))

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return v, nil
}

func readAppConfig(v *viper.Viper) appConfig {
	return appConfig{
		ADBPath:         v.GetString(keyADBPath),
		ScrcpyPath:      v.GetString(keyScrcpyPath),
		RefreshInterval: v.GetDuration(keyRefreshInterval),
		SessionInterval: v.GetDuration(keySessionInterval),
		StatusInterval:  v.GetDuration(keyStatusInterval),
		StatsInterval:   v.GetDuration(keyStatsInterval),
		IntentTTL:       v.GetDuration(keyIntentTTL),
		WirelessPort:    v.GetInt(keyWirelessPort),
		WirelessSettle:  v.GetDuration(keyWirelessSettle),
		LogLevel:        v.GetString(keyLogLevel),
		ServerAddr:      v.GetString(keyServerAddr),
	}
}

func (a *app) newCoordinator(log zerolog.Logger) *application.Coordinator {
	return application.NewCoordinator(a.backend, a.settings, application.Config{
		RefreshInterval: a.config.RefreshInterval,
		SessionInterval: a.config.SessionInterval,
		StatusInterval:  a.config.StatusInterval,
		StatsInterval:   a.config.StatsInterval,
		IntentTTL:       a.config.IntentTTL,
		Logger:          log,
	})
}
