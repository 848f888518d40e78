// Package config loads tgforward's two-tier configuration: Telegram
// credentials and other secrets from the environment (via godotenv +
// envconfig, exactly as the teacher's config package does it), layered
// with the structured forward/download/upload/storage sections read from
// a YAML file via viper (spec §10's "Configuration surface").
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Secrets holds the environment-sourced values that must never appear in
// a checked-in YAML file: API credentials and session material.
type Secrets struct {
	APIID       int32  `envconfig:"API_ID" required:"true"`
	APIHash     string `envconfig:"API_HASH" required:"true"`
	BotToken    string `envconfig:"BOT_TOKEN"`
	SessionName    string `envconfig:"SESSION_NAME" default:"tgforward"`
	UseSessionFile bool   `envconfig:"USE_SESSION_FILE" default:"true"`
	Dev            bool   `envconfig:"DEV" default:"false"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
}

// Pair is one forward_channel_pairs entry.
type Pair struct {
	SourceChannel  string   `mapstructure:"source_channel"`
	TargetChannels []string `mapstructure:"target_channels"`
}

// ForwardSection mirrors spec §10's forward.* options.
type ForwardSection struct {
	ForwardChannelPairs []Pair   `mapstructure:"forward_channel_pairs"`
	StartID             int      `mapstructure:"start_id"`
	EndID               int      `mapstructure:"end_id"`
	Limit               int      `mapstructure:"limit"`
	MediaTypes          []string `mapstructure:"media_types"`
	RemoveCaptions      bool     `mapstructure:"remove_captions"`
	ForwardDelaySeconds float64  `mapstructure:"forward_delay"`
	PauseTimeSeconds    float64  `mapstructure:"pause_time"`
	MaxRetries          int      `mapstructure:"max_retries"`
	TimeoutSeconds      int      `mapstructure:"timeout"`
	CaptionTemplate     string   `mapstructure:"caption_template"`
	Attribution         string   `mapstructure:"attribution"`
}

// DownloadSection mirrors spec §10's download.* options.
type DownloadSection struct {
	Directory           string `mapstructure:"directory"`
	RetryCount          int    `mapstructure:"retry_count"`
	RetryDelaySeconds   int    `mapstructure:"retry_delay"`
	ConcurrentDownloads int    `mapstructure:"concurrent_downloads"`
	DownloadHistory     string `mapstructure:"download_history"`
}

// UploadSection mirrors spec §10's upload.* options.
type UploadSection struct {
	WaitBetweenMessagesSeconds float64 `mapstructure:"wait_between_messages"`
	RetryCount                 int     `mapstructure:"retry_count"`
	RetryDelaySeconds          int     `mapstructure:"retry_delay"`
	ConcurrentUploads          int     `mapstructure:"concurrent_uploads"`
}

// StorageSection mirrors spec §10's storage.* options.
type StorageSection struct {
	TmpPath string `mapstructure:"tmp_path"`
}

// Config is the full structured configuration, layered over Secrets.
type Config struct {
	Secrets  Secrets
	Forward  ForwardSection  `mapstructure:"forward"`
	Download DownloadSection `mapstructure:"download"`
	Upload   UploadSection   `mapstructure:"upload"`
	Storage  StorageSection  `mapstructure:"storage"`
}

func defaults() Config {
	return Config{
		Forward: ForwardSection{
			MaxRetries:     3,
			TimeoutSeconds: 30,
		},
		Download: DownloadSection{
			Directory:           "temp",
			RetryCount:          3,
			RetryDelaySeconds:   5,
			ConcurrentDownloads: 1,
			DownloadHistory:     "download_history.json",
		},
		Upload: UploadSection{
			RetryCount:        3,
			RetryDelaySeconds: 5,
			ConcurrentUploads: 3,
		},
		Storage: StorageSection{
			TmpPath: "temp",
		},
	}
}

// SetFlags registers the CLI flags the run command accepts, mirroring
// the teacher's SetFlagsFromConfig shape.
func SetFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "config.yaml", "path to the structured configuration file")
	cmd.Flags().String("env-file", ".env", "path to the .env secrets file")
}

// Load reads secrets from the environment and the structured sections
// from the YAML file named by --config, in that order so env secrets
// never live in the checked-in config file.
func Load(log *zap.Logger, cmd *cobra.Command) (*Config, error) {
	log = log.Named("Config")

	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(filepath.Clean(envFile)); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load env file", zap.String("path", envFile), zap.Error(err))
	}

	cfg := defaults()
	if err := envconfig.Process("", &cfg.Secrets); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = "config.yaml"
	}
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		log.Warn("no structured config file found, using defaults", zap.String("path", configPath))
	} else if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	log.Info("loaded configuration",
		zap.Int("pairs", len(cfg.Forward.ForwardChannelPairs)),
		zap.String("download_dir", cfg.Download.Directory))
	return &cfg, nil
}

// SplitMediaTypes normalizes the media_types allow-list entries, case
// and whitespace insensitive, matching how the original config_manager.py
// tolerated either comma-separated strings or YAML lists.
func SplitMediaTypes(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(strings.ToLower(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
