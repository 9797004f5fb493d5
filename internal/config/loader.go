package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Trainer       TrainerConfig       `mapstructure:"trainer"`
	Polling       PollingConfig       `mapstructure:"polling"`
	Features      FeaturesConfig      `mapstructure:"features"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Storage       StorageConfig       `mapstructure:"storage"`
	History       HistoryConfig       `mapstructure:"history"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string     `mapstructure:"level"`
	Encoding         string     `mapstructure:"encoding"`
	OutputPaths      []string   `mapstructure:"output_paths"`
	ErrorOutputPaths []string   `mapstructure:"error_output_paths"`
	File             FileConfig `mapstructure:"file"`
}

// FileConfig enables an additional rotating JSON log file when Path is set.
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// TrainerConfig points the console at the training backend. APIToken is
// optional; when set it is sent as a bearer token on every trainer call.
type TrainerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIToken       string        `mapstructure:"api_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PollingConfig controls how the console watches in-flight jobs. The
// interval applies per task; every tracked task gets its own timer.
type PollingConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type FeaturesConfig struct {
	RequestIDHeader      string `mapstructure:"request_id_header"`
	EnableRequestLogging bool   `mapstructure:"enable_request_logging"`
	EnableHistory        bool   `mapstructure:"enable_history"`
	EnableLocks          bool   `mapstructure:"enable_locks"`
}

type AuthConfig struct {
	AdminAPIKey       string        `mapstructure:"admin_api_key"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

// StorageConfig controls the local dataset catalog.
type StorageConfig struct {
	DatasetDir  string `mapstructure:"dataset_dir"`
	MaxUploadMB int    `mapstructure:"max_upload_mb"`
}

func (s *StorageConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// HistoryConfig bounds the run history and activity feed.
type HistoryConfig struct {
	Retention       time.Duration `mapstructure:"retention"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	StatsWindow     time.Duration `mapstructure:"stats_window"`
	StatsRefresh    time.Duration `mapstructure:"stats_refresh"`
}

// NotificationsConfig enables terminal-outcome emails via SendGrid.
type NotificationsConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	SendgridAPIKey string   `mapstructure:"sendgrid_api_key"`
	FromName       string   `mapstructure:"from_name"`
	FromAddress    string   `mapstructure:"from_address"`
	To             []string `mapstructure:"to"`
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "console")
	viper.SetDefault("trainer.request_timeout", 2*time.Second)
	viper.SetDefault("polling.interval", 3*time.Second)
	viper.SetDefault("features.request_id_header", "X-Request-ID")
	viper.SetDefault("features.enable_history", true)
	viper.SetDefault("features.enable_locks", true)
	viper.SetDefault("auth.token_ttl", 12*time.Hour)
	viper.SetDefault("storage.dataset_dir", "data/datasets")
	viper.SetDefault("storage.max_upload_mb", 256)
	viper.SetDefault("history.retention", 30*24*time.Hour)
	viper.SetDefault("history.cleanup_interval", 12*time.Hour)
	viper.SetDefault("history.stats_window", 24*time.Hour)
	viper.SetDefault("history.stats_refresh", time.Minute)
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("MLTRACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
