// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Motive        MotiveConfig            `mapstructure:"motive"`
	MMS           MMSConfig               `mapstructure:"mms"`
	Sentinels     SentinelConfig          `mapstructure:"sentinels"`
	Assets        AssetConfig             `mapstructure:"assets"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// --- Upstream / Downstream APIs ---

// MotiveConfig configures the telematics inspection feed.
type MotiveConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	PerPage           int     `mapstructure:"per_page"`
	MaxPages          int     `mapstructure:"max_pages"`
	LookbackHours     int     `mapstructure:"lookback_hours"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Timeout           int     `mapstructure:"timeout"` // milliseconds
}

// MMSConfig configures the maintenance-management entity API.
type MMSConfig struct {
	BaseURL           string `mapstructure:"base_url"`
	Site              string `mapstructure:"site"`
	AuthCookie        string `mapstructure:"auth_cookie"`
	PageSize          int    `mapstructure:"page_size"`
	AssetPageSize     int    `mapstructure:"asset_page_size"`
	MaxWatermarkPages int    `mapstructure:"max_watermark_pages"`
	Timeout           int    `mapstructure:"timeout"` // milliseconds
}

// EntityRefConfig mirrors the MMS foreign-key reference shape.
type EntityRefConfig struct {
	Entity string `mapstructure:"entity"`
	ID     string `mapstructure:"id"`
	Number int    `mapstructure:"number"`
	Title  string `mapstructure:"title"`
}

// SentinelConfig holds the values that mark downstream records as created by this system.
type SentinelConfig struct {
	Priority         EntityRefConfig `mapstructure:"priority"`
	WorkOrderType    EntityRefConfig `mapstructure:"work_order_type"`
	JobStatusNew     EntityRefConfig `mapstructure:"job_status_new"`
	Requester        EntityRefConfig `mapstructure:"requester"`
	RequestFormID    string          `mapstructure:"request_form_id"`
	DetailsHeader    string          `mapstructure:"details_header"`
	NotesPlaceholder string          `mapstructure:"notes_placeholder"`
	EpochFloor       string          `mapstructure:"epoch_floor"` // RFC3339
}

// AssetConfig holds the label markers that classify downstream assets.
type AssetConfig struct {
	TruckMarkers   []string `mapstructure:"truck_markers"`
	TrailerMarkers []string `mapstructure:"trailer_markers"`
}

// --- Stores ---

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	LockKey  string `mapstructure:"lock_key"`
	LockTTL  int    `mapstructure:"lock_ttl"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// NotificationConfig holds settings for run alerts and digests.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled    bool     `mapstructure:"enabled"`
		FromEmail  string   `mapstructure:"from_email"`
		Recipients []string `mapstructure:"recipients"`
	} `mapstructure:"ses"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// Lookback returns the upstream polling horizon.
func (m MotiveConfig) Lookback() time.Duration {
	return time.Duration(m.LookbackHours) * time.Hour
}
