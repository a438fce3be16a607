// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the working directory or any parent up to the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e/
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills secrets that are conventionally supplied through the environment.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Motive.APIKey, "MOTIVE_API_KEY")
	setIfEmpty(&cfg.MMS.AuthCookie, "MMS_AUTH_COOKIE")
	setIfEmpty(&cfg.MMS.BaseURL, "MMS_BASE_URL")
	setIfEmpty(&cfg.MMS.Site, "MMS_SITE")

	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")

	setIfEmpty(&cfg.Notifications.SNS.TopicARN, "SNS_TOPIC_ARN")
	setIfEmpty(&cfg.Notifications.AWS.Region, "AWS_REGION")
}

func setIfEmpty(field *string, envKey string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "inspection-sync"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 1
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 300000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Upstream feed
	if cfg.Motive.BaseURL == "" {
		cfg.Motive.BaseURL = "https://api.keeptruckin.com/v2"
	}
	if cfg.Motive.PerPage == 0 {
		cfg.Motive.PerPage = 50
	}
	if cfg.Motive.MaxPages == 0 {
		cfg.Motive.MaxPages = 10
	}
	if cfg.Motive.LookbackHours == 0 {
		cfg.Motive.LookbackHours = 24
	}
	if cfg.Motive.RequestsPerSecond == 0 {
		cfg.Motive.RequestsPerSecond = 2
	}
	if cfg.Motive.Timeout == 0 {
		cfg.Motive.Timeout = 30000
	}

	// Downstream MMS
	if cfg.MMS.PageSize == 0 {
		cfg.MMS.PageSize = 20
	}
	if cfg.MMS.AssetPageSize == 0 {
		cfg.MMS.AssetPageSize = 20
	}
	if cfg.MMS.MaxWatermarkPages == 0 {
		cfg.MMS.MaxWatermarkPages = 25
	}
	if cfg.MMS.Timeout == 0 {
		cfg.MMS.Timeout = 30000
	}

	applySentinelDefaults(&cfg.Sentinels)

	if len(cfg.Assets.TruckMarkers) == 0 {
		cfg.Assets.TruckMarkers = []string{"Freightliner"}
	}
	if len(cfg.Assets.TrailerMarkers) == 0 {
		cfg.Assets.TrailerMarkers = []string{"Trailer"}
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 5
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "inspection-sync-records"
	}
	if cfg.Database.Redis.LockKey == "" {
		cfg.Database.Redis.LockKey = "inspection-sync:run-lock"
	}
	if cfg.Database.Redis.LockTTL == 0 {
		cfg.Database.Redis.LockTTL = 600000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9090"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 1
		}
		if worker.Timeout == 0 {
			worker.Timeout = 300000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

func applySentinelDefaults(s *SentinelConfig) {
	if s.Priority.ID == "" {
		s.Priority = EntityRefConfig{
			Entity: "PriorityLevels",
			ID:     "954c61fe-6f07-4c5c-8de4-b72594321c42",
			Number: 6,
			Title:  "Base Truck Blocking",
		}
	}
	if s.WorkOrderType.ID == "" {
		s.WorkOrderType = EntityRefConfig{
			Entity: "WorkOrderTypes",
			ID:     "b2f98322-14af-44a9-b853-e7d0ec8ff9f7",
			Number: 20,
			Title:  "Base Truck Corrective",
		}
	}
	if s.JobStatusNew.ID == "" {
		s.JobStatusNew = EntityRefConfig{
			Entity: "JobStatus",
			ID:     "11111111-8588-40d2-b33d-111111111113",
			Number: 3,
			Title:  "New",
		}
	}
	if s.Requester.ID == "" {
		s.Requester = EntityRefConfig{
			Entity: "UserData",
			ID:     "00000000-0000-0000-0000-000000000002",
		}
	}
	if s.RequestFormID == "" {
		s.RequestFormID = "7c1d2a40-5f0e-4b8e-9a51-3f0c6b2d9e10"
	}
	if s.DetailsHeader == "" {
		s.DetailsHeader = "Motive Base Truck"
	}
	if s.NotesPlaceholder == "" {
		s.NotesPlaceholder = "No notes provided"
	}
	if s.EpochFloor == "" {
		s.EpochFloor = "1970-01-01T00:00:00Z"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Motive.APIKey == "" {
		return fmt.Errorf("motive.api_key is required")
	}
	if cfg.MMS.BaseURL == "" {
		return fmt.Errorf("mms.base_url is required")
	}
	if cfg.MMS.Site == "" {
		return fmt.Errorf("mms.site is required")
	}
	if cfg.Sentinels.RequestFormID == "" {
		return fmt.Errorf("sentinels.request_form_id is required")
	}
	if _, err := time.Parse(time.RFC3339, cfg.Sentinels.EpochFloor); err != nil {
		return fmt.Errorf("sentinels.epoch_floor must be RFC3339: %w", err)
	}

	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if cfg.Database.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
	}
	if cfg.Database.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required")
	}
	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required")
	}
	if cfg.Notifications.SES.Enabled && (cfg.Notifications.SES.FromEmail == "" || len(cfg.Notifications.SES.Recipients) == 0) {
		return fmt.Errorf("notifications.ses.from_email and recipients are required")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// EpochFloorTime returns the parsed epoch floor. Validated at load time.
func (s SentinelConfig) EpochFloorTime() time.Time {
	t, _ := time.Parse(time.RFC3339, s.EpochFloor)
	return t.UTC()
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 1,
		Timeout:       300000,
		MaxRetries:    3,
	}
}

