package inspectionsync

import (
	"fmt"
	"time"

	"inspection-sync/internal/common/config"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`

	// Upstream polling
	MaxPages int           `mapstructure:"max_pages"`
	Lookback time.Duration `mapstructure:"lookback"`

	// Downstream paging
	WatermarkPageSize int `mapstructure:"watermark_page_size"`
	MaxWatermarkPages int `mapstructure:"max_watermark_pages"`
	AssetPageSize     int `mapstructure:"asset_page_size"`

	TruckMarkers   []string              `mapstructure:"truck_markers"`
	TrailerMarkers []string              `mapstructure:"trailer_markers"`
	Sentinels      config.SentinelConfig `mapstructure:"sentinels"`

	LockKey string        `mapstructure:"lock_key"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`

	IndexName     string   `mapstructure:"index_name"`
	AlertTopicARN string   `mapstructure:"alert_topic_arn"`
	DigestFrom    string   `mapstructure:"digest_from"`
	DigestTo      []string `mapstructure:"digest_to"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		MaxJobsActive:     1,
		Timeout:           5 * time.Minute,
		MaxPages:          10,
		Lookback:          24 * time.Hour,
		WatermarkPageSize: 20,
		MaxWatermarkPages: 25,
		AssetPageSize:     20,
		TruckMarkers:      []string{"Freightliner"},
		TrailerMarkers:    []string{"Trailer"},
		Sentinels: config.SentinelConfig{
			Priority:         config.EntityRefConfig{Entity: "PriorityLevels", ID: "954c61fe-6f07-4c5c-8de4-b72594321c42", Number: 6, Title: "Base Truck Blocking"},
			WorkOrderType:    config.EntityRefConfig{Entity: "WorkOrderTypes", ID: "b2f98322-14af-44a9-b853-e7d0ec8ff9f7", Number: 20, Title: "Base Truck Corrective"},
			JobStatusNew:     config.EntityRefConfig{Entity: "JobStatus", ID: "11111111-8588-40d2-b33d-111111111113", Number: 3, Title: "New"},
			Requester:        config.EntityRefConfig{Entity: "UserData", ID: "00000000-0000-0000-0000-000000000002"},
			RequestFormID:    "7c1d2a40-5f0e-4b8e-9a51-3f0c6b2d9e10",
			DetailsHeader:    "Motive Base Truck",
			NotesPlaceholder: "No notes provided",
			EpochFloor:       "1970-01-01T00:00:00Z",
		},
		LockKey:   "inspection-sync:run-lock",
		LockTTL:   10 * time.Minute,
		IndexName: "inspection-sync-records",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive")
	}
	if c.Lookback <= 0 {
		return fmt.Errorf("lookback must be positive")
	}
	if c.WatermarkPageSize <= 0 || c.AssetPageSize <= 0 {
		return fmt.Errorf("downstream page sizes must be positive")
	}
	if c.MaxWatermarkPages <= 0 {
		return fmt.Errorf("max_watermark_pages must be positive")
	}
	if len(c.TruckMarkers) == 0 && len(c.TrailerMarkers) == 0 {
		return fmt.Errorf("at least one asset marker is required")
	}
	if c.Sentinels.WorkOrderType.Title == "" {
		return fmt.Errorf("sentinels.work_order_type.title is required")
	}
	if c.Sentinels.RequestFormID == "" {
		return fmt.Errorf("sentinels.request_form_id is required")
	}
	if _, err := time.Parse(time.RFC3339, c.Sentinels.EpochFloor); err != nil {
		return fmt.Errorf("sentinels.epoch_floor must be RFC3339: %w", err)
	}
	return nil
}

// epochFloor is the watermark used when no prior record exists.
func (c *Config) epochFloor() time.Time {
	return c.Sentinels.EpochFloorTime()
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	workerCfg := config.GetWorkerConfig(appConfig, WorkerName)
	cfg.Enabled = workerCfg.Enabled
	if workerCfg.MaxJobsActive > 0 {
		cfg.MaxJobsActive = workerCfg.MaxJobsActive
	}
	if workerCfg.Timeout > 0 {
		cfg.Timeout = config.GetDuration(workerCfg.Timeout)
	}

	if appConfig.Motive.MaxPages > 0 {
		cfg.MaxPages = appConfig.Motive.MaxPages
	}
	if appConfig.Motive.LookbackHours > 0 {
		cfg.Lookback = appConfig.Motive.Lookback()
	}
	if appConfig.MMS.PageSize > 0 {
		cfg.WatermarkPageSize = appConfig.MMS.PageSize
	}
	if appConfig.MMS.MaxWatermarkPages > 0 {
		cfg.MaxWatermarkPages = appConfig.MMS.MaxWatermarkPages
	}
	if appConfig.MMS.AssetPageSize > 0 {
		cfg.AssetPageSize = appConfig.MMS.AssetPageSize
	}
	if len(appConfig.Assets.TruckMarkers) > 0 || len(appConfig.Assets.TrailerMarkers) > 0 {
		cfg.TruckMarkers = appConfig.Assets.TruckMarkers
		cfg.TrailerMarkers = appConfig.Assets.TrailerMarkers
	}
	if appConfig.Sentinels.WorkOrderType.Title != "" {
		cfg.Sentinels = appConfig.Sentinels
	}

	redis := appConfig.Database.Redis
	if redis.LockKey != "" {
		cfg.LockKey = redis.LockKey
	}
	if redis.LockTTL > 0 {
		cfg.LockTTL = config.GetDuration(redis.LockTTL)
	}
	if appConfig.Database.Elasticsearch.Index != "" {
		cfg.IndexName = appConfig.Database.Elasticsearch.Index
	}

	cfg.AlertTopicARN = appConfig.Notifications.SNS.TopicARN
	cfg.DigestFrom = appConfig.Notifications.SES.FromEmail
	cfg.DigestTo = appConfig.Notifications.SES.Recipients

	return cfg
}
