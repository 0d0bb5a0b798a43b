package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Uploads    UploadsConfig    `yaml:"uploads"`
	Chunks     ChunksConfig     `yaml:"chunks"`
	URLUploads URLUploadsConfig `yaml:"url_uploads"`
	Scan       ScanConfig       `yaml:"scan"`
	Thumbnail  ThumbnailConfig  `yaml:"thumbnail"`
	Pagination PaginationConfig `yaml:"pagination"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	Charset      string `yaml:"charset"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	BasePath string `yaml:"base_path"`
}

// UploadsConfig governs the direct upload path: naming, extension policy,
// size limits and temporary-upload retention.
type UploadsConfig struct {
	Private             bool     `yaml:"private"`
	BaseDomain          string   `yaml:"base_domain"`
	MaxFileSize         int64    `yaml:"max_file_size"`
	RejectEmptyFiles    bool     `yaml:"reject_empty_files"`
	FilterMode          string   `yaml:"filter_mode"` // blacklist | whitelist
	ExtensionFilter     []string `yaml:"extension_filter"`
	RejectExtensionless bool     `yaml:"reject_extensionless"`
	NameLength          int      `yaml:"name_length"`
	NameLengthMin       int      `yaml:"name_length_min"`
	NameLengthMax       int      `yaml:"name_length_max"`
	ForceNameLength     bool     `yaml:"force_name_length"`
	TrustNameCache      bool     `yaml:"trust_name_cache"`
	TemporaryUploads    bool     `yaml:"temporary_uploads"`
	TemporaryAges       []int64  `yaml:"temporary_ages"` // allowed retention ages, hours; 0 = permanent
	StripTagsEnabled    bool     `yaml:"strip_tags_enabled"`
}

type ChunksConfig struct {
	Enabled         bool  `yaml:"enabled"`
	MaxTotalSize    int64 `yaml:"max_total_size"`
	MaxAgeSeconds   int   `yaml:"max_age_seconds"`
	SweepIntervalSc int   `yaml:"sweep_interval_seconds"`
}

type URLUploadsConfig struct {
	Enabled         bool     `yaml:"enabled"`
	MaxURLs         int      `yaml:"max_urls"`
	MaxFileSize     int64    `yaml:"max_file_size"`
	ProxyTemplate   string   `yaml:"proxy_template"` // %s is replaced with the requested URL
	FilterMode      string   `yaml:"filter_mode"`
	ExtensionFilter []string `yaml:"extension_filter"`
}

type ScanConfig struct {
	Enabled      bool     `yaml:"enabled"`
	BypassGroups []string `yaml:"bypass_groups"`
}

type ThumbnailConfig struct {
	Enabled     bool `yaml:"enabled"`
	Width       int  `yaml:"width"`
	Height      int  `yaml:"height"`
	Quality     int  `yaml:"quality"`
	WorkerCount int  `yaml:"worker_count"`
	QueueSize   int  `yaml:"queue_size"`
}

type PaginationConfig struct {
	PageSize int `yaml:"page_size"`
}

type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpireHours int    `yaml:"expire_hours"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

var AppConfig *Config

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	AppConfig = &cfg
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Uploads.MaxFileSize == 0 {
		cfg.Uploads.MaxFileSize = 512 * 1024 * 1024
	}
	if cfg.Uploads.FilterMode == "" {
		cfg.Uploads.FilterMode = "blacklist"
	}
	if cfg.Uploads.NameLength == 0 {
		cfg.Uploads.NameLength = 32
	}
	if cfg.Uploads.NameLengthMin == 0 {
		cfg.Uploads.NameLengthMin = 4
	}
	if cfg.Uploads.NameLengthMax == 0 {
		cfg.Uploads.NameLengthMax = 64
	}
	if cfg.Chunks.MaxTotalSize == 0 {
		cfg.Chunks.MaxTotalSize = cfg.Uploads.MaxFileSize
	}
	if cfg.Chunks.MaxAgeSeconds == 0 {
		cfg.Chunks.MaxAgeSeconds = 1800
	}
	if cfg.Chunks.SweepIntervalSc == 0 {
		cfg.Chunks.SweepIntervalSc = 300
	}
	if cfg.URLUploads.MaxURLs == 0 {
		cfg.URLUploads.MaxURLs = 20
	}
	if cfg.URLUploads.MaxFileSize == 0 {
		cfg.URLUploads.MaxFileSize = cfg.Uploads.MaxFileSize
	}
	if cfg.URLUploads.FilterMode == "" {
		cfg.URLUploads.FilterMode = cfg.Uploads.FilterMode
	}
	if len(cfg.URLUploads.ExtensionFilter) == 0 {
		cfg.URLUploads.ExtensionFilter = cfg.Uploads.ExtensionFilter
	}
	if cfg.Thumbnail.Width == 0 {
		cfg.Thumbnail.Width = 200
	}
	if cfg.Thumbnail.Height == 0 {
		cfg.Thumbnail.Height = 200
	}
	if cfg.Thumbnail.Quality == 0 {
		cfg.Thumbnail.Quality = 75
	}
	if cfg.Thumbnail.WorkerCount == 0 {
		cfg.Thumbnail.WorkerCount = 2
	}
	if cfg.Thumbnail.QueueSize == 0 {
		cfg.Thumbnail.QueueSize = 100
	}
	if cfg.Pagination.PageSize == 0 {
		cfg.Pagination.PageSize = 25
	}
	if cfg.JWT.ExpireHours == 0 {
		cfg.JWT.ExpireHours = 72
	}
}
