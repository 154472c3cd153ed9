package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigEnvVar names the env var holding the YAML config path.
const ConfigEnvVar = "HARVESTER_CONFIG"

// Config holds all application configuration
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Staging  StagingConfig  `yaml:"staging"`
	Classify ClassifyConfig `yaml:"classify"`
	Extract  ExtractConfig  `yaml:"extract"`
	Workers  WorkerConfig   `yaml:"workers"`
	Convert  ConvertConfig  `yaml:"convert"`
	Index    IndexConfig    `yaml:"index"`
	Database DatabaseConfig `yaml:"database"`
	Elastic  ElasticConfig  `yaml:"elastic"`
	Server   ServerConfig   `yaml:"server"`
	Watch    WatchConfig    `yaml:"watch"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// StagingConfig describes the directory layout a run works in.
// Empty output dirs default to siblings of SourceDir.
type StagingConfig struct {
	SourceDir    string `yaml:"source_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	ScannedDir   string `yaml:"scanned_dir"`
	RedirectDir  string `yaml:"redirect_dir"`
	FailedDir    string `yaml:"failed_dir"` // empty: failed inputs are deleted
	SkipHidden   bool   `yaml:"skip_hidden"`
	MinSizeBytes int64  `yaml:"min_size_bytes"`
}

// ClassifyConfig holds the digitization threshold and the filename override.
type ClassifyConfig struct {
	Threshold       int      `yaml:"threshold"`
	RedirectRequire []string `yaml:"redirect_require"`
	RedirectAny     []string `yaml:"redirect_any"`
}

// ExtractConfig holds context widths and scan budgets.
type ExtractConfig struct {
	LineWindow      int    `yaml:"line_window"`
	PageWindow      int    `yaml:"page_window"`
	MarkupWindow    int    `yaml:"markup_window"`
	PrecheckPages   int    `yaml:"precheck_pages"`
	AbortAfterLines int    `yaml:"abort_after_lines"`
	StrictCheck     bool   `yaml:"strict_check"`
	Charset         string `yaml:"charset"` // IANA name; empty means UTF-8 with BOM sniffing
}

// WorkerConfig sizes the extraction pool.
type WorkerConfig struct {
	Count       int           `yaml:"count"`
	QueueSize   int           `yaml:"queue_size"`
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// ConvertConfig configures the legacy office converter.
type ConvertConfig struct {
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout"`
}

// IndexConfig configures the bulk indexer.
type IndexConfig struct {
	Backend      string        `yaml:"backend"` // sqlite | postgres | elasticsearch
	ArtifactDir  string        `yaml:"artifact_dir"`
	BatchSize    int           `yaml:"batch_size"`
	Retries      int           `yaml:"retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	IDSource     string        `yaml:"id_source"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	SQLitePath       string        `yaml:"sqlite_path"`
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ElasticConfig holds search cluster settings.
type ElasticConfig struct {
	Addresses          []string `yaml:"addresses"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	Index              string   `yaml:"index"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// WatchConfig tunes the filesystem watcher.
type WatchConfig struct {
	Debounce    time.Duration `yaml:"debounce"`
	InitialScan bool          `yaml:"initial_scan"`
}

// DefaultConfig returns the compiled defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Staging: StagingConfig{
			SourceDir:    "./inbox",
			SkipHidden:   true,
			MinSizeBytes: 8,
		},
		Classify: ClassifyConfig{
			Threshold:       50,
			RedirectRequire: []string{"hiring"},
			RedirectAny:     []string{"cv", "resume", "passport"},
		},
		Extract: ExtractConfig{
			LineWindow:      150,
			PageWindow:      500,
			MarkupWindow:    200,
			PrecheckPages:   30,
			AbortAfterLines: 5000,
			StrictCheck:     true,
		},
		Workers: WorkerConfig{
			Count:       4,
			QueueSize:   256,
			TaskTimeout: 3 * time.Minute,
		},
		Convert: ConvertConfig{
			Binary:  "libreoffice",
			Timeout: 6 * time.Second,
		},
		Index: IndexConfig{
			Backend:      "sqlite",
			ArtifactDir:  "./processed",
			BatchSize:    500,
			Retries:      3,
			RetryBackoff: 500 * time.Millisecond,
		},
		Database: DatabaseConfig{
			SQLitePath:      "./contacts.db",
			MaxConns:        20,
			MinConns:        2,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Elastic: ElasticConfig{
			Addresses: []string{"https://localhost:9200"},
			Index:     "contacts",
		},
		Server: ServerConfig{GRPCAddr: ":8080"},
		Watch:  WatchConfig{Debounce: 500 * time.Millisecond, InitialScan: true},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (or
// $HARVESTER_CONFIG when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("parse %s", path), err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.Staging.fillSiblings()
	return cfg, nil
}

// LoadConfig loads configuration from environment variables only.
func LoadConfig() *Config {
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	cfg.Staging.fillSiblings()
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Staging.SourceDir = getEnv("HARVESTER_SOURCE_DIR", cfg.Staging.SourceDir)
	cfg.Staging.ProcessedDir = getEnv("HARVESTER_PROCESSED_DIR", cfg.Staging.ProcessedDir)
	cfg.Staging.ScannedDir = getEnv("HARVESTER_SCANNED_DIR", cfg.Staging.ScannedDir)
	cfg.Staging.RedirectDir = getEnv("HARVESTER_REDIRECT_DIR", cfg.Staging.RedirectDir)
	cfg.Staging.FailedDir = getEnv("HARVESTER_FAILED_DIR", cfg.Staging.FailedDir)
	cfg.Staging.MinSizeBytes = int64(getEnvAsInt("HARVESTER_MIN_SIZE_BYTES", int(cfg.Staging.MinSizeBytes)))

	cfg.Classify.Threshold = getEnvAsInt("HARVESTER_THRESHOLD", cfg.Classify.Threshold)

	cfg.Extract.LineWindow = getEnvAsInt("HARVESTER_LINE_WINDOW", cfg.Extract.LineWindow)
	cfg.Extract.PageWindow = getEnvAsInt("HARVESTER_PAGE_WINDOW", cfg.Extract.PageWindow)
	cfg.Extract.MarkupWindow = getEnvAsInt("HARVESTER_MARKUP_WINDOW", cfg.Extract.MarkupWindow)
	cfg.Extract.PrecheckPages = getEnvAsInt("HARVESTER_PRECHECK_PAGES", cfg.Extract.PrecheckPages)
	cfg.Extract.AbortAfterLines = getEnvAsInt("HARVESTER_ABORT_AFTER_LINES", cfg.Extract.AbortAfterLines)
	cfg.Extract.StrictCheck = getEnvAsBool("HARVESTER_STRICT_CHECK", cfg.Extract.StrictCheck)
	cfg.Extract.Charset = getEnv("HARVESTER_CHARSET", cfg.Extract.Charset)

	cfg.Workers.Count = getEnvAsInt("HARVESTER_WORKERS", cfg.Workers.Count)
	cfg.Workers.TaskTimeout = getEnvAsDuration("HARVESTER_TASK_TIMEOUT", cfg.Workers.TaskTimeout)

	cfg.Convert.Binary = getEnv("CONVERTER_BIN", cfg.Convert.Binary)
	cfg.Convert.Timeout = getEnvAsDuration("CONVERTER_TIMEOUT", cfg.Convert.Timeout)

	cfg.Index.Backend = getEnv("INDEX_BACKEND", cfg.Index.Backend)
	cfg.Index.ArtifactDir = getEnv("INDEX_ARTIFACT_DIR", cfg.Index.ArtifactDir)
	cfg.Index.BatchSize = getEnvAsInt("INDEX_BATCH_SIZE", cfg.Index.BatchSize)
	cfg.Index.Retries = getEnvAsInt("INDEX_RETRIES", cfg.Index.Retries)
	cfg.Index.RetryBackoff = getEnvAsDuration("INDEX_RETRY_BACKOFF", cfg.Index.RetryBackoff)
	cfg.Index.IDSource = getEnv("INDEX_ID_SOURCE", cfg.Index.IDSource)

	cfg.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Database.SQLitePath)
	cfg.Database.DSN = getEnv("DB_URL", cfg.Database.DSN)
	cfg.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", cfg.Database.MaxConnLifetime)
	cfg.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", cfg.Database.MaxConnIdleTime)
	cfg.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", cfg.Database.DialTimeout)
	cfg.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", cfg.Database.StatementTimeout)

	if v := getEnv("ES_ADDRESSES", ""); v != "" {
		cfg.Elastic.Addresses = splitList(v)
	}
	cfg.Elastic.Username = getEnv("ES_USERNAME", cfg.Elastic.Username)
	cfg.Elastic.Password = getEnv("ES_PASSWORD", cfg.Elastic.Password)
	cfg.Elastic.Index = getEnv("ES_INDEX", cfg.Elastic.Index)
	cfg.Elastic.InsecureSkipVerify = getEnvAsBool("ES_INSECURE", cfg.Elastic.InsecureSkipVerify)

	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)
	cfg.Watch.Debounce = getEnvAsDuration("WATCH_DEBOUNCE", cfg.Watch.Debounce)
}

// fillSiblings places unset output dirs next to the source dir.
func (s *StagingConfig) fillSiblings() {
	parent := filepath.Dir(filepath.Clean(s.SourceDir))
	if s.ProcessedDir == "" {
		s.ProcessedDir = filepath.Join(parent, "processed")
	}
	if s.ScannedDir == "" {
		s.ScannedDir = filepath.Join(parent, "scanned")
	}
	if s.RedirectDir == "" {
		s.RedirectDir = filepath.Join(parent, "redirected")
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("staging.source_dir", c.Staging.SourceDir, Required)
	v.Field("classify.threshold", c.Classify.Threshold, AtLeast(0))
	v.Field("extract.line_window", c.Extract.LineWindow, AtLeast(0))
	v.Field("extract.page_window", c.Extract.PageWindow, AtLeast(0))
	v.Field("extract.markup_window", c.Extract.MarkupWindow, AtLeast(0))
	v.Field("extract.precheck_pages", c.Extract.PrecheckPages, AtLeast(1))
	v.Field("extract.abort_after_lines", c.Extract.AbortAfterLines, AtLeast(1))
	v.Field("workers.count", c.Workers.Count, AtLeast(1))
	v.Field("index.batch_size", c.Index.BatchSize, AtLeast(1))
	v.Field("index.retries", c.Index.Retries, AtLeast(0))
	v.Field("index.backend", c.Index.Backend, OneOf("sqlite", "postgres", "elasticsearch"))
	v.Field("log.format", c.Log.Format, OneOf("json", "text"))
	if c.Index.Backend == "postgres" {
		v.Field("database.dsn", c.Database.DSN, Required)
	}
	if c.Index.Backend == "elasticsearch" {
		v.Field("elastic.index", c.Elastic.Index, Required)
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrValidation)
	}
	return nil
}
