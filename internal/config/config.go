package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port   string `yaml:"port"`
	APIKey string `yaml:"api_key"`

	// Paths
	LibraryDir string `yaml:"library_dir"`
	ImagesDir  string `yaml:"images_dir"`
	StatsDir   string `yaml:"stats_dir"`
	CacheDir   string `yaml:"cache_dir"`
	DBPath     string `yaml:"db_path"`

	// Cache
	CacheEnabled bool `yaml:"cache_enabled"`

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	BatchSize    int `yaml:"batch_size"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Retry policy
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"-"`

	// Per-document limits
	MaxPDFBytes int64         `yaml:"max_pdf_bytes"`
	DocTimeout  time.Duration `yaml:"-"`

	// Chunking
	ChunkMaxChars int `yaml:"chunk_max_chars"`

	// Image optimization
	ImageQuality  int `yaml:"image_quality"`
	MaxImageBytes int `yaml:"max_image_bytes"`
	ImageMaxDim   int `yaml:"image_max_dim"`
	ImageMinArea  int `yaml:"image_min_area"`

	// Catalog metadata
	CompanyName         string   `yaml:"company_name"`
	Families            []string `yaml:"families"`
	NameCleanupPatterns []string `yaml:"name_cleanup_patterns"`
}

// Load builds the configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		Port:   envOr("PORT", "8091"),
		APIKey: os.Getenv("MANUALINDEX_API_KEY"),

		LibraryDir: envOr("LIBRARY_DIR", "./library"),
		ImagesDir:  envOr("IMAGES_DIR", "./images"),
		StatsDir:   envOr("STATS_DIR", "./stats"),
		CacheDir:   envOr("CACHE_DIR", "./cache"),
		DBPath:     envOr("DB_PATH", "./manualindex.db"),

		CacheEnabled: envBool("CACHE_ENABLED", true),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		BatchSize:    envInt("BATCH_SIZE", 32),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 256),

		MaxRetries: envInt("MAX_RETRIES", 3),
		RetryDelay: envDuration("RETRY_DELAY", 5*time.Second),

		MaxPDFBytes: envInt64("MAX_PDF_BYTES", 104857600), // 100MB
		DocTimeout:  envDuration("DOC_TIMEOUT", 5*time.Minute),

		ChunkMaxChars: envInt("CHUNK_MAX_CHARS", 2000),

		ImageQuality:  envInt("IMAGE_QUALITY", 85),
		MaxImageBytes: envInt("MAX_IMAGE_BYTES", 10485760), // 10MB
		ImageMaxDim:   envInt("IMAGE_MAX_DIM", 2048),
		ImageMinArea:  envInt("IMAGE_MIN_AREA", 30000),

		CompanyName: envOr("COMPANY_NAME", "Ducati"),
		Families: envList("FAMILIES",
			"DesertX,Diavel,Hypermotard,Monster,Multistrada,Off-Road,Panigale,Scrambler,Streetfighter,Supersport,Superbike,XDiavel"),
		NameCleanupPatterns: envList("NAME_CLEANUP_PATTERNS",
			"OM,_,.pdf,-,EN,ED00,ED01,ED02,ED03,Rev01,Rev02"),
	}
	cfg.applyFloors()
	return cfg
}

// LoadFile overlays a YAML config file on top of the environment defaults.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}
	cfg.applyFloors()
	return cfg, nil
}

// UnmarshalYAML decodes the config, accepting durations in Go syntax
// ("5s", "2m30s") for retry_delay and doc_timeout.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type alias Config
	aux := struct {
		*alias     `yaml:",inline"`
		RetryDelay string `yaml:"retry_delay"`
		DocTimeout string `yaml:"doc_timeout"`
	}{alias: (*alias)(c)}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.RetryDelay != "" {
		d, err := time.ParseDuration(aux.RetryDelay)
		if err != nil {
			return fmt.Errorf("retry_delay: %w", err)
		}
		c.RetryDelay = d
	}
	if aux.DocTimeout != "" {
		d, err := time.ParseDuration(aux.DocTimeout)
		if err != nil {
			return fmt.Errorf("doc_timeout: %w", err)
		}
		c.DocTimeout = d
	}
	return nil
}

func (c *Config) applyFloors() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 256
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.MaxPDFBytes <= 0 {
		c.MaxPDFBytes = 104857600
	}
	if c.DocTimeout <= 0 {
		c.DocTimeout = 5 * time.Minute
	}
	if c.ChunkMaxChars <= 0 {
		c.ChunkMaxChars = 2000
	}
}

// Validate rejects a configuration no run should start with.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.LibraryDir == "" {
		return fmt.Errorf("LIBRARY_DIR is required")
	}
	if c.CompanyName == "" {
		return fmt.Errorf("COMPANY_NAME is required")
	}
	return nil
}

// CreateDirs creates the working directories the pipeline writes to.
func (c Config) CreateDirs() error {
	for _, dir := range []string{c.ImagesDir, c.StatsDir, c.CacheDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key, fallback string) []string {
	v := envOr(key, fallback)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
