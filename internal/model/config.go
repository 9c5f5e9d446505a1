package model

import "time"

// Config is the complete runtime configuration
type Config struct {
	Input        InputConfig        `yaml:"input" mapstructure:"input"`
	Analysis     AnalysisConfig     `yaml:"analysis" mapstructure:"analysis"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Dashboard    DashboardConfig    `yaml:"dashboard" mapstructure:"dashboard"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// InputConfig describes the source text
type InputConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`         // File path or http(s) URL
	Encoding string `yaml:"encoding" mapstructure:"encoding"` // utf-8, gb18030, big5
	Marker   string `yaml:"marker" mapstructure:"marker"`     // Chapter header glyph
}

// AnalysisConfig controls chapter selection and the dictionary
type AnalysisConfig struct {
	ChapterLimit int    `yaml:"chapter_limit" mapstructure:"chapter_limit"` // <= 0 means all chapters
	Dictionary   string `yaml:"dictionary" mapstructure:"dictionary"`       // YAML file; empty uses the built-in table
}

// OutputConfig controls exported artifacts
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	BOM     bool   `yaml:"bom" mapstructure:"bom"`
	Charts  bool   `yaml:"charts" mapstructure:"charts"`
	Map     bool   `yaml:"map" mapstructure:"map"`
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// HTTPConfig applies to remote sources
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CacheConfig controls the remote source cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig applies to batch runs
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig applies per remote host
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// DashboardConfig controls the read-only viewer
type DashboardConfig struct {
	Addr  string `yaml:"addr" mapstructure:"addr"`
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Title string `yaml:"title" mapstructure:"title"`
}

// LLMConfig controls optional commentary generation
type LLMConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // openai, ollama, "" (disabled)
	Model         string `yaml:"model" mapstructure:"model"`
	APIKey        string `yaml:"-" mapstructure:"api_key"`
	BaseURL       string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout       int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	StrictFigures bool   `yaml:"strict_figures" mapstructure:"strict_figures"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Path:     "rulinwaishi.txt",
			Encoding: "utf-8",
			Marker:   "*",
		},
		Analysis: AnalysisConfig{
			ChapterLimit: 20,
		},
		Output: OutputConfig{
			Dir:    "outputs",
			BOM:    true,
			Charts: true,
			Map:    true,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "Rulinstat/0.1 (+https://github.com/ppiankov/rulinstat)",
			MaxBodyBytes:  8_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".rulinstat-cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Dashboard: DashboardConfig{
			Addr:  ":8501",
			Dir:   "outputs",
			Title: "《儒林外史》前20章 可视化展示",
		},
		LLM: LLMConfig{
			Timeout:       30,
			MaxTokens:     800,
			StrictFigures: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadDictionaryFor returns the configured dictionary, or the built-in one
func LoadDictionaryFor(cfg *Config) (*Dictionary, error) {
	if cfg.Analysis.Dictionary == "" {
		return DefaultDictionary(), nil
	}
	return LoadDictionary(cfg.Analysis.Dictionary)
}
