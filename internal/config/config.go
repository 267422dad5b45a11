// Package config loads and validates the concierge configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for concierge.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	LLM         LLMConfig         `yaml:"llm"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	RAG         RAGConfig         `yaml:"rag"`
	Intent      IntentConfig      `yaml:"intent"`
	Sessions    SessionsConfig    `yaml:"sessions"`
	Calendar    CalendarConfig    `yaml:"calendar"`
	Channels    ChannelsConfig    `yaml:"channels"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

type LLMConfig struct {
	// Provider selects the chat backend: "ollama" or "openai".
	Provider string          `yaml:"provider"`
	System   string          `yaml:"system_prompt"`
	Ollama   OllamaLLMConfig `yaml:"ollama"`
	OpenAI   OpenAILLMConfig `yaml:"openai"`
}

type OllamaLLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type OpenAILLMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type EmbeddingsConfig struct {
	// Provider selects the embedding backend: "ollama" or "openai".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}

type VectorStoreConfig struct {
	// Path is the SQLite database file; ":memory:" keeps the index in process.
	Path      string `yaml:"path"`
	Dimension int    `yaml:"dimension"`
}

type RAGConfig struct {
	ChunkSize      int     `yaml:"chunk_size"`
	ChunkOverlap   int     `yaml:"chunk_overlap"`
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float32 `yaml:"score_threshold"`
}

type IntentConfig struct {
	// Threshold is the minimum heuristic confidence that skips the model
	// fallback during classification.
	Threshold float64 `yaml:"threshold"`
}

type SessionsConfig struct {
	// MaxTurns caps the stored history per session; oldest turns are trimmed.
	MaxTurns int `yaml:"max_turns"`
	// IdleTTL evicts sessions with no activity for this long. Zero disables
	// the sweeper.
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type CalendarConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CalendarID   string `yaml:"calendar_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	WindowDays   int    `yaml:"window_days"`
	MaxResults   int    `yaml:"max_results"`
}

type ChannelsConfig struct {
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type WhatsAppConfig struct {
	Enabled         bool   `yaml:"enabled"`
	AccessToken     string `yaml:"access_token"`
	PhoneNumberID   string `yaml:"phone_number_id"`
	VerifyToken     string `yaml:"verify_token"`
	GraphAPIVersion string `yaml:"graph_api_version"`
	ListenAddr      string `yaml:"listen_addr"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML configuration file, expanding ${ENV_VAR} references
// before parsing, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(strings.NewReader(os.ExpandEnv(string(data))))
}

// Parse decodes configuration from a reader and applies defaults.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "ollama"
	}
	if c.LLM.System == "" {
		c.LLM.System = "You are a personal assistant"
	}
	if c.LLM.Ollama.BaseURL == "" {
		c.LLM.Ollama.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Ollama.Model == "" {
		c.LLM.Ollama.Model = "llama3.2"
	}
	if c.LLM.Ollama.Timeout <= 0 {
		c.LLM.Ollama.Timeout = 2 * time.Minute
	}
	if c.LLM.OpenAI.Model == "" {
		c.LLM.OpenAI.Model = "gpt-4o-mini"
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "ollama"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "nomic-embed-text:v1.5"
	}
	if c.VectorStore.Path == "" {
		c.VectorStore.Path = "concierge.db"
	}
	if c.VectorStore.Dimension == 0 {
		c.VectorStore.Dimension = 768
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 1000
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 200
	}
	if c.RAG.TopK == 0 {
		c.RAG.TopK = 5
	}
	if c.RAG.ScoreThreshold == 0 {
		c.RAG.ScoreThreshold = 0.7
	}
	if c.Intent.Threshold == 0 {
		c.Intent.Threshold = 0.7
	}
	if c.Sessions.MaxTurns == 0 {
		c.Sessions.MaxTurns = 200
	}
	if c.Sessions.SweepInterval <= 0 {
		c.Sessions.SweepInterval = 5 * time.Minute
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = "primary"
	}
	if c.Calendar.WindowDays == 0 {
		c.Calendar.WindowDays = 7
	}
	if c.Calendar.MaxResults == 0 {
		c.Calendar.MaxResults = 10
	}
	if c.Channels.WhatsApp.GraphAPIVersion == "" {
		c.Channels.WhatsApp.GraphAPIVersion = "v21.0"
	}
	if c.Channels.WhatsApp.ListenAddr == "" {
		c.Channels.WhatsApp.ListenAddr = ":8081"
	}
}

// Validate checks cross-field constraints that defaults cannot repair.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "openai" && c.LLM.OpenAI.APIKey == "" {
		return fmt.Errorf("llm.openai.api_key is required for the openai provider")
	}
	switch c.Embeddings.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("unknown embeddings provider %q", c.Embeddings.Provider)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.Channels.WhatsApp.Enabled {
		wa := c.Channels.WhatsApp
		if wa.AccessToken == "" || wa.PhoneNumberID == "" || wa.VerifyToken == "" {
			return fmt.Errorf("channels.whatsapp requires access_token, phone_number_id and verify_token")
		}
	}
	if c.Channels.Telegram.Enabled && c.Channels.Telegram.BotToken == "" {
		return fmt.Errorf("channels.telegram.bot_token is required")
	}
	if c.Calendar.Enabled && c.Calendar.RefreshToken == "" {
		return fmt.Errorf("calendar.refresh_token is required when calendar is enabled")
	}
	return nil
}

// NewLogger builds an slog.Logger from the logging section.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
