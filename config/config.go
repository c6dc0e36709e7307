package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Database struct {
		ConnectionString string `yaml:"connection_string"`
	} `yaml:"database"`
	Store struct {
		// memory or postgres
		Kind string `yaml:"kind"`
	} `yaml:"store"`
	VectorIndex struct {
		// memory, pgvector or milvus
		Backend   string `yaml:"backend"`
		Dimension int    `yaml:"dimension"`
		Milvus    struct {
			Address    string `yaml:"address"`
			Username   string `yaml:"username"`
			Password   string `yaml:"password"`
			APIKey     string `yaml:"api_key"`
			Collection string `yaml:"collection"`
		} `yaml:"milvus"`
	} `yaml:"vector_index"`
	Ollama struct {
		BaseURL      string `yaml:"base_url"`
		DefaultModel string `yaml:"default_model"`
	} `yaml:"ollama"`
	OpenAI struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"openai"`
	Embeddings struct {
		// ollama or openai
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embeddings"`
	Transcription struct {
		// openai or whisper_cli
		Provider     string `yaml:"provider"`
		Model        string `yaml:"model"`
		Language     string `yaml:"language"`
		PartSeconds  int    `yaml:"part_seconds"`
		WhisperBin   string `yaml:"whisper_bin"`
		WhisperModel string `yaml:"whisper_model"`
		FFmpegBin    string `yaml:"ffmpeg_bin"`
		FFprobeBin   string `yaml:"ffprobe_bin"`
	} `yaml:"transcription"`
	Generation struct {
		// ollama or openai
		Provider    string        `yaml:"provider"`
		Model       string        `yaml:"model"`
		Temperature float64       `yaml:"temperature"`
		MaxTokens   int           `yaml:"max_tokens"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"generation"`
	Processing struct {
		ChunkSize            int           `yaml:"chunk_size"`
		ChunkOverlap         int           `yaml:"chunk_overlap"`
		TopK                 int           `yaml:"top_k"`
		HistoryTurns         int           `yaml:"history_turns"`
		MaxConcurrent        int           `yaml:"max_concurrent"`
		ExtractTimeout       time.Duration `yaml:"extract_timeout"`
		TranscriptionTimeout time.Duration `yaml:"transcription_timeout"`
		EmbeddingTimeout     time.Duration `yaml:"embedding_timeout"`
		StaleGrace           time.Duration `yaml:"stale_grace"`
		ReapInterval         time.Duration `yaml:"reap_interval"`
	} `yaml:"processing"`
	Upload struct {
		MaxBytes          int64    `yaml:"max_bytes"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"upload"`
	Paths struct {
		UploadDir    string `yaml:"upload_dir"`
		ProcessedDir string `yaml:"processed_dir"`
	} `yaml:"paths"`
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
		APIKey     string `yaml:"api_key"`
	} `yaml:"server"`
	Queue struct {
		// inline, redis or pgnotify
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Key      string `yaml:"key"`
		} `yaml:"redis"`
	} `yaml:"queue"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Path resolves the config file location: the explicit path, then
// $LECTURE_CHAT_CONFIG, then ~/.lecture-chat/config.yaml
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("LECTURE_CHAT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".lecture-chat", "config.yaml")
}

// Load loads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	configPath := Path(path)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	configPath := Path(path)
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Database.ConnectionString, "DATABASE_URL")
	set(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.Ollama.BaseURL, "OLLAMA_BASE_URL")
	set(&c.Queue.Redis.Addr, "REDIS_ADDR")
	set(&c.VectorIndex.Milvus.Address, "MILVUS_ADDRESS")
	set(&c.Server.APIKey, "LECTURE_CHAT_API_KEY")
	set(&c.Server.ListenAddr, "LISTEN_ADDR")
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	p := c.Processing
	if p.ChunkSize <= 0 {
		return fmt.Errorf("processing.chunk_size must be positive")
	}
	if p.ChunkOverlap < 0 || p.ChunkOverlap >= p.ChunkSize {
		return fmt.Errorf("processing.chunk_overlap must be in [0, chunk_size)")
	}
	if p.TopK < 1 {
		return fmt.Errorf("processing.top_k must be at least 1")
	}
	if p.HistoryTurns < 0 {
		return fmt.Errorf("processing.history_turns must not be negative")
	}

	if err := oneOf("store.kind", c.Store.Kind, "memory", "postgres"); err != nil {
		return err
	}
	if err := oneOf("vector_index.backend", c.VectorIndex.Backend, "memory", "pgvector", "milvus"); err != nil {
		return err
	}
	if err := oneOf("embeddings.provider", c.Embeddings.Provider, "ollama", "openai"); err != nil {
		return err
	}
	if err := oneOf("transcription.provider", c.Transcription.Provider, "openai", "whisper_cli"); err != nil {
		return err
	}
	if err := oneOf("generation.provider", c.Generation.Provider, "ollama", "openai"); err != nil {
		return err
	}
	if err := oneOf("queue.kind", c.Queue.Kind, "inline", "redis", "pgnotify"); err != nil {
		return err
	}

	if c.VectorIndex.Backend == "milvus" && c.VectorIndex.Dimension <= 0 {
		return fmt.Errorf("vector_index.dimension is required for the milvus backend")
	}
	if c.VectorIndex.Backend == "pgvector" && c.Store.Kind != "postgres" {
		return fmt.Errorf("vector_index.backend pgvector requires store.kind postgres")
	}
	if c.Queue.Kind == "pgnotify" && c.Store.Kind != "postgres" {
		return fmt.Errorf("queue.kind pgnotify requires store.kind postgres")
	}
	if c.Queue.Kind != "inline" && c.Store.Kind == "memory" {
		return fmt.Errorf("queue.kind %s needs a shared store, not memory", c.Queue.Kind)
	}
	if c.Queue.Kind != "inline" && c.VectorIndex.Backend == "memory" {
		return fmt.Errorf("queue.kind %s needs a shared vector index, not memory", c.Queue.Kind)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return fmt.Errorf("upload.allowed_extensions must not be empty")
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown value %q, expected one of %v", field, value, allowed)
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}

	cfg.Database.ConnectionString = "postgres://postgres@localhost/lecture_chat?sslmode=disable"
	cfg.Store.Kind = "postgres"
	cfg.VectorIndex.Backend = "pgvector"
	cfg.VectorIndex.Milvus.Address = "localhost:19530"
	cfg.VectorIndex.Milvus.Collection = "lecture_chunks"
	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.DefaultModel = ""
	cfg.Embeddings.Provider = "ollama"
	cfg.Embeddings.Model = "nomic-embed-text"
	cfg.Embeddings.BatchSize = 50
	cfg.Transcription.Provider = "openai"
	cfg.Transcription.Model = "whisper-1"
	cfg.Transcription.PartSeconds = 600
	cfg.Transcription.WhisperBin = "whisper-cli"
	cfg.Transcription.FFmpegBin = "ffmpeg"
	cfg.Transcription.FFprobeBin = "ffprobe"
	cfg.Generation.Provider = "ollama"
	cfg.Generation.Temperature = 0.3
	cfg.Generation.MaxTokens = 1024
	cfg.Generation.Timeout = 60 * time.Second
	cfg.Processing.ChunkSize = 1000
	cfg.Processing.ChunkOverlap = 200
	cfg.Processing.TopK = 5
	cfg.Processing.HistoryTurns = 5
	cfg.Processing.MaxConcurrent = 2
	cfg.Processing.ExtractTimeout = 30 * time.Minute
	cfg.Processing.TranscriptionTimeout = 2 * time.Hour
	cfg.Processing.EmbeddingTimeout = 10 * time.Minute
	cfg.Processing.StaleGrace = 5 * time.Minute
	cfg.Processing.ReapInterval = time.Minute
	cfg.Upload.MaxBytes = 2 << 30
	cfg.Upload.AllowedExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm", ".flv", ".wmv"}
	cfg.Server.ListenAddr = ":8000"
	cfg.Queue.Kind = "inline"
	cfg.Queue.Redis.Addr = "localhost:6379"
	cfg.Queue.Redis.Key = "lecture-chat:jobs"
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	homeDir := os.Getenv("HOME")
	cfg.Paths.UploadDir = filepath.Join(homeDir, ".lecture-chat", "uploads")
	cfg.Paths.ProcessedDir = filepath.Join(homeDir, ".lecture-chat", "processed")

	return cfg
}
