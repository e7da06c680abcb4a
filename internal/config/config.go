package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"

	VectorDBPinecone = "pinecone"
	VectorDBChromem  = "chromem"
	VectorDBPostgres = "postgres"

	SplitterWindow    = "window"
	SplitterRecursive = "recursive"
)

var (
	ErrMissingAPIKey    = errors.New("missing api key")
	ErrMissingIndexName = errors.New("missing vector index name")
	ErrInvalidChunking  = errors.New("invalid chunking parameters")
	ErrUnknownBackend   = errors.New("unknown backend")
)

// Purpose selects which settings Validate insists on.
type Purpose int

const (
	PurposeSplit Purpose = iota
	PurposeIngest
	PurposeQuery
	PurposeServe
)

type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	Host      string `yaml:"host"`
	Cloud     string `yaml:"cloud"`
	Region    string `yaml:"region"`
	Metric    string `yaml:"metric"`
	Namespace string `yaml:"namespace"`
}

type ChromemConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
	Compress bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type VectorDBConfig struct {
	Type      string         `yaml:"type"`
	IndexName string         `yaml:"index_name"`
	Pinecone  PineconeConfig `yaml:"pinecone"`
	Chromem   ChromemConfig  `yaml:"chromem"`
	Postgres  DatabaseConfig `yaml:"postgres"`
}

type RAGConfig struct {
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	Splitter      string `yaml:"splitter"`
	TopK          int    `yaml:"top_k"`
	Dimension     int    `yaml:"dimension"`
	EncryptionKey string `yaml:"encryption_key"`
}

type CacheConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RedisURL string `yaml:"redis_url"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

// RateLimitConfig is in requests per minute, 0 disables the limiter.
type RateLimitConfig struct {
	EmbedRPM int `yaml:"embed_rpm"`
	LLMRPM   int `yaml:"llm_rpm"`
}

type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	GinMode string `yaml:"gin_mode"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type Config struct {
	InputFile string          `yaml:"input_file"`
	EmbedLLM  LLMConfig       `yaml:"embed_llm"`
	LLM       LLMConfig       `yaml:"llm"`
	VectorDB  VectorDBConfig  `yaml:"vector_db"`
	RAG       RAGConfig       `yaml:"rag"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

const defaultPath = "./configs/config.yaml"

// DefaultPath is $RAG_CONFIG, or ./configs/config.yaml when unset.
func DefaultPath() string {
	if v := os.Getenv("RAG_CONFIG"); v != "" {
		return v
	}
	return defaultPath
}

// LoadConfig reads the YAML file at path on top of the defaults, then applies
// .env and environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// DefaultConfig mirrors the reference deployment: Gemini for embeddings and
// generation, a 3072 dimension cosine index on Pinecone serverless.
func DefaultConfig() *Config {
	return &Config{
		InputFile: "data/sample.txt",
		EmbedLLM: LLMConfig{
			Provider: ProviderGoogleAI,
			Model:    "models/gemini-embedding-001",
		},
		LLM: LLMConfig{
			Provider:    ProviderGoogleAI,
			Model:       "gemini-2.5-flash",
			Temperature: 0,
		},
		VectorDB: VectorDBConfig{
			Type: VectorDBPinecone,
			Pinecone: PineconeConfig{
				Cloud:  "aws",
				Region: "us-east-1",
				Metric: "cosine",
			},
			Chromem: ChromemConfig{
				Path: "./chromemdb",
			},
			Postgres: DatabaseConfig{
				Driver: "pg",
			},
		},
		RAG: RAGConfig{
			ChunkSize:    500,
			ChunkOverlap: 50,
			Splitter:     SplitterWindow,
			TopK:         4,
			Dimension:    3072,
		},
		Cache: CacheConfig{
			RedisURL: "redis://localhost:6379/0",
			TTLSecs:  86400,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "gemini-pinecone-rag",
			SampleRatio: 1,
		},
		Server: ServerConfig{
			Addr:    ":8080",
			GinMode: "release",
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PINECONE_API_KEY"); v != "" {
		cfg.VectorDB.Pinecone.APIKey = v
	}
	if v := os.Getenv("PINECONE_INDEX"); v != "" {
		cfg.VectorDB.IndexName = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.VectorDB.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	for _, llm := range []*LLMConfig{&cfg.EmbedLLM, &cfg.LLM} {
		if llm.Key != "" {
			continue
		}
		switch llm.Provider {
		case ProviderGoogleAI:
			llm.Key = os.Getenv("GOOGLE_API_KEY")
		case ProviderOpenAI:
			llm.Key = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// Validate checks that everything the given process is about to call is configured.
func (c *Config) Validate(purpose Purpose) error {
	if err := c.RAG.validateChunking(); err != nil {
		return err
	}
	if purpose == PurposeSplit {
		return nil
	}

	if c.RAG.Dimension <= 0 {
		return fmt.Errorf("rag.dimension must be positive, got %d", c.RAG.Dimension)
	}
	if err := c.EmbedLLM.validate("embed_llm"); err != nil {
		return err
	}
	if err := c.VectorDB.validate(); err != nil {
		return err
	}
	if purpose == PurposeIngest {
		return nil
	}

	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	return c.LLM.validate("llm")
}

func (r RAGConfig) validateChunking() error {
	if r.ChunkSize <= 0 || r.ChunkOverlap < 0 || r.ChunkOverlap >= r.ChunkSize {
		return fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, r.ChunkSize, r.ChunkOverlap)
	}
	switch r.Splitter {
	case SplitterWindow, SplitterRecursive:
		return nil
	default:
		return fmt.Errorf("%w: splitter %q", ErrUnknownBackend, r.Splitter)
	}
}

func (l LLMConfig) validate(section string) error {
	switch l.Provider {
	case ProviderGoogleAI:
		if l.Key == "" {
			return fmt.Errorf("%w: %s needs GOOGLE_API_KEY", ErrMissingAPIKey, section)
		}
	case ProviderOpenAI:
		if l.Key == "" {
			return fmt.Errorf("%w: %s needs OPENAI_API_KEY", ErrMissingAPIKey, section)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("%w: %s provider %q", ErrUnknownBackend, section, l.Provider)
	}
	return nil
}

func (v VectorDBConfig) validate() error {
	if v.IndexName == "" {
		return fmt.Errorf("%w: set PINECONE_INDEX or vector_db.index_name", ErrMissingIndexName)
	}
	switch v.Type {
	case VectorDBPinecone:
		if v.Pinecone.APIKey == "" {
			return fmt.Errorf("%w: vector_db needs PINECONE_API_KEY", ErrMissingAPIKey)
		}
	case VectorDBChromem:
	case VectorDBPostgres:
		if v.Postgres.DSN == "" {
			return fmt.Errorf("vector_db.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("%w: vector_db type %q", ErrUnknownBackend, v.Type)
	}
	return nil
}
