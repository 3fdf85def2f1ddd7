package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Milvus    MilvusConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Cache     CacheConfig
	Stream    StreamConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	Provider           string
	Model              string
	APIKey             string
	EmbeddingModel     string
	EmbeddingDim       int
	ClassifyTimeoutSec int
	GenerateTimeoutSec int
}

// RetrievalConfig carries the confidence-gate constants. Loaded once at
// startup and treated as immutable afterwards.
type RetrievalConfig struct {
	Threshold     float64
	ListThreshold float64
	TopK          int
	ScopedTopK    int
	MaxSources    int
}

type CacheConfig struct {
	TTLSec     int
	MemorySize int
}

type StreamConfig struct {
	HeartbeatSec int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/docmind")

	viper.SetEnvPrefix("DOCMIND")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 120)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "document_chunks")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("sqlite.path", "./data/docmind.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-large")
	viper.SetDefault("llm.embeddingDim", 1536)
	viper.SetDefault("llm.classifyTimeoutSec", 10)
	viper.SetDefault("llm.generateTimeoutSec", 60)

	viper.SetDefault("retrieval.threshold", 0.5)
	viper.SetDefault("retrieval.listThreshold", 0.35)
	viper.SetDefault("retrieval.topK", 5)
	viper.SetDefault("retrieval.scopedTopK", 10)
	viper.SetDefault("retrieval.maxSources", 5)

	viper.SetDefault("cache.ttlSec", 3600)
	viper.SetDefault("cache.memorySize", 1024)

	viper.SetDefault("stream.heartbeatSec", 15)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
