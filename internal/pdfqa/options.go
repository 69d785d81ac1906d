package pdfqa

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ServerOptions contains HTTP server configuration.
type ServerOptions struct {
	// Addr is the address the HTTP server listens on.
	Addr string `json:"addr" mapstructure:"addr"`

	// Mode is the gin mode (debug, release, test).
	Mode string `json:"mode" mapstructure:"mode"`

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration `json:"read-timeout" mapstructure:"read-timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`

	// MaxUploadSizeMB limits the multipart memory for uploads.
	MaxUploadSizeMB int64 `json:"max-upload-size-mb" mapstructure:"max-upload-size-mb"`

	// ShutdownTimeout is the timeout for graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewServerOptions creates ServerOptions with defaults.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		Addr:            ":8082",
		Mode:            "release",
		ReadTimeout:     120 * time.Second,
		WriteTimeout:    120 * time.Second,
		MaxUploadSizeMB: 64,
		ShutdownTimeout: 30 * time.Second,
	}
}

// AddFlags adds server flags to the flagset.
func (o *ServerOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "server.addr", o.Addr, "HTTP server listen address")
	fs.StringVar(&o.Mode, "server.mode", o.Mode, "Gin mode (debug, release, test)")
	fs.DurationVar(&o.ReadTimeout, "server.read-timeout", o.ReadTimeout, "HTTP read timeout")
	fs.DurationVar(&o.WriteTimeout, "server.write-timeout", o.WriteTimeout, "HTTP write timeout")
	fs.Int64Var(&o.MaxUploadSizeMB, "server.max-upload-size-mb", o.MaxUploadSizeMB, "Maximum upload size in MB")
	fs.DurationVar(&o.ShutdownTimeout, "server.shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout")
}

// Validate validates the server options.
func (o *ServerOptions) Validate() error {
	if o.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if o.Mode != "debug" && o.Mode != "release" && o.Mode != "test" {
		return fmt.Errorf("server.mode must be one of debug, release, test")
	}
	return nil
}

// MilvusOptions contains Milvus database configuration.
type MilvusOptions struct {
	// Address is the Milvus server address (host:port).
	Address string `json:"address" mapstructure:"address"`

	// Username for authentication.
	Username string `json:"username" mapstructure:"username"`

	// Password for authentication.
	Password string `json:"password" mapstructure:"password"`

	// Database is the Milvus database name.
	Database string `json:"database" mapstructure:"database"`

	// Timeout is the connection timeout.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewMilvusOptions creates MilvusOptions with defaults.
func NewMilvusOptions() *MilvusOptions {
	return &MilvusOptions{
		Address: "localhost:19530",
		Timeout: 10 * time.Second,
	}
}

// AddFlags adds Milvus flags to the flagset.
func (o *MilvusOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Address, "milvus.address", o.Address, "Milvus server address")
	fs.StringVar(&o.Username, "milvus.username", o.Username, "Milvus username")
	fs.StringVar(&o.Password, "milvus.password", o.Password, "Milvus password")
	fs.StringVar(&o.Database, "milvus.database", o.Database, "Milvus database name")
	fs.DurationVar(&o.Timeout, "milvus.timeout", o.Timeout, "Milvus connection timeout")
}

// Validate validates the Milvus options.
func (o *MilvusOptions) Validate() error {
	if o.Address == "" {
		return fmt.Errorf("milvus.address is required")
	}
	return nil
}

// LLMProviderOptions 定义 LLM 供应商配置。
type LLMProviderOptions struct {
	// Provider 供应商名称（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 等需要）。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`
}

// NewLLMProviderOptions 创建默认 LLM 供应商配置。
func NewLLMProviderOptions() *LLMProviderOptions {
	return &LLMProviderOptions{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// AddFlags 注册供应商 flags，prefix 区分 embedding 与 chat。
func (o *LLMProviderOptions) AddFlags(fs *pflag.FlagSet, prefix string) {
	fs.StringVar(&o.Provider, prefix+".provider", o.Provider, "LLM provider (ollama, openai)")
	fs.StringVar(&o.BaseURL, prefix+".base-url", o.BaseURL, "LLM API base URL")
	fs.StringVar(&o.APIKey, prefix+".api-key", o.APIKey, "LLM API key (for OpenAI)")
	fs.StringVar(&o.Model, prefix+".model", o.Model, "Model name")
	fs.DurationVar(&o.Timeout, prefix+".timeout", o.Timeout, "Request timeout")
	fs.IntVar(&o.MaxRetries, prefix+".max-retries", o.MaxRetries, "Max request retries")
}

// Validate 校验供应商配置，prefix 用于错误信息。
func (o *LLMProviderOptions) Validate(prefix string) error {
	if o.Provider == "" {
		return fmt.Errorf("%s.provider is required", prefix)
	}
	if o.BaseURL == "" {
		return fmt.Errorf("%s.base-url is required", prefix)
	}
	if o.Model == "" {
		return fmt.Errorf("%s.model is required", prefix)
	}
	// OpenAI 供应商需要 API key
	if o.Provider == "openai" && o.APIKey == "" {
		return fmt.Errorf("%s.api-key is required for openai provider", prefix)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("%s.timeout must be positive", prefix)
	}
	return nil
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *LLMProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// PipelineOptions contains indexing and retrieval configuration.
type PipelineOptions struct {
	// ChunkSize is the size of text chunks in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the overlap between consecutive chunks.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// BatchSize is the number of chunks per embedding/upload batch.
	BatchSize int `json:"batch-size" mapstructure:"batch-size"`

	// TopK is the number of results from similarity search.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// ScoreThreshold is the minimum cosine similarity to keep a hit.
	ScoreThreshold float64 `json:"score-threshold" mapstructure:"score-threshold"`

	// Collection is the vector store collection name.
	Collection string `json:"collection" mapstructure:"collection"`

	// EmbeddingDim is the dimension of embedding vectors.
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// MaxUploadAttempts is the attempt budget per upload batch.
	MaxUploadAttempts int `json:"max-upload-attempts" mapstructure:"max-upload-attempts"`

	// DataDir is the directory for storing uploaded documents.
	DataDir string `json:"data-dir" mapstructure:"data-dir"`
}

// NewPipelineOptions creates PipelineOptions with defaults.
func NewPipelineOptions() *PipelineOptions {
	return &PipelineOptions{
		ChunkSize:         1000,
		ChunkOverlap:      150,
		BatchSize:         50,
		TopK:              10,
		ScoreThreshold:    0.25,
		Collection:        "pdf_documents",
		EmbeddingDim:      768, // nomic-embed-text dimension
		MaxUploadAttempts: 3,
		DataDir:           "_output/pdfqa-data",
	}
}

// AddFlags adds pipeline flags to the flagset.
func (o *PipelineOptions) AddFlags(fs *pflag.FlagSet) {
	fs.IntVar(&o.ChunkSize, "pipeline.chunk-size", o.ChunkSize, "Size of text chunks")
	fs.IntVar(&o.ChunkOverlap, "pipeline.chunk-overlap", o.ChunkOverlap, "Overlap between chunks")
	fs.IntVar(&o.BatchSize, "pipeline.batch-size", o.BatchSize, "Chunks per embedding/upload batch")
	fs.IntVar(&o.TopK, "pipeline.top-k", o.TopK, "Number of results from similarity search")
	fs.Float64Var(&o.ScoreThreshold, "pipeline.score-threshold", o.ScoreThreshold, "Minimum similarity score")
	fs.StringVar(&o.Collection, "pipeline.collection", o.Collection, "Vector store collection name")
	fs.IntVar(&o.EmbeddingDim, "pipeline.embedding-dim", o.EmbeddingDim, "Embedding vector dimension")
	fs.IntVar(&o.MaxUploadAttempts, "pipeline.max-upload-attempts", o.MaxUploadAttempts, "Upload attempts per batch")
	fs.StringVar(&o.DataDir, "pipeline.data-dir", o.DataDir, "Directory for uploaded documents")
}

// Validate validates the pipeline options.
func (o *PipelineOptions) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("pipeline.chunk-size must be positive")
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("pipeline.chunk-overlap must be in [0, chunk-size)")
	}
	if o.TopK <= 0 {
		return fmt.Errorf("pipeline.top-k must be positive")
	}
	if o.ScoreThreshold < 0 || o.ScoreThreshold > 1 {
		return fmt.Errorf("pipeline.score-threshold must be in [0, 1]")
	}
	if o.EmbeddingDim <= 0 {
		return fmt.Errorf("pipeline.embedding-dim must be positive")
	}
	if o.MaxUploadAttempts <= 0 {
		return fmt.Errorf("pipeline.max-upload-attempts must be positive")
	}
	return nil
}

// CacheOptions 查询缓存配置。
type CacheOptions struct {
	// Enabled 是否启用缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis Redis 连接配置。
	Redis *RedisOptions `json:"redis" mapstructure:"redis"`
}

// RedisOptions Redis 配置。
type RedisOptions struct {
	// Host Redis 主机地址。
	Host string `json:"host" mapstructure:"host"`

	// Port Redis 端口。
	Port int `json:"port" mapstructure:"port"`

	// Password Redis 密码。
	Password string `json:"password" mapstructure:"password"`

	// Database Redis 数据库编号。
	Database int `json:"database" mapstructure:"database"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// PoolSize 连接池大小。
	PoolSize int `json:"pool-size" mapstructure:"pool-size"`

	// MinIdleConns 最小空闲连接数。
	MinIdleConns int `json:"min-idle-conns" mapstructure:"min-idle-conns"`
}

// NewCacheOptions 创建默认缓存配置。
func NewCacheOptions() *CacheOptions {
	return &CacheOptions{
		Enabled:   true,
		TTL:       1 * time.Hour,
		KeyPrefix: "pdfqa:query:",
		Redis:     NewRedisOptions(),
	}
}

// NewRedisOptions 创建默认 Redis 配置。
func NewRedisOptions() *RedisOptions {
	return &RedisOptions{
		Host:         "localhost",
		Port:         6379,
		Database:     0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
	}
}

// AddFlags adds cache flags to the flagset.
func (o *CacheOptions) AddFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&o.Enabled, "cache.enabled", o.Enabled, "Enable query result cache")
	fs.DurationVar(&o.TTL, "cache.ttl", o.TTL, "Cache TTL duration")
	fs.StringVar(&o.KeyPrefix, "cache.key-prefix", o.KeyPrefix, "Cache key prefix")
	fs.StringVar(&o.Redis.Host, "cache.redis.host", o.Redis.Host, "Redis host")
	fs.IntVar(&o.Redis.Port, "cache.redis.port", o.Redis.Port, "Redis port")
	fs.StringVar(&o.Redis.Password, "cache.redis.password", o.Redis.Password, "Redis password")
	fs.IntVar(&o.Redis.Database, "cache.redis.database", o.Redis.Database, "Redis database number")
	fs.IntVar(&o.Redis.MaxRetries, "cache.redis.max-retries", o.Redis.MaxRetries, "Redis max retries")
	fs.IntVar(&o.Redis.PoolSize, "cache.redis.pool-size", o.Redis.PoolSize, "Redis connection pool size")
	fs.IntVar(&o.Redis.MinIdleConns, "cache.redis.min-idle-conns", o.Redis.MinIdleConns, "Redis minimum idle connections")
}

// Validate validates the cache options.
func (o *CacheOptions) Validate() error {
	if !o.Enabled {
		return nil
	}
	if o.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if o.Redis == nil {
		return fmt.Errorf("cache.redis is required when cache is enabled")
	}
	if o.Redis.Host == "" {
		return fmt.Errorf("cache.redis.host is required")
	}
	if o.Redis.Port <= 0 || o.Redis.Port > 65535 {
		return fmt.Errorf("cache.redis.port must be a valid port")
	}
	return nil
}
