// Package pdfqa provides the PDF question-answering server implementation.
package pdfqa

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	logopt "github.com/kart-io/logger/option"
	goredis "github.com/redis/go-redis/v9"

	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/biz"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/handler"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/router"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/store"
	"github.com/miankhizer64/Quest-Gen/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/miankhizer64/Quest-Gen/pkg/llm/ollama"
	_ "github.com/miankhizer64/Quest-Gen/pkg/llm/openai"
	"github.com/miankhizer64/Quest-Gen/pkg/pool"
)

// Name is the name of the application.
const Name = "pdfqa"

// Config contains application-related configurations.
type Config struct {
	ServerOptions    *ServerOptions
	LogOptions       *logopt.LogOption
	MilvusOptions    *MilvusOptions
	EmbeddingOptions *LLMProviderOptions
	ChatOptions      *LLMProviderOptions
	PipelineOptions  *PipelineOptions
	CacheOptions     *CacheOptions
}

// Server represents the pdfqa server.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	storeClose      func()
	redisClose      func()
	poolClose       func()
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(_ context.Context) (*Server, error) {
	printBanner(cfg)

	// 1. 初始化日志
	if cfg.LogOptions.InitialFields == nil {
		cfg.LogOptions.InitialFields = map[string]interface{}{}
	}
	cfg.LogOptions.InitialFields["service.name"] = Name
	l, err := logger.New(cfg.LogOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(l)
	logger.Info("Starting pdfqa service...")

	// 2. 初始化 Milvus 向量存储
	vectorStore, err := store.NewMilvusStore(&store.MilvusConfig{
		Address:  cfg.MilvusOptions.Address,
		Username: cfg.MilvusOptions.Username,
		Password: cfg.MilvusOptions.Password,
		Database: cfg.MilvusOptions.Database,
		Timeout:  cfg.MilvusOptions.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	logger.Info("Vector store initialized")

	// 3. 初始化 Redis 客户端（用于查询缓存）
	var queryCache *biz.QueryCache
	var redisClose func()
	if cfg.CacheOptions.Enabled {
		redisOpts := cfg.CacheOptions.Redis
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:         fmt.Sprintf("%s:%d", redisOpts.Host, redisOpts.Port),
			Password:     redisOpts.Password,
			DB:           redisOpts.Database,
			MaxRetries:   redisOpts.MaxRetries,
			PoolSize:     redisOpts.PoolSize,
			MinIdleConns: redisOpts.MinIdleConns,
		})

		// 测试 Redis 连接，失败时禁用缓存而非中止启动
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warnw("failed to connect to redis, query cache will be disabled", "error", err.Error())
			_ = redisClient.Close()
		} else {
			queryCache = biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
				Enabled:   true,
				TTL:       cfg.CacheOptions.TTL,
				KeyPrefix: cfg.CacheOptions.KeyPrefix,
			})
			redisClose = func() { _ = redisClient.Close() }
			logger.Infow("Redis query cache initialized",
				"host", redisOpts.Host,
				"port", redisOpts.Port,
				"ttl", cfg.CacheOptions.TTL,
			)
		}
	} else {
		logger.Info("Query cache is disabled")
	}

	// 4. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
	)

	// 5. 初始化并发池
	embedPool, err := pool.New("pdfqa-embed", pool.EmbeddingConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}
	uploadPool, err := pool.New("pdfqa-upload", pool.IndexingConfig())
	if err != nil {
		embedPool.Release()
		return nil, fmt.Errorf("failed to create upload pool: %w", err)
	}

	// 6. 初始化 Biz 层
	p := cfg.PipelineOptions
	docCache := biz.NewDocumentCache()
	indexer := biz.NewIndexer(vectorStore, embedProvider, docCache, embedPool, uploadPool, &biz.IndexerConfig{
		ChunkSize:         p.ChunkSize,
		ChunkOverlap:      p.ChunkOverlap,
		BatchSize:         p.BatchSize,
		Collection:        p.Collection,
		EmbeddingDim:      p.EmbeddingDim,
		MaxUploadAttempts: p.MaxUploadAttempts,
	})

	serviceConfig := &biz.ServiceConfig{
		IndexerConfig: biz.DefaultIndexerConfig(p.Collection),
		RetrieverConfig: &biz.RetrieverConfig{
			TopK:           p.TopK,
			ScoreThreshold: p.ScoreThreshold,
			Collection:     p.Collection,
			PreviewLength:  100,
		},
		SynthesizerConfig: biz.DefaultSynthesizerConfig(),
	}
	service := biz.NewPDFQAService(vectorStore, embedProvider, chatProvider, docCache, queryCache, indexer, serviceConfig)
	logger.Infow("pdfqa service initialized",
		"collection", p.Collection,
		"chunk_size", p.ChunkSize,
		"top_k", p.TopK,
		"cache.enabled", queryCache != nil,
	)

	// 7. 初始化 Handler 与路由
	gin.SetMode(cfg.ServerOptions.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.MaxMultipartMemory = cfg.ServerOptions.MaxUploadSizeMB << 20

	pdfHandler := handler.NewPDFQAHandler(service, p.DataDir)
	router.Register(engine, pdfHandler)

	httpServer := &http.Server{
		Addr:         cfg.ServerOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ServerOptions.ReadTimeout,
		WriteTimeout: cfg.ServerOptions.WriteTimeout,
	}

	logger.Info("pdfqa service is ready")
	return &Server{
		httpServer:      httpServer,
		shutdownTimeout: cfg.ServerOptions.ShutdownTimeout,
		storeClose:      func() { _ = vectorStore.Close(context.Background()) },
		redisClose:      redisClose,
		poolClose: func() {
			embedPool.Release()
			uploadPool.Release()
		},
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if s.poolClose != nil {
			s.poolClose()
		}
		if s.redisClose != nil {
			s.redisClose()
		}
		if s.storeClose != nil {
			s.storeClose()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Milvus: %s\n", cfg.MilvusOptions.Address)
}
