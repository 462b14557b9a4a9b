// Package tutorsvc wires the tutoring service: storage, model providers,
// the ingestion pipeline and the HTTP API.
package tutorsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/tutor-x/internal/tutor/biz"
	"github.com/kart-io/tutor-x/internal/tutor/handler"
	"github.com/kart-io/tutor-x/internal/tutor/metrics"
	"github.com/kart-io/tutor-x/internal/tutor/parser"
	"github.com/kart-io/tutor-x/internal/tutor/queue"
	"github.com/kart-io/tutor-x/internal/tutor/router"
	"github.com/kart-io/tutor-x/internal/tutor/store"
	"github.com/kart-io/tutor-x/pkg/component/database"
	"github.com/kart-io/tutor-x/pkg/component/milvus"
	"github.com/kart-io/tutor-x/pkg/component/mongodb"
	natscomp "github.com/kart-io/tutor-x/pkg/component/nats"
	rediscomp "github.com/kart-io/tutor-x/pkg/component/redis"
	"github.com/kart-io/tutor-x/pkg/infra/app"
	"github.com/kart-io/tutor-x/pkg/infra/pool"
	"github.com/kart-io/tutor-x/pkg/infra/server"
	"github.com/kart-io/tutor-x/pkg/infra/tracing"
	"github.com/kart-io/tutor-x/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/tutor-x/pkg/llm/ollama"
	_ "github.com/kart-io/tutor-x/pkg/llm/openai"
	"github.com/kart-io/tutor-x/pkg/llm/resilience"
	dbopts "github.com/kart-io/tutor-x/pkg/options/database"
	httpopts "github.com/kart-io/tutor-x/pkg/options/http"
	llmopts "github.com/kart-io/tutor-x/pkg/options/llm"
	logopts "github.com/kart-io/tutor-x/pkg/options/logger"
	milvusopts "github.com/kart-io/tutor-x/pkg/options/milvus"
	mongoopts "github.com/kart-io/tutor-x/pkg/options/mongodb"
	natsopts "github.com/kart-io/tutor-x/pkg/options/nats"
	redisopts "github.com/kart-io/tutor-x/pkg/options/redis"
	tracingopts "github.com/kart-io/tutor-x/pkg/options/tracing"
)

// Name is the name of the application.
const Name = "tutor"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	TracingOptions   *tracingopts.Options
	DatabaseOptions  *dbopts.Options
	MilvusOptions    *milvusopts.Options
	RedisOptions     *redisopts.Options
	MongoDBOptions   *mongoopts.Options
	NATSOptions      *natsopts.Options
	LLMOptions       *llmopts.ProviderOptions
	IngestOptions    *IngestOptions
	RetrievalOptions *RetrievalOptions
	ParserOptions    *ParserOptions
	StorageOptions   *StorageOptions
	HandlerOptions   *HandlerOptions
}

// Server represents the tutoring server.
type Server struct {
	srv     *server.Manager
	closers []func(ctx context.Context)
}

// NewServer initializes and returns a new Server instance. On error every
// resource opened so far is released.
func (cfg *Config) NewServer(ctx context.Context) (_ *Server, err error) {
	printBanner(cfg)
	s := &Server{}
	defer func() {
		if err != nil {
			s.close(context.Background())
		}
	}()

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting tutor service...")

	// 2. 初始化链路追踪
	if cfg.TracingOptions.ServiceName == "" {
		cfg.TracingOptions.ServiceName = Name
	}
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.onClose(func(ctx context.Context) { _ = tp.Shutdown(ctx) })

	// 3. 初始化关系型数据库
	db, err := database.New(ctx, cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	s.onClose(func(context.Context) { _ = database.Close(db) })
	factory := store.NewFactory(db)
	if cfg.DatabaseOptions.Migrate {
		if err := factory.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	logger.Infow("Database initialized", "driver", cfg.DatabaseOptions.Driver)

	// 4. 初始化 Milvus
	milvusClient, err := milvus.New(ctx, cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	s.onClose(func(ctx context.Context) { _ = milvusClient.Close(ctx) })
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare milvus collection: %w", err)
	}
	vectors := store.NewMilvusStore(milvusClient)
	logger.Infow("Milvus initialized", "collection", cfg.MilvusOptions.Collection)

	// 5. 初始化 Redis（检查点、状态事件、向量缓存）
	var redisClient *goredis.Client
	if cfg.StorageOptions.NeedsRedis() || cfg.LLMOptions.CacheTTL > 0 {
		redisClient, err = rediscomp.New(ctx, cfg.RedisOptions)
		switch {
		case err == nil:
			rc := redisClient
			s.onClose(func(context.Context) { _ = rc.Close() })
			logger.Infow("Redis initialized", "addr", cfg.RedisOptions.Addr())
		case cfg.StorageOptions.NeedsRedis():
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		default:
			logger.Warnw("Redis unavailable, embedding cache disabled", "error", err.Error())
			redisClient = nil
		}
	}

	steps, events := cfg.auxStores(redisClient)

	// 6. 初始化文件存储
	blobs, err := cfg.blobStore(ctx, s)
	if err != nil {
		return nil, err
	}

	// 7. 初始化 LLM 供应商
	raw, err := llm.NewProvider(cfg.LLMOptions.Provider, cfg.LLMOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm provider: %w", err)
	}
	provider := resilience.Wrap(raw, resilience.DefaultRetryConfig(), &resilience.CircuitBreakerConfig{
		MaxFailures:      cfg.LLMOptions.BreakerMaxFailures,
		Timeout:          cfg.LLMOptions.BreakerTimeout,
		HalfOpenMaxCalls: 1,
	}, resilience.NewLimiter(cfg.LLMOptions.RateLimit, cfg.LLMOptions.RateBurst))

	var embedProvider llm.EmbeddingProvider = provider
	if redisClient != nil && cfg.LLMOptions.CacheTTL > 0 {
		embedProvider = llm.NewCachedEmbeddingProvider(provider, redisClient, &llm.EmbeddingCacheConfig{
			Enabled:   true,
			TTL:       cfg.LLMOptions.CacheTTL,
			KeyPrefix: cfg.StorageOptions.KeyPrefix + "emb:" + cfg.LLMOptions.EmbedModel + ":",
		})
	}
	embedder := biz.NewEmbedder(embedProvider, cfg.MilvusOptions.Dimension)
	logger.Infow("LLM provider initialized",
		"provider", cfg.LLMOptions.Provider,
		"embed_model", cfg.LLMOptions.EmbedModel,
		"chat_model", cfg.LLMOptions.ChatModel,
	)

	// 8. 初始化文档解析
	var remote biz.Parser
	if cfg.ParserOptions.APIKey != "" {
		lp, err := parser.NewLlamaParse(cfg.ParserOptions.LlamaParseConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize parser: %w", err)
		}
		remote = lp
	} else {
		logger.Warn("Parser API key not set, only text and HTML materials can be ingested")
	}
	parsers := parser.NewRouter(remote)

	// 9. 初始化指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// 10. 初始化摄取流水线
	pipeline := biz.NewPipeline(biz.PipelineDeps{
		Factory:  factory,
		Blobs:    blobs,
		Vectors:  vectors,
		Steps:    steps,
		Events:   events,
		Parser:   parsers,
		Notation: biz.NewNotationExtractor(provider, cfg.IngestOptions.NotationBudget),
		Embedder: embedder,
		Metrics:  m,
	})
	ingest := biz.NewIngestHandler(pipeline, factory.Documents(), events, m)

	workers, err := pool.New("ingest", &pool.Config{
		Capacity:       cfg.IngestOptions.Workers,
		ExpiryDuration: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest pool: %w", err)
	}
	s.onClose(func(context.Context) { workers.Release() })

	// 11. 初始化摄取队列
	runnables, publisher, err := cfg.ingestQueue(ctx, s, ingest, workers)
	if err != nil {
		return nil, err
	}

	// 12. 初始化业务服务与 Handler
	retriever := biz.NewRetriever(vectors, factory.Chunks(), cfg.RetrievalOptions.RetrieverConfig(), m)
	tutorHandler := handler.NewTutorHandler(
		biz.NewUploadService(factory, blobs, steps, publisher),
		biz.NewChatService(factory, embedder, retriever, provider, cfg.RetrievalOptions.Target, m),
		biz.NewQuestionService(factory, provider, m),
		biz.NewCatalogService(factory, steps, publisher),
		events,
		cfg.HandlerOptions.Config(),
	)

	// 13. 注册路由
	engine := router.NewEngine(cfg.HTTPOptions)
	router.Register(engine, tutorHandler, registry,
		router.HealthCheck{Name: "database", Check: func(ctx context.Context) error { return database.Ping(ctx, db) }},
		router.HealthCheck{Name: "milvus", Check: milvusClient.Ping},
	)

	// 14. 初始化服务器
	s.srv = server.NewManager(cfg.HTTPOptions.ShutdownTimeout, server.NewHTTPServer(cfg.HTTPOptions, engine))
	s.srv.AddServer(biz.NewWatchdog(factory.Documents(), events, cfg.IngestOptions.WatchdogConfig(), m))
	for _, r := range runnables {
		s.srv.AddServer(r)
	}

	logger.Infow("Tutor service is ready", "addr", cfg.HTTPOptions.Addr)
	return s, nil
}

// auxStores selects the checkpoint and status event backends.
func (cfg *Config) auxStores(redisClient *goredis.Client) (store.StepStore, store.EventBroker) {
	var steps store.StepStore = store.NewMemoryStepStore()
	if cfg.StorageOptions.Checkpoints == BackendRedis {
		steps = store.NewRedisStepStore(redisClient, cfg.StorageOptions.KeyPrefix+"step:", cfg.StorageOptions.CheckpointTTL)
	}
	var events store.EventBroker = biz.NewMemoryBroker(16)
	if cfg.StorageOptions.Events == BackendRedis {
		events = store.NewRedisEventBroker(redisClient, cfg.StorageOptions.KeyPrefix+"status:")
	}
	logger.Infow("Auxiliary stores initialized",
		"checkpoints", cfg.StorageOptions.Checkpoints,
		"events", cfg.StorageOptions.Events,
	)
	return steps, events
}

func (cfg *Config) blobStore(ctx context.Context, s *Server) (store.BlobStore, error) {
	if cfg.StorageOptions.Blob == BackendGridFS {
		client, err := mongodb.New(ctx, cfg.MongoDBOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
		}
		s.onClose(func(ctx context.Context) { _ = client.Close(ctx) })
		logger.Infow("GridFS blob store initialized", "bucket", cfg.MongoDBOptions.Bucket)
		return store.NewGridFSBlobStore(client), nil
	}

	blobs, err := store.NewLocalBlobStore(cfg.StorageOptions.LocalRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local blob store: %w", err)
	}
	logger.Infow("Local blob store initialized", "root", cfg.StorageOptions.LocalRoot)
	return blobs, nil
}

// ingestQueue builds the event transport: JetStream when enabled, otherwise
// the in-process queue.
func (cfg *Config) ingestQueue(ctx context.Context, s *Server, h queue.EventHandler, workers *pool.Pool) ([]server.Runnable, biz.IngestPublisher, error) {
	if !cfg.NATSOptions.Enabled {
		local := queue.NewLocal(h, workers, cfg.IngestOptions.LocalConfig())
		logger.Infow("In-process ingest queue initialized", "max_attempts", cfg.IngestOptions.MaxAttempts)
		return []server.Runnable{local}, local, nil
	}

	client, err := natscomp.New(cfg.NATSOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize nats: %w", err)
	}
	s.onClose(func(context.Context) { _ = client.Close() })

	consumer, err := client.EnsureConsumer(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare jetstream consumer: %w", err)
	}
	cc := queue.DefaultConsumerConfig()
	cc.MaxDeliver = cfg.NATSOptions.MaxDeliver
	cc.BatchSize = cfg.IngestOptions.Workers

	logger.Infow("JetStream ingest queue initialized",
		"stream", cfg.NATSOptions.Stream,
		"subject", cfg.NATSOptions.Subject,
	)
	return []server.Runnable{queue.NewConsumer(consumer, h, workers, cc)},
		queue.NewJetStreamPublisher(client.JetStream(), cfg.NATSOptions.Subject), nil
}

func (s *Server) onClose(fn func(ctx context.Context)) {
	s.closers = append(s.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (s *Server) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i](ctx)
	}
	s.closers = nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.close(context.Background())
	return s.srv.Run(ctx)
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s...\n", Name)
	fmt.Printf("  LLM: %s (embed=%s, chat=%s)\n", cfg.LLMOptions.Provider, cfg.LLMOptions.EmbedModel, cfg.LLMOptions.ChatModel)
	fmt.Printf("  Database: %s\n", cfg.DatabaseOptions.Driver)
	fmt.Printf("  Queue: nats=%v\n", cfg.NATSOptions.Enabled)
}
