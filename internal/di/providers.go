package di

import (
	"context"
	"fmt"
	"time"

	"IncluScore/internal/domain/repository"
	domservice "IncluScore/internal/domain/service"
	"IncluScore/internal/handler/api"
	mid "IncluScore/internal/middleware"
	internalrepo "IncluScore/internal/repository"
	"IncluScore/internal/services/explain"
	"IncluScore/internal/services/feature"
	"IncluScore/internal/services/lifecycle"
	"IncluScore/internal/services/scoring"
	"IncluScore/internal/services/simulate"
	"IncluScore/internal/usecase"
	pkgcache "IncluScore/pkg/cache"
	pkgch "IncluScore/pkg/clickhouse"
	"IncluScore/pkg/config"
	xhttp "IncluScore/pkg/http"
	pkgkafka "IncluScore/pkg/kafka"
	applogger "IncluScore/pkg/logger"
	"IncluScore/pkg/metrics"
	"IncluScore/pkg/queue"
	"IncluScore/pkg/server"

	kafkago "github.com/segmentio/kafka-go"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		`CREATE TABLE IF NOT EXISTS ` + db + `.score_history (
            id String,
            beneficiary_id String,
            raw_score Float64,
            display_score Int32,
            risk_category String,
            need_category String,
            recommendation String,
            confidence Float64,
            feature_values String,
            impacts String,
            explanation String,
            suggestions String,
            trigger String,
            model_version_id String,
            created_at DateTime64(3)
        ) ENGINE=MergeTree ORDER BY (beneficiary_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS ` + db + `.model_versions (
            id String,
            algorithm String,
            state String,
            params String,
            training_data_size Int64,
            accuracy Float64,
            precision Float64,
            recall Float64,
            f1 Float64,
            created_at DateTime64(3)
        ) ENGINE=MergeTree ORDER BY created_at`,
		`CREATE TABLE IF NOT EXISTS ` + db + `.model_activations (
            version_id String,
            activated_at DateTime64(3)
        ) ENGINE=MergeTree ORDER BY activated_at`,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedisCache creates the Redis cache client.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix("incluscore"),
		pkgcache.WithRedisPool(20, 5, 3*time.Second),
	)
}

// ProvideCacheService layers an in-memory cache over Redis.
func ProvideCacheService(redisCache *pkgcache.RedisCache) pkgcache.Service {
	return pkgcache.NewLayeredCache(redisCache, pkgcache.WithLayeredMemorySize(5000))
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHistoryStore creates the ClickHouse audit trail repository.
func ProvideHistoryStore(chClient *pkgch.Client, cfg *config.Config, logger *applogger.Logger) repository.HistoryStore {
	store := internalrepo.NewCHHistoryStore(chClient, cfg.ClickHouse.Database+".score_history")
	store.SetLogger(logger)
	return store
}

// ProvideModelStore creates the ClickHouse model version repository.
func ProvideModelStore(chClient *pkgch.Client, cfg *config.Config) repository.ModelStore {
	return internalrepo.NewCHModelStore(chClient,
		cfg.ClickHouse.Database+".model_versions",
		cfg.ClickHouse.Database+".model_activations",
	)
}

// ProvideScoreCache creates the latest-score cache repository.
func ProvideScoreCache(cache pkgcache.Service, cfg *config.Config) repository.ScoreCache {
	return internalrepo.NewCachedScoreStore(cache, cfg.Scoring.CacheTTL)
}

// ProvideOutcomePipeline builds the buffering pipeline in front of Kafka.
func ProvideOutcomePipeline(producer *pkgkafka.Producer, cfg *config.Config, m repository.Metrics) *mid.OutcomePipeline {
	pub := internalrepo.NewKafkaOutcomePublisher(producer, cfg.Kafka.OutcomesTopic)
	return mid.NewOutcomePipeline(pub, m,
		mid.WithMaxRPS(10),
		mid.WithBufferSize(2000),
	)
}

// ProvideOutcomePublisher exposes the pipeline as the publisher port.
func ProvideOutcomePublisher(pipeline *mid.OutcomePipeline) repository.OutcomePublisher {
	return pipeline
}

// ProvideCodec creates the feature vector codec.
func ProvideCodec() domservice.Codec {
	return feature.NewCodec()
}

// ProvideTranslator creates the raw-to-display score translator.
func ProvideTranslator(cfg *config.Config) *scoring.Translator {
	return scoring.NewTranslator(
		scoring.Scale{Min: cfg.Scoring.MinScore, Max: cfg.Scoring.MaxScore},
		scoring.Thresholds{Low: cfg.Scoring.LowRiskCutoff, Medium: cfg.Scoring.MediumRiskCutoff},
	)
}

// ProvideTrainConfig builds the SGD hyperparameters from config.
func ProvideTrainConfig(cfg *config.Config) scoring.TrainConfig {
	tc := scoring.DefaultTrainConfig()
	tc.Eta0 = cfg.Model.Eta0
	tc.Alpha = cfg.Model.Alpha
	tc.Epochs = cfg.Model.Epochs
	tc.Seed = cfg.Model.Seed
	return tc
}

// ProvideLifecycleManager creates the model lifecycle manager.
func ProvideLifecycleManager(cfg *config.Config, tc scoring.TrainConfig, store repository.ModelStore, logger *applogger.Logger, m repository.Metrics) *lifecycle.Manager {
	return lifecycle.NewManager(lifecycle.Config{
		RetrainThreshold: cfg.Model.RetrainThreshold,
		BootstrapSize:    cfg.Model.BootstrapSize,
		Train:            tc,
	}, store, logger, m)
}

// ProvideExplainer creates the score explainer.
func ProvideExplainer(translator *scoring.Translator, tc scoring.TrainConfig) domservice.Explainer {
	return explain.NewExplainer(translator, tc)
}

// ProvideSimulator creates the what-if simulator.
func ProvideSimulator(codec domservice.Codec, manager *lifecycle.Manager, translator *scoring.Translator, explainer domservice.Explainer) domservice.Simulator {
	return simulate.NewSimulator(codec, manager, translator, explainer)
}

// ProvideScoringEngine wires the full scoring use case.
func ProvideScoringEngine(
	codec domservice.Codec,
	manager *lifecycle.Manager,
	translator *scoring.Translator,
	explainer domservice.Explainer,
	simulator domservice.Simulator,
	history repository.HistoryStore,
	cache repository.ScoreCache,
	outcomes repository.OutcomePublisher,
	m repository.Metrics,
	logger *applogger.Logger,
) *usecase.ScoringEngine {
	return usecase.NewScoringEngine(codec, manager, translator, explainer, simulator, history, cache, outcomes, m, logger)
}

// ProvideOutcomeHandler registers the consumer handler for the outcomes topic.
func ProvideOutcomeHandler(cfg *config.Config, manager *lifecycle.Manager, m repository.Metrics) *usecase.OutcomeHandler {
	return usecase.NewOutcomeHandler(cfg.Kafka.OutcomesTopic, manager, m)
}

// ProvideRetrainQueue creates the redis-backed retrain job queue.
func ProvideRetrainQueue(logger *applogger.Logger, redisCache *pkgcache.RedisCache, manager *lifecycle.Manager) *queue.RedisQueue {
	q := queue.NewRedisQueue(logger, &queue.QueueConfig{
		Workers:    1,
		QueueSize:  16,
		RetryLimit: 2,
		RetryDelay: 30 * time.Second,
	}, redisCache.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewRetrainJob(manager, logger))
	return q
}

// ProvideHTTPHandler creates the Echo scoring handler.
func ProvideHTTPHandler(logger *applogger.Logger, engine *usecase.ScoringEngine, retrainQ *queue.RedisQueue, cfg *config.Config) xhttp.Handler {
	return api.NewScoringEchoHandler(logger, engine, retrainQ,
		cfg.Simulation.RateLimitRPS, cfg.Simulation.RateLimitBurst)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	engine *usecase.ScoringEngine,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	oh *usecase.OutcomeHandler,
	pipeline *mid.OutcomePipeline,
	retrainQ *queue.RedisQueue,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NewHookChain(consumeHook(logger)))
	}
	if cfg.Logging.AggregateTopic != "" && producer != nil {
		logger.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Logging.AggregateTopic,
			Publisher:      kafkaLogSink{producer: producer},
		})
	}
	return server.New(cfg, logger, engine, consumer, oh, pipeline, retrainQ, chClient, httpHandler)
}

// kafkaLogSink forwards aggregated error logs to a Kafka topic.
type kafkaLogSink struct {
	producer *pkgkafka.Producer
}

func (s kafkaLogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.producer.Publish(ctx, topic, nil, payload)
}

// consumeHook stamps start time and trace id on each consumed message and
// logs handler failures.
func consumeHook(l *applogger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafkago.Message, data []byte) (context.Context, kafkago.Message, []byte, error) {
			ctx = pkgkafka.WithStartTime(ctx, time.Now())
			ctx = pkgkafka.WithTraceID(ctx, pkgkafka.ExtractTraceID(km))
			return ctx, km, data, nil
		},
		Err: func(_ context.Context, topic string, _ kafkago.Message, _ []byte, err error) {
			l.Error("outcome consume failed",
				applogger.String("topic", topic),
				applogger.Error(err))
		},
	}
}
