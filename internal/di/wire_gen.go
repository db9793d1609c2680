// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"IncluScore/pkg/config"
	"IncluScore/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, err
	}
	codec := ProvideCodec()
	trainConfig := ProvideTrainConfig(cfg)
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	modelStore := ProvideModelStore(client, cfg)
	metrics := ProvideMetrics()
	manager := ProvideLifecycleManager(cfg, trainConfig, modelStore, logger, metrics)
	translator := ProvideTranslator(cfg)
	explainer := ProvideExplainer(translator, trainConfig)
	simulator := ProvideSimulator(codec, manager, translator, explainer)
	historyStore := ProvideHistoryStore(client, cfg, logger)
	redisCache, err := ProvideRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	service := ProvideCacheService(redisCache)
	scoreCache := ProvideScoreCache(service, cfg)
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	outcomePipeline := ProvideOutcomePipeline(producer, cfg, metrics)
	outcomePublisher := ProvideOutcomePublisher(outcomePipeline)
	scoringEngine := ProvideScoringEngine(codec, manager, translator, explainer, simulator, historyStore, scoreCache, outcomePublisher, metrics, logger)
	consumer, err := ProvideKafkaConsumer(cfg)
	if err != nil {
		return nil, err
	}
	outcomeHandler := ProvideOutcomeHandler(cfg, manager, metrics)
	redisQueue := ProvideRetrainQueue(logger, redisCache, manager)
	handler := ProvideHTTPHandler(logger, scoringEngine, redisQueue, cfg)
	app := ProvideApp(cfg, logger, scoringEngine, producer, consumer, outcomeHandler, outcomePipeline, redisQueue, client, handler)
	return app, nil
}
