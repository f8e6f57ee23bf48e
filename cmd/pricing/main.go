package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/wyfcoding/optionspricing/internal/pricing/application"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/optionspricing/internal/pricing/infrastructure/publisher"
	httphandler "github.com/wyfcoding/optionspricing/internal/pricing/interfaces/http"
	"github.com/wyfcoding/pkg/app"
	configpkg "github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/limiter"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/pkg/middleware"
)

// BootstrapName 服务标识。
const BootstrapName = "pricing"

// EngineConfig 定价引擎的参数上限与随机种子。
type EngineConfig struct {
	MaxSimulations int   `mapstructure:"max_simulations" toml:"max_simulations"`
	MaxPaths       int   `mapstructure:"max_paths"       toml:"max_paths"`
	MaxSteps       int   `mapstructure:"max_steps"       toml:"max_steps"`
	Seed           int64 `mapstructure:"seed"            toml:"seed"`
}

// Config 扩展配置结构。
type Config struct {
	configpkg.Config `mapstructure:",squash"`

	Engine EngineConfig `mapstructure:"engine" toml:"engine"`
}

// AppContext 应用资源上下文。
type AppContext struct {
	Config     *Config
	AppService *application.PricingApplicationService
	Streams    *application.RateStreamManager
	Metrics    *metrics.Metrics
	Limiter    limiter.Limiter
}

func main() {
	if err := app.NewBuilder(BootstrapName).
		WithConfig(&Config{}).
		WithService(initService).
		WithGin(registerGin).
		WithGinMiddleware(middleware.CORS()).
		Build().
		Run(); err != nil {
		slog.Error("service bootstrap failed", "error", err)
	}
}

func registerGin(e *gin.Engine, srv any) {
	ctx := srv.(*AppContext)

	if ctx.Config.Server.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	e.Use(middleware.RateLimitWithLimiter(ctx.Limiter))

	httpHandler := httphandler.NewPricingHandler(ctx.AppService, ctx.Streams)
	httpHandler.RegisterRoutes(&e.RouterGroup)

	slog.Info("HTTP routes registered", "service", BootstrapName)
}

func initService(cfg any, m *metrics.Metrics) (any, func(), error) {
	c := cfg.(*Config)
	bootLog := slog.With("module", "bootstrap")

	requests := m.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_ops_total",
		Help: "The total number of pricing engine operations",
	}, []string{"operation", "status"})
	latency := m.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pricing_duration_seconds",
		Help:    "The duration of pricing engine operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	appService := application.NewPricingApplicationService(application.EngineLimits{
		MaxSimulations: c.Engine.MaxSimulations,
		MaxPaths:       c.Engine.MaxPaths,
		MaxSteps:       c.Engine.MaxSteps,
	}, c.Engine.Seed, requests, latency)

	// Kafka 未配置时利率流接口返回不可用, 其余接口不受影响.
	var producer *kafka.Producer
	var ratePublisher domain.RatePublisher
	if len(c.MessageQueue.Kafka.Brokers) > 0 {
		producer = kafka.NewProducer(c.MessageQueue.Kafka, logging.Default())
		ratePublisher = publisher.NewKafkaRatePublisher(producer)
		bootLog.Info("kafka rate publisher enabled", "topic", c.MessageQueue.Kafka.Topic)
	} else {
		bootLog.Info("kafka brokers not configured, rate streaming disabled")
	}
	streams := application.NewRateStreamManager(ratePublisher)

	rateLimiter := limiter.NewLocalLimiter(rate.Limit(c.RateLimit.Rate), c.RateLimit.Burst)

	cleanup := func() {
		bootLog.Info("performing graceful shutdown...")
		streams.Close()
		if producer != nil {
			if err := producer.Close(); err != nil {
				bootLog.Error("failed to close kafka producer", "error", err)
			}
		}
	}

	return &AppContext{
		Config:     c,
		AppService: appService,
		Streams:    streams,
		Metrics:    m,
		Limiter:    rateLimiter,
	}, cleanup, nil
}
