package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"

	"github.com/md-rashed-zaman/bookwell/libs/config"
	"github.com/md-rashed-zaman/bookwell/libs/grpcx"
	"github.com/md-rashed-zaman/bookwell/libs/httpx"
	"github.com/md-rashed-zaman/bookwell/libs/kafkax"
	otelx "github.com/md-rashed-zaman/bookwell/libs/otel"
	"github.com/md-rashed-zaman/bookwell/libs/runtime"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/admin"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/customers"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/deposits"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/fixtures"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/outbox"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext(context.Background())
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	be, err := openBackend(ctx, logger)
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer be.close()

	if path := config.String("FIXTURES_FILE", ""); path != "" {
		if err := fixtures.LoadFile(ctx, path, be.store); err != nil {
			logger.Error("fixtures load failed", "path", path, "err", err)
			panic(err)
		}
		logger.Info("fixtures loaded", "path", path)
	}

	var directory engine.CustomerDirectory = customers.NewLocal(be.store, logger)
	if addr := config.String("CUSTOMER_DIRECTORY_GRPC_ADDR", ""); addr != "" {
		remote, err := customers.NewRemote(addr)
		if err != nil {
			logger.Error("customer directory client init failed", "addr", addr, "err", err)
			panic(err)
		}
		defer remote.Close()
		directory = remote
		logger.Info("using remote customer directory", "addr", addr)
	}

	granularity, err := config.Int("SLOT_GRANULARITY_MINUTES", 15)
	if err != nil {
		panic(err)
	}
	maxRange, err := config.Int("MAX_RANGE_DAYS", 62)
	if err != nil {
		panic(err)
	}
	eng := engine.New(be.store, directory, outbox.NewNotifier(be.store), logger, engine.Config{
		Granularity:  time.Duration(granularity) * time.Minute,
		MaxRangeDays: maxRange,
	})
	adminSvc := admin.NewService(be.store, logger)

	brokers := config.String("KAFKA_BROKERS", "")
	var writer outbox.MessageWriter
	if brokers != "" {
		w := kafkax.NewWriter(brokers)
		defer w.Close()
		writer = w
	}
	publisher := outbox.NewPublisher(be.store, writer, logger, outbox.PublisherConfig{
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	if brokers != "" {
		topics := splitList(config.String("KAFKA_PLAN_TOPICS",
			consumer.TopicSubscriptionActivated+","+consumer.TopicSubscriptionCanceled))
		planConsumer := consumer.New(logger, be.inbox, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topics:  topics,
		}, consumer.PlanLimitsHandler(be.store, logger))
		go planConsumer.Run(ctx)
	}

	checks := []runtime.ReadyCheck{be.ready}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers), Optional: true})
	}

	limit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	rateLimit := httpx.NewRateLimiter(limit, time.Minute).Middleware()
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
		rateLimit = httpx.NewRedisRateLimiter(rdb, limit, time.Minute, service).Middleware(logger, true)
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb), Optional: true})
	}

	tolerance, err := config.Duration("STRIPE_WEBHOOK_TOLERANCE", 5*time.Minute)
	if err != nil {
		panic(err)
	}
	webhook := deposits.NewHandler(eng, config.String("STRIPE_WEBHOOK_SECRET", ""), tolerance, logger)

	mux := runtime.NewBaseMux(checks...)
	handlers.Register(mux,
		handlers.NewBookingHandler(eng, logger),
		handlers.NewAdminHandler(adminSvc, logger),
		webhook.StripeWebhook,
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.DefaultCORSPolicy(splitList(config.String("CORS_ALLOWED_ORIGINS", "")))),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		rateLimit,
		httpx.WithBodyLimit(1<<20),
	)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(httpHandler, "booking"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	grpcSrv := grpc.NewServer(grpcx.ServerOptions(grpcx.UnaryServerLogInterceptor(logger))...)
	health := grpcserver.Register(grpcSrv, eng, logger)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	eng.Wait()
	logger.Info("booking service stopped")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
