package main

import (
	"log"
	"time"

	"github.com/arunvm123/reservationengine/booking"
	"github.com/arunvm123/reservationengine/cache"
	lrucache "github.com/arunvm123/reservationengine/cache/lru"
	rediscache "github.com/arunvm123/reservationengine/cache/redis"
	"github.com/arunvm123/reservationengine/clock"
	"github.com/arunvm123/reservationengine/config"
	"github.com/arunvm123/reservationengine/metrics"
	"github.com/arunvm123/reservationengine/policy"
	"github.com/arunvm123/reservationengine/repository/postgres"
	"github.com/arunvm123/reservationengine/saga"
	"github.com/arunvm123/reservationengine/webhook"
	"github.com/gin-gonic/gin"
)

// SetupRouter wires the postgres gateway, the two-tier availability cache,
// the policy validator and booking coordinator, and the webhook ingress
// into the gin engine, kept in the teacher's SetupRouter shape (build
// dependencies, build handler, register routes) but generalized from the
// Kafka-submit/poll flow to a synchronous confirm/cancel API.
func SetupRouter(cfg *config.Config) *gin.Engine {
	gw, err := postgres.NewGateway(cfg.Database, cfg.Deadlock)
	if err != nil {
		log.Fatal("Failed to initialize database gateway:", err)
	}

	bookingRepo := postgres.NewBookingRepository(gw.DB())
	inventoryRepo := postgres.NewInventoryRepository(gw.DB())
	catalogRepo := postgres.NewCatalogRepository(gw.DB())
	idempotencyRepo := postgres.NewIdempotencyRepository(gw.DB(), bookingRepo)
	outboxRepo := postgres.NewOutboxRepository(gw.DB())
	notificationRepo := postgres.NewNotificationRepository(gw.DB())
	webhookRepo := postgres.NewWebhookRepository(gw.DB())
	sagaRepo := postgres.NewSagaRepository(gw.DB())

	l1, err := lrucache.New(cfg.Cache.LRUSize)
	if err != nil {
		log.Fatal("Failed to initialize in-process cache:", err)
	}
	l2, err := rediscache.New(cfg.Redis.GetRedisURL(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to initialize Redis cache:", err)
	}
	tiered := cache.NewTiered(l1, l2)

	idemL1, err := lrucache.New(cfg.Cache.LRUSize)
	if err != nil {
		log.Fatal("Failed to initialize idempotency cache:", err)
	}
	idemCache := cache.NewIdempotencyCache(idemL1, time.Duration(cfg.Cache.DefaultTTLSec)*time.Second)

	c := clock.Real{}
	validator := policy.NewValidator(cfg.Booking, c)
	cancellation := policy.NewCancellationEvaluator(cfg.Cancellation)
	confirmSaga := saga.NewCoordinator(sagaRepo, gw, c)
	coordinator := booking.NewCoordinator(gw, bookingRepo, inventoryRepo, idempotencyRepo, outboxRepo,
		confirmSaga, validator, cancellation, c, cfg.Tentative, cfg.Idempotency, idemCache)
	resolver := booking.NewReferenceResolver(catalogRepo, inventoryRepo, bookingRepo)
	ingress := webhook.NewIngress(cfg.WebhookSecret, webhookRepo, notificationRepo, coordinator, c)

	jwtService := NewJWTService(cfg.JWTSecret)
	bookingHandler := NewBookingHandler(inventoryRepo, resolver, validator, coordinator, ingress,
		tiered, time.Duration(cfg.Cache.DefaultTTLSec)*time.Second, gw, c)

	r := gin.Default()
	r.Use(CORSMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(metrics.Middleware())

	r.GET("/health", bookingHandler.HealthCheck)
	r.GET("/metrics", metrics.Handler())

	public := r.Group("/v1/public")
	public.Use(RateLimitMiddleware(newAvailabilityLimiter()))
	public.GET("/availability", bookingHandler.GetAvailability)

	r.POST("/v1/webhooks/:provider", bookingHandler.Webhook)

	api := r.Group("/v1")
	api.Use(AuthMiddleware(jwtService))
	api.POST("/bookings", bookingHandler.CreateBooking)
	api.POST("/bookings/:bookingId/cancel", bookingHandler.CancelBooking)

	return r
}
