package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/wanderpeak/tours-api/internal/domain"
	apihttp "github.com/wanderpeak/tours-api/internal/http"
	"github.com/wanderpeak/tours-api/internal/http/handlers"
	mw "github.com/wanderpeak/tours-api/internal/http/middleware"
	"github.com/wanderpeak/tours-api/internal/mailer"
	"github.com/wanderpeak/tours-api/internal/payments"
	"github.com/wanderpeak/tours-api/internal/repo/postgres"
	"github.com/wanderpeak/tours-api/internal/service"
	"github.com/wanderpeak/tours-api/internal/web"
	"github.com/wanderpeak/tours-api/pkg/config"
	"github.com/wanderpeak/tours-api/pkg/database"
	"github.com/wanderpeak/tours-api/pkg/events"
	"github.com/wanderpeak/tours-api/pkg/logger"
)

const (
	rateLimit       = 100
	rateLimitWindow = time.Hour
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	devMode := !cfg.App.IsProduction()

	ctx := context.Background()

	if err := database.Migrate(cfg.Database.URL); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	redisOpts.DB = cfg.Redis.DB
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	var bus events.EventBus = events.NoopBus{}
	if cfg.NATS.Enabled {
		natsBus, err := events.NewNATSEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		bus = natsBus
	}
	defer bus.Close()

	// Repositories
	userRepo := postgres.NewUserRepository(pool)
	tourRepo := postgres.NewTourRepository(pool)
	reviewRepo := postgres.NewReviewRepository(pool)
	bookingRepo := postgres.NewBookingRepository(pool)

	// Services
	mail := mailer.New(cfg.Email)
	authService := service.NewAuthService(userRepo, mail, bus, cfg.Auth, cfg.App.BaseURL)
	aggregator := service.NewRatingAggregator(reviewRepo, tourRepo, bus)
	checkout := payments.NewCheckout(cfg.Stripe, cfg.App.BaseURL)

	renderer, err := web.NewRenderer()
	if err != nil {
		logger.Error("Failed to load templates", "error", err)
		os.Exit(1)
	}

	// Handlers
	authMW := mw.NewAuth(userRepo, cfg.Auth.JWTSecret)
	limiter := mw.NewRateLimiter(redisClient, rateLimit, rateLimitWindow)

	toursRes := &handlers.Resource[domain.Tour, domain.CreateTourRequest, domain.UpdateTourRequest]{
		Name:     "tour",
		Allowed:  handlers.TourFilterColumns,
		DevMode:  devMode,
		ListFn:   tourRepo.List,
		GetFn:    tourRepo.Get,
		CreateFn: tourRepo.Create,
		UpdateFn: tourRepo.Update,
		DeleteFn: tourRepo.Delete,
	}

	reviewsRes := &handlers.Resource[domain.Review, domain.CreateReviewRequest, domain.UpdateReviewRequest]{
		Name:     "review",
		Allowed:  handlers.ReviewFilterColumns,
		DevMode:  devMode,
		GetFn:    reviewRepo.Get,
		CreateFn: reviewRepo.Create,
		UpdateFn: reviewRepo.Update,
		DeleteFn: reviewRepo.Delete,
		AfterWrite: func(ctx context.Context, rv *domain.Review) {
			if err := aggregator.Recompute(ctx, rv.TourID, rv.ID); err != nil {
				logger.ErrorContext(ctx, "Failed to recompute tour ratings",
					"error", err, "tour_id", rv.TourID)
			}
		},
	}

	bookingsRes := &handlers.Resource[domain.Booking, domain.CreateBookingRequest, domain.UpdateBookingRequest]{
		Name:     "booking",
		Allowed:  handlers.BookingFilterColumns,
		DevMode:  devMode,
		ListFn:   bookingRepo.List,
		GetFn:    bookingRepo.Get,
		CreateFn: bookingRepo.Create,
		UpdateFn: bookingRepo.Update,
		DeleteFn: bookingRepo.Delete,
	}

	router := apihttp.NewRouter(apihttp.Deps{
		Auth:        authMW,
		RateLimiter: limiter,
		AuthHandler: handlers.NewAuthHandler(authService, cfg.Auth.CookieTTLDays, cfg.App.IsProduction(), devMode),
		Users:       handlers.NewUsersHandler(userRepo, devMode),
		Tours:       handlers.NewToursHandler(toursRes, tourRepo),
		Reviews:     handlers.NewReviewsHandler(reviewsRes, reviewRepo),
		Bookings:    handlers.NewBookingsHandler(bookingsRes, checkout, tourRepo, userRepo, bookingRepo, bus),
		Views:       handlers.NewViewsHandler(renderer, tourRepo, reviewRepo, bookingRepo),
		DevMode:     devMode,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(shutdownCtx)

	g.Go(func() error {
		return service.NewNotifier(bus).Run(gctx)
	})

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Server.Port, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
