package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PitchChat/middleware"
	"PitchChat/pkg/cache"
	"PitchChat/pkg/config"
	"PitchChat/pkg/database"
	"PitchChat/pkg/logger"
	"PitchChat/pkg/realtime"
	"PitchChat/pkg/services"
	"PitchChat/pkg/token"
	"PitchChat/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Setup(config.LogLevel, config.IsProduction)
	if config.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(config.DBDriver, config.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	profiles := cache.New(time.Duration(config.ProfileCacheTTLSeconds)*time.Second, config.ProfileCacheMaxItems)
	defer profiles.Stop()
	limiter := middleware.NewLimiterStore(config.RateLimitRPM, config.RateLimitBurst, time.Minute)
	defer limiter.Stop()

	chat := services.NewChatService(db, nil, profiles)
	hub := realtime.NewHub(chat, realtime.Options{
		EventsPerSecond: float64(config.WSEventsPerSecond),
		EventBurst:      config.WSEventBurst,
	})
	chat.SetNotifier(hub)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:         db,
		Chat:       chat,
		Hub:        hub,
		Tokens:     token.NewManager(config.JWTSecret, 0),
		Limiter:    limiter,
		CookieName: config.AuthCookieName,
	})

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("app_env", config.AppEnv).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Shutdown()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
