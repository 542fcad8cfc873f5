package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fund-directory/config"
	_ "fund-directory/docs"
	"fund-directory/internal/handler"
	"fund-directory/internal/ports"
	"fund-directory/internal/repository"
	"fund-directory/internal/security"
	"fund-directory/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Fund Directory
// @version 1.0
// @description REST API сессий справочника фондов

// @host localhost:8080

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "путь к файлу конфигурации")
	migrate := pflag.Bool("migrate", true, "применить миграции перед запуском")
	pflag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("ошибка чтения .env: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}
	config.SetupLogger(cfg.Log)

	db, err := config.SetupDatabase(&cfg.DatabaseConfig)
	if err != nil {
		log.Fatalf("Не удалось подключиться к БД: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Errorf("Ошибка при закрытии БД: %v", err)
		}
	}()

	if *migrate {
		if err := db.RunMigrations(ctx); err != nil {
			log.Fatalf("Ошибка миграций: %v", err)
		}
	}

	redisClient, err := config.SetupRedis(&cfg.RedisConfig)
	if err != nil {
		log.Fatalf("Ошибка настройки Redis: %v", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient)
	if err := cacheRepo.Connect(ctx); err != nil {
		log.Warnf("Кэш недоступен, сервис работает без него: %v", err)
	}
	defer func() {
		if err := cacheRepo.Close(); err != nil {
			log.Errorf("Ошибка при закрытии Redis: %v", err)
		}
	}()

	var sinks []ports.SessionEventSink

	natsConn, err := config.NewNATSConnection(&cfg.NATS)
	if err != nil {
		log.Warnf("События сессий не будут публиковаться в NATS: %v", err)
	} else if natsConn != nil {
		defer func() {
			if err := natsConn.Drain(); err != nil {
				log.Errorf("Ошибка при закрытии NATS: %v", err)
			}
		}()
		sinks = append(sinks, service.NewNATSEventPublisher(natsConn, cfg.NATS.SubjectPrefix))
	}

	if cfg.S3Config.Bucket != "" {
		archive, err := service.NewIncidentArchive(ctx, &cfg.S3Config)
		if err != nil {
			log.Warnf("Архив инцидентов отключён: %v", err)
		} else {
			defer archive.Wait()
			sinks = append(sinks, archive)
		}
	}

	events := service.NewEventFanout(sinks...)
	log.Infof("получателей событий сессии: %d", events.Len())

	jwtService := security.NewJWTService(&cfg.JWT)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	userRepo := repository.NewUserRepository(db)

	ledgerService := service.NewLedgerService(refreshTokenRepo, cfg.JWT.RefreshTTL())
	sessionService := service.NewSessionService(jwtService, ledgerService, cacheRepo, events, &cfg.JWT, &cfg.Session)
	userVerifier := service.NewUserVerifier(userRepo)
	healthService := service.NewHealthService(cfg.Version, &cfg.Health,
		service.NewDatabaseChecker(db, &cfg.Health),
		service.NewRedisChecker(cacheRepo),
	)

	authHandler := handler.NewAuthenticationHandler(sessionService, userVerifier, handler.NewCookieWriter(&cfg.Cookies, &cfg.JWT))
	healthHandler := handler.NewHealthHandler(healthService)

	srv, router := config.SetupServer(cfg.ServerAddr, cfg.TrustProxyHeaders)
	router.Get("/swagger/*", httpSwagger.WrapHandler)

	setupHealthRoutes(router, healthHandler)
	setupAuthRoutes(router, authHandler, jwtService, sessionService, cacheRepo, cfg)

	runServer(ctx, srv)
}

func setupHealthRoutes(r chi.Router, h *handler.HealthHandler) {
	r.Get("/health", h.Health)
	r.Head("/health", h.HealthHead)
}

func setupAuthRoutes(r chi.Router, h *handler.AuthenticationHandler, jwtService *security.JWTService, revocations security.RevocationChecker, cache ports.CacheRepository, cfg *config.AppConfig) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.With(handler.RateLimit(cache, "login", &cfg.RateLimit)).Post("/login", h.Login)
			r.With(handler.RateLimit(cache, "refresh", &cfg.RateLimit)).Post("/refresh", h.RefreshToken)
			r.Post("/logout", h.Logout)
		})
		r.Group(func(r chi.Router) {
			r.Use(security.JWTMiddleware(jwtService, revocations))
			r.Get("/me", h.GetCurrentUser)
			r.Head("/me", h.GetCurrentUserHead)
			r.Post("/logout-all", h.LogoutAll)
		})
	})
}

func runServer(ctx context.Context, server *http.Server) {
	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("сервер запущен на %s", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("ошибка работы сервера: %v", err)
			return
		}
	case sig := <-signalChannel:
		log.Infof("получен сигнал %v остановки работы сервера", sig)
	}

	shutDownCtx, shutDownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutDownCancel()

	if err := server.Shutdown(shutDownCtx); err != nil {
		log.Errorf("ошибка при остановке сервера: %v", err)
	} else {
		log.Info("Сервер успешно остановлен")
	}
}
