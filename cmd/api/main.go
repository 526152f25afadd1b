package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/creator-scout/internal/bootstrap"
	"github.com/suPer8Hu/creator-scout/internal/chat"
	"github.com/suPer8Hu/creator-scout/internal/config"
	"github.com/suPer8Hu/creator-scout/internal/db"
	"github.com/suPer8Hu/creator-scout/internal/httpapi"
	"github.com/suPer8Hu/creator-scout/internal/httpapi/handlers"
	"github.com/suPer8Hu/creator-scout/internal/logging"
	"github.com/suPer8Hu/creator-scout/internal/metrics"
	"github.com/suPer8Hu/creator-scout/internal/store/rabbitmq"
	"github.com/suPer8Hu/creator-scout/internal/store/redisstore"
	"github.com/suPer8Hu/creator-scout/internal/task"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Log)
	metrics.MustRegister()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.AutoMigrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rs.Close()
	pctx, pcancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rs.Ping(pctx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable; stop requests will fail")
	}
	pcancel()

	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueuePrefix, bootstrap.TopicNames())
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit publisher")
	}
	defer pub.Close()

	tasks := task.NewDispatcher(task.NewStore(gdb, log), pub, log)
	reg := bootstrap.Providers(cfg)
	chatSvc := chat.NewService(chat.NewRepo(gdb), reg, tasks, cfg.ChatContextWindowSize, log)

	gin.SetMode(gin.ReleaseMode)
	h := handlers.NewHandler(chatSvc, tasks, rs, log)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, cfg.JWTSecret, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Strs("providers", reg.Names()).Msg("api started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http serve")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("api shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}
