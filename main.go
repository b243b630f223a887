package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RentChat/config"
	"RentChat/logger"
	authmw "RentChat/middleware/security"
	httpapi "RentChat/module/chat/service"
	"RentChat/module/chat/store"
	"RentChat/service/chat"
	"RentChat/service/chat/handlers"
	"RentChat/service/media"
	"RentChat/service/mgo"
	"RentChat/service/storage"
	"RentChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	ctx := context.Background()

	var st store.ConversationStore
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("[main] using the in-memory store; data will not survive a restart")
		st = store.NewMemoryStore()
	default:
		if err := mgo.Init(ctx, mgo.Config{URI: cfg.MongoURI, Database: cfg.MongoDB}); err != nil {
			logger.Errorf("mongo: %v", err)
			os.Exit(1)
		}
		ms := store.NewMongoStore(mgo.GetDB())
		if err := ms.EnsureIndexes(ctx); err != nil {
			logger.Errorf("mongo indexes: %v", err)
			os.Exit(1)
		}
		st = ms
	}

	if err := storage.InitRedis(storage.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}); err != nil {
		logger.Errorf("redis: %v", err)
		os.Exit(1)
	}

	objects, err := media.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)
	if err != nil {
		logger.Errorf("media store: %v", err)
		os.Exit(1)
	}

	auth := security.DefaultOptions([]byte(cfg.JWTSecret))
	srv := chat.NewServer(st, auth, chat.ManagerConf{
		HeartbeatTTL: cfg.HeartbeatTTL,
		SweepEvery:   cfg.SweepEvery,
		SendQueue:    cfg.SendQueueSize,
	})
	handlers.RegisterAll(srv)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", srv.HandleWS)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static("/media", cfg.MediaDir)

	api := &httpapi.API{
		Store:         st,
		Pipeline:      srv.Pipeline(),
		Presence:      srv.Presence(),
		Objects:       objects,
		MaxUpload:     cfg.MaxUploadBytes,
		UploadTimeout: cfg.UploadTimeout,
	}
	api.Register(r.Group("/api", authmw.BearerAuth(auth)))

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		logger.Infof("[main] listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("listen: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("[main] shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutCtx)
	srv.Close()
	_ = storage.Close()
	if cfg.StoreDriver != "memory" {
		_ = mgo.Close(shutCtx)
	}
}
