package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jeremiahbratton/image-uploader/internal/config"
	"github.com/jeremiahbratton/image-uploader/internal/handler"
	"github.com/jeremiahbratton/image-uploader/internal/repository"
	"github.com/jeremiahbratton/image-uploader/internal/service"
)

// readinessProbeDelay is how long after startup the one-shot metadata store
// check runs. It only logs; an unreachable store never stops the server
// from coming up.
const readinessProbeDelay = 3 * time.Second

type Server struct {
	httpServer *http.Server
	metadata   repository.MetadataRepository
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(log))
	router.MaxMultipartMemory = cfg.App.MaxUploadSize

	router.LoadHTMLGlob("web/templates/*")

	storage, err := newFileStorage(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create file storage: %w", err)
	}

	metadata := repository.NewPocketBaseRepository(&cfg.Store, log)

	imageService := service.NewImageService(storage, metadata, cfg, log)

	h := handler.NewHandler(imageService, log)

	router.GET("/", h.GetUI)
	router.GET("/health", h.HealthCheck)
	router.POST("/upload", h.UploadImage)
	router.GET("/api/images", h.ListImages)
	router.GET("/uploads/:filename", h.ServeImage)

	router.Static("/static", "./web/static")

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:        router,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		metadata: metadata,
		cfg:      cfg,
		log:      log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend))

	return server, nil
}

func newFileStorage(cfg *config.Config, log *zap.Logger) (repository.FileStorage, error) {
	if cfg.Storage.Backend == "s3" {
		return repository.NewS3Storage(&cfg.S3, log)
	}
	return repository.NewDiskStorage(cfg.App.UploadDir, log), nil
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("address", s.httpServer.Addr),
		zap.String("store_url", s.cfg.Store.BaseURL))

	go s.probeMetadataStore()

	return s.httpServer.ListenAndServe()
}

// probeMetadataStore pings the store once, a little after startup, and
// warns if it is unreachable. Purely diagnostic: no retry, no gating.
func (s *Server) probeMetadataStore() {
	time.Sleep(readinessProbeDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.metadata.Health(ctx); err != nil {
		s.log.Warn("Metadata store is not reachable, uploads will fail until it is",
			zap.String("store_url", s.cfg.Store.BaseURL),
			zap.Error(err))
		return
	}

	s.log.Info("Metadata store is reachable",
		zap.String("store_url", s.cfg.Store.BaseURL))
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
