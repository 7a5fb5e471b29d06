// Package web exposes the chunk API over HTTP.
package web

import (
	"context"
	"net/http"

	"chunkstore/config"
	"chunkstore/database"
	"chunkstore/ingest"
	"chunkstore/search"
	"chunkstore/web/handlers"
	"chunkstore/web/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	logger *zap.Logger
	config *config.Config
}

func NewServer(engine *ingest.Engine, ranker *search.Ranker, store *database.PostgresStore,
	datasets *database.DatasetResolver, logger *zap.Logger, config *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		router: router,
		logger: logger,
		config: config,
	}
	server.setupRoutes(engine, ranker, store, datasets)
	return server
}

func (s *Server) setupRoutes(engine *ingest.Engine, ranker *search.Ranker,
	store *database.PostgresStore, datasets *database.DatasetResolver) {
	chunkHandler := handlers.NewChunkHandler(engine, s.logger)
	searchHandler := handlers.NewSearchHandler(ranker, s.logger)
	datasetHandler := handlers.NewDatasetHandler(store, s.config, s.logger)
	fileHandler := handlers.NewFileHandler(engine, s.config.MaxPDFChunkChars, s.logger)

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	api.POST("/dataset", datasetHandler.Create)
	api.GET("/dataset/:id", datasetHandler.Get)

	scoped := api.Group("", middleware.RequireDataset(datasets, s.logger))
	scoped.POST("/chunk", chunkHandler.Create)
	scoped.PUT("/chunk/update", chunkHandler.Update)
	scoped.PUT("/chunk/tracking_id/update", chunkHandler.UpdateByTrackingID)
	scoped.GET("/chunk/tracking_id/:tracking_id", chunkHandler.GetByTrackingID)
	scoped.DELETE("/chunk/tracking_id/:tracking_id", chunkHandler.DeleteByTrackingID)
	scoped.GET("/chunk/:id", chunkHandler.Get)
	scoped.DELETE("/chunk/:id", chunkHandler.Delete)
	scoped.POST("/chunk/search", searchHandler.Search)
	scoped.POST("/chunk/recommend", searchHandler.Recommend)
	scoped.POST("/file", fileHandler.Upload)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("web server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	s.logger.Info("shutting down web server")
	return srv.Shutdown(context.Background())
}
