package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"menfess/internal/handler"
	"menfess/internal/ledger"
	"menfess/internal/middleware"
	"menfess/internal/repository"
	"menfess/internal/service"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	ledger *ledger.Ledger
	log    *logrus.Logger
	zlog   *zap.Logger
}

func NewServer(db *sqlx.DB, violationLedger *ledger.Ledger, log *logrus.Logger, zlog *zap.Logger) *Server {
	router := gin.Default()

	s := &Server{
		router: router,
		db:     db,
		ledger: violationLedger,
		log:    log,
		zlog:   zlog,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	authRepo := repository.NewAuthRepository(s.db, s.log)
	authService := service.NewAuthService(authRepo, s.zlog)
	authHandler := handler.NewAuthHandler(authService, s.log)
	violatorHandler := handler.NewViolatorHandler(s.ledger, s.log)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Authentication routes
	authGroup := s.router.Group("/api/auth")
	authGroup.POST("/register", authHandler.RegisterModerator)
	authGroup.POST("/login", authHandler.Login)

	// Moderator routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(s.zlog))
	{
		authRequired.GET("/violators", violatorHandler.List)
		authRequired.GET("/violators/:id", violatorHandler.Get)
		authRequired.POST("/violators/:id/unban", violatorHandler.Unban)
	}
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on port %s...", addr)
	if err := s.router.Run(addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
