package httptransport

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"medboard-server-go/internal/domain/security"
	"medboard-server-go/internal/domain/session"
	"medboard-server-go/internal/domain/session/model"
)

// Options configures the HTTP router builder.
type Options struct {
	Logger      model.Logger
	LogLevel    string
	JWTSecret   []byte
	CORSOrigins []string

	Sessions *session.Manager
	Lockouts *security.LockoutTracker
	Puzzles  *security.PuzzleEngine
}

// Router bundles the gin engine and its secured admin group.
type Router struct {
	Engine *gin.Engine
}

// Build constructs a gin engine pre-configured with recovery, logging,
// CORS, and the session-security admin routes.
func Build(opts Options) *Router {
	if strings.EqualFold(opts.LogLevel, "debug") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(opts.Logger))

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers := &adminHandlers{
		logger:   opts.Logger,
		sessions: opts.Sessions,
		lockouts: opts.Lockouts,
		puzzles:  opts.Puzzles,
	}

	api := engine.Group("/api")
	api.GET("/health", handlers.health)

	secured := api.Group("")
	secured.Use(AuthMiddleware(opts.JWTSecret, opts.Logger))
	secured.Use(AdminMiddleware())

	secured.GET("/sessions", handlers.listSessions)
	secured.GET("/sessions/stats", handlers.sessionStats)
	secured.DELETE("/sessions/:id", handlers.destroySession)
	secured.POST("/sessions/cleanup", handlers.cleanupSessions)
	secured.POST("/users/:id/logout", handlers.forceLogoutUser)

	secured.GET("/lockouts", handlers.listLockouts)
	secured.DELETE("/lockouts/:email", handlers.resetLockout)
	secured.POST("/lockouts/cleanup", handlers.cleanupLockouts)

	secured.POST("/puzzles", handlers.generatePuzzle)
	secured.POST("/puzzles/verify", handlers.verifyPuzzle)

	return &Router{Engine: engine}
}

func loggingMiddleware(logger model.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if logger != nil {
			logger.Info(
				"[HTTP] %s %s -> %d (%s)",
				c.Request.Method,
				c.Request.URL.Path,
				c.Writer.Status(),
				duration,
			)
		}
	}
}
