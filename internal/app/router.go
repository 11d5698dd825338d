package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/checkin"
	"github.com/aura-checkin/backend/internal/dashboard"
	"github.com/aura-checkin/backend/internal/emaillogs"
	"github.com/aura-checkin/backend/internal/emails"
	"github.com/aura-checkin/backend/internal/exports"
	"github.com/aura-checkin/backend/internal/i18n"
	"github.com/aura-checkin/backend/internal/imports"
	"github.com/aura-checkin/backend/internal/metrics"
	"github.com/aura-checkin/backend/internal/middleware"
	"github.com/aura-checkin/backend/internal/participants"
	"github.com/aura-checkin/backend/internal/ticket"
	"github.com/aura-checkin/backend/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueStats reports email queue backlog.
type QueueStats interface {
	Depth(ctx context.Context) (pending, dead int64, err error)
}

// RouterDeps are the collaborators the HTTP routes need. Archive and QueueStats may be nil.
type RouterDeps struct {
	Stores       *Stores
	Tickets      *ticket.Service
	Translator   *i18n.Translator
	Queue        emails.Enqueuer
	QueueStats   QueueStats
	Archive      exports.Archive
	Redis        Pinger
	IDPrefix     string
	PollInterval time.Duration
	CORSOrigins  string
	CheckinLimit *middleware.RateLimiter
	Logger       *zap.Logger
}

// NewRouter builds the gin engine with every route.
func NewRouter(d RouterDeps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.CheckinLimit == nil {
		d.CheckinLimit = middleware.NewRateLimiter(0, 0)
	}

	participantHandler := participants.NewHandler(d.Stores.Participants, d.IDPrefix, logger)
	checkinHandler := checkin.NewHandler(d.Tickets, d.Translator, logger)
	importHandler := imports.NewHandler(imports.NewImporter(d.Stores.Participants, d.IDPrefix, logger), logger)
	exportHandler := exports.NewHandler(d.Stores.Participants, d.Archive, d.Translator, d.IDPrefix, logger)
	dashboardHandler := dashboard.NewHandler(d.Stores.Participants, d.PollInterval, logger)
	emailHandler := emails.NewHandler(d.Stores.Participants, d.Queue, logger)
	emailLogsHandler := emaillogs.NewHandler(d.Stores.EmailLogs, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(metrics.Middleware())

	router.GET("/health", health(d.Stores.Participants, d.Redis, d.QueueStats))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Participants
	router.GET("/participants", participantHandler.List)
	router.POST("/participants", participantHandler.Create)
	router.DELETE("/participants", participantHandler.DeleteAll)
	router.POST("/participants/upload", importHandler.Upload)
	router.GET("/participants/export", exportHandler.Export)
	router.GET("/participants/:unique", participantHandler.Get)
	router.PATCH("/participants/:unique", participantHandler.Update)
	router.DELETE("/participants/:unique", participantHandler.Delete)

	// Tickets and check-in
	router.POST("/participants/:unique/ticket", checkinHandler.Issue)
	router.POST("/checkin", d.CheckinLimit.PerIP(), checkinHandler.Redeem)

	// Dashboard
	router.GET("/dashboard", dashboardHandler.Get)

	// Emails
	router.POST("/emails/send", emailHandler.Send)
	router.GET("/email-logs", emailLogsHandler.List)
	router.DELETE("/email-logs", emailLogsHandler.DeleteAll)
	router.DELETE("/email-logs/:id", emailLogsHandler.Delete)

	return router
}

func health(db, redis Pinger, queue QueueStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{"status": "ok", "database": "ok", "redis": "ok"}
		healthy := true
		if err := db.Ping(ctx); err != nil {
			status["database"] = err.Error()
			healthy = false
		}
		if redis != nil {
			if err := redis.Ping(ctx); err != nil {
				status["redis"] = err.Error()
				healthy = false
			}
		} else {
			status["redis"] = "disabled"
		}
		if queue != nil {
			if pending, dead, err := queue.Depth(ctx); err != nil {
				status["email_queue"] = "unavailable"
			} else {
				status["email_queue"] = gin.H{"pending": pending, "dead": dead}
			}
		}
		if !healthy {
			status["status"] = "degraded"
			response.Fail(c, http.StatusServiceUnavailable, ticket.KindStorageUnavailable, "dependency unavailable", status)
			return
		}
		response.OK(c, status)
	}
}
