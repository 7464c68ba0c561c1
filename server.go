package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/fluxo_backend/config"
	"github.com/mmdatafocus/fluxo_backend/models"
	"github.com/mmdatafocus/fluxo_backend/utils"
	"github.com/mmdatafocus/fluxo_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

const cashFlowLockType = "cashflow"

type PubSubMessage struct {
	Message struct {
		Data       []byte            `json:"data,omitempty"`
		Attributes map[string]string `json:"attributes,omitempty"`
		ID         string            `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// withBestEffortCompanyLock runs fn under the company's redis lock when it can be had.
// Reliability does not depend on Redis: consolidation also serializes per company in process and in MySQL.
func withBestEffortCompanyLock(ctx context.Context, logger *logrus.Logger, companyId int, fn func(ctx context.Context) error) error {
	err := utils.CompanyLock(ctx, cashFlowLockType, companyId, 60*time.Second, 0, fn)
	if errors.Is(err, utils.ErrCompanyLockUnavailable) || errors.Is(err, utils.ErrCompanyLockNotObtained) {
		logger.WithFields(logrus.Fields{
			"field":      "withBestEffortCompanyLock",
			"company_id": companyId,
		}).Warn("redis lock not held; proceeding without redis lock: " + err.Error())
		return fn(ctx)
	}
	return err
}

func cashFlowPubSubHandler(consolidator *workflow.CashFlowConsolidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "cashFlowPubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}
		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "cashFlowPubSubHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		req, err := workflow.DecodeConsolidationRequest(msg.Message.Data, msg.Message.Attributes)
		if err != nil {
			config.LogError(logger, "server.go", "cashFlowPubSubHandler", "Invalid pubsub message", msg.Message.ID, err)
			c.Status(http.StatusNoContent)
			return
		}

		// Correlation ID propagation: prefer payload correlation_id; fall back to Pub/Sub message ID.
		correlationID := req.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationID)
		ctx = utils.SetUserNameInContext(ctx, "System")

		err = withBestEffortCompanyLock(ctx, logger, req.CompanyId, func(ctx context.Context) error {
			return consolidator.ConsolidateCompany(ctx, req.CompanyId)
		})
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "cashFlowPubSubHandler",
				"company_id":     req.CompanyId,
				"reason":         req.Reason,
				"reference_id":   req.ReferenceId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("pubsub processing failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type consolidateRequest struct {
	CompanyId *int `json:"company_id"`
}

// opsTokenRequired rejects ops calls without the shared OPS_TOKEN when one is configured.
func opsTokenRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(os.Getenv("OPS_TOKEN"))
		if token != "" && c.GetHeader("x-ops-token") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func consolidateCashFlowHandler(consolidator *workflow.CashFlowConsolidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req consolidateRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}
		if req.CompanyId != nil && *req.CompanyId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "company_id must be positive"})
			return
		}

		ctx := c.Request.Context()
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		start := time.Now()
		var err error
		if req.CompanyId != nil {
			err = withBestEffortCompanyLock(ctx, config.GetLogger(), *req.CompanyId, func(ctx context.Context) error {
				return consolidator.Consolidate(ctx, req.CompanyId)
			})
		} else {
			err = consolidator.Consolidate(ctx, nil)
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "correlation_id": cid})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"company_id":     req.CompanyId,
			"status":         "consolidated",
			"duration_ms":    time.Since(start).Milliseconds(),
			"correlation_id": cid,
		})
	}
}

func registerRoutes(r *gin.Engine, consolidator *workflow.CashFlowConsolidator) {
	r.POST("/pubsub/cashflow", cashFlowPubSubHandler(consolidator))
	ops := r.Group("/internal/ops", opsTokenRequired())
	ops.POST("/cashflow/consolidate", consolidateCashFlowHandler(consolidator))
	r.NoRoute(customNotFoundHandler)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP; until DB/Redis are ready app endpoints return 503.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOrigins = []string{}
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-correlation-id", "x-ops-token")
	corsConfig.AddExposeHeaders("Content-Length")
	r.Use(cors.New(corsConfig))
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	// nil db: the repository picks up config.GetDB() once connected
	consolidator := workflow.NewCashFlowConsolidator(models.NewCashFlowRepository(nil), logger)
	registerRoutes(r, consolidator)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; allow running it as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info":                    "Connection Established",
		"trigger_mode":            config.CashFlowTrigger(),
		"unresolved_chart_policy": config.CashFlowUnresolvedChartPolicy(),
	}).Info("cash flow service listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
	config.ClosePubSubClient()
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
