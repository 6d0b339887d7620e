package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/api/middleware"
	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
	"github.com/feral-file/ff-mint-reconciler/internal/messaging"
	"github.com/feral-file/ff-mint-reconciler/internal/metrics"
	"github.com/feral-file/ff-mint-reconciler/internal/minting"
	"github.com/feral-file/ff-mint-reconciler/internal/store"
	"github.com/feral-file/ff-mint-reconciler/internal/webhook"
)

const (
	// MAX_WEBHOOK_BODY_SIZE bounds the size of a webhook delivery
	MAX_WEBHOOK_BODY_SIZE = 1 << 20

	webhookResultQueued = "queued"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// CreateMint records a mint request
	// POST /api/v1/mints
	CreateMint(c *gin.Context)

	// GetMint retrieves a mint request by its natural key
	// GET /api/v1/mints/:contract_address/:reference_id
	GetMint(c *gin.Context)

	// ReceiveWebhook accepts a status update delivered by the minting service
	// POST /api/v1/webhooks/minting
	ReceiveWebhook(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// Config holds the handler configuration
type Config struct {
	// WebhookSecret enables signature verification of webhook deliveries when set
	WebhookSecret string
	// WebhookTolerance is the accepted clock skew of a delivery's timestamp
	WebhookTolerance time.Duration
}

// handler implements the Handler interface
type handler struct {
	config        Config
	store         store.Store
	canonicalizer adapter.Canonicalizer
	publisher     messaging.Publisher
	clock         adapter.Clock
	metrics       *metrics.Metrics
}

// NewHandler creates a new REST API handler.
// Webhook events are published when publisher is not nil and applied inline otherwise.
func NewHandler(
	cfg Config,
	st store.Store,
	canonicalizer adapter.Canonicalizer,
	publisher messaging.Publisher,
	clock adapter.Clock,
	m *metrics.Metrics,
) Handler {
	return &handler{
		config:        cfg,
		store:         st,
		canonicalizer: canonicalizer,
		publisher:     publisher,
		clock:         clock,
		metrics:       m,
	}
}

// callerContext tags the request context with the authenticated caller so every log line
// of the request names it
func callerContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if principal, ok := middleware.PrincipalFromContext(ctx); ok {
		ctx = logger.WithFields(ctx, zap.String("principal", principal.String()))
		c.Request = c.Request.WithContext(ctx)
	}
	return ctx
}

// CreateMint records a mint request in the unset status
func (h *handler) CreateMint(c *gin.Context) {
	ctx := callerContext(c)

	var req CreateMintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	asset, err := minting.RecordMint(ctx, h.store, h.canonicalizer, req.ToDomain())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMintRequest):
			respondValidationError(c, err.Error())
		case errors.Is(err, domain.ErrDuplicateMintRequest):
			respondConflict(c, "Mint request already recorded", err.Error())
		default:
			respondInternalError(c, err, "Failed to record mint request",
				zap.String("reference_id", req.ReferenceID),
				zap.String("contract_address", req.ContractAddress),
			)
		}
		return
	}

	logger.InfoCtx(ctx, "Recorded mint request",
		zap.String("reference_id", asset.ReferenceID),
		zap.String("contract_address", asset.ContractAddress),
	)
	c.JSON(http.StatusCreated, MapMintAssetToResponse(asset))
}

// GetMint retrieves a mint request by contract address and reference id
func (h *handler) GetMint(c *gin.Context) {
	ctx := callerContext(c)
	contractAddress := c.Param("contract_address")
	referenceID := c.Param("reference_id")

	logger.DebugCtx(ctx, "Looking up mint request",
		zap.String("reference_id", referenceID),
		zap.String("contract_address", contractAddress),
	)

	asset, err := h.store.GetMintAsset(ctx, domain.NormalizeAddress(contractAddress), referenceID)
	if err != nil {
		respondInternalError(c, err, "Failed to get mint request",
			zap.String("reference_id", referenceID),
			zap.String("contract_address", contractAddress),
		)
		return
	}
	if asset == nil {
		respondNotFound(c, "Mint request not found")
		return
	}

	c.JSON(http.StatusOK, MapMintAssetToResponse(asset))
}

// ReceiveWebhook verifies a webhook delivery and hands the event over to the reconciler.
// A non-2xx response makes the sender retry the delivery, so only failures a retry can fix
// are reported as server errors.
func (h *handler) ReceiveWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MAX_WEBHOOK_BODY_SIZE))
	if err != nil {
		respondBadRequest(c, "Failed to read request body", err.Error())
		return
	}

	var event webhook.Event
	if err := json.Unmarshal(body, &event); err != nil {
		h.metrics.Event(metrics.EventMalformed)
		respondBadRequest(c, "Invalid webhook payload", err.Error())
		return
	}

	if h.config.WebhookSecret != "" {
		err := webhook.Verify(
			h.config.WebhookSecret,
			c.GetHeader(webhook.HeaderSignature),
			c.GetHeader(webhook.HeaderTimestamp),
			event.EventID,
			body,
			h.clock.Now(),
			h.config.WebhookTolerance,
		)
		if err != nil {
			logger.WarnCtx(ctx, "Rejected webhook delivery",
				zap.Error(err),
				zap.String("event_id", event.EventID),
				zap.String("client_ip", c.ClientIP()),
			)
			respondUnauthorized(c, "Invalid webhook signature", err.Error())
			return
		}
	}

	if h.publisher != nil {
		if err := h.publisher.PublishEvent(ctx, &event); err != nil {
			respondInternalError(c, err, "Failed to queue webhook event", zap.String("event_id", event.EventID))
			return
		}
		c.JSON(http.StatusAccepted, WebhookResponse{Result: webhookResultQueued})
		return
	}

	result, err := minting.ProcessMint(ctx, h.store, event)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedWebhookEvent) {
			logger.ErrorCtx(ctx, err, zap.String("event_id", event.EventID))
			h.metrics.Event(metrics.EventMalformed)
			respondValidationError(c, err.Error())
			return
		}
		respondInternalError(c, err, "Failed to process webhook event", zap.String("event_id", event.EventID))
		return
	}

	h.metrics.Event(string(result))
	c.JSON(http.StatusOK, WebhookResponse{Result: string(result)})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
