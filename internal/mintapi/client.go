package mintapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
)

const apiKeyHeader = "x-immutable-api-key"

// ErrInvalidBatch is returned before any I/O when a batch is empty or too large
var ErrInvalidBatch = errors.New("invalid mint batch")

// Client is the external minting API
//
//go:generate mockgen -source=client.go -destination=../mocks/mintapi.go -package=mocks -mock_names=Client=MockMintClient
type Client interface {
	// CreateMintRequest submits up to 100 assets for one contract.
	// Returns *ConflictError when some reference ids were already used and *APIError for other rejections.
	CreateMintRequest(ctx context.Context, contractAddress string, assets []MintAsset) (*CreateMintRequestResult, error)
}

// Config holds the client configuration
type Config struct {
	BaseURL   string
	APIKey    string
	ChainName string
}

type client struct {
	http adapter.HTTPClient
	cfg  Config
}

// NewClient creates a new minting API client
func NewClient(httpClient adapter.HTTPClient, cfg Config) Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &client{
		http: httpClient,
		cfg:  cfg,
	}
}

func (c *client) CreateMintRequest(ctx context.Context, contractAddress string, assets []MintAsset) (*CreateMintRequestResult, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrInvalidBatch)
	}
	if len(assets) > domain.MAX_MINT_CHUNK_SIZE {
		return nil, fmt.Errorf("%w: %d assets exceeds the limit of %d", ErrInvalidBatch, len(assets), domain.MAX_MINT_CHUNK_SIZE)
	}

	body, err := json.Marshal(createMintRequestBody{Assets: assets})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mint request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/chains/%s/collections/%s/nfts/mint-requests",
		c.cfg.BaseURL, url.PathEscape(c.cfg.ChainName), url.PathEscape(contractAddress))

	resp, err := c.http.PostJSON(ctx, endpoint, map[string]string{apiKeyHeader: c.cfg.APIKey}, body)
	if err != nil {
		return nil, fmt.Errorf("failed to call minting API: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return parseSuccess(ctx, resp.Body), nil
	}

	return nil, parseError(resp.StatusCode, resp.Body)
}

func parseSuccess(ctx context.Context, body []byte) *CreateMintRequestResult {
	result := &CreateMintRequestResult{}
	if len(body) == 0 {
		return result
	}

	var r createMintRequestResponse
	if err := json.Unmarshal(body, &r); err != nil {
		// The call succeeded, a body we cannot read only costs the pacing hint
		logger.WarnCtx(ctx, "failed to decode minting API response", zap.Error(err))
		return result
	}

	if r.RemainingMintRequests == "" || r.MintRequestsLimitReset == "" {
		return result
	}

	remaining, err := r.RemainingMintRequests.Int64()
	if err != nil {
		logger.WarnCtx(ctx, "invalid remaining mint requests", zap.String("value", r.RemainingMintRequests.String()))
		return result
	}
	resetAt, err := time.Parse(time.RFC3339, r.MintRequestsLimitReset)
	if err != nil {
		logger.WarnCtx(ctx, "invalid mint requests limit reset", zap.String("value", r.MintRequestsLimitReset))
		return result
	}

	quota := &Quota{
		Remaining: int(remaining),
		ResetAt:   resetAt.UTC(),
	}
	if limit, err := r.MintRequestsLimit.Int64(); err == nil {
		quota.Limit = int(limit)
	}
	result.Quota = quota

	return result
}

func parseError(statusCode int, body []byte) error {
	var r errorResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
	}

	if statusCode == http.StatusConflict && r.Code == errorCodeConflict && r.Details != nil && len(r.Details.Values) > 0 {
		return &ConflictError{ReferenceIDs: r.Details.Values}
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       r.Code,
		Message:    r.Message,
	}
}
