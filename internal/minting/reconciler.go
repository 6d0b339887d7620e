package minting

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
	"github.com/feral-file/ff-mint-reconciler/internal/store"
	"github.com/feral-file/ff-mint-reconciler/internal/webhook"
)

// ProcessResult is the outcome of processing one reconciliation event
type ProcessResult string

const (
	// ProcessResultApplied means the event updated or created the record
	ProcessResultApplied ProcessResult = "applied"
	// ProcessResultStale means the record already reflects the same or a newer event
	ProcessResultStale ProcessResult = "stale"
	// ProcessResultIgnored means the event is not a mint status update
	ProcessResultIgnored ProcessResult = "ignored"
)

// ProcessMint merges one webhook event into the stored state.
//
// Repeated and out-of-order deliveries are safe: the store only applies an event that is
// newer than the last one applied to the record, in a single conditional upsert.
// Events missing required fields fail with domain.ErrMalformedWebhookEvent.
func ProcessMint(ctx context.Context, st store.Store, event webhook.Event) (ProcessResult, error) {
	ctx = logger.WithFields(ctx,
		zap.String("event_id", event.EventID),
		zap.String("event_name", event.EventName),
	)

	if event.EventName != domain.EVENT_NAME_MINT_REQUEST_UPDATED {
		logger.InfoCtx(ctx, "Ignoring webhook event")
		return ProcessResultIgnored, nil
	}

	data := event.Data
	switch {
	case event.EventID == "":
		return "", fmt.Errorf("%w: event_id is required", domain.ErrMalformedWebhookEvent)
	case data.ReferenceID == "":
		return "", fmt.Errorf("%w: reference_id is required", domain.ErrMalformedWebhookEvent)
	case strings.TrimSpace(data.ContractAddress) == "":
		return "", fmt.Errorf("%w: contract_address is required", domain.ErrMalformedWebhookEvent)
	case data.Status == "":
		return "", fmt.Errorf("%w: status is required", domain.ErrMalformedWebhookEvent)
	}

	contractAddress := domain.NormalizeAddress(data.ContractAddress)
	ctx = logger.WithFields(ctx,
		zap.String("reference_id", data.ReferenceID),
		zap.String("contract_address", contractAddress),
	)

	existing, err := st.GetMintAsset(ctx, contractAddress, data.ReferenceID)
	if err != nil {
		return "", fmt.Errorf("failed to get mint asset: %w", err)
	}

	var ownerAddress string
	if existing != nil {
		ownerAddress = existing.OwnerAddress
	} else {
		logger.WarnCtx(ctx, "No mint request recorded for event, using the event's owner",
			zap.String("owner_address", data.OwnerAddress))
		if strings.TrimSpace(data.OwnerAddress) == "" {
			return "", fmt.Errorf("%w: owner_address is required for an unknown record", domain.ErrMalformedWebhookEvent)
		}
		ownerAddress = domain.NormalizeAddress(data.OwnerAddress)
	}

	var errPayload datatypes.JSON
	if data.HasError() {
		errPayload = datatypes.JSON(data.Error)
	}

	applied, err := st.SyncMintingStatus(ctx, store.SyncMintingStatusInput{
		ReferenceID:     data.ReferenceID,
		ContractAddress: contractAddress,
		OwnerAddress:    ownerAddress,
		Status:          domain.MintingStatus(data.Status),
		TokenID:         data.TokenID,
		Amount:          data.Amount,
		MetadataID:      data.MetadataID,
		Error:           errPayload,
		EventID:         event.EventID,
		EventKey:        domain.EventOrderingKey(event.EventID, data.UpdatedAt),
	})
	if err != nil {
		return "", fmt.Errorf("failed to sync minting status: %w", err)
	}

	if !applied {
		logger.InfoCtx(ctx, "Skipped stale webhook event", zap.String("status", data.Status))
		return ProcessResultStale, nil
	}

	logger.InfoCtx(ctx, "Applied webhook event", zap.String("status", data.Status))
	return ProcessResultApplied, nil
}
