package minting

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-mint-reconciler/internal/adapter"
	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/logger"
	"github.com/feral-file/ff-mint-reconciler/internal/store"
	"github.com/feral-file/ff-mint-reconciler/internal/store/schema"
)

// RecordMint durably registers a mint request in the unset status.
//
// Recording the same (reference id, contract) pair twice fails with
// domain.ErrDuplicateMintRequest and leaves the existing record untouched.
func RecordMint(ctx context.Context, st store.Store, canonicalizer adapter.Canonicalizer, req domain.MintRequest) (*schema.MintAsset, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Normalize()

	metadata, err := canonicalizer.Canonicalize(req.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %s", domain.ErrInvalidMintRequest, err.Error())
	}
	if metadata[0] != '{' {
		return nil, fmt.Errorf("%w: metadata must be a JSON object", domain.ErrInvalidMintRequest)
	}

	asset, err := st.CreateMintAsset(ctx, store.CreateMintAssetInput{
		ReferenceID:     req.ReferenceID,
		ContractAddress: req.ContractAddress,
		OwnerAddress:    req.OwnerAddress,
		Metadata:        datatypes.JSON(metadata),
		TokenID:         req.TokenID,
		Amount:          req.Amount,
	})
	if err != nil {
		return nil, err
	}

	logger.InfoCtx(ctx, "Recorded mint request",
		zap.String("id", asset.ID),
		zap.String("reference_id", asset.ReferenceID),
		zap.String("contract_address", asset.ContractAddress),
	)

	return asset, nil
}
