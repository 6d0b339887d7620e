package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-mint-reconciler/internal/domain"
	"github.com/feral-file/ff-mint-reconciler/internal/store/schema"
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"
)

type pgStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPGStore creates a new store instance backed by gorm.
// PostgreSQL is the production backend; the claim skips rows locked by concurrent
// transactions so any number of submission loops may share the database.
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// If any of the pool settings are 0, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// CreateMintAsset inserts a new mint asset record in the unset status
func (s *pgStore) CreateMintAsset(ctx context.Context, input CreateMintAssetInput) (*schema.MintAsset, error) {
	now := s.now()
	asset := schema.MintAsset{
		ID:              ulid.Make().String(),
		ReferenceID:     input.ReferenceID,
		ContractAddress: input.ContractAddress,
		OwnerAddress:    input.OwnerAddress,
		Metadata:        input.Metadata,
		TokenID:         input.TokenID,
		Amount:          input.Amount,
		MintingStatus:   domain.MintingStatusUnset,
		TriedCount:      0,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// ON CONFLICT DO NOTHING lets the duplicate check work the same way on every dialect
	// instead of parsing driver specific unique violation errors
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference_id"}, {Name: "contract_address"}},
			DoNothing: true,
		}).
		Create(&asset)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create mint asset: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: reference_id=%s contract_address=%s",
			domain.ErrDuplicateMintRequest, input.ReferenceID, input.ContractAddress)
	}

	return &asset, nil
}

// GetMintAsset retrieves a mint asset by contract address and reference id
func (s *pgStore) GetMintAsset(ctx context.Context, contractAddress, referenceID string) (*schema.MintAsset, error) {
	var asset schema.MintAsset
	err := s.db.WithContext(ctx).
		Where("contract_address = ? AND reference_id = ?", contractAddress, referenceID).
		First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get mint asset: %w", err)
	}

	return &asset, nil
}

// GetMintAssetsByIDs retrieves mint assets by their internal ids
func (s *pgStore) GetMintAssetsByIDs(ctx context.Context, ids []string) ([]schema.MintAsset, error) {
	if len(ids) == 0 {
		return []schema.MintAsset{}, nil
	}

	var assets []schema.MintAsset
	err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC, id ASC").
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get mint assets by IDs: %w", err)
	}

	return assets, nil
}

// ClaimPendingMintAssets atomically marks up to limit unset rows as submitting.
//
// The select and the update run as one statement. On PostgreSQL the inner select takes
// row locks with SKIP LOCKED, so a concurrent claim never waits on or returns a row that
// another in-flight claim holds. SQLite serialises writers on the database file, which
// gives the same guarantee for processes sharing one file.
func (s *pgStore) ClaimPendingMintAssets(ctx context.Context, limit int) ([]schema.MintAsset, error) {
	if limit <= 0 {
		return []schema.MintAsset{}, nil
	}

	lockClause := ""
	if s.db.Dialector.Name() == dialectPostgres {
		lockClause = " FOR UPDATE SKIP LOCKED"
	}

	var ids []string
	err := s.db.WithContext(ctx).Raw(`
		UPDATE mint_assets
		SET minting_status = ?, updated_at = ?
		WHERE minting_status = ? AND id IN (
			SELECT id FROM mint_assets
			WHERE minting_status = ?
			ORDER BY created_at ASC, id ASC
			LIMIT ?`+lockClause+`
		)
		RETURNING id`,
		domain.MintingStatusSubmitting, s.now(),
		domain.MintingStatusUnset,
		domain.MintingStatusUnset,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to claim mint assets: %w", err)
	}

	if len(ids) == 0 {
		return []schema.MintAsset{}, nil
	}

	return s.GetMintAssetsByIDs(ctx, ids)
}

// UpdateClaimedMintAssets transitions rows that are still in the submitting status.
// Rows already moved on, e.g. by a reconciliation event that arrived first, are left untouched.
func (s *pgStore) UpdateClaimedMintAssets(ctx context.Context, ids []string, update ClaimedMintAssetUpdate) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	updates := map[string]interface{}{
		"minting_status": update.Status,
		"error":          update.Error,
		"updated_at":     s.now(),
	}
	if update.IncrementTriedCount {
		updates["tried_count"] = gorm.Expr("tried_count + 1")
	}

	result := s.db.WithContext(ctx).
		Model(&schema.MintAsset{}).
		Where("id IN ? AND minting_status = ?", ids, domain.MintingStatusSubmitting).
		Updates(updates)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update claimed mint assets: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// ReleaseStaleClaims moves rows left in submitting, e.g. by a crashed process, back to unset
func (s *pgStore) ReleaseStaleClaims(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&schema.MintAsset{}).
		Where("minting_status = ? AND updated_at < ?", domain.MintingStatusSubmitting, before.UTC()).
		Updates(map[string]interface{}{
			"minting_status": domain.MintingStatusUnset,
			"updated_at":     s.now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to release stale claims: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// SyncMintingStatus upserts a mint asset from a reconciliation event.
//
// The update half of the upsert carries the ordering guard, so two events for the same
// record racing each other are resolved by the database and the newest one wins.
func (s *pgStore) SyncMintingStatus(ctx context.Context, input SyncMintingStatusInput) (bool, error) {
	if input.EventKey == "" {
		return false, fmt.Errorf("event key is required")
	}

	now := s.now()
	eventID := input.EventID
	eventKey := input.EventKey
	asset := schema.MintAsset{
		ID:              ulid.Make().String(),
		ReferenceID:     input.ReferenceID,
		ContractAddress: input.ContractAddress,
		OwnerAddress:    input.OwnerAddress,
		Metadata:        datatypes.JSON(`{}`),
		TokenID:         input.TokenID,
		Amount:          input.Amount,
		MintingStatus:   input.Status,
		MetadataID:      input.MetadataID,
		LastEventID:     &eventID,
		LastEventKey:    &eventKey,
		Error:           input.Error,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "reference_id"}, {Name: "contract_address"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "owner_address"}, Value: gorm.Expr("excluded.owner_address")},
				{Column: clause.Column{Name: "minting_status"}, Value: gorm.Expr("excluded.minting_status")},
				{Column: clause.Column{Name: "token_id"}, Value: gorm.Expr("COALESCE(excluded.token_id, mint_assets.token_id)")},
				{Column: clause.Column{Name: "amount"}, Value: gorm.Expr("COALESCE(excluded.amount, mint_assets.amount)")},
				{Column: clause.Column{Name: "metadata_id"}, Value: gorm.Expr("COALESCE(excluded.metadata_id, mint_assets.metadata_id)")},
				{Column: clause.Column{Name: "error"}, Value: gorm.Expr("excluded.error")},
				{Column: clause.Column{Name: "last_event_id"}, Value: gorm.Expr("excluded.last_event_id")},
				{Column: clause.Column{Name: "last_event_key"}, Value: gorm.Expr("excluded.last_event_key")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("(mint_assets.last_event_key IS NULL OR mint_assets.last_event_key < excluded.last_event_key)"),
			}},
		}).
		Create(&asset)
	if result.Error != nil {
		return false, fmt.Errorf("failed to sync minting status: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}
