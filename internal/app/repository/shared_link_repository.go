package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lunarhue/linkmark/internal/app/model"
	"gorm.io/gorm"
)

// shareAttempts bounds retries of the issuance transaction when the database
// aborts it with a serialization failure.
const shareAttempts = 3

// SharedLinkRepository manages the anonymous-access key of a link. All
// operations are scoped to the user set via SetUserInfo; calling any of them
// without it is a programming error and panics.
type SharedLinkRepository interface {
	// SetUserInfo returns a request-scoped view of the repository acting on
	// behalf of the given user.
	SetUserInfo(userID uuid.UUID) SharedLinkRepository
	// Share issues a new key for an owned, not-yet-shared link. Issuing
	// while a key exists fails with ErrAlreadyExists, including the case
	// where a concurrent issuance on another instance won the race.
	Share(ctx context.Context, linkID uuid.UUID) (string, error)
	// Unshare clears the key. Revoking an unshared link fails with
	// ErrAlreadyExists ("nothing to undo").
	Unshare(ctx context.Context, linkID uuid.UUID) error
	// GetKey returns the key, ErrNotFound for missing/unowned links and
	// ErrDataInvalid for unshared ones.
	GetKey(ctx context.Context, linkID uuid.UUID) (string, error)
	// TryGetKey is the best-effort variant: domain errors collapse into an
	// empty key, infrastructure failures still propagate.
	TryGetKey(ctx context.Context, linkID uuid.UUID) (string, error)
}

type sharedLinkRepository struct {
	db     *gorm.DB
	txOpts *sql.TxOptions
	userID *uuid.UUID
}

// SharedLinkOption tweaks repository construction.
type SharedLinkOption func(*sharedLinkRepository)

// WithTxOptions overrides the transaction options used for key issuance.
// The SQLite-backed tests use this to drop the serializable level, which
// SQLite provides unconditionally anyway.
func WithTxOptions(opts *sql.TxOptions) SharedLinkOption {
	return func(r *sharedLinkRepository) { r.txOpts = opts }
}

// NewSharedLinkRepository returns a GORM-backed SharedLinkRepository. Key
// issuance runs at serializable isolation by default so that two concurrent
// attempts, even on different service instances, cannot both succeed.
func NewSharedLinkRepository(db *gorm.DB, opts ...SharedLinkOption) SharedLinkRepository {
	r := &sharedLinkRepository{
		db:     db,
		txOpts: &sql.TxOptions{Isolation: sql.LevelSerializable},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *sharedLinkRepository) SetUserInfo(userID uuid.UUID) SharedLinkRepository {
	clone := *r
	clone.userID = &userID
	return &clone
}

func (r *sharedLinkRepository) requireUser() uuid.UUID {
	if r.userID == nil {
		panic("repository: SetUserInfo must be called before any shared-link operation")
	}
	return *r.userID
}

func (r *sharedLinkRepository) Share(ctx context.Context, linkID uuid.UUID) (string, error) {
	userID := r.requireUser()

	var key string
	var err error
	for attempt := 0; attempt < shareAttempts; attempt++ {
		key, err = r.shareOnce(ctx, linkID, userID)
		if err == nil || !isSerializationFailure(err) {
			break
		}
	}
	if err != nil {
		if IsDomainError(err) {
			return "", err
		}
		if isUniqueViolation(err) || isSerializationFailure(err) {
			return "", fmt.Errorf("link %s: concurrent share attempt: %w", linkID, ErrAlreadyExists)
		}
		return "", fmt.Errorf("share link: %w", err)
	}
	return key, nil
}

func (r *sharedLinkRepository) shareOnce(ctx context.Context, linkID, userID uuid.UUID) (string, error) {
	var key string
	txErr := r.transaction(ctx, func(tx *gorm.DB) error {
		link, err := r.getOwned(tx, linkID, userID)
		if err != nil {
			return err
		}
		if link.Shared() {
			return fmt.Errorf("link %s is already shared: %w", linkID, ErrAlreadyExists)
		}

		generated, err := model.NewShareableKey()
		if err != nil {
			return err
		}
		result := tx.Model(&model.Link{}).Where("id = ?", linkID).Update("shareable_key", generated)
		if result.Error != nil {
			return result.Error
		}
		key = generated
		return nil
	})
	if txErr != nil {
		return "", txErr
	}

	// Re-read after commit: exactly one key must be set, and it must be
	// ours. Losing that comparison means a concurrent issuance elsewhere
	// committed around us.
	stored, err := r.storedKey(ctx, linkID, userID)
	if err != nil {
		return "", err
	}
	if stored == nil || *stored != key {
		return "", fmt.Errorf("link %s share verification failed: %w", linkID, ErrAlreadyExists)
	}
	return key, nil
}

func (r *sharedLinkRepository) Unshare(ctx context.Context, linkID uuid.UUID) error {
	userID := r.requireUser()

	link, err := r.getOwned(r.db.WithContext(ctx), linkID, userID)
	if err != nil {
		return err
	}
	if !link.Shared() {
		return fmt.Errorf("link %s is not shared: %w", linkID, ErrAlreadyExists)
	}

	result := r.db.WithContext(ctx).Model(&model.Link{}).Where("id = ?", linkID).Update("shareable_key", nil)
	if result.Error != nil {
		return fmt.Errorf("unshare link: %w", result.Error)
	}
	return nil
}

func (r *sharedLinkRepository) GetKey(ctx context.Context, linkID uuid.UUID) (string, error) {
	userID := r.requireUser()

	link, err := r.getOwned(r.db.WithContext(ctx), linkID, userID)
	if err != nil {
		return "", err
	}
	if !link.Shared() {
		return "", fmt.Errorf("link %s is not shared: %w", linkID, ErrDataInvalid)
	}
	return *link.ShareableKey, nil
}

func (r *sharedLinkRepository) TryGetKey(ctx context.Context, linkID uuid.UUID) (string, error) {
	key, err := r.GetKey(ctx, linkID)
	if err != nil {
		if IsDomainError(err) {
			return "", nil
		}
		return "", err
	}
	return key, nil
}

// getOwned loads only the columns the share protocol needs, scoped to the
// owner. Reads always hit the database, never cached entity state.
func (r *sharedLinkRepository) getOwned(tx *gorm.DB, linkID, userID uuid.UUID) (*model.Link, error) {
	var link model.Link
	err := tx.Select("id", "shareable_key").
		Where("id = ? AND creating_user_id = ?", linkID, userID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("link %s for user %s: %w", linkID, userID, ErrNotFound)
		}
		return nil, fmt.Errorf("load link: %w", err)
	}
	return &link, nil
}

func (r *sharedLinkRepository) storedKey(ctx context.Context, linkID, userID uuid.UUID) (*string, error) {
	link, err := r.getOwned(r.db.WithContext(ctx), linkID, userID)
	if err != nil {
		return nil, err
	}
	return link.ShareableKey, nil
}

func (r *sharedLinkRepository) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.txOpts == nil {
		return r.db.WithContext(ctx).Transaction(fn)
	}
	return r.db.WithContext(ctx).Transaction(fn, r.txOpts)
}
