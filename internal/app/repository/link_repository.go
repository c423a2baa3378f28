package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lunarhue/linkmark/internal/app/model"
	"gorm.io/gorm"
)

// LinkEventPublisher delivers change notifications to other services. The
// repository invokes it inside the same transaction as the row write, so a
// failed publish aborts the write.
type LinkEventPublisher interface {
	LinkCreated(ctx context.Context, link *model.Link) error
	LinkDeleted(ctx context.Context, link *model.Link) error
}

// LinkRepository defines the data access contract for links.
type LinkRepository interface {
	// GetAll lists links through the query model. idsLimit, when non-nil,
	// restricts the result to the given link ids.
	GetAll(ctx context.Context, queryModel *LinkListQueryModel, idsLimit []uuid.UUID) ([]model.Link, error)
	// Get returns a link visible to userID: owned by them or public. A nil
	// userID only reaches public links.
	Get(ctx context.Context, linkID uuid.UUID, userID *uuid.UUID) (*model.Link, error)
	// GetByShareableKey returns the link carrying the key regardless of
	// owner or privacy; that is the point of sharing.
	GetByShareableKey(ctx context.Context, key string) (*model.Link, error)
	Create(ctx context.Context, link *model.Link) error
	Update(ctx context.Context, link *model.Link, userID uuid.UUID) error
	Delete(ctx context.Context, linkID, userID uuid.UUID) error
	// ForceRemoveAllForUser purges every link of a user without ownership
	// checks or events. Only the user-deleted event handler calls this.
	ForceRemoveAllForUser(ctx context.Context, userID uuid.UUID) error
}

type linkRepository struct {
	db     *gorm.DB
	events LinkEventPublisher
}

// NewLinkRepository returns a GORM-backed LinkRepository coupled to the given
// event publisher.
func NewLinkRepository(db *gorm.DB, events LinkEventPublisher) LinkRepository {
	return &linkRepository{db: db, events: events}
}

func (r *linkRepository) GetAll(ctx context.Context, queryModel *LinkListQueryModel, idsLimit []uuid.UUID) ([]model.Link, error) {
	var links []model.Link
	tx := queryModel.Apply(r.db.WithContext(ctx).Model(&model.Link{}), idsLimit)
	if err := tx.Find(&links).Error; err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (r *linkRepository) Get(ctx context.Context, linkID uuid.UUID, userID *uuid.UUID) (*model.Link, error) {
	tx := r.db.WithContext(ctx).Where("id = ?", linkID)
	if userID != nil {
		tx = tx.Where("creating_user_id = ? OR privacy = ?", *userID, model.PrivacyPublic)
	} else {
		tx = tx.Where("privacy = ?", model.PrivacyPublic)
	}

	var link model.Link
	if err := tx.First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("link %s: %w", linkID, ErrNotFound)
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	return &link, nil
}

func (r *linkRepository) GetByShareableKey(ctx context.Context, key string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("shareable_key = ?", key).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("shared link: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get link by key: %w", err)
	}
	return &link, nil
}

// Create stamps server-side fields, then inserts the row and publishes the
// creation event as one atomic unit. A publish failure rolls the insert back.
func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	now := time.Now().UTC()
	link.CreationDate = now
	link.LastUpdate = now
	link.SearchableURL = model.NormalizeURL(link.LinkURL)
	link.ShareableKey = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(link).Error; err != nil {
			return err
		}
		if err := r.events.LinkCreated(ctx, link); err != nil {
			return fmt.Errorf("publish link created: %w", err)
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("url %q for user %s: %w", link.LinkURL, link.CreatingUserID, ErrAlreadyExists)
		}
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

// Update copies the mutable fields onto the stored row and refreshes the
// update timestamp. Only the owner may update; no event is emitted.
func (r *linkRepository) Update(ctx context.Context, link *model.Link, userID uuid.UUID) error {
	var existing model.Link
	err := r.db.WithContext(ctx).
		Where("id = ? AND creating_user_id = ?", link.ID, userID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("link %s for user %s: %w", link.ID, userID, ErrNotFound)
		}
		return fmt.Errorf("load link: %w", err)
	}

	existing.ApplyUpdate(link)
	existing.SearchableURL = model.NormalizeURL(existing.LinkURL)
	existing.LastUpdate = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ? AND creating_user_id = ?", link.ID, userID).
		Updates(map[string]interface{}{
			"link_url":       existing.LinkURL,
			"searchable_url": existing.SearchableURL,
			"title":          existing.Title,
			"description":    existing.Description,
			"privacy":        existing.Privacy,
			"last_update":    existing.LastUpdate,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return fmt.Errorf("url %q for user %s: %w", existing.LinkURL, userID, ErrAlreadyExists)
		}
		return fmt.Errorf("update link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("link %s for user %s: %w", link.ID, userID, ErrNotFound)
	}

	*link = existing
	return nil
}

// Delete removes an owned row and publishes the deletion event in one atomic
// unit; a publish failure leaves the row in place.
func (r *linkRepository) Delete(ctx context.Context, linkID, userID uuid.UUID) error {
	var link model.Link
	err := r.db.WithContext(ctx).
		Where("id = ? AND creating_user_id = ?", linkID, userID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("link %s for user %s: %w", linkID, userID, ErrNotFound)
		}
		return fmt.Errorf("load link: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND creating_user_id = ?", linkID, userID).Delete(&model.Link{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("link %s for user %s: %w", linkID, userID, ErrNotFound)
		}
		if err := r.events.LinkDeleted(ctx, &link); err != nil {
			return fmt.Errorf("publish link deleted: %w", err)
		}
		return nil
	})
	if err != nil {
		if IsDomainError(err) {
			return err
		}
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

func (r *linkRepository) ForceRemoveAllForUser(ctx context.Context, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("creating_user_id = ?", userID).
		Delete(&model.Link{})
	if result.Error != nil {
		return fmt.Errorf("remove links for user %s: %w", userID, result.Error)
	}
	return nil
}
