package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lunarhue/linkmark/internal/app/model"
)

func newTestSharedRepo(db *gorm.DB) SharedLinkRepository {
	// SQLite rejects explicit isolation levels; its transactions are
	// serializable regardless.
	return NewSharedLinkRepository(db, WithTxOptions(&sql.TxOptions{}))
}

func TestSharedLinkRepository_PanicsWithoutUser(t *testing.T) {
	db := openTestDB(t)
	repo := newTestSharedRepo(db)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when no user info was set")
		}
	}()
	_, _ = repo.Share(context.Background(), uuid.New())
}

func TestSharedLinkRepository_SetUserInfoIsScoped(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	base := newTestSharedRepo(db)

	link := seedLink(t, db, owner, "https://example.com", "mine", model.PrivacyPrivate)

	scoped := base.SetUserInfo(owner)
	if _, err := scoped.Share(context.Background(), link.ID); err != nil {
		t.Fatalf("Share error: %v", err)
	}

	// The base repository must remain unscoped.
	defer func() {
		if recover() == nil {
			t.Fatal("expected base repository to stay unscoped")
		}
	}()
	_, _ = base.GetKey(context.Background(), link.ID)
}

func TestSharedLinkRepository_ShareLifecycle(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	repo := newTestSharedRepo(db).SetUserInfo(owner)
	ctx := context.Background()

	link := seedLink(t, db, owner, "https://example.com/secret", "secret", model.PrivacyPrivate)

	key, err := repo.Share(ctx, link.ID)
	if err != nil {
		t.Fatalf("Share error: %v", err)
	}
	if len(key) != model.ShareableKeyLength {
		t.Fatalf("expected %d-character key, got %d", model.ShareableKeyLength, len(key))
	}

	got, err := repo.GetKey(ctx, link.ID)
	if err != nil {
		t.Fatalf("GetKey error: %v", err)
	}
	if got != key {
		t.Fatal("GetKey returned a different key than Share issued")
	}

	if _, err := repo.Share(ctx, link.ID); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on second share, got %v", err)
	}

	// The first key must survive the failed second attempt.
	if got, err = repo.GetKey(ctx, link.ID); err != nil || got != key {
		t.Fatalf("original key lost after rejected share: %q, %v", got, err)
	}

	if err := repo.Unshare(ctx, link.ID); err != nil {
		t.Fatalf("Unshare error: %v", err)
	}
	if err := repo.Unshare(ctx, link.ID); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists on second unshare, got %v", err)
	}

	if _, err := repo.GetKey(ctx, link.ID); !errors.Is(err, ErrDataInvalid) {
		t.Fatalf("expected ErrDataInvalid for unshared link, got %v", err)
	}
	if got, err := repo.TryGetKey(ctx, link.ID); err != nil || got != "" {
		t.Fatalf("TryGetKey must swallow domain errors, got %q, %v", got, err)
	}

	// Re-sharing after revocation issues a fresh key.
	second, err := repo.Share(ctx, link.ID)
	if err != nil {
		t.Fatalf("re-share error: %v", err)
	}
	if second == key {
		t.Fatal("expected a fresh key after revocation")
	}
}

func TestSharedLinkRepository_ForeignLink(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	stranger := newTestSharedRepo(db).SetUserInfo(uuid.New())
	ctx := context.Background()

	link := seedLink(t, db, owner, "https://example.com", "mine", model.PrivacyPublic)

	if _, err := stranger.Share(ctx, link.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound sharing a foreign link, got %v", err)
	}
	if err := stranger.Unshare(ctx, link.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound unsharing a foreign link, got %v", err)
	}
	if _, err := stranger.GetKey(ctx, link.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound reading a foreign key, got %v", err)
	}
	if got, err := stranger.TryGetKey(ctx, link.ID); err != nil || got != "" {
		t.Fatalf("TryGetKey must swallow ErrNotFound, got %q, %v", got, err)
	}
}

func TestSharedLinkRepository_MissingLink(t *testing.T) {
	db := openTestDB(t)
	repo := newTestSharedRepo(db).SetUserInfo(uuid.New())

	if _, err := repo.Share(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing link, got %v", err)
	}
}
