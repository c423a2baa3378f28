package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/lunarhue/linkmark/internal/app/model"
)

type mockPublisher struct {
	linkCreatedFn func(ctx context.Context, link *model.Link) error
	linkDeletedFn func(ctx context.Context, link *model.Link) error
}

func (m *mockPublisher) LinkCreated(ctx context.Context, link *model.Link) error {
	if m.linkCreatedFn != nil {
		return m.linkCreatedFn(ctx, link)
	}
	return nil
}

func (m *mockPublisher) LinkDeleted(ctx context.Context, link *model.Link) error {
	if m.linkDeletedFn != nil {
		return m.linkDeletedFn(ctx, link)
	}
	return nil
}

func TestLinkRepository_Create(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()

	var published *model.Link
	repo := NewLinkRepository(db, &mockPublisher{
		linkCreatedFn: func(ctx context.Context, link *model.Link) error {
			published = link
			return nil
		},
	})

	link := &model.Link{
		LinkURL:        "https://Example.com/Article",
		Title:          "Article",
		Privacy:        model.PrivacyPublic,
		CreatingUserID: owner,
	}
	if err := repo.Create(context.Background(), link); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if link.ID == uuid.Nil {
		t.Fatal("expected id to be assigned")
	}
	if link.SearchableURL != "EXAMPLE.COM/ARTICLE" {
		t.Fatalf("unexpected searchable url %q", link.SearchableURL)
	}
	if link.CreationDate.IsZero() || !link.CreationDate.Equal(link.LastUpdate) {
		t.Fatal("expected creation and update dates stamped equal")
	}
	if link.ShareableKey != nil {
		t.Fatal("new links must not carry a shareable key")
	}
	if published == nil || published.ID != link.ID {
		t.Fatal("expected creation event for the new link")
	}
}

func TestLinkRepository_Create_DuplicateURL(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	repo := NewLinkRepository(db, &mockPublisher{})

	first := &model.Link{LinkURL: "https://example.com", Title: "one", CreatingUserID: owner}
	if err := repo.Create(context.Background(), first); err != nil {
		t.Fatalf("first Create error: %v", err)
	}

	dup := &model.Link{LinkURL: "https://example.com", Title: "two", CreatingUserID: owner}
	if err := repo.Create(context.Background(), dup); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// Same URL under another user is a different bookmark.
	other := &model.Link{LinkURL: "https://example.com", Title: "three", CreatingUserID: uuid.New()}
	if err := repo.Create(context.Background(), other); err != nil {
		t.Fatalf("cross-user Create error: %v", err)
	}
}

func TestLinkRepository_Create_PublishFailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	repo := NewLinkRepository(db, &mockPublisher{
		linkCreatedFn: func(ctx context.Context, link *model.Link) error {
			return errors.New("broker unavailable")
		},
	})

	link := &model.Link{LinkURL: "https://example.com", Title: "doomed", CreatingUserID: uuid.New()}
	if err := repo.Create(context.Background(), link); err == nil {
		t.Fatal("expected Create to fail when publish fails")
	}

	var count int64
	if err := db.Model(&model.Link{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected insert rolled back, found %d rows", count)
	}
}

func TestLinkRepository_Get(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	stranger := uuid.New()
	repo := NewLinkRepository(db, &mockPublisher{})

	private := seedLink(t, db, owner, "https://example.com/private", "private", model.PrivacyPrivate)
	public := seedLink(t, db, owner, "https://example.com/public", "public", model.PrivacyPublic)

	t.Run("owner reads own private link", func(t *testing.T) {
		got, err := repo.Get(context.Background(), private.ID, &owner)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if got.ID != private.ID {
			t.Fatal("wrong link returned")
		}
	})

	t.Run("stranger cannot read private link", func(t *testing.T) {
		if _, err := repo.Get(context.Background(), private.ID, &stranger); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("anonymous reads public link", func(t *testing.T) {
		got, err := repo.Get(context.Background(), public.ID, nil)
		if err != nil {
			t.Fatalf("Get error: %v", err)
		}
		if got.ID != public.ID {
			t.Fatal("wrong link returned")
		}
	})

	t.Run("anonymous cannot read private link", func(t *testing.T) {
		if _, err := repo.Get(context.Background(), private.ID, nil); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestLinkRepository_GetByShareableKey(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	repo := NewLinkRepository(db, &mockPublisher{})

	private := seedLink(t, db, owner, "https://example.com/secret", "secret", model.PrivacyPrivate)
	key, err := model.NewShareableKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if err := db.Model(private).Update("shareable_key", key).Error; err != nil {
		t.Fatalf("set key: %v", err)
	}

	got, err := repo.GetByShareableKey(context.Background(), key)
	if err != nil {
		t.Fatalf("GetByShareableKey error: %v", err)
	}
	if got.ID != private.ID {
		t.Fatal("wrong link returned")
	}

	if _, err := repo.GetByShareableKey(context.Background(), "no-such-key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLinkRepository_Update(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	repo := NewLinkRepository(db, &mockPublisher{})

	stored := seedLink(t, db, owner, "https://old.example.com", "old", model.PrivacyPrivate)
	createdAt := stored.CreationDate

	update := &model.Link{
		ID:          stored.ID,
		LinkURL:     "https://new.example.com",
		Title:       "new",
		Description: "fresh",
		Privacy:     model.PrivacyPublic,
	}
	if err := repo.Update(context.Background(), update, owner); err != nil {
		t.Fatalf("Update error: %v", err)
	}

	var reloaded model.Link
	if err := db.First(&reloaded, "id = ?", stored.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.LinkURL != "https://new.example.com" || reloaded.Title != "new" ||
		reloaded.Description != "fresh" || reloaded.Privacy != model.PrivacyPublic {
		t.Fatalf("fields not updated: %+v", reloaded)
	}
	if reloaded.SearchableURL != "NEW.EXAMPLE.COM" {
		t.Fatalf("searchable url not recomputed: %q", reloaded.SearchableURL)
	}
	if !reloaded.CreationDate.Equal(createdAt) {
		t.Fatal("creation date must not change on update")
	}
	if !reloaded.LastUpdate.After(createdAt) {
		t.Fatal("last update must advance")
	}
	if update.CreatingUserID != owner {
		t.Fatal("expected updated entity to reflect stored owner")
	}
}

func TestLinkRepository_Update_WrongOwner(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	repo := NewLinkRepository(db, &mockPublisher{})

	stored := seedLink(t, db, owner, "https://example.com", "mine", model.PrivacyPrivate)

	update := &model.Link{ID: stored.ID, LinkURL: "https://evil.example.com", Title: "hijack"}
	if err := repo.Update(context.Background(), update, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLinkRepository_Delete(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()

	var published *model.Link
	repo := NewLinkRepository(db, &mockPublisher{
		linkDeletedFn: func(ctx context.Context, link *model.Link) error {
			published = link
			return nil
		},
	})

	stored := seedLink(t, db, owner, "https://example.com", "gone soon", model.PrivacyPrivate)

	if err := repo.Delete(context.Background(), stored.ID, owner); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if published == nil || published.ID != stored.ID {
		t.Fatal("expected deletion event for the removed link")
	}

	var count int64
	if err := db.Model(&model.Link{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("expected link removed")
	}

	if err := repo.Delete(context.Background(), stored.ID, owner); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestLinkRepository_Delete_PublishFailureKeepsRow(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	repo := NewLinkRepository(db, &mockPublisher{
		linkDeletedFn: func(ctx context.Context, link *model.Link) error {
			return errors.New("broker unavailable")
		},
	})

	stored := seedLink(t, db, owner, "https://example.com", "survivor", model.PrivacyPrivate)

	if err := repo.Delete(context.Background(), stored.ID, owner); err == nil {
		t.Fatal("expected Delete to fail when publish fails")
	}

	var count int64
	if err := db.Model(&model.Link{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatal("expected delete rolled back")
	}
}

func TestLinkRepository_Delete_WrongOwner(t *testing.T) {
	db := openTestDB(t)
	owner := uuid.New()
	repo := NewLinkRepository(db, &mockPublisher{})

	stored := seedLink(t, db, owner, "https://example.com", "mine", model.PrivacyPrivate)

	if err := repo.Delete(context.Background(), stored.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLinkRepository_ForceRemoveAllForUser(t *testing.T) {
	db := openTestDB(t)
	doomed := uuid.New()
	other := uuid.New()

	deletions := 0
	repo := NewLinkRepository(db, &mockPublisher{
		linkDeletedFn: func(ctx context.Context, link *model.Link) error {
			deletions++
			return nil
		},
	})

	seedLink(t, db, doomed, "https://a.example.com", "a", model.PrivacyPrivate)
	seedLink(t, db, doomed, "https://b.example.com", "b", model.PrivacyPublic)
	kept := seedLink(t, db, other, "https://c.example.com", "c", model.PrivacyPublic)

	if err := repo.ForceRemoveAllForUser(context.Background(), doomed); err != nil {
		t.Fatalf("ForceRemoveAllForUser error: %v", err)
	}

	var remaining []model.Link
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != kept.ID {
		t.Fatalf("expected only the other user's link to remain, got %v", remaining)
	}
	if deletions != 0 {
		t.Fatal("bulk purge must not emit per-link deletion events")
	}

	// Purging a user without links is a no-op, not an error.
	if err := repo.ForceRemoveAllForUser(context.Background(), doomed); err != nil {
		t.Fatalf("second purge error: %v", err)
	}
}
