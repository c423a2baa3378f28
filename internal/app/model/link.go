package model

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LinkPrivacy controls who can see a link besides its owner.
type LinkPrivacy int8

const (
	PrivacyPrivate LinkPrivacy = iota
	PrivacyPublic
)

const (
	MaxURLLength         = 200
	MaxTitleLength       = 250
	MaxDescriptionLength = 1000

	// ShareableKeyBytes random bytes encode to exactly ShareableKeyLength
	// base64url characters (48 = 36 * 4 / 3, no padding).
	ShareableKeyBytes  = 36
	ShareableKeyLength = 48
)

// Link describes a stored bookmark owned by a single user.
//
// SearchableURL is a derived projection of LinkURL (upper-cased, scheme
// stripped) maintained by the repository on every insert and URL change; it
// is the only column used for substring search and URL sorting.
// ShareableKey, when set, grants anonymous read access and must be unique
// across all shared links.
type Link struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	LinkURL        string      `gorm:"size:200;not null;uniqueIndex:idx_links_owner_url" json:"link_url"`
	SearchableURL  string      `gorm:"size:200;not null;index" json:"-"`
	Title          string      `gorm:"size:250;not null" json:"title"`
	Description    string      `gorm:"size:1000" json:"description,omitempty"`
	Privacy        LinkPrivacy `gorm:"not null;default:0" json:"privacy"`
	CreationDate   time.Time   `json:"creation_date"`
	LastUpdate     time.Time   `json:"last_update"`
	CreatingUserID uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_links_owner_url" json:"creating_user_id"`
	ShareableKey   *string     `gorm:"size:48;uniqueIndex" json:"-"`
}

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

// NormalizeURL returns the searchable projection of a link URL: upper-cased
// and with any leading http:// or https:// scheme removed.
func NormalizeURL(raw string) string {
	return strings.ToUpper(schemePattern.ReplaceAllString(raw, ""))
}

// NewShareableKey generates an unguessable, URL-safe 48-character key.
func NewShareableKey() (string, error) {
	buf := make([]byte, ShareableKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate shareable key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Validate checks the client-settable fields. Server-assigned fields (id,
// dates, searchable URL, shareable key) are not the client's to validate.
func (l *Link) Validate() error {
	if strings.TrimSpace(l.LinkURL) == "" {
		return errors.New("link url is required")
	}
	if len(l.LinkURL) > MaxURLLength {
		return fmt.Errorf("link url exceeds %d characters", MaxURLLength)
	}
	parsed, err := url.Parse(l.LinkURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return errors.New("link url must be an absolute URI")
	}
	if strings.TrimSpace(l.Title) == "" {
		return errors.New("title is required")
	}
	if len(l.Title) > MaxTitleLength {
		return fmt.Errorf("title exceeds %d characters", MaxTitleLength)
	}
	if len(l.Description) > MaxDescriptionLength {
		return fmt.Errorf("description exceeds %d characters", MaxDescriptionLength)
	}
	if l.Privacy != PrivacyPrivate && l.Privacy != PrivacyPublic {
		return errors.New("privacy must be private or public")
	}
	return nil
}

// ApplyUpdate copies the mutable fields from newer onto l. Identity, owner,
// timestamps and the shareable key are never copied.
func (l *Link) ApplyUpdate(newer *Link) {
	l.LinkURL = newer.LinkURL
	l.Title = newer.Title
	l.Description = newer.Description
	l.Privacy = newer.Privacy
}

// Shared reports whether the link currently has a shareable key.
func (l *Link) Shared() bool {
	return l.ShareableKey != nil && *l.ShareableKey != ""
}
