// Package client holds HTTP clients for the sibling microservices this
// service collaborates with.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/lunarhue/linkmark/config"
)

const defaultRequestTimeout = 10 * time.Second

// TagLookup resolves which links carry a given tag. A failed lookup is a
// request-level error for the caller, never a silent empty set.
type TagLookup interface {
	GetLinkIDsForTag(ctx context.Context, tagID uuid.UUID) ([]uuid.UUID, error)
}

// TagsClient talks to the tags microservice. When client credentials are
// configured, requests carry a service-to-service access token.
type TagsClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewTagsClient builds a TagsClient from configuration.
func NewTagsClient(cfg config.TagsConfig, logger *zap.Logger) *TagsClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{Timeout: defaultRequestTimeout}
	if cfg.ClientID != "" {
		creds := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = creds.Client(context.Background())
		httpClient.Timeout = defaultRequestTimeout
	}

	return &TagsClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     logger,
	}
}

type tagLinkIDDto struct {
	ID uuid.UUID `json:"id"`
}

// GetLinkIDsForTag returns the ids of all links tagged with tagID.
func (c *TagsClient) GetLinkIDsForTag(ctx context.Context, tagID uuid.UUID) ([]uuid.UUID, error) {
	url := fmt.Sprintf("%s/linkTags/getLinksForTag/%s", c.baseURL, tagID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("tags: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("tags service request failed", zap.String("tag_id", tagID.String()), zap.Error(err))
		return nil, fmt.Errorf("tags: request tag %s: %w", tagID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("tags service returned unexpected status",
			zap.String("tag_id", tagID.String()),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("tags: tag %s: unexpected status %d", tagID, resp.StatusCode)
	}

	var dtos []tagLinkIDDto
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("tags: decode response for tag %s: %w", tagID, err)
	}

	ids := make([]uuid.UUID, 0, len(dtos))
	for _, dto := range dtos {
		ids = append(ids, dto.ID)
	}
	return ids, nil
}
