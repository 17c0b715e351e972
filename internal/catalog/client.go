// Package catalog talks to the café content backend: workshops, menu
// items, site media, and temporary registration holds.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/internal/models"
	"github.com/cafe-robusta/backend/pkg/restclient"
)

// heroBackgroundSection is the preferred section key when falling back to
// an unscoped media query.
const heroBackgroundSection = "hero-background"

// Client is the content backend client.
type Client struct {
	rest   *restclient.Client
	logger *zap.Logger
}

// NewClient creates a catalog client.
func NewClient(rest *restclient.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rest: rest, logger: logger}
}

// ListWorkshops returns workshops, optionally only active ones.
func (c *Client) ListWorkshops(ctx context.Context, activeOnly bool) ([]models.Workshop, error) {
	q := url.Values{}
	if activeOnly {
		q.Set("active", "true")
	}
	var out []models.Workshop
	if err := c.rest.Get(ctx, "/workshops", q, &out); err != nil {
		return nil, fmt.Errorf("list workshops: %w", err)
	}
	return out, nil
}

// GetWorkshop returns one workshop by ID.
func (c *Client) GetWorkshop(ctx context.Context, id string) (*models.Workshop, error) {
	var out models.Workshop
	if err := c.rest.Get(ctx, "/workshops/"+url.PathEscape(id), nil, &out); err != nil {
		var apiErr *models.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return nil, models.ErrWorkshopNotFound
		}
		return nil, fmt.Errorf("get workshop %s: %w", id, err)
	}
	return &out, nil
}

// ListMenuItems returns menu entries for a category ("" for all).
func (c *Client) ListMenuItems(ctx context.Context, category string) ([]models.MenuItem, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	var out []models.MenuItem
	if err := c.rest.Get(ctx, "/coffee", q, &out); err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	return out, nil
}

// HeroMedia returns the media entry to show for a page section. The
// fallback policy lives here and only here: if the scoped query returns
// nothing, re-fetch unscoped and filter by page (case-insensitive,
// trimmed), preferring the hero-background section, else the first active
// entry for that page.
func (c *Client) HeroMedia(ctx context.Context, page, section string) (*models.MediaEntry, error) {
	q := url.Values{}
	q.Set("page", page)
	if section != "" {
		q.Set("section", section)
	}
	var scoped []models.MediaEntry
	if err := c.rest.Get(ctx, "/site-media", q, &scoped); err != nil {
		return nil, fmt.Errorf("site media: %w", err)
	}
	if len(scoped) > 0 {
		return &scoped[0], nil
	}

	// Empty scoped result is normal control flow, not an error.
	var all []models.MediaEntry
	if err := c.rest.Get(ctx, "/site-media", nil, &all); err != nil {
		return nil, fmt.Errorf("site media fallback: %w", err)
	}
	want := strings.ToLower(strings.TrimSpace(page))
	var first *models.MediaEntry
	for i := range all {
		m := &all[i]
		if !m.Active || strings.ToLower(strings.TrimSpace(m.Page)) != want {
			continue
		}
		if m.Section == heroBackgroundSection {
			return m, nil
		}
		if first == nil {
			first = m
		}
	}
	if first == nil {
		c.logger.Debug("no site media for page", zap.String("page", page))
	}
	return first, nil
}

// CreateTempRegistration asks the content backend for a temporary
// (unconfirmed) registration hold so a payment order can be reconciled to
// a seat. The backend expires unclaimed holds on its own schedule.
func (c *Client) CreateTempRegistration(ctx context.Context, draft models.RegistrationDraft) (string, error) {
	body := map[string]interface{}{
		"name":           draft.Name,
		"email":          draft.Email,
		"phone":          draft.Phone,
		"message":        draft.Message,
		"payment_method": draft.Method,
		"amount":         draft.Amount,
		"createTempOnly": true,
	}
	var out struct {
		RegistrationID string `json:"registration_id"`
	}
	path := "/workshops/" + url.PathEscape(draft.WorkshopID) + "/register"
	if err := c.rest.Post(ctx, path, body, &out); err != nil {
		return "", fmt.Errorf("create temp registration: %w", err)
	}
	if out.RegistrationID == "" {
		return "", fmt.Errorf("create temp registration: empty registration id")
	}
	return out.RegistrationID, nil
}
