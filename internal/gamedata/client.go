// Package gamedata wraps the external game-data lookup service. The service
// is read-only and unreliable: lookup failures of any kind degrade to
// ErrCharacterNotFound, and catalog failures degrade to empty results, so
// callers never see a transport error.
package gamedata

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var ErrCharacterNotFound = errors.New("gamedata: character not found")

// Character is the lookup result for a player-chosen character name.
type Character struct {
	Name     string `json:"name"`
	Level    int    `json:"level"`
	Vocation string `json:"vocation"`
	World    string `json:"world"`
	Guild    string `json:"guild,omitempty"`
}

// CatalogEntry decorates room cards; it is not part of the state machine.
type CatalogEntry struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json")

	return &Client{http: c}
}

// Character looks up a character by name. Any failure, transient or not,
// is reported as ErrCharacterNotFound.
func (c *Client) Character(ctx context.Context, name string) (*Character, error) {
	var ch Character
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&ch).
		SetPathParam("name", name).
		Get("/characters/{name}")
	if err != nil {
		logrus.WithError(err).WithField("character", name).Warn("gamedata: character lookup failed")
		return nil, ErrCharacterNotFound
	}
	if resp.StatusCode() != http.StatusOK || ch.Name == "" {
		return nil, ErrCharacterNotFound
	}
	return &ch, nil
}

// Worlds returns the list of game worlds, or an empty list on failure.
func (c *Client) Worlds(ctx context.Context) []string {
	var out struct {
		Worlds []string `json:"worlds"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/worlds")
	if err != nil || resp.StatusCode() != http.StatusOK {
		logrus.WithError(err).Warn("gamedata: worlds lookup failed")
		return nil
	}
	return out.Worlds
}

// Bosses returns the boss catalog, or an empty list on failure.
func (c *Client) Bosses(ctx context.Context) []CatalogEntry {
	return c.catalog(ctx, "/bosses")
}

// Creatures returns the creature catalog, or an empty list on failure.
func (c *Client) Creatures(ctx context.Context) []CatalogEntry {
	return c.catalog(ctx, "/creatures")
}

func (c *Client) catalog(ctx context.Context, path string) []CatalogEntry {
	var out struct {
		Entries []CatalogEntry `json:"entries"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get(path)
	if err != nil || resp.StatusCode() != http.StatusOK {
		logrus.WithError(err).WithField("path", path).Warn("gamedata: catalog lookup failed")
		return nil
	}
	return out.Entries
}
