// Package api is a client for the screening backend job API.
package api

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	candidatesPath = "/candidates"
	userAgent      = "spigell/talent-screener"

	defaultTimeout = 30 * time.Second
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
}

// New returns a client for the backend rooted at apiURL.
// An empty token means the backend is called without an Authorization header.
func New(logger *zap.Logger, apiURL, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  strings.TrimSpace(token),
		APIURL: strings.TrimRight(strings.TrimSpace(apiURL), "/"),
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:    logger,
		UserAgent: userAgent,
	}
}

// Authenticated reports whether requests carry a bearer token.
func (c *Client) Authenticated() bool {
	return c.token != ""
}
