package wikipedia

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/httputil"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// DefaultSP500URL is the public constituents list
const DefaultSP500URL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// Client fetches index constituents from Wikipedia
// ⭐ SSOT: Wikipedia 구성종목 조회는 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	sp500URL   string
}

// NewClient creates a new Wikipedia client; an empty url uses DefaultSP500URL
func NewClient(httpClient *httputil.Client, log *logger.Logger, sp500URL string) *Client {
	if sp500URL == "" {
		sp500URL = DefaultSP500URL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		sp500URL:   sp500URL,
	}
}

// FetchSP500 downloads and parses the current S&P 500 constituents
func (c *Client) FetchSP500(ctx context.Context) ([]Constituent, error) {
	body, err := c.httpClient.GetBody(ctx, c.sp500URL)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}

	constituents, err := ParseConstituents(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse constituents: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"url":   c.sp500URL,
		"count": len(constituents),
	}).Info("Fetched S&P 500 constituents")
	return constituents, nil
}
