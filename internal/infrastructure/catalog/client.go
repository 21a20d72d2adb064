package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"shopflow/internal/domain"
)

// ProductInfo is the part of the catalog product the order service needs.
type ProductInfo struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
}

type Client interface {
	GetProduct(ctx context.Context, id int64) (*ProductInfo, error)
}

type httpClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) Client {
	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GetProduct returns domain.ErrProductNotFound for a 404 and an
// UPSTREAM_UNAVAILABLE error for anything else that is not a 200.
func (c *httpClient) GetProduct(ctx context.Context, id int64) (*ProductInfo, error) {
	url := fmt.Sprintf("%s/products/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Catalog request failed", zap.Int64("product_id", id), zap.Error(err))
		return nil, domain.NewUpstreamError("catalog unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, domain.ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Warn("Catalog returned unexpected status", zap.Int64("product_id", id), zap.Int("status", resp.StatusCode))
		return nil, domain.NewUpstreamError(fmt.Sprintf("catalog returned status %d", resp.StatusCode), nil)
	}

	var p ProductInfo
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, domain.NewUpstreamError("catalog returned an invalid product body", err)
	}
	return &p, nil
}
