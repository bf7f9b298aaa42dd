package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stwalsh4118/gotham-eye/internal/config"
	"github.com/stwalsh4118/gotham-eye/internal/logger"
	"github.com/stwalsh4118/gotham-eye/internal/metrics"
	"github.com/tidwall/gjson"
)

// soqlTimeLayout is the floating timestamp format SODA expects in $where.
const soqlTimeLayout = "2006-01-02T15:04:05"

// Client fetches dataset pages from the Socrata SODA API.
type Client struct {
	httpClient *http.Client
	appToken   string
	pageSize   int
	maxRetries int
	log        *logger.Logger
}

// NewClient creates a Socrata client from ingestion configuration.
func NewClient(cfg config.SocrataConfig, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		appToken:   cfg.AppToken,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		log:        log,
	}
}

// PageSize returns the $limit used for each page fetch.
func (c *Client) PageSize() int {
	return c.pageSize
}

// FetchPage retrieves one page of records ordered by event time. Rate
// limits and server errors are retried with exponential backoff; other
// HTTP failures abort the run immediately.
func (c *Client) FetchPage(ctx context.Context, dataset Dataset, since time.Time, offset int) ([]gjson.Result, error) {
	pageURL := c.pageURL(dataset, since, offset)
	cityLabel := dataset.City.String()

	var body []byte
	fetch := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if c.appToken != "" {
			req.Header.Set("X-App-Token", c.appToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.SocrataRequestsTotal.WithLabelValues(cityLabel, "failure").Inc()
			return fmt.Errorf("fetching page: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			metrics.SocrataRequestsTotal.WithLabelValues(cityLabel, "failure").Inc()
			return fmt.Errorf("socrata returned %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.SocrataRequestsTotal.WithLabelValues(cityLabel, "failure").Inc()
			return backoff.Permanent(fmt.Errorf("socrata returned %s", resp.Status))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			metrics.SocrataRequestsTotal.WithLabelValues(cityLabel, "failure").Inc()
			return fmt.Errorf("reading response: %w", err)
		}

		metrics.SocrataRequestsTotal.WithLabelValues(cityLabel, "success").Inc()
		return nil
	}

	err := backoff.Retry(fetch, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)),
		ctx,
	))
	if err != nil {
		return nil, fmt.Errorf("fetching %s at offset %d: %w", dataset.ID, offset, err)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON from %s at offset %d", dataset.ID, offset)
	}

	records := gjson.ParseBytes(body).Array()

	c.log.Debug("Fetched dataset page", map[string]interface{}{
		"city":    cityLabel,
		"dataset": dataset.ID,
		"offset":  offset,
		"records": len(records),
	})

	return records, nil
}

// pageURL builds the SODA query for one page.
func (c *Client) pageURL(dataset Dataset, since time.Time, offset int) string {
	query := url.Values{}
	query.Set("$limit", strconv.Itoa(c.pageSize))
	query.Set("$offset", strconv.Itoa(offset))
	query.Set("$order", fmt.Sprintf("%s ASC", dataset.Fields.OccurredAt))
	if !since.IsZero() {
		query.Set("$where", fmt.Sprintf("%s >= '%s'", dataset.Fields.OccurredAt, since.Format(soqlTimeLayout)))
	}
	return fmt.Sprintf("https://%s/resource/%s.json?%s", dataset.Host, dataset.ID, query.Encode())
}
