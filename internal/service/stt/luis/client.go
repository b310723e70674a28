// Package luis resolves recognized text into intents with the LUIS prediction
// API and decorates engines so their Recognized events carry the prediction.
package luis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	keyHeader      = "Ocp-Apim-Subscription-Key"
	DefaultTimeout = 3 * time.Second
)

var ErrEmptyQuery = errors.New("luis: empty query")

// Config addresses one LUIS application.
type Config struct {
	Endpoint string
	AppID    string
	Key      string
	Staging  bool
	Timeout  time.Duration
	// Intents restricts which top intents are reported. Empty accepts all.
	Intents []string
}

// Prediction is the parsed top-scoring intent plus the raw response body.
type Prediction struct {
	Query  string
	Intent string
	Score  float64
	Raw    string
}

// Client calls the v2 prediction endpoint.
type Client struct {
	http    *resty.Client
	appID   string
	staging bool
	intents []string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Endpoint, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Key != "" {
		c.SetHeader(keyHeader, cfg.Key)
	}
	return &Client{
		http:    c,
		appID:   cfg.AppID,
		staging: cfg.Staging,
		intents: cfg.Intents,
	}
}

// Predict sends query to the application and returns its top intent.
func (c *Client) Predict(ctx context.Context, query string) (*Prediction, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("appId", c.appID).
		SetQueryParam("q", query).
		SetQueryParam("staging", strconv.FormatBool(c.staging)).
		SetQueryParam("verbose", "false").
		Get("/luis/v2.0/apps/{appId}")
	if err != nil {
		return nil, fmt.Errorf("luis predict: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("luis predict: unexpected status %d", resp.StatusCode())
	}

	body := resp.String()
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("luis predict: invalid response body")
	}
	top := gjson.Get(body, "topScoringIntent")
	p := &Prediction{
		Query:  gjson.Get(body, "query").String(),
		Intent: top.Get("intent").String(),
		Score:  top.Get("score").Float(),
		Raw:    body,
	}
	if len(c.intents) > 0 && !slices.Contains(c.intents, p.Intent) {
		p.Intent = ""
	}
	return p, nil
}
