// Package practicum fetches homework statuses from the review API.
package practicum

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Client performs one GET per Fetch. It never retries: the poll loop owns retries.
type Client struct {
	endpoint string
	http     *resty.Client
	log      logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("practicum endpoint is empty")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("practicum token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "OAuth "+strings.TrimSpace(cfg.Token)).
		SetRetryCount(0)

	return &Client{endpoint: cfg.Endpoint, http: rc, log: log}, nil
}

// Fetch returns the raw JSON body of the statuses changed since fromDate (unix seconds).
//
// Errors are *homework.Error of kind Transport, UpstreamStatus or MalformedBody.
func (c *Client) Fetch(ctx context.Context, fromDate int64) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("from_date", strconv.FormatInt(fromDate, 10)).
		Get(c.endpoint)
	if err != nil {
		return nil, &homework.Error{Kind: homework.KindTransport, Op: "fetch", Err: err}
	}

	c.log.Debug("api answered",
		logx.Int("status", resp.StatusCode()),
		logx.Int64("from_date", fromDate),
		logx.Duration("took", resp.Time()),
	)

	if resp.StatusCode() != http.StatusOK {
		return nil, &homework.Error{Kind: homework.KindUpstreamStatus, Op: "fetch", StatusCode: resp.StatusCode()}
	}
	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, &homework.Error{
			Kind: homework.KindMalformedBody,
			Op:   "fetch",
			Err:  errors.New("response body is not valid JSON"),
		}
	}
	return body, nil
}
