// Package notify posts recognition notifications to the consumer's HTTP
// endpoint. Delivery is best effort: one attempt, outcome logged, never retried.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/hyy20190326/luis-0509/internal/models"
	"github.com/hyy20190326/luis-0509/internal/observability/logging"
	"github.com/hyy20190326/luis-0509/internal/observability/metrics"
)

// DefaultTimeout bounds one notification call.
const DefaultTimeout = 5 * time.Second

// Mirror receives a copy of every notification, e.g. a Kafka publisher.
type Mirror interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

// Options configures a Notifier.
type Options struct {
	// URL receives every notification. The descriptor's callback url is
	// session metadata and never a delivery target.
	URL     string
	AuthKey string
	Timeout time.Duration
	Mirror  Mirror
}

type Notifier struct {
	client *resty.Client
	opts   Options
	logger zerolog.Logger
}

func New(opts Options) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", opts.AuthKey)

	return &Notifier{
		client: client,
		opts:   opts,
		logger: logging.WithComponent("notifier"),
	}
}

// Notify sends n for the session described by desc. It blocks until the call
// completes or times out and never reports failure to the caller.
func (nt *Notifier) Notify(ctx context.Context, desc models.SessionDescriptor, n models.Notification) {
	if nt.opts.URL != "" {
		nt.post(ctx, nt.opts.URL, n)
	} else {
		nt.logger.Warn().
			Str("session", n.Session).
			Str("callbackurl", desc.CallbackURL).
			Msg("no notification url configured")
	}

	if nt.opts.Mirror != nil {
		// errors are logged by the mirror
		_ = nt.opts.Mirror.Publish(ctx, n.Session, n.Event, n)
	}
}

func (nt *Notifier) post(ctx context.Context, url string, n models.Notification) {
	start := time.Now()

	// resty reads the whole body, which keeps the connection reusable
	resp, err := nt.client.R().
		SetContext(ctx).
		SetBody(n).
		Post(url)
	if err == nil && resp.IsError() {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	latency := time.Since(start)
	metrics.DefaultMetrics.RecordNotification(n.Event, err, latency.Seconds())

	if err != nil {
		nt.logger.Error().
			Err(err).
			Str("session", n.Session).
			Str("event", n.Event).
			Str("url", url).
			Dur("latency", latency).
			Msg("notification failed")
		return
	}
	nt.logger.Debug().
		Str("session", n.Session).
		Str("event", n.Event).
		Int("status", resp.StatusCode()).
		Dur("latency", latency).
		Msg("notification sent")
}
