package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/auth"
	"github.com/NordCoder/Uptimer/internal/domain/schedule"
	"github.com/NordCoder/Uptimer/internal/obs"
	"github.com/NordCoder/Uptimer/internal/obs/retry"
)

const (
	HeaderMessageID     = "Upstash-Message-Id"
	HeaderRetried       = "Upstash-Retried"
	HeaderFailedURL     = "Upstash-Failed-Url"
	HeaderFailedStatus  = "Upstash-Failed-Status"
	HeaderFailedMessage = "Upstash-Failed-Message"
)

var deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uptimer_scheduler_deliveries_total",
	Help: "Scheduled trigger deliveries by result",
}, []string{"result"})

// StatusError is a non-2xx answer from a destination.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("destination responded %d: %s", e.Code, e.Body)
}

// Delivery POSTs signed requests to schedule destinations.
type Delivery struct {
	Client     *http.Client
	SigningKey []byte
	Log        *zap.Logger
	Now        func() time.Time
	Backoff    retry.Backoff
}

func (d *Delivery) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Deliver retries up to sc.Retries times after the first attempt. Once retries are
// exhausted the failure callback, if any, is notified.
func (d *Delivery) Deliver(ctx context.Context, sc schedule.Schedule) error {
	msgID := "msg_" + uuid.NewString()
	ctx, span := otel.Tracer("scheduler").Start(ctx, "scheduler.deliver", trace.WithAttributes(
		attribute.String("schedule.id", sc.ID),
		attribute.String("message.id", msgID),
	))
	defer span.End()
	log := obs.WithTrace(ctx, d.Log).With(zap.String("schedule_id", sc.ID), zap.String("message_id", msgID))

	pol := retry.DeliveryPolicy(sc.ID, sc.Retries, log)
	if d.Backoff != nil {
		pol.Backoff = d.Backoff
	}

	attempt, lastStatus := 0, 0
	err := retry.Do(ctx, func() error {
		hdr := http.Header{}
		hdr.Set(HeaderMessageID, msgID)
		hdr.Set(HeaderRetried, strconv.Itoa(attempt))
		attempt++
		code, err := d.post(ctx, sc.Destination, nil, hdr)
		lastStatus = code
		return err
	}, pol)
	if err == nil {
		deliveriesTotal.WithLabelValues("ok").Inc()
		log.Debug("trigger delivered", zap.Int("attempts", attempt))
		return nil
	}
	span.RecordError(err)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	deliveriesTotal.WithLabelValues("failed").Inc()
	log.Error("trigger delivery exhausted", zap.Int("attempts", attempt), zap.Error(err))
	if sc.FailureCallback != "" {
		hdr := http.Header{}
		hdr.Set(HeaderMessageID, msgID)
		hdr.Set(HeaderRetried, strconv.Itoa(attempt-1))
		hdr.Set(HeaderFailedURL, sc.Destination)
		hdr.Set(HeaderFailedMessage, err.Error())
		if lastStatus != 0 {
			hdr.Set(HeaderFailedStatus, strconv.Itoa(lastStatus))
		}
		if _, cbErr := d.post(ctx, sc.FailureCallback, nil, hdr); cbErr != nil {
			deliveriesTotal.WithLabelValues("callback_failed").Inc()
			log.Warn("failure callback", zap.Error(cbErr))
		}
	}
	return fmt.Errorf("deliver %s: %w", sc.ID, err)
}

func (d *Delivery) post(ctx context.Context, url string, body []byte, hdr http.Header) (int, error) {
	sig, err := auth.Sign(d.SigningKey, url, body, d.now(), 0)
	if err != nil {
		return 0, fmt.Errorf("sign: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header = hdr
	req.Header.Set(auth.SignatureHeader, sig)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}
	return resp.StatusCode, nil
}
