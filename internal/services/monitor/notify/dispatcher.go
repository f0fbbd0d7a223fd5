package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/NordCoder/Uptimer/internal/domain/channel"
	"github.com/NordCoder/Uptimer/internal/obs"
)

var sentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "uptimer_notifications_total",
	Help: "Notification attempts by channel type and result",
}, []string{"type", "result"})

// Result summarizes one fan-out. Errors are "<channel name>: <error>".
type Result struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

func (r Result) Err() error {
	var err error
	for _, e := range r.Errors {
		err = multierr.Append(err, errors.New(e))
	}
	return err
}

type Dispatcher struct {
	channels channel.Repo
	senders  map[channel.Type]Sender
	timeout  time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewDispatcher(channels channel.Repo, senders map[channel.Type]Sender, timeout time.Duration, log *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{channels: channels, senders: senders, timeout: timeout, log: log, now: time.Now}
}

// NotifyOwner sends p to every active channel of ownerID concurrently.
// A failing channel never prevents delivery to the others.
func (d *Dispatcher) NotifyOwner(ctx context.Context, ownerID int64, p Payload) (Result, error) {
	log := obs.WithTrace(ctx, d.log).With(zap.Int64("owner_id", ownerID))

	chs, err := d.channels.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return Result{}, fmt.Errorf("list channels: %w", err)
	}
	if len(chs) == 0 {
		log.Debug("no active channels")
		return Result{}, nil
	}

	errs := make([]error, len(chs))
	var wg sync.WaitGroup
	for i, ch := range chs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = d.Send(ctx, ch.Type, ch.Config, p)
		}()
	}
	wg.Wait()

	var res Result
	for i, ch := range chs {
		if errs[i] != nil {
			res.Failed++
			res.Errors = append(res.Errors, ch.Name+": "+errs[i].Error())
			log.Warn("notification failed",
				zap.Int64("channel_id", ch.ID), zap.String("type", string(ch.Type)), zap.Error(errs[i]))
			continue
		}
		res.Sent++
	}
	log.Info("notifications dispatched", zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
	return res, nil
}

// Send delivers p through a single channel of type typ, bounded by the dispatcher timeout.
func (d *Dispatcher) Send(ctx context.Context, typ channel.Type, cfg json.RawMessage, p Payload) error {
	s, ok := d.senders[typ]
	if !ok {
		sentTotal.WithLabelValues(string(typ), "unsupported").Inc()
		return fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := s.Send(ctx, cfg, p); err != nil {
		sentTotal.WithLabelValues(string(typ), "error").Inc()
		return err
	}
	sentTotal.WithLabelValues(string(typ), "ok").Inc()
	return nil
}

// Test sends the fixed test payload to an unsaved channel configuration.
func (d *Dispatcher) Test(ctx context.Context, typ channel.Type, cfg json.RawMessage) error {
	return d.Send(ctx, typ, cfg, TestPayload(d.now()))
}

// TestChannel sends the test payload to a stored channel.
func (d *Dispatcher) TestChannel(ctx context.Context, id int64) error {
	ch, err := d.channels.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return d.Test(ctx, ch.Type, ch.Config)
}
