// Package notifier renders RFQ emails and hands them to a mail transport,
// reporting the outcome per recipient.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/suteetoe/procurement-service/pkg/config"
	"github.com/suteetoe/procurement-service/pkg/logger"
	"github.com/suteetoe/procurement-service/prometheus"
)

var (
	ErrTemplate = errors.New("template error")
	ErrSend     = errors.New("send failed")
	ErrTimeout  = errors.New("timeout")
)

// Status is the per-recipient result of a notification.
type Status string

const (
	StatusSent   Status = "sent"
	StatusFailed Status = "failed"
)

// Message addresses one RFQ email. An empty TemplateID uses the notifier default.
type Message struct {
	To         string
	TemplateID string
	Context    RFQContext
}

// Outcome reports what happened to one Message.
type Outcome struct {
	Status Status
	Reason string
	Err    error
}

// Subject builds the RFQ subject line.
func Subject(c RFQContext) string {
	if c.RequestID == 0 {
		return fmt.Sprintf("RFQ: %s - %s", c.Categoria, c.Material)
	}
	return fmt.Sprintf("RFQ #%d: %s - %s", c.RequestID, c.Categoria, c.Material)
}

// Notifier combines a Renderer and a Sender under a per-recipient deadline.
type Notifier struct {
	renderer   *Renderer
	sender     Sender
	templateID string
	from       string
	timeout    time.Duration
	metrics    *prometheus.Metrics
}

// New checks that the configured default template exists. metrics may be nil.
func New(renderer *Renderer, sender Sender, cfg config.NotifyConfig, metrics *prometheus.Metrics) (*Notifier, error) {
	if !renderer.Has(cfg.TemplateID) {
		return nil, fmt.Errorf("%w: unknown template %q (loaded: %v)", ErrTemplate, cfg.TemplateID, renderer.IDs())
	}
	if cfg.SendTimeout <= 0 {
		return nil, fmt.Errorf("send timeout must be positive")
	}
	return &Notifier{
		renderer:   renderer,
		sender:     sender,
		templateID: cfg.TemplateID,
		from:       cfg.FromAddress,
		timeout:    cfg.SendTimeout,
		metrics:    metrics,
	}, nil
}

// Render executes a template. An empty templateID selects the default.
func (n *Notifier) Render(templateID string, c RFQContext) (string, error) {
	if templateID == "" {
		templateID = n.templateID
	}
	return n.renderer.Render(templateID, c)
}

// Send delivers one message, giving up after the configured timeout.
func (n *Notifier) Send(ctx context.Context, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- n.sender.Send(ctx, to, subject, body) }()

	select {
	case err := <-done:
		return sendError(to, err)
	case <-ctx.Done():
		// A result that is already in wins over a cancellation that raced it.
		select {
		case err := <-done:
			return sendError(to, err)
		default:
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrTimeout, to)
		}
		return fmt.Errorf("%w: %s: %v", ErrSend, to, ctx.Err())
	}
}

func sendError(to string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, to)
	}
	return fmt.Errorf("%w: %s: %v", ErrSend, to, err)
}

// Notify renders and sends msg. It never returns an error; failures are
// reported in the Outcome.
func (n *Notifier) Notify(ctx context.Context, msg Message) Outcome {
	log := logger.FromContext(ctx).With(zap.String("to", msg.To), zap.Uint("request_id", msg.Context.RequestID))

	if msg.Context.RemetenteEmail == "" {
		msg.Context.RemetenteEmail = n.from
	}

	out := Outcome{Status: StatusSent}
	body, err := n.Render(msg.TemplateID, msg.Context)
	if err == nil {
		err = n.Send(ctx, msg.To, Subject(msg.Context), body)
	}
	if err != nil {
		out = Outcome{Status: StatusFailed, Reason: reason(err), Err: err}
		log.Warn("RFQ notification failed", zap.String("reason", out.Reason), zap.Error(err))
	} else {
		log.Info("RFQ notification sent")
	}

	n.metrics.RecordNotification(string(out.Status))
	return out
}

func reason(err error) string {
	if errors.Is(err, ErrTimeout) {
		return "timeout"
	}
	return err.Error()
}
