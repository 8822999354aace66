package notifier

import (
	"bytes"
	"context"
	"html/template"
	"time"

	"github.com/openvenue/gatepass/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	queueSize    = 256
	sendAttempts = 3
	retryDelay   = 5 * time.Second
	sendTimeout  = 15 * time.Second
)

const (
	KindConfirmation = "confirmation"
	KindRefund       = "refund"
)

// Notification is one outbound message. Settlement never waits on it;
// messages are queued after the database work committed.
type Notification struct {
	Kind          string
	To            string
	AttendeeName  string
	EventName     string
	ReferenceCode string
	Tickets       int
	Amount        int64
	Currency      string
}

// Dispatcher hands notifications to a background worker.
type Dispatcher interface {
	Enqueue(n Notification) bool
}

type DispatcherParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Log       *zap.Logger
	Provider  Provider
	Metrics   *metrics.Metrics `optional:"true"`
}

type dispatcher struct {
	log      *zap.Logger
	provider Provider
	metrics  *metrics.Metrics
	queue    chan Notification
	done     chan struct{}
	sleep    func(time.Duration)
}

func NewDispatcher(p DispatcherParams) Dispatcher {
	d := &dispatcher{
		log:      p.Log.Named("notifier"),
		provider: p.Provider,
		metrics:  p.Metrics,
		queue:    make(chan Notification, queueSize),
		done:     make(chan struct{}),
		sleep:    time.Sleep,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go d.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(d.queue)
			select {
			case <-d.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	return d
}

// Enqueue is non-blocking. A full queue drops the message and reports
// false; confirmation state already lives in the database, so a lost
// email is recoverable.
func (d *dispatcher) Enqueue(n Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		d.log.Warn("notification queue full, dropping message",
			zap.String("kind", n.Kind),
			zap.String("reference_code", n.ReferenceCode),
		)
		if d.metrics != nil {
			d.metrics.RecordNotification(context.Background(), "dropped")
		}
		return false
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for n := range d.queue {
		d.deliver(n)
	}
}

func (d *dispatcher) deliver(n Notification) {
	subject, body, err := render(n)
	if err != nil {
		d.log.Error("failed to render notification", zap.Error(err))
		if d.metrics != nil {
			d.metrics.RecordNotification(context.Background(), "render_error")
		}
		return
	}

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		lastErr = d.provider.Send(ctx, []string{n.To}, subject, body)
		cancel()
		if lastErr == nil {
			if d.metrics != nil {
				d.metrics.RecordNotification(context.Background(), "sent")
			}
			return
		}
		if attempt < sendAttempts {
			d.sleep(retryDelay)
		}
	}

	d.log.Error("failed to deliver notification",
		zap.String("kind", n.Kind),
		zap.String("reference_code", n.ReferenceCode),
		zap.Error(lastErr),
	)
	if d.metrics != nil {
		d.metrics.RecordNotification(context.Background(), "failed")
	}
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`
<p>Hi {{.AttendeeName}},</p>
<p>Your booking for <strong>{{.EventName}}</strong> is confirmed.</p>
<p>Reference: <strong>{{.ReferenceCode}}</strong><br>
Tickets: {{.Tickets}}<br>
Amount paid: {{.Amount}} {{.Currency}}</p>
<p>Show this reference at the venue.</p>
`))

var refundTmpl = template.Must(template.New("refund").Parse(`
<p>Hi {{.AttendeeName}},</p>
<p>Your booking <strong>{{.ReferenceCode}}</strong> for {{.EventName}} has been refunded.</p>
<p>The amount of {{.Amount}} {{.Currency}} will reach your account per your bank's timelines.</p>
`))

func render(n Notification) (string, string, error) {
	var (
		tmpl    *template.Template
		subject string
	)
	switch n.Kind {
	case KindRefund:
		tmpl = refundTmpl
		subject = "Your booking has been refunded"
	default:
		tmpl = confirmationTmpl
		subject = "Your booking is confirmed: " + n.EventName
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, n); err != nil {
		return "", "", err
	}
	return subject, body.String(), nil
}
