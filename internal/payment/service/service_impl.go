package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/openvenue/gatepass/internal/event/domain"
	"github.com/openvenue/gatepass/internal/notifier"
	obsmetrics "github.com/openvenue/gatepass/internal/observability/metrics"
	paymentdomain "github.com/openvenue/gatepass/internal/payment/domain"
	registrationdomain "github.com/openvenue/gatepass/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	RegRepo    registrationdomain.Repository
	EventRepo  eventdomain.Repository
	Gateway    paymentdomain.Gateway
	Dispatcher notifier.Dispatcher `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service is the settlement engine. Every path that can mark a payment
// successful (webhook, client verify poll, operator confirm) funnels
// into ProcessEvent, so the conditional writes below are the only place
// a registration gets paid and seats get decremented.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	regRepo    registrationdomain.Repository
	eventRepo  eventdomain.Repository
	gateway    paymentdomain.Gateway
	dispatcher notifier.Dispatcher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		regRepo:    p.RegRepo,
		eventRepo:  p.EventRepo,
		gateway:    p.Gateway,
		dispatcher: p.Dispatcher,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	now := time.Now().UTC()
	payload := event.RawPayload
	if len(payload) == 0 {
		payload = []byte("{}")
	} else if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	record := paymentdomain.WebhookEventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}
	inserted, err := s.repo.InsertWebhookEvent(ctx, s.db, &record)
	if err != nil {
		return err
	}
	stored := &record
	if !inserted {
		// The ledger row exists but processing may have failed before
		// the processed stamp. Only a stamped event is a true duplicate;
		// anything else gets reprocessed, the conditional writes make
		// that safe.
		stored, err = s.repo.FindWebhookEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		err = s.settle(ctx, event, now)
	case paymentdomain.EventTypePaymentFailed:
		err = s.recordFailure(ctx, event)
	case paymentdomain.EventTypePaymentAuthorized:
		err = s.recordAuthorization(ctx, event)
	default:
		err = paymentdomain.ErrInvalidEvent
	}
	if err != nil {
		return err
	}

	if err := s.repo.MarkWebhookEventProcessed(ctx, s.db, stored.ID, time.Now().UTC()); err != nil {
		return err
	}

	if inserted && s.obsMetrics != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type)
	}
	return nil
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.ProviderOrderID = strings.TrimSpace(event.ProviderOrderID)
	if event.ProviderOrderID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		if event.Amount <= 0 {
			return paymentdomain.ErrInvalidAmount
		}
		if strings.TrimSpace(event.Currency) == "" {
			return paymentdomain.ErrInvalidCurrency
		}
	case paymentdomain.EventTypePaymentFailed, paymentdomain.EventTypePaymentAuthorized:
	default:
		return paymentdomain.ErrInvalidEvent
	}
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	return nil
}

// settle performs the one success mutation. All writes are conditional;
// whichever concurrent caller gets RowsAffected on the payment update
// owns the registration flip, the seat decrement and the notification.
func (s *Service) settle(ctx context.Context, event *paymentdomain.PaymentEvent, now time.Time) error {
	var note *notifier.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := s.repo.MarkSucceeded(ctx, tx, event.ProviderOrderID, event.ProviderPaymentID, event.Method, now)
		if err != nil {
			return err
		}
		if !won {
			payment, err := s.repo.FindByProviderOrderID(ctx, tx, event.ProviderOrderID)
			if err != nil {
				return err
			}
			if payment == nil {
				return paymentdomain.ErrPaymentNotFound
			}
			// Already settled by a sibling event or the verify poll.
			s.log.Info("duplicate settlement ignored",
				zap.String("provider_order_id", event.ProviderOrderID),
				zap.String("status", string(payment.Status)),
			)
			return nil
		}

		payment, err := s.repo.FindByProviderOrderID(ctx, tx, event.ProviderOrderID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		if event.Amount > 0 && payment.Amount != event.Amount {
			s.log.Warn("settled amount differs from order amount",
				zap.String("provider_order_id", event.ProviderOrderID),
				zap.Int64("order_amount", payment.Amount),
				zap.Int64("settled_amount", event.Amount),
			)
		}

		regWon, err := s.regRepo.MarkPaid(ctx, tx, payment.RegistrationID)
		if err != nil {
			return err
		}
		if !regWon {
			// Another payment already confirmed this registration. The
			// partial unique index makes this unreachable in practice,
			// but the guard keeps the decrement single-shot regardless.
			s.log.Warn("registration already confirmed by another payment",
				zap.String("registration_id", payment.RegistrationID.String()),
				zap.String("provider_order_id", event.ProviderOrderID),
			)
			return nil
		}

		reg, err := s.regRepo.FindByID(ctx, tx, payment.RegistrationID)
		if err != nil {
			return err
		}
		if reg == nil {
			return registrationdomain.ErrNotFound
		}

		decremented, err := s.eventRepo.DecrementSeats(ctx, tx, reg.EventID, reg.Tickets)
		if err != nil {
			return err
		}
		if !decremented {
			// Money was taken for seats that no longer exist. The
			// settlement stands; operators reconcile from this signal.
			s.log.Error("settled payment found no seats",
				zap.String("registration_id", reg.ID.String()),
				zap.String("event_id", reg.EventID.String()),
				zap.Int("tickets", reg.Tickets),
			)
			if s.obsMetrics != nil {
				s.obsMetrics.RecordInventoryInconsistency(ctx)
			}
		} else if s.obsMetrics != nil {
			s.obsMetrics.RecordSeatDecrement(ctx, reg.Tickets)
		}

		eventRow, err := s.eventRepo.FindByID(ctx, tx, reg.EventID)
		if err != nil {
			return err
		}
		eventName := ""
		if eventRow != nil {
			eventName = eventRow.Name
		}

		note = &notifier.Notification{
			Kind:          notifier.KindConfirmation,
			To:            reg.Email,
			AttendeeName:  reg.Name,
			EventName:     eventName,
			ReferenceCode: reg.ReferenceCode,
			Tickets:       reg.Tickets,
			Amount:        payment.Amount,
			Currency:      payment.Currency,
		}
		if s.obsMetrics != nil {
			s.obsMetrics.RecordRegistration(ctx, string(registrationdomain.StatusPaid))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Queued only after the transaction committed.
	if note != nil && s.dispatcher != nil {
		s.dispatcher.Enqueue(*note)
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marked, err := s.repo.MarkFailed(ctx, tx, event.ProviderOrderID, event.ProviderPaymentID, event.FailureCode, event.FailureReason)
		if err != nil {
			return err
		}
		if !marked {
			payment, err := s.repo.FindByProviderOrderID(ctx, tx, event.ProviderOrderID)
			if err != nil {
				return err
			}
			if payment == nil {
				return paymentdomain.ErrPaymentNotFound
			}
			// A settled payment never regresses on a late failure event.
			return nil
		}

		payment, err := s.repo.FindByProviderOrderID(ctx, tx, event.ProviderOrderID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrPaymentNotFound
		}

		if _, err := s.regRepo.MarkFailed(ctx, tx, payment.RegistrationID); err != nil {
			return err
		}
		if s.obsMetrics != nil {
			s.obsMetrics.RecordRegistration(ctx, string(registrationdomain.StatusFailed))
		}
		return nil
	})
}

func (s *Service) recordAuthorization(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	_, err := s.repo.MarkAuthorized(ctx, s.db, event.ProviderOrderID, event.ProviderPaymentID)
	return err
}

// ConfirmOrder reconciles one provider order against the provider's own
// records. It is the webhook-loss fallback: the verify endpoint and the
// operator confirm both land here, and the synthesized event flows
// through the exact same pipeline as a webhook.
func (s *Service) ConfirmOrder(ctx context.Context, providerOrderID string) error {
	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" {
		return paymentdomain.ErrInvalidEvent
	}

	payments, err := s.gateway.FetchOrderPayments(ctx, providerOrderID)
	if err != nil {
		return err
	}

	var captured *paymentdomain.ProviderPayment
	var failed *paymentdomain.ProviderPayment
	for i := range payments {
		switch payments[i].Status {
		case "captured":
			captured = &payments[i]
		case "failed":
			failed = &payments[i]
		}
	}

	if captured != nil {
		event := &paymentdomain.PaymentEvent{
			Provider:          "razorpay",
			ProviderEventID:   "poll:" + captured.ID + ":captured",
			ProviderPaymentID: captured.ID,
			ProviderOrderID:   providerOrderID,
			Type:              paymentdomain.EventTypePaymentSucceeded,
			Amount:            captured.Amount,
			Currency:          captured.Currency,
			Method:            captured.Method,
			OccurredAt:        time.Unix(captured.CreatedAt, 0).UTC(),
		}
		if err := s.ProcessEvent(ctx, event); err != nil {
			if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
				return nil
			}
			return err
		}
		return nil
	}

	if failed != nil {
		event := &paymentdomain.PaymentEvent{
			Provider:          "razorpay",
			ProviderEventID:   "poll:" + failed.ID + ":failed",
			ProviderPaymentID: failed.ID,
			ProviderOrderID:   providerOrderID,
			Type:              paymentdomain.EventTypePaymentFailed,
			FailureCode:       failed.ErrorCode,
			FailureReason:     failed.ErrorReason,
			OccurredAt:        time.Unix(failed.CreatedAt, 0).UTC(),
		}
		if err := s.ProcessEvent(ctx, event); err != nil && !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			return err
		}
	}

	return paymentdomain.ErrOrderNotSettled
}

// Refund reverses a paid registration: the succeeded payment flips to
// refunded, the registration follows, and the seats return to the pool.
func (s *Service) Refund(ctx context.Context, registrationID snowflake.ID) error {
	var note *notifier.Notification

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reg, err := s.regRepo.FindByID(ctx, tx, registrationID)
		if err != nil {
			return err
		}
		if reg == nil {
			return registrationdomain.ErrNotFound
		}

		regWon, err := s.regRepo.MarkRefunded(ctx, tx, registrationID)
		if err != nil {
			return err
		}
		if !regWon {
			return registrationdomain.ErrNotRefundable
		}

		payments, err := s.repo.FindByRegistration(ctx, tx, registrationID)
		if err != nil {
			return err
		}
		var settled *paymentdomain.Payment
		for i := range payments {
			if payments[i].Status == paymentdomain.StatusSucceeded {
				settled = &payments[i]
				break
			}
		}
		if settled == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		if _, err := s.repo.MarkRefunded(ctx, tx, settled.ProviderOrderID); err != nil {
			return err
		}

		if _, err := s.eventRepo.RestoreSeats(ctx, tx, reg.EventID, reg.Tickets); err != nil {
			return err
		}

		eventRow, err := s.eventRepo.FindByID(ctx, tx, reg.EventID)
		if err != nil {
			return err
		}
		eventName := ""
		if eventRow != nil {
			eventName = eventRow.Name
		}

		note = &notifier.Notification{
			Kind:          notifier.KindRefund,
			To:            reg.Email,
			AttendeeName:  reg.Name,
			EventName:     eventName,
			ReferenceCode: reg.ReferenceCode,
			Tickets:       reg.Tickets,
			Amount:        settled.Amount,
			Currency:      settled.Currency,
		}
		if s.obsMetrics != nil {
			s.obsMetrics.RecordRegistration(ctx, string(registrationdomain.StatusRefunded))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if note != nil && s.dispatcher != nil {
		s.dispatcher.Enqueue(*note)
	}
	return nil
}
