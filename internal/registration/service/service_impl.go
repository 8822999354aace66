package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/openvenue/gatepass/internal/config"
	eventdomain "github.com/openvenue/gatepass/internal/event/domain"
	"github.com/openvenue/gatepass/internal/observability/logger"
	obsmetrics "github.com/openvenue/gatepass/internal/observability/metrics"
	paymentdomain "github.com/openvenue/gatepass/internal/payment/domain"
	paymentservice "github.com/openvenue/gatepass/internal/payment/service"
	registrationdomain "github.com/openvenue/gatepass/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxTicketsPerRegistration = 10

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	Repo       registrationdomain.Repository
	EventRepo  eventdomain.Repository
	PayRepo    paymentdomain.Repository
	Gateway    paymentdomain.Gateway
	PaymentSvc *paymentservice.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	cfg        config.Config
	repo       registrationdomain.Repository
	eventRepo  eventdomain.Repository
	payRepo    paymentdomain.Repository
	gateway    paymentdomain.Gateway
	paymentSvc *paymentservice.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) registrationdomain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("registration.service"),
		genID:      p.GenID,
		cfg:        p.Cfg,
		repo:       p.Repo,
		eventRepo:  p.EventRepo,
		payRepo:    p.PayRepo,
		gateway:    p.Gateway,
		paymentSvc: p.PaymentSvc,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *service) Create(ctx context.Context, req registrationdomain.CreateRequest) (*registrationdomain.CreateResponse, error) {
	if errs := validateIntake(&req); len(errs) > 0 {
		return nil, errs
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(req.EventID))
	if err != nil {
		return nil, registrationdomain.ValidationErrors{{Field: "event_id", Reason: "must be a valid event id"}}
	}

	event, err := s.eventRepo.FindByID(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, registrationdomain.ErrEventNotFound
	}
	if event.Status != eventdomain.StatusPublished {
		return nil, eventdomain.ErrNotPublished
	}

	// Advisory availability check. The binding check is the conditional
	// decrement at settlement time; this one only spares the user a
	// doomed checkout.
	if event.SeatsAvailable < req.Tickets {
		return nil, registrationdomain.ErrSoldOut
	}

	amount := event.PriceAmount * int64(req.Tickets)
	now := time.Now().UTC()

	details, err := json.Marshal(req.TicketDetails)
	if err != nil {
		return nil, err
	}

	reg := &registrationdomain.Registration{
		ID:            s.genID.Generate(),
		ReferenceCode: ulid.Make().String(),
		EventID:       event.ID,
		Name:          strings.TrimSpace(req.Name),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:         normalizePhone(req.Phone),
		Tickets:       req.Tickets,
		TicketDetails: datatypes.JSON(details),
		Amount:        amount,
		Currency:      event.Currency,
		Status:        registrationdomain.StatusPendingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, reg); err != nil {
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, paymentdomain.CreateOrderRequest{
		Amount:   amount,
		Currency: event.Currency,
		Receipt:  reg.ReferenceCode,
		Notes: map[string]string{
			"registration_id": reg.ID.String(),
			"event_id":        event.ID.String(),
		},
	})
	if err != nil {
		// The registration stays pending_payment with no payment row;
		// it can never settle and simply ages out.
		s.log.Warn("provider order creation failed",
			zap.String("registration_id", reg.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	payment := &paymentdomain.Payment{
		ID:              s.genID.Generate(),
		RegistrationID:  reg.ID,
		Provider:        "razorpay",
		ProviderOrderID: order.ID,
		Amount:          amount,
		Currency:        event.Currency,
		Status:          paymentdomain.StatusInitiated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.payRepo.InsertPayment(ctx, s.db, payment); err != nil {
		// The provider order is now orphaned; it expires on the
		// provider side and is never settleable without a payment row.
		s.log.Error("failed to persist payment after order creation",
			zap.String("registration_id", reg.ID.String()),
			zap.String("provider_order_id", order.ID),
			zap.Error(err),
		)
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordRegistration(ctx, string(registrationdomain.StatusPendingPayment))
	}
	logger.WithContext(ctx, s.log).Info("registration created",
		zap.String("registration_id", reg.ID.String()),
		zap.String("reference_code", reg.ReferenceCode),
		zap.String("provider_order_id", order.ID),
		zap.Int("tickets", reg.Tickets),
	)

	return &registrationdomain.CreateResponse{
		Registration:    reg,
		ProviderOrderID: order.ID,
		CheckoutKeyID:   s.cfg.Razorpay.KeyID,
		Amount:          amount,
		Currency:        event.Currency,
	}, nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*registrationdomain.StatusResponse, error) {
	reg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, registrationdomain.ErrNotFound
	}
	return s.buildStatus(ctx, reg)
}

func (s *service) GetByReference(ctx context.Context, referenceCode string) (*registrationdomain.StatusResponse, error) {
	reg, err := s.repo.FindByReference(ctx, s.db, strings.TrimSpace(referenceCode))
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, registrationdomain.ErrNotFound
	}
	return s.buildStatus(ctx, reg)
}

// Verify polls the provider for the registration's latest order and
// settles through the shared pipeline. It exists for the client that
// returned from checkout before our webhook arrived.
func (s *service) Verify(ctx context.Context, id snowflake.ID) (*registrationdomain.StatusResponse, error) {
	reg, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, registrationdomain.ErrNotFound
	}

	if reg.Status != registrationdomain.StatusPaid && reg.Status != registrationdomain.StatusRefunded {
		payments, err := s.payRepo.FindByRegistration(ctx, s.db, reg.ID)
		if err != nil {
			return nil, err
		}
		for i := len(payments) - 1; i >= 0; i-- {
			confirmErr := s.paymentSvc.ConfirmOrder(ctx, payments[i].ProviderOrderID)
			if confirmErr == nil {
				break
			}
			if errors.Is(confirmErr, paymentdomain.ErrOrderNotSettled) {
				continue
			}
			if errors.Is(confirmErr, paymentdomain.ErrGatewayUnavailable) {
				// Provider unreachable even after the client's retries.
				// Report the current pending state; the caller polls
				// again rather than seeing a hard failure.
				s.log.Warn("verify poll could not reach provider",
					zap.String("registration_id", reg.ID.String()),
					zap.Error(confirmErr),
				)
				break
			}
			return nil, confirmErr
		}

		reg, err = s.repo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if reg == nil {
			return nil, registrationdomain.ErrNotFound
		}
	}

	return s.buildStatus(ctx, reg)
}

func (s *service) buildStatus(ctx context.Context, reg *registrationdomain.Registration) (*registrationdomain.StatusResponse, error) {
	payments, err := s.payRepo.FindByRegistration(ctx, s.db, reg.ID)
	if err != nil {
		return nil, err
	}

	views := make([]registrationdomain.PaymentView, 0, len(payments))
	for _, p := range payments {
		view := registrationdomain.PaymentView{
			ProviderOrderID: p.ProviderOrderID,
			Status:          string(p.Status),
			Amount:          p.Amount,
			Currency:        p.Currency,
		}
		if p.ProviderPaymentID != nil {
			view.ProviderPaymentID = *p.ProviderPaymentID
		}
		if p.Method != nil {
			view.Method = *p.Method
		}
		if p.FailureCode != nil {
			view.FailureCode = *p.FailureCode
		}
		if p.FailureReason != nil {
			view.FailureReason = *p.FailureReason
		}
		views = append(views, view)
	}

	return &registrationdomain.StatusResponse{
		Registration: reg,
		Payments:     views,
	}, nil
}

func validateIntake(req *registrationdomain.CreateRequest) registrationdomain.ValidationErrors {
	var errs registrationdomain.ValidationErrors

	if strings.TrimSpace(req.EventID) == "" {
		errs = append(errs, registrationdomain.FieldError{Field: "event_id", Reason: "is required"})
	}

	name := strings.TrimSpace(req.Name)
	if len(name) < 2 {
		errs = append(errs, registrationdomain.FieldError{Field: "name", Reason: "must be at least 2 characters"})
	} else if len(name) > 120 {
		errs = append(errs, registrationdomain.FieldError{Field: "name", Reason: "must be at most 120 characters"})
	}

	email := strings.TrimSpace(req.Email)
	if !emailPattern.MatchString(email) {
		errs = append(errs, registrationdomain.FieldError{Field: "email", Reason: "must be a valid email address"})
	}

	if !phonePattern.MatchString(normalizePhone(req.Phone)) {
		errs = append(errs, registrationdomain.FieldError{Field: "phone", Reason: "must be a valid 10-digit mobile number"})
	}

	if req.Tickets < 1 {
		errs = append(errs, registrationdomain.FieldError{Field: "tickets", Reason: "must be at least 1"})
	} else if req.Tickets > maxTicketsPerRegistration {
		errs = append(errs, registrationdomain.FieldError{Field: "tickets", Reason: "exceeds the per-registration limit"})
	}

	if req.Tickets > 1 {
		if len(req.TicketDetails) != req.Tickets {
			errs = append(errs, registrationdomain.FieldError{Field: "ticket_details", Reason: "must list one attendee per ticket"})
		} else {
			for i, holder := range req.TicketDetails {
				if strings.TrimSpace(holder.Name) == "" {
					errs = append(errs, registrationdomain.FieldError{
						Field:  "ticket_details[" + strconv.Itoa(i) + "].name",
						Reason: "is required",
					})
				}
			}
		}
	}

	return errs
}

func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	phone = strings.TrimPrefix(phone, "+91")
	if len(phone) == 12 && strings.HasPrefix(phone, "91") {
		phone = phone[2:]
	}
	if len(phone) == 11 && strings.HasPrefix(phone, "0") {
		phone = phone[1:]
	}
	return phone
}
