package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	eventdomain "github.com/openvenue/gatepass/internal/event/domain"
	"github.com/openvenue/gatepass/internal/observability/logger"
	"github.com/openvenue/gatepass/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Node *snowflake.Node
	Repo eventdomain.Repository
}

type service struct {
	db   *gorm.DB
	log  *zap.Logger
	node *snowflake.Node
	repo eventdomain.Repository
}

func NewService(p ServiceParam) eventdomain.Service {
	return &service{
		db:   p.DB,
		log:  p.Log.Named("event.service"),
		node: p.Node,
		repo: p.Repo,
	}
}

func (s *service) Create(ctx context.Context, req eventdomain.CreateRequest) (*eventdomain.Event, error) {
	now := time.Now().UTC()

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}

	event := &eventdomain.Event{
		ID:             s.node.Generate(),
		Name:           strings.TrimSpace(req.Name),
		Description:    strings.TrimSpace(req.Description),
		Venue:          strings.TrimSpace(req.Venue),
		StartsAt:       req.StartsAt.UTC(),
		PriceAmount:    req.PriceAmount,
		Currency:       currency,
		SeatsTotal:     req.SeatsTotal,
		SeatsAvailable: req.SeatsTotal,
		Status:         eventdomain.StatusPublished,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}

	event.Slug = slug.Make(event.Name)
	existing, err := s.repo.FindBySlug(ctx, s.db, event.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		event.Slug = fmt.Sprintf("%s-%s", event.Slug, event.ID.String())
	}

	if err := s.repo.Create(ctx, s.db, event); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("event created",
		zap.String("event_id", event.ID.String()),
		zap.String("slug", event.Slug),
		zap.Int("seats_total", event.SeatsTotal),
	)
	return event, nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*eventdomain.Event, error) {
	event, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, eventdomain.ErrNotFound
	}
	return event, nil
}

func (s *service) GetBySlug(ctx context.Context, sl string) (*eventdomain.Event, error) {
	event, err := s.repo.FindBySlug(ctx, s.db, sl)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, eventdomain.ErrNotFound
	}
	return event, nil
}

func (s *service) List(ctx context.Context, req eventdomain.ListRequest) ([]*eventdomain.Event, *pagination.PageInfo, error) {
	return s.repo.List(ctx, s.db, eventdomain.ListFilter{Status: req.Status}, req.Pagination)
}

func (s *service) SetActive(ctx context.Context, id snowflake.ID, active bool) (*eventdomain.Event, error) {
	event, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, eventdomain.ErrNotFound
	}

	status := eventdomain.StatusClosed
	if active {
		status = eventdomain.StatusPublished
	}
	if event.Status == status {
		return event, nil
	}

	event.Status = status
	event.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, event); err != nil {
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("event status changed",
		zap.String("event_id", event.ID.String()),
		zap.String("status", string(event.Status)),
	)
	return event, nil
}
