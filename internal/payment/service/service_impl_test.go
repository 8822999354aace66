package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/openvenue/gatepass/internal/config"
	eventrepo "github.com/openvenue/gatepass/internal/event/repository"
	"github.com/openvenue/gatepass/internal/notifier"
	"github.com/openvenue/gatepass/internal/payment/adapters"
	adapterrazorpay "github.com/openvenue/gatepass/internal/payment/adapters/razorpay"
	paymentdomain "github.com/openvenue/gatepass/internal/payment/domain"
	paymentrepo "github.com/openvenue/gatepass/internal/payment/repository"
	paymentservice "github.com/openvenue/gatepass/internal/payment/service"
	paymentwebhook "github.com/openvenue/gatepass/internal/payment/webhook"
	registrationrepo "github.com/openvenue/gatepass/internal/registration/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

type stubGateway struct {
	payments []paymentdomain.ProviderPayment
	err      error
}

func (g *stubGateway) CreateOrder(ctx context.Context, req paymentdomain.CreateOrderRequest) (*paymentdomain.ProviderOrder, error) {
	return &paymentdomain.ProviderOrder{ID: "order_stub", Amount: req.Amount, Currency: req.Currency, Status: "created"}, nil
}

func (g *stubGateway) FetchOrderPayments(ctx context.Context, providerOrderID string) ([]paymentdomain.ProviderPayment, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.payments, nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	notes []notifier.Notification
}

func (d *recordingDispatcher) Enqueue(n notifier.Notification) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notes = append(d.notes, n)
	return true
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.notes)
}

type fixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	paymentSvc *paymentservice.Service
	webhookSvc paymentdomain.WebhookService
	gateway    *stubGateway
	dispatcher *recordingDispatcher

	eventID snowflake.ID
	regID   snowflake.ID
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE events (
			id BIGINT PRIMARY KEY,
			slug TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			venue TEXT NOT NULL DEFAULT '',
			starts_at TIMESTAMP NOT NULL,
			price_amount BIGINT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'INR',
			seats_total INTEGER NOT NULL,
			seats_available INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'published',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_events_slug ON events(slug)`,
		`CREATE TABLE registrations (
			id BIGINT PRIMARY KEY,
			reference_code TEXT NOT NULL,
			event_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL,
			tickets INTEGER NOT NULL,
			ticket_details TEXT NOT NULL DEFAULT '[]',
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'INR',
			status TEXT NOT NULL DEFAULT 'pending_payment',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_registrations_reference ON registrations(reference_code)`,
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			registration_id BIGINT NOT NULL,
			provider TEXT NOT NULL,
			provider_order_id TEXT NOT NULL,
			provider_payment_id TEXT,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'INR',
			status TEXT NOT NULL DEFAULT 'initiated',
			method TEXT,
			failure_code TEXT,
			failure_reason TEXT,
			payload TEXT,
			settled_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_payments_provider_order ON payments(provider_order_id)`,
		`CREATE UNIQUE INDEX ux_payments_registration_succeeded ON payments(registration_id) WHERE status = 'succeeded'`,
		`CREATE TABLE webhook_events (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			received_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX ux_webhook_events_provider_event ON webhook_events(provider, provider_event_id)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newFixture(t *testing.T, seats int) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(10)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	gateway := &stubGateway{}
	dispatcher := &recordingDispatcher{}

	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       paymentrepo.Provide(),
		RegRepo:    registrationrepo.Provide(),
		EventRepo:  eventrepo.NewRepository(),
		Gateway:    gateway,
		Dispatcher: dispatcher,
	})

	webhookSvc := paymentwebhook.NewService(paymentwebhook.Params{
		Log:        zap.NewNop(),
		PaymentSvc: paymentSvc,
		Adapters:   adapters.NewRegistry(adapterrazorpay.NewFactory()),
		Cfg: config.Config{
			Razorpay: config.RazorpayConfig{WebhookSecret: webhookSecret},
		},
	})

	f := &fixture{
		db:         db,
		node:       node,
		paymentSvc: paymentSvc,
		webhookSvc: webhookSvc,
		gateway:    gateway,
		dispatcher: dispatcher,
	}
	f.eventID = f.seedEvent(t, seats)
	f.regID = f.seedRegistration(t, f.eventID, 2)
	return f
}

func (f *fixture) seedEvent(t *testing.T, seats int) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := time.Now().UTC()
	err := f.db.Exec(
		`INSERT INTO events (id, slug, name, starts_at, price_amount, currency, seats_total, seats_available, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, "gig-"+id.String(), "Test Gig", now.Add(48*time.Hour), int64(50000), "INR", seats, seats, "published", now, now,
	).Error
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return id
}

func (f *fixture) seedRegistration(t *testing.T, eventID snowflake.ID, tickets int) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := time.Now().UTC()
	err := f.db.Exec(
		`INSERT INTO registrations (id, reference_code, event_id, name, email, phone, tickets, ticket_details, amount, currency, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, "REF"+id.String(), eventID, "Asha Rao", "asha@example.com", "9876543210",
		tickets, "[]", int64(tickets)*50000, "INR", "pending_payment", now, now,
	).Error
	if err != nil {
		t.Fatalf("seed registration: %v", err)
	}
	return id
}

func (f *fixture) seedPayment(t *testing.T, regID snowflake.ID, orderID string) {
	t.Helper()
	now := time.Now().UTC()
	err := f.db.Exec(
		`INSERT INTO payments (id, registration_id, provider, provider_order_id, amount, currency, status, created_at, updated_at)
		 VALUES (?, ?, 'razorpay', ?, ?, 'INR', 'initiated', ?, ?)`,
		f.node.Generate(), regID, orderID, int64(100000), now, now,
	).Error
	if err != nil {
		t.Fatalf("seed payment: %v", err)
	}
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedPayload(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","created_at":%d,"payload":{"payment":{"entity":{"id":"%s","order_id":"%s","amount":100000,"currency":"INR","status":"captured","method":"upi","created_at":%d}}}}`,
		time.Now().Unix(), paymentID, orderID, time.Now().Unix(),
	))
}

func failedPayload(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.failed","created_at":%d,"payload":{"payment":{"entity":{"id":"%s","order_id":"%s","amount":100000,"currency":"INR","status":"failed","error_code":"BAD_REQUEST_ERROR","error_description":"Payment declined","created_at":%d}}}}`,
		time.Now().Unix(), paymentID, orderID, time.Now().Unix(),
	))
}

func (f *fixture) ingest(t *testing.T, eventID string, payload []byte) error {
	t.Helper()
	headers := http.Header{}
	headers.Set("X-Razorpay-Signature", sign(payload))
	headers.Set("X-Razorpay-Event-Id", eventID)
	return f.webhookSvc.IngestWebhook(context.Background(), "razorpay", payload, headers)
}

func (f *fixture) paymentStatus(t *testing.T, orderID string) string {
	t.Helper()
	var status string
	if err := f.db.Raw(`SELECT status FROM payments WHERE provider_order_id = ?`, orderID).Scan(&status).Error; err != nil {
		t.Fatalf("scan payment status: %v", err)
	}
	return status
}

func (f *fixture) registrationStatus(t *testing.T) string {
	t.Helper()
	var status string
	if err := f.db.Raw(`SELECT status FROM registrations WHERE id = ?`, f.regID).Scan(&status).Error; err != nil {
		t.Fatalf("scan registration status: %v", err)
	}
	return status
}

func (f *fixture) seatsAvailable(t *testing.T) int {
	t.Helper()
	var seats int
	if err := f.db.Raw(`SELECT seats_available FROM events WHERE id = ?`, f.eventID).Scan(&seats).Error; err != nil {
		t.Fatalf("scan seats: %v", err)
	}
	return seats
}

func TestWebhookSettlementConfirmsRegistration(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	if err := f.ingest(t, "evt_1", capturedPayload("order_1", "pay_1")); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if got := f.paymentStatus(t, "order_1"); got != "succeeded" {
		t.Fatalf("payment status = %s, want succeeded", got)
	}
	if got := f.registrationStatus(t); got != "paid" {
		t.Fatalf("registration status = %s, want paid", got)
	}
	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8", got)
	}
	if len(f.dispatcher.notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.dispatcher.notes))
	}
	if f.dispatcher.notes[0].Kind != notifier.KindConfirmation {
		t.Fatalf("notification kind = %s", f.dispatcher.notes[0].Kind)
	}
}

func TestDuplicateWebhookDeliverySettlesOnce(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	payload := capturedPayload("order_1", "pay_1")
	if err := f.ingest(t, "evt_1", payload); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	err := f.ingest(t, "evt_1", payload)
	if !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("second delivery err = %v, want ErrEventAlreadyProcessed", err)
	}

	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8 after duplicate delivery", got)
	}
	if len(f.dispatcher.notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.dispatcher.notes))
	}
}

func TestDistinctSuccessEventsSettleOnce(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	// payment.captured and order.paid arrive as separate events for the
	// same capture.
	if err := f.ingest(t, "evt_1", capturedPayload("order_1", "pay_1")); err != nil {
		t.Fatalf("captured event: %v", err)
	}
	orderPaid := []byte(fmt.Sprintf(
		`{"event":"order.paid","created_at":%d,"payload":{"order":{"entity":{"id":"order_1","amount":100000,"amount_paid":100000,"currency":"INR","status":"paid"}}}}`,
		time.Now().Unix(),
	))
	if err := f.ingest(t, "evt_2", orderPaid); err != nil {
		t.Fatalf("order.paid event: %v", err)
	}

	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8", got)
	}
	if len(f.dispatcher.notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.dispatcher.notes))
	}
}

func TestFailureThenSuccessSettles(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	if err := f.ingest(t, "evt_1", failedPayload("order_1", "pay_1")); err != nil {
		t.Fatalf("failed event: %v", err)
	}
	if got := f.paymentStatus(t, "order_1"); got != "failed" {
		t.Fatalf("payment status = %s, want failed", got)
	}
	if got := f.registrationStatus(t); got != "failed" {
		t.Fatalf("registration status = %s, want failed", got)
	}
	if got := f.seatsAvailable(t); got != 10 {
		t.Fatalf("seats available = %d, want 10 after failure", got)
	}

	// The user retried on the same order and the capture succeeded.
	if err := f.ingest(t, "evt_2", capturedPayload("order_1", "pay_2")); err != nil {
		t.Fatalf("captured event: %v", err)
	}
	if got := f.paymentStatus(t, "order_1"); got != "succeeded" {
		t.Fatalf("payment status = %s, want succeeded", got)
	}
	if got := f.registrationStatus(t); got != "paid" {
		t.Fatalf("registration status = %s, want paid", got)
	}
	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8", got)
	}
}

func TestLateFailureAfterSuccessIsIgnored(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	if err := f.ingest(t, "evt_1", capturedPayload("order_1", "pay_1")); err != nil {
		t.Fatalf("captured event: %v", err)
	}
	if err := f.ingest(t, "evt_2", failedPayload("order_1", "pay_1")); err != nil {
		t.Fatalf("late failure event: %v", err)
	}

	if got := f.paymentStatus(t, "order_1"); got != "succeeded" {
		t.Fatalf("payment status = %s, want succeeded", got)
	}
	if got := f.registrationStatus(t); got != "paid" {
		t.Fatalf("registration status = %s, want paid", got)
	}
}

func TestRetryOrdersSettleRegistrationOnce(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")
	f.seedPayment(t, f.regID, "order_2")

	if err := f.ingest(t, "evt_1", capturedPayload("order_1", "pay_1")); err != nil {
		t.Fatalf("first order: %v", err)
	}
	if err := f.ingest(t, "evt_2", capturedPayload("order_2", "pay_2")); err != nil {
		t.Fatalf("second order: %v", err)
	}

	if got := f.paymentStatus(t, "order_1"); got != "succeeded" {
		t.Fatalf("order_1 status = %s, want succeeded", got)
	}
	if got := f.paymentStatus(t, "order_2"); got != "initiated" {
		t.Fatalf("order_2 status = %s, want initiated", got)
	}
	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8", got)
	}
	if len(f.dispatcher.notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.dispatcher.notes))
	}
}

func TestSettlementWithoutSeatsStillConfirms(t *testing.T) {
	f := newFixture(t, 1)
	f.seedPayment(t, f.regID, "order_1")

	// Registration wants 2 tickets but only 1 seat remains. The money
	// already moved, so the settlement stands and the shortfall is
	// surfaced to operators instead of the provider.
	if err := f.ingest(t, "evt_1", capturedPayload("order_1", "pay_1")); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if got := f.paymentStatus(t, "order_1"); got != "succeeded" {
		t.Fatalf("payment status = %s, want succeeded", got)
	}
	if got := f.registrationStatus(t); got != "paid" {
		t.Fatalf("registration status = %s, want paid", got)
	}
	if got := f.seatsAvailable(t); got != 1 {
		t.Fatalf("seats available = %d, want 1 (unchanged)", got)
	}
}

func TestConfirmOrderPollSettles(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	f.gateway.payments = []paymentdomain.ProviderPayment{
		{
			ID:        "pay_1",
			OrderID:   "order_1",
			Status:    "captured",
			Amount:    100000,
			Currency:  "INR",
			Method:    "card",
			CreatedAt: time.Now().Unix(),
		},
	}

	if err := f.paymentSvc.ConfirmOrder(context.Background(), "order_1"); err != nil {
		t.Fatalf("confirm order: %v", err)
	}
	if got := f.paymentStatus(t, "order_1"); got != "succeeded" {
		t.Fatalf("payment status = %s, want succeeded", got)
	}
	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8", got)
	}

	// A second poll reuses the same synthesized event id and no-ops.
	if err := f.paymentSvc.ConfirmOrder(context.Background(), "order_1"); err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8 after repeat poll", got)
	}
}

func TestConfirmOrderUnsettled(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	f.gateway.payments = nil
	err := f.paymentSvc.ConfirmOrder(context.Background(), "order_1")
	if !errors.Is(err, paymentdomain.ErrOrderNotSettled) {
		t.Fatalf("err = %v, want ErrOrderNotSettled", err)
	}
	if got := f.paymentStatus(t, "order_1"); got != "initiated" {
		t.Fatalf("payment status = %s, want initiated", got)
	}
}

func TestWebhookPollRace(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	f.gateway.payments = []paymentdomain.ProviderPayment{
		{ID: "pay_1", OrderID: "order_1", Status: "captured", Amount: 100000, Currency: "INR", CreatedAt: time.Now().Unix()},
	}

	// The webhook and the verify poll carry different event ids, so
	// dedup does not collapse them; the conditional payment update must.
	if err := f.paymentSvc.ConfirmOrder(context.Background(), "order_1"); err != nil {
		t.Fatalf("poll: %v", err)
	}
	if err := f.ingest(t, "evt_1", capturedPayload("order_1", "pay_1")); err != nil {
		t.Fatalf("webhook after poll: %v", err)
	}

	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8", got)
	}
	if len(f.dispatcher.notes) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.dispatcher.notes))
	}
}

func TestRedeliveryAfterTransientFailureSettles(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	// A store failure mid-settlement rolls the whole attempt back.
	if err := f.db.Exec(`ALTER TABLE events RENAME TO events_hidden`).Error; err != nil {
		t.Fatalf("hide events table: %v", err)
	}
	payload := capturedPayload("order_1", "pay_1")
	if err := f.ingest(t, "evt_1", payload); err == nil {
		t.Fatal("expected settlement to fail while events table is unavailable")
	}
	if err := f.db.Exec(`ALTER TABLE events_hidden RENAME TO events`).Error; err != nil {
		t.Fatalf("restore events table: %v", err)
	}

	if got := f.paymentStatus(t, "order_1"); got != "initiated" {
		t.Fatalf("payment status = %s, want initiated after rollback", got)
	}

	// The provider redelivers the identical event. The ledger row from
	// the failed attempt carries no processed stamp, so it must not
	// short-circuit the retry.
	if err := f.ingest(t, "evt_1", payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if got := f.paymentStatus(t, "order_1"); got != "succeeded" {
		t.Fatalf("payment status = %s, want succeeded", got)
	}
	if got := f.registrationStatus(t); got != "paid" {
		t.Fatalf("registration status = %s, want paid", got)
	}
	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8", got)
	}

	// A third delivery is a true duplicate.
	err := f.ingest(t, "evt_1", payload)
	if !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("third delivery err = %v, want ErrEventAlreadyProcessed", err)
	}
}

func TestConfirmOrderRetriesAfterTransientFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	f.gateway.payments = []paymentdomain.ProviderPayment{
		{ID: "pay_1", OrderID: "order_1", Status: "captured", Amount: 100000, Currency: "INR", CreatedAt: time.Now().Unix()},
	}

	// First poll fails mid-settlement. The synthesized event id is
	// deterministic, so a later poll replays the same ledger row.
	if err := f.db.Exec(`ALTER TABLE events RENAME TO events_hidden`).Error; err != nil {
		t.Fatalf("hide events table: %v", err)
	}
	if err := f.paymentSvc.ConfirmOrder(context.Background(), "order_1"); err == nil {
		t.Fatal("expected poll to fail while events table is unavailable")
	}
	if err := f.db.Exec(`ALTER TABLE events_hidden RENAME TO events`).Error; err != nil {
		t.Fatalf("restore events table: %v", err)
	}

	if err := f.paymentSvc.ConfirmOrder(context.Background(), "order_1"); err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if got := f.paymentStatus(t, "order_1"); got != "succeeded" {
		t.Fatalf("payment status = %s, want succeeded", got)
	}
	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8", got)
	}
}

func TestConcurrentSuccessEventsSettleOnce(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	sqlDB, err := f.db.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- f.paymentSvc.ProcessEvent(context.Background(), &paymentdomain.PaymentEvent{
				Provider:          "razorpay",
				ProviderEventID:   fmt.Sprintf("evt_%d", i),
				ProviderPaymentID: "pay_1",
				ProviderOrderID:   "order_1",
				Type:              paymentdomain.EventTypePaymentSucceeded,
				Amount:            100000,
				Currency:          "INR",
				OccurredAt:        time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("process event: %v", err)
		}
	}

	if got := f.paymentStatus(t, "order_1"); got != "succeeded" {
		t.Fatalf("payment status = %s, want succeeded", got)
	}
	if got := f.registrationStatus(t); got != "paid" {
		t.Fatalf("registration status = %s, want paid", got)
	}
	if got := f.seatsAvailable(t); got != 8 {
		t.Fatalf("seats available = %d, want 8", got)
	}
	if got := f.dispatcher.count(); got != 1 {
		t.Fatalf("notifications = %d, want 1", got)
	}
}

func TestRefundRestoresSeats(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	if err := f.ingest(t, "evt_1", capturedPayload("order_1", "pay_1")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := f.paymentSvc.Refund(context.Background(), f.regID); err != nil {
		t.Fatalf("refund: %v", err)
	}

	if got := f.paymentStatus(t, "order_1"); got != "refunded" {
		t.Fatalf("payment status = %s, want refunded", got)
	}
	if got := f.registrationStatus(t); got != "refunded" {
		t.Fatalf("registration status = %s, want refunded", got)
	}
	if got := f.seatsAvailable(t); got != 10 {
		t.Fatalf("seats available = %d, want 10", got)
	}
	if len(f.dispatcher.notes) != 2 {
		t.Fatalf("notifications = %d, want 2", len(f.dispatcher.notes))
	}
	if f.dispatcher.notes[1].Kind != notifier.KindRefund {
		t.Fatalf("second notification kind = %s, want refund", f.dispatcher.notes[1].Kind)
	}
}

func TestUnknownOrderRejected(t *testing.T) {
	f := newFixture(t, 10)

	err := f.ingest(t, "evt_1", capturedPayload("order_unknown", "pay_1"))
	if !errors.Is(err, paymentdomain.ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
}

func TestIgnoredEventTypesAcknowledged(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	payload := []byte(`{"event":"payment.dispute.created","payload":{}}`)
	if err := f.ingest(t, "evt_1", payload); err != nil {
		t.Fatalf("ignored event should ack, got %v", err)
	}
	if got := f.paymentStatus(t, "order_1"); got != "initiated" {
		t.Fatalf("payment status = %s, want initiated", got)
	}
}

func TestBadSignatureRejected(t *testing.T) {
	f := newFixture(t, 10)
	f.seedPayment(t, f.regID, "order_1")

	payload := capturedPayload("order_1", "pay_1")
	headers := http.Header{}
	headers.Set("X-Razorpay-Signature", "deadbeef")
	headers.Set("X-Razorpay-Event-Id", "evt_1")

	err := f.webhookSvc.IngestWebhook(context.Background(), "razorpay", payload, headers)
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	if got := f.paymentStatus(t, "order_1"); got != "initiated" {
		t.Fatalf("payment status = %s, want initiated", got)
	}
}
