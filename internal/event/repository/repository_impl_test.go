package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/openvenue/gatepass/internal/event/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	err = db.Exec(`CREATE TABLE events (
		id BIGINT PRIMARY KEY,
		slug TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		venue TEXT NOT NULL DEFAULT '',
		starts_at TIMESTAMP NOT NULL,
		price_amount BIGINT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'INR',
		seats_total INTEGER NOT NULL,
		seats_available INTEGER NOT NULL CHECK (seats_available >= 0),
		status TEXT NOT NULL DEFAULT 'published',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`).Error
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedEvent(t *testing.T, db *gorm.DB, repo eventdomain.Repository, seatsTotal, seatsAvailable int) snowflake.ID {
	t.Helper()
	node, err := snowflake.NewNode(12)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	id := node.Generate()
	now := time.Now().UTC()
	event := &eventdomain.Event{
		ID:             id,
		Slug:           "gig-" + id.String(),
		Name:           "Test Gig",
		StartsAt:       now.Add(48 * time.Hour),
		PriceAmount:    50000,
		Currency:       "INR",
		SeatsTotal:     seatsTotal,
		SeatsAvailable: seatsAvailable,
		Status:         eventdomain.StatusPublished,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.Create(context.Background(), db, event); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return id
}

func seats(t *testing.T, db *gorm.DB, id snowflake.ID) int {
	t.Helper()
	var n int
	if err := db.Raw(`SELECT seats_available FROM events WHERE id = ?`, id).Scan(&n).Error; err != nil {
		t.Fatalf("scan seats: %v", err)
	}
	return n
}

func TestDecrementSeats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository()
	id := seedEvent(t, db, repo, 10, 10)

	ok, err := repo.DecrementSeats(context.Background(), db, id, 3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if !ok {
		t.Fatal("decrement refused with seats available")
	}
	if got := seats(t, db, id); got != 7 {
		t.Fatalf("seats = %d, want 7", got)
	}
}

func TestDecrementSeatsNeverGoesNegative(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository()
	id := seedEvent(t, db, repo, 10, 2)

	ok, err := repo.DecrementSeats(context.Background(), db, id, 3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if ok {
		t.Fatal("decrement succeeded past available seats")
	}
	if got := seats(t, db, id); got != 2 {
		t.Fatalf("seats = %d, want 2 (unchanged)", got)
	}

	// Draining to exactly zero is allowed.
	ok, err = repo.DecrementSeats(context.Background(), db, id, 2)
	if err != nil || !ok {
		t.Fatalf("decrement to zero: ok=%v err=%v", ok, err)
	}
	if got := seats(t, db, id); got != 0 {
		t.Fatalf("seats = %d, want 0", got)
	}
}

func TestDecrementSeatsRejectsNonPositive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository()
	id := seedEvent(t, db, repo, 10, 10)

	if _, err := repo.DecrementSeats(context.Background(), db, id, 0); err == nil {
		t.Fatal("expected error for zero seats")
	}
	if _, err := repo.DecrementSeats(context.Background(), db, id, -1); err == nil {
		t.Fatal("expected error for negative seats")
	}
}

func TestRestoreSeatsCapsAtTotal(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository()
	id := seedEvent(t, db, repo, 10, 9)

	ok, err := repo.RestoreSeats(context.Background(), db, id, 5)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !ok {
		t.Fatal("restore refused")
	}
	if got := seats(t, db, id); got != 10 {
		t.Fatalf("seats = %d, want 10 (capped at total)", got)
	}
}

func TestFindByIDMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository()

	event, err := repo.FindByID(context.Background(), db, snowflake.ID(123))
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if event != nil {
		t.Fatalf("event = %+v, want nil", event)
	}
}
