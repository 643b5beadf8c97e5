package registration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goldenage/center-api/internal/database"
	"github.com/goldenage/center-api/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(database.DSN(path)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, phone string) models.User {
	t.Helper()
	user := models.User{Phone: phone, FirstName: "Test", Registered: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createActivity(t *testing.T, db *gorm.DB, capacity int) models.Activity {
	t.Helper()
	activity := models.Activity{
		Name:     "Morning Yoga",
		Date:     time.Now().Add(24 * time.Hour),
		Capacity: capacity,
	}
	if err := db.Create(&activity).Error; err != nil {
		t.Fatalf("failed to create activity: %v", err)
	}
	return activity
}

func TestRegister_CapacityInvariantConcurrent(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())

	activity := createActivity(t, db, 2)
	users := []models.User{
		createUser(t, db, "0501111111"),
		createUser(t, db, "0502222222"),
		createUser(t, db, "0503333333"),
	}

	var successes, full atomic.Int32
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(userID uint) {
			defer wg.Done()
			err := svc.Register(context.Background(), activity.ID, userID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrCapacityExceeded):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	if successes.Load() != 2 {
		t.Errorf("expected 2 successful registrations, got %d", successes.Load())
	}
	if full.Load() != 1 {
		t.Errorf("expected 1 capacity rejection, got %d", full.Load())
	}

	count, err := svc.Count(context.Background(), activity.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 committed registrations, got %d", count)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())

	activity := createActivity(t, db, 5)
	user := createUser(t, db, "0501111111")

	if err := svc.Register(context.Background(), activity.ID, user.ID); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// Second call is a successful no-op, not a failure.
	if err := svc.Register(context.Background(), activity.ID, user.ID); err != nil {
		t.Fatalf("second register: %v", err)
	}

	count, _ := svc.Count(context.Background(), activity.ID)
	if count != 1 {
		t.Errorf("expected user to appear exactly once, got %d rows", count)
	}
}

func TestRegister_UnlimitedCapacity(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())

	activity := createActivity(t, db, 0)
	for i := 0; i < 25; i++ {
		user := createUser(t, db, fmt.Sprintf("05011%05d", i))
		if err := svc.Register(context.Background(), activity.ID, user.ID); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}

	count, _ := svc.Count(context.Background(), activity.ID)
	if count != 25 {
		t.Errorf("expected 25 registrations, got %d", count)
	}
}

func TestRegister_NotFound(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())

	user := createUser(t, db, "0501111111")

	err := svc.Register(context.Background(), 9999, user.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var count int64
	db.Model(&models.Registration{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no partial write, got %d rows", count)
	}
}

func TestRegister_FullActivityRejects(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())

	activity := createActivity(t, db, 1)
	first := createUser(t, db, "0501111111")
	second := createUser(t, db, "0502222222")

	if err := svc.Register(context.Background(), activity.ID, first.ID); err != nil {
		t.Fatalf("register first: %v", err)
	}
	err := svc.Register(context.Background(), activity.ID, second.ID)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	regs, err := svc.Registrants(context.Background(), activity.ID)
	if err != nil {
		t.Fatalf("registrants: %v", err)
	}
	if len(regs) != 1 || regs[0].UserID != first.ID {
		t.Errorf("registrant set changed by rejected attempt: %+v", regs)
	}
}

func TestUnregister_NoOp(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())

	activity := createActivity(t, db, 2)
	registered := createUser(t, db, "0501111111")
	stranger := createUser(t, db, "0502222222")

	if err := svc.Register(context.Background(), activity.ID, registered.ID); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Unregister(context.Background(), activity.ID, stranger.ID); err != nil {
		t.Fatalf("unregister of non-registrant should succeed, got %v", err)
	}

	count, _ := svc.Count(context.Background(), activity.ID)
	if count != 1 {
		t.Errorf("registrant set changed by no-op unregister, got %d rows", count)
	}

	var events int64
	db.Model(&models.RegistrationEvent{}).Where("action = ?", models.ActionUnregister).Count(&events)
	if events != 0 {
		t.Errorf("no-op unregister wrote an audit event")
	}
}

func TestUnregister_RollbackDoesNotReportSuccess(t *testing.T) {
	db := testDB(t)
	var logBuf bytes.Buffer
	svc := NewService(db, zerolog.New(&logBuf))

	activity := createActivity(t, db, 2)
	user := createUser(t, db, "0501111111")
	if err := svc.Register(context.Background(), activity.ID, user.ID); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Break the audit table so the transaction rolls back after the
	// delete already ran inside it.
	if err := db.Migrator().DropTable(&models.RegistrationEvent{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if err := svc.Unregister(context.Background(), activity.ID, user.ID); err == nil {
		t.Fatal("expected unregister to fail with audit table gone")
	}

	count, _ := svc.Count(context.Background(), activity.ID)
	if count != 1 {
		t.Errorf("expected rollback to keep the registration, got %d rows", count)
	}
	if strings.Contains(logBuf.String(), "unregistered") {
		t.Error("rolled-back unregister logged success")
	}
}

func TestRegisterUnregister_RoundTrip(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())

	activity := createActivity(t, db, 3)
	stays := createUser(t, db, "0501111111")
	visits := createUser(t, db, "0502222222")

	if err := svc.Register(context.Background(), activity.ID, stays.ID); err != nil {
		t.Fatalf("register stays: %v", err)
	}

	if err := svc.Register(context.Background(), activity.ID, visits.ID); err != nil {
		t.Fatalf("register visits: %v", err)
	}
	if err := svc.Unregister(context.Background(), activity.ID, visits.ID); err != nil {
		t.Fatalf("unregister visits: %v", err)
	}

	regs, err := svc.Registrants(context.Background(), activity.ID)
	if err != nil {
		t.Fatalf("registrants: %v", err)
	}
	if len(regs) != 1 || regs[0].UserID != stays.ID {
		t.Errorf("expected registrant set restored to pre-registration contents, got %+v", regs)
	}

	// The slot is genuinely free again.
	if err := svc.Register(context.Background(), activity.ID, visits.ID); err != nil {
		t.Fatalf("re-register after round trip: %v", err)
	}
}

func TestUserActivities_DerivedFromRegistrations(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())

	user := createUser(t, db, "0501111111")
	yoga := createActivity(t, db, 0)
	chess := models.Activity{Name: "Chess Club", Date: time.Now().Add(48 * time.Hour)}
	if err := db.Create(&chess).Error; err != nil {
		t.Fatalf("create activity: %v", err)
	}

	if err := svc.Register(context.Background(), yoga.ID, user.ID); err != nil {
		t.Fatalf("register yoga: %v", err)
	}
	if err := svc.Register(context.Background(), chess.ID, user.ID); err != nil {
		t.Fatalf("register chess: %v", err)
	}
	if err := svc.Unregister(context.Background(), chess.ID, user.ID); err != nil {
		t.Fatalf("unregister chess: %v", err)
	}

	activities, err := svc.UserActivities(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("user activities: %v", err)
	}
	if len(activities) != 1 || activities[0].ID != yoga.ID {
		t.Errorf("expected derived view to track registrations exactly, got %+v", activities)
	}
}
