package survey

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

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

func seed(t *testing.T, db *gorm.DB, open bool) (models.Survey, models.User) {
	t.Helper()
	sv := models.Survey{Title: "Lunch menu", Questions: []string{"Soup or salad?"}, Open: open}
	if err := db.Create(&sv).Error; err != nil {
		t.Fatalf("create survey: %v", err)
	}
	user := models.User{Phone: "0501111111", FirstName: "Test"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return sv, user
}

func TestSubmit(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())
	sv, user := seed(t, db, true)

	if err := svc.Submit(context.Background(), sv.ID, user.ID, []string{"Soup"}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	responses, err := svc.Responses(context.Background(), sv.ID)
	if err != nil {
		t.Fatalf("responses: %v", err)
	}
	if len(responses) != 1 || responses[0].UserID != user.ID {
		t.Fatalf("expected one response from the user, got %+v", responses)
	}
	if responses[0].Answers[0] != "Soup" {
		t.Errorf("expected answer preserved, got %q", responses[0].Answers[0])
	}
}

func TestSubmit_Duplicate(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())
	sv, user := seed(t, db, true)

	if err := svc.Submit(context.Background(), sv.ID, user.ID, []string{"Soup"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err := svc.Submit(context.Background(), sv.ID, user.ID, []string{"Salad"})
	if !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("expected ErrAlreadyResponded, got %v", err)
	}

	var count int64
	db.Model(&models.SurveyResponse{}).Where("survey_id = ?", sv.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly one response, got %d", count)
	}
}

func TestSubmit_ConcurrentDuplicate(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())
	sv, user := seed(t, db, true)

	var successes, duplicates atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Submit(context.Background(), sv.ID, user.ID, []string{"Soup"})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrAlreadyResponded):
				duplicates.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Errorf("expected exactly 1 successful submission, got %d", successes.Load())
	}
	if duplicates.Load() != 3 {
		t.Errorf("expected 3 duplicate rejections, got %d", duplicates.Load())
	}
}

func TestSubmit_Closed(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())
	sv, user := seed(t, db, false)

	err := svc.Submit(context.Background(), sv.ID, user.ID, []string{"Soup"})
	if !errors.Is(err, ErrSurveyClosed) {
		t.Fatalf("expected ErrSurveyClosed, got %v", err)
	}
}

func TestSubmit_NotFound(t *testing.T) {
	db := testDB(t)
	svc := NewService(db, zerolog.Nop())
	_, user := seed(t, db, true)

	err := svc.Submit(context.Background(), 9999, user.ID, []string{"Soup"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
