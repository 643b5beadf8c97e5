package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/goldenage/center-api/internal/auth"
	"github.com/goldenage/center-api/internal/config"
	"github.com/goldenage/center-api/internal/database"
	"github.com/goldenage/center-api/internal/models"
	"github.com/goldenage/center-api/internal/registration"
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

func testStack(t *testing.T) (*gorm.DB, *auth.AuthHandler, *RegistrationHandler) {
	t.Helper()
	db := testDB(t)
	cfg := &config.Config{JWTSecret: "test-secret"}
	authHandler := auth.NewAuthHandler(cfg, db, zerolog.Nop())
	svc := registration.NewService(db, zerolog.Nop())
	handler := NewRegistrationHandler(db, svc, nil, authHandler, zerolog.Nop())
	return db, authHandler, handler
}

func memberCookie(t *testing.T, authHandler *auth.AuthHandler, userID uint) string {
	t.Helper()
	token, err := authHandler.GenerateToken(userID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return auth.MemberCookieName + "=" + token
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected a status error, got %v", err)
	}
	return se.GetStatus()
}

func TestHandleRegister(t *testing.T) {
	db, authHandler, handler := testStack(t)

	user := models.User{Phone: "0501111111", FirstName: "Rivka"}
	db.Create(&user)
	activity := models.Activity{Name: "Morning Yoga", Date: time.Now().Add(24 * time.Hour), Capacity: 1}
	db.Create(&activity)

	req := &RegisterRequest{ActivityID: activity.ID}
	req.Cookie = memberCookie(t, authHandler, user.ID)

	if _, err := handler.HandleRegister(context.Background(), req); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Re-registering the same member is a success, not a conflict.
	if _, err := handler.HandleRegister(context.Background(), req); err != nil {
		t.Fatalf("idempotent re-register: %v", err)
	}

	var count int64
	db.Model(&models.Registration{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 registration, got %d", count)
	}
}

func TestHandleRegister_Full(t *testing.T) {
	db, authHandler, handler := testStack(t)

	first := models.User{Phone: "0501111111"}
	db.Create(&first)
	second := models.User{Phone: "0502222222"}
	db.Create(&second)
	activity := models.Activity{Name: "Pottery", Date: time.Now().Add(24 * time.Hour), Capacity: 1}
	db.Create(&activity)

	req := &RegisterRequest{ActivityID: activity.ID}
	req.Cookie = memberCookie(t, authHandler, first.ID)
	if _, err := handler.HandleRegister(context.Background(), req); err != nil {
		t.Fatalf("register first: %v", err)
	}

	req2 := &RegisterRequest{ActivityID: activity.ID}
	req2.Cookie = memberCookie(t, authHandler, second.ID)
	_, err := handler.HandleRegister(context.Background(), req2)
	if err == nil {
		t.Fatal("expected conflict for full activity")
	}
	if status := statusOf(t, err); status != http.StatusConflict {
		t.Errorf("expected 409, got %d", status)
	}
}

func TestHandleRegister_NotFound(t *testing.T) {
	db, authHandler, handler := testStack(t)

	user := models.User{Phone: "0501111111"}
	db.Create(&user)

	req := &RegisterRequest{ActivityID: 9999}
	req.Cookie = memberCookie(t, authHandler, user.ID)
	_, err := handler.HandleRegister(context.Background(), req)
	if err == nil {
		t.Fatal("expected not found")
	}
	if status := statusOf(t, err); status != http.StatusNotFound {
		t.Errorf("expected 404, got %d", status)
	}
}

func TestHandleRegister_Unauthenticated(t *testing.T) {
	db, _, handler := testStack(t)

	activity := models.Activity{Name: "Pottery", Date: time.Now().Add(24 * time.Hour)}
	db.Create(&activity)

	req := &RegisterRequest{ActivityID: activity.ID}
	_, err := handler.HandleRegister(context.Background(), req)
	if err == nil {
		t.Fatal("expected unauthorized")
	}
	if status := statusOf(t, err); status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", status)
	}
}

func TestHandleRegister_StaffOnBehalf(t *testing.T) {
	db, authHandler, handler := testStack(t)

	member := models.User{Phone: "0501111111"}
	db.Create(&member)
	activity := models.Activity{Name: "Bridge", Date: time.Now().Add(24 * time.Hour), Capacity: 10}
	db.Create(&activity)

	staffToken, _ := authHandler.GenerateStaffToken("987654", "coordinator")

	req := &RegisterRequest{ActivityID: activity.ID}
	req.Cookie = auth.StaffCookieName + "=" + staffToken
	req.Body.UserID = member.ID

	if _, err := handler.HandleRegister(context.Background(), req); err != nil {
		t.Fatalf("staff register on behalf: %v", err)
	}

	var reg models.Registration
	if err := db.Where("activity_id = ?", activity.ID).First(&reg).Error; err != nil {
		t.Fatalf("find registration: %v", err)
	}
	if reg.UserID != member.ID {
		t.Errorf("expected registration for member %d, got %d", member.ID, reg.UserID)
	}
}

func TestHandleRegister_OnBehalfRequiresStaff(t *testing.T) {
	db, authHandler, handler := testStack(t)

	member := models.User{Phone: "0501111111"}
	db.Create(&member)
	other := models.User{Phone: "0502222222"}
	db.Create(&other)
	activity := models.Activity{Name: "Bridge", Date: time.Now().Add(24 * time.Hour)}
	db.Create(&activity)

	req := &RegisterRequest{ActivityID: activity.ID}
	req.Cookie = memberCookie(t, authHandler, member.ID)
	req.Body.UserID = other.ID

	if _, err := handler.HandleRegister(context.Background(), req); err == nil {
		t.Fatal("expected member to be rejected when registering someone else")
	}
}

func TestHandleUnregister(t *testing.T) {
	db, authHandler, handler := testStack(t)

	user := models.User{Phone: "0501111111"}
	db.Create(&user)
	activity := models.Activity{Name: "Choir", Date: time.Now().Add(24 * time.Hour), Capacity: 5}
	db.Create(&activity)

	reg := &RegisterRequest{ActivityID: activity.ID}
	reg.Cookie = memberCookie(t, authHandler, user.ID)
	if _, err := handler.HandleRegister(context.Background(), reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	unreg := &UnregisterRequest{ActivityID: activity.ID}
	unreg.Cookie = reg.Cookie
	if _, err := handler.HandleUnregister(context.Background(), unreg); err != nil {
		t.Fatalf("unregister: %v", err)
	}

	// Unregistering again is still a success.
	if _, err := handler.HandleUnregister(context.Background(), unreg); err != nil {
		t.Fatalf("repeat unregister: %v", err)
	}

	var count int64
	db.Model(&models.Registration{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no registrations, got %d", count)
	}
}

func TestHandleMyActivities(t *testing.T) {
	db, authHandler, handler := testStack(t)

	user := models.User{Phone: "0501111111"}
	db.Create(&user)
	yoga := models.Activity{Name: "Morning Yoga", Date: time.Now().Add(24 * time.Hour)}
	db.Create(&yoga)
	chess := models.Activity{Name: "Chess Club", Date: time.Now().Add(48 * time.Hour)}
	db.Create(&chess)

	cookie := memberCookie(t, authHandler, user.ID)
	reg := &RegisterRequest{ActivityID: yoga.ID}
	reg.Cookie = cookie
	if _, err := handler.HandleRegister(context.Background(), reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	req := &MyActivitiesRequest{}
	req.Cookie = cookie
	resp, err := handler.HandleMyActivities(context.Background(), req)
	if err != nil {
		t.Fatalf("my activities: %v", err)
	}
	if len(resp.Body.Activities) != 1 || resp.Body.Activities[0].ID != yoga.ID {
		t.Errorf("expected only the registered activity, got %+v", resp.Body.Activities)
	}
}
