package service

import (
	"context"
	"errors"
	"testing"

	"github.com/license-ledger/internal/config"
	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func setupAuthServiceTest(t *testing.T) (*AuthService, *gorm.DB) {
	t.Helper()
	db := openServiceTestDB(t, "auth_service_test")
	cfg := &config.Config{
		JWT:     config.JWTConfig{SecretKey: "admin-secret", ExpireHours: 1},
		UserJWT: config.JWTConfig{SecretKey: "user-secret", ExpireHours: 1},
	}
	svc := NewAuthService(cfg, repository.NewAdminRepository(db), repository.NewUserRepository(db))

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	if err := db.Create(&models.Admin{Username: "finance", PasswordHash: string(hash)}).Error; err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	user := seedTestUser(t, db, 1, nil)
	if err := db.Model(user).Update("password_hash", string(hash)).Error; err != nil {
		t.Fatalf("set user password failed: %v", err)
	}
	return svc, db
}

func TestAuthServiceAdminLogin(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	ctx := context.Background()

	if _, _, _, err := svc.Login("finance", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	admin, token, _, err := svc.Login("finance", "s3cret-pass")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if admin.LastLoginAt == nil {
		t.Fatalf("last login should be recorded")
	}
	claims, err := svc.AuthenticateAdmin(ctx, token)
	if err != nil {
		t.Fatalf("authenticate admin failed: %v", err)
	}
	if claims.AdminID != admin.ID || claims.Username != "finance" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := svc.ParseUserJWT(token); err == nil {
		t.Fatalf("admin token must not verify with the user secret")
	}
}

func TestAuthServiceUserTokenTracksAccountState(t *testing.T) {
	svc, db := setupAuthServiceTest(t)
	ctx := context.Background()

	_, token, _, err := svc.UserLogin("ledger_user_1@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("user login failed: %v", err)
	}
	claims, err := svc.AuthenticateUser(ctx, token)
	if err != nil || claims.UserID != 1 {
		t.Fatalf("authenticate user failed: claims=%+v err=%v", claims, err)
	}

	if err := db.Model(&models.User{}).Where("id = ?", 1).Update("token_version", 2).Error; err != nil {
		t.Fatalf("bump token version failed: %v", err)
	}
	if _, err := svc.AuthenticateUser(ctx, token); !IsInvalidToken(err) {
		t.Fatalf("stale token version should be rejected, got %v", err)
	}

	if err := db.Model(&models.User{}).Where("id = ?", 1).Update("status", constants.UserStatusDisabled).Error; err != nil {
		t.Fatalf("disable user failed: %v", err)
	}
	if _, _, _, err := svc.UserLogin("ledger_user_1@example.com", "s3cret-pass"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("disabled user must not log in, got %v", err)
	}
}

func TestAuthServiceRejectsGarbageToken(t *testing.T) {
	svc, _ := setupAuthServiceTest(t)
	if _, err := svc.AuthenticateUser(context.Background(), "not-a-token"); !IsInvalidToken(err) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}
