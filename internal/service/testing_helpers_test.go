package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 内存库并发写入时串行化连接，避免 database is locked
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func newTestLedger(db *gorm.DB) *LedgerService {
	return NewLedgerService(repository.NewBalanceRepository(db), LedgerOptions{
		Currency: constants.CurrencyUSDT,
		Retry:    RetryPolicy{MaxRetries: 5, Backoff: time.Millisecond},
	})
}

func seedTestUser(t *testing.T, db *gorm.DB, id uint, referrer *uint) *models.User {
	t.Helper()
	now := time.Now()
	user := &models.User{
		ID:           id,
		Email:        fmt.Sprintf("ledger_user_%d@example.com", id),
		PasswordHash: "hash",
		Status:       constants.UserStatusActive,
		ReferredByID: referrer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

var seedReferenceSeq atomic.Int64

func creditTestBalance(t *testing.T, ledger *LedgerService, userID uint, amount string) {
	t.Helper()
	_, err := ledger.Adjust(context.Background(), AdjustInput{
		UserID:    userID,
		Delta:     testMoney(amount),
		Reason:    constants.LedgerReasonAdminAdjust,
		Reference: fmt.Sprintf("seed:%d:%d", userID, seedReferenceSeq.Add(1)),
	})
	if err != nil {
		t.Fatalf("seed balance failed: %v", err)
	}
}

func testMoney(raw string) models.Money {
	return models.NewMoneyFromDecimal(decimal.RequireFromString(raw))
}

func uintPtr(v uint) *uint {
	return &v
}
