package main

import (
	"errors"

	"github.com/license-ledger/internal/config"
	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const demoPassword = "demo-pass-123"

func main() {
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	currency := cfg.Ledger.Currency
	packages := []models.LicensePackage{
		{
			Code:              "starter",
			Name:              "Starter License",
			DailyRate:         decimal.RequireFromString("0.0125"),
			DaysPerCycle:      8,
			PauseDaysPerCycle: 1,
			TotalCycles:       10,
			CapPercent:        models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
			MinPrincipal:      models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
			Currency:          currency,
			IsActive:          true,
		},
		{
			Code:              "pro",
			Name:              "Pro License",
			DailyRate:         decimal.RequireFromString("0.015"),
			DaysPerCycle:      8,
			PauseDaysPerCycle: 1,
			TotalCycles:       12,
			CapPercent:        models.NewMoneyFromDecimal(decimal.NewFromInt(140)),
			MinPrincipal:      models.NewMoneyFromDecimal(decimal.NewFromInt(1000)),
			Currency:          currency,
			IsActive:          true,
		},
	}
	for _, pkg := range packages {
		pkg := pkg
		var existing models.LicensePackage
		err := models.DB.Where("code = ?", pkg.Code).First(&existing).Error
		switch {
		case err == nil:
			stdLog.Printf("Package already exists: %s", pkg.Code)
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := models.DB.Create(&pkg).Error; err != nil {
				stdLog.Printf("Failed to create package %s: %v", pkg.Code, err)
			} else {
				stdLog.Printf("Created package: %s", pkg.Code)
			}
		default:
			stdLog.Printf("Failed to load package %s: %v", pkg.Code, err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}

	// 三级推荐链：carol -> bob -> alice -> root
	var referrerID *uint
	for _, email := range []string{"root@example.com", "alice@example.com", "bob@example.com", "carol@example.com"} {
		var user models.User
		err := models.DB.Where("email = ?", email).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{
				Email:        email,
				PasswordHash: string(hash),
				DisplayName:  email[:len(email)-len("@example.com")],
				Locale:       constants.LocaleEnUS,
				Status:       constants.UserStatusActive,
				ReferredByID: referrerID,
			}
			if err := models.DB.Create(&user).Error; err != nil {
				stdLog.Fatalf("Failed to create user %s: %v", email, err)
			}
			stdLog.Printf("Created user: %s (id=%d)", email, user.ID)
		} else if err != nil {
			stdLog.Fatalf("Failed to load user %s: %v", email, err)
		} else {
			stdLog.Printf("User already exists: %s (id=%d)", email, user.ID)
		}
		id := user.ID
		referrerID = &id
	}

	stdLog.Printf("Seed completed, demo users share the password %q", demoPassword)
}
