package provider

import (
	"time"

	"github.com/license-ledger/internal/authz"
	"github.com/license-ledger/internal/cache"
	"github.com/license-ledger/internal/config"
	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/queue"
	"github.com/license-ledger/internal/repository"
	"github.com/license-ledger/internal/service"

	"github.com/shopspring/decimal"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo      repository.AdminRepository
	UserRepo       repository.UserRepository
	PackageRepo    repository.LicensePackageRepository
	PurchaseRepo   repository.PurchaseRepository
	BalanceRepo    repository.BalanceRepository
	BenefitRepo    repository.BenefitRepository
	CommissionRepo repository.CommissionRepository
	WithdrawalRepo repository.WithdrawalRepository
	OtpRepo        repository.OtpRepository

	// Services
	AuthzService        *authz.Service
	AuthService         *service.AuthService
	LedgerService       *service.LedgerService
	OtpService          *service.OtpService
	BenefitService      *service.BenefitService
	CommissionService   *service.CommissionService
	WithdrawalService   *service.WithdrawalService
	PurchaseService     *service.PurchaseService
	NotificationService *service.NotificationService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.PackageRepo = repository.NewLicensePackageRepository(db)
	c.PurchaseRepo = repository.NewPurchaseRepository(db)
	c.BalanceRepo = repository.NewBalanceRepository(db)
	c.BenefitRepo = repository.NewBenefitRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.WithdrawalRepo = repository.NewWithdrawalRepository(db)
	c.OtpRepo = repository.NewOtpRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	cfg := c.Config
	c.AuthService = service.NewAuthService(cfg, c.AdminRepo, c.UserRepo)
	c.NotificationService = service.NewNotificationService(c.QueueClient, service.LogNotifier{})
	c.LedgerService = service.NewLedgerService(c.BalanceRepo, LedgerOptions(cfg.Ledger))
	c.OtpService = service.NewOtpService(c.OtpRepo, OtpOptions(cfg.Otp))
	c.BenefitService = service.NewBenefitService(c.BenefitRepo, c.PurchaseRepo, c.LedgerService, service.BenefitOptions{
		BatchSize:       cfg.Benefit.SweepBatchSize,
		MaxDaysPerSweep: cfg.Benefit.MaxDaysPerSweep,
	})
	c.CommissionService = service.NewCommissionService(c.CommissionRepo, c.PurchaseRepo, c.UserRepo, c.LedgerService, CommissionOptions(cfg.Referral))
	c.WithdrawalService = service.NewWithdrawalService(c.WithdrawalRepo, c.UserRepo, c.LedgerService, c.OtpService, c.NotificationService, WithdrawalOptions(cfg.Withdrawal))
	c.PurchaseService = service.NewPurchaseService(c.PurchaseRepo, c.PackageRepo, c.UserRepo, c.LedgerService, c.BenefitService, c.CommissionService)
}

// LedgerOptions 将账本配置转换为服务参数
func LedgerOptions(cfg config.LedgerConfig) service.LedgerOptions {
	return service.LedgerOptions{
		Currency: cfg.Currency,
		Retry: service.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			Backoff:    time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		},
	}
}

// OtpOptions 将口令配置转换为服务参数
func OtpOptions(cfg config.OtpConfig) service.OtpOptions {
	return service.OtpOptions{
		Length:       cfg.Length,
		TTL:          time.Duration(cfg.ExpireMinutes) * time.Minute,
		MaxAttempts:  cfg.MaxAttempts,
		SendInterval: time.Duration(cfg.SendIntervalSeconds) * time.Second,
	}
}

// CommissionOptions 将推荐配置转换为佣金层级表
func CommissionOptions(cfg config.ReferralConfig) service.CommissionOptions {
	levels := make([]service.CommissionLevel, 0, len(cfg.Levels))
	for _, level := range cfg.Levels {
		levels = append(levels, service.CommissionLevel{
			RatePercent: decimal.NewFromFloat(level.RatePercent),
			UnlockDelay: time.Duration(level.UnlockDelayHours) * time.Hour,
		})
	}
	return service.CommissionOptions{
		MaxDepth:  cfg.MaxDepth,
		Levels:    levels,
		BatchSize: cfg.SweepBatchSize,
	}
}

// WithdrawalOptions 将提现配置转换为服务参数，金额配置非法时不设上下限
func WithdrawalOptions(cfg config.WithdrawalConfig) service.WithdrawalOptions {
	options := service.WithdrawalOptions{
		Currency: cfg.Currency,
		Network:  cfg.Network,
	}
	if minAmount, err := decimal.NewFromString(cfg.MinAmount); err == nil {
		options.MinAmount = minAmount
	} else if cfg.MinAmount != "" {
		logger.Warnw("provider_withdrawal_min_amount_invalid", "value", cfg.MinAmount, "error", err)
	}
	if maxAmount, err := decimal.NewFromString(cfg.MaxAmount); err == nil {
		options.MaxAmount = maxAmount
	} else if cfg.MaxAmount != "" {
		logger.Warnw("provider_withdrawal_max_amount_invalid", "value", cfg.MaxAmount, "error", err)
	}
	return options
}
