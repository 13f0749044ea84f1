package router

import (
	"sort"
	"strings"

	"github.com/license-ledger/internal/authz"
	"github.com/license-ledger/internal/cache"
	"github.com/license-ledger/internal/config"
	adminhandlers "github.com/license-ledger/internal/http/handlers/admin"
	publichandlers "github.com/license-ledger/internal/http/handlers/public"
	"github.com/license-ledger/internal/http/response"
	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisClient := cache.Client()
	loginRule := NewRateLimitRule(cfg.Redis.Prefix, "login", cfg.Security.LoginRateLimit)
	adminLoginRule := NewRateLimitRule(cfg.Redis.Prefix, "admin_login", cfg.Security.LoginRateLimit)
	withdrawalRule := NewRateLimitRule(cfg.Redis.Prefix, "withdrawal", cfg.Security.WithdrawalRateLimit)

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger.Z()))
	r.Use(CORSMiddleware(cfg.CORS))

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/packages", publicHandler.GetPackages)

		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.UserLogin)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(c.AuthService))
		{
			user.GET("/me", publicHandler.GetCurrentUser)
			user.GET("/balance", publicHandler.GetMyBalance)
			user.GET("/ledger", publicHandler.GetMyLedger)
			user.GET("/purchases", publicHandler.GetMyPurchases)
			user.GET("/schedules", publicHandler.GetMySchedules)
			user.GET("/schedules/:id/days", publicHandler.GetMyScheduleDays)
			user.GET("/commissions", publicHandler.GetMyCommissions)
			user.POST("/otp/withdrawal", RateLimitMiddleware(redisClient, withdrawalRule, KeyByUser), publicHandler.RequestWithdrawalPin)
			user.POST("/withdrawals", RateLimitMiddleware(redisClient, withdrawalRule, KeyByUser), publicHandler.CreateWithdrawal)
			user.GET("/withdrawals", publicHandler.GetMyWithdrawals)
			user.GET("/withdrawals/:id", publicHandler.GetMyWithdrawal)
		}

		admin := apiV1.Group("/admin")
		{
			admin.POST("/login", RateLimitMiddleware(redisClient, adminLoginRule, KeyByIPAndJSONField("username")), adminHandler.AdminLogin)

			authorized := admin.Group("")
			authorized.Use(AdminJWTAuthMiddleware(c.AuthService), AdminRBACMiddleware(c.AuthzService))
			{
				// 购买单
				authorized.GET("/purchases", adminHandler.ListPurchases)
				authorized.GET("/purchases/:id", adminHandler.GetPurchase)
				authorized.POST("/purchases/confirmed", adminHandler.IngestConfirmedPurchase)
				authorized.POST("/purchases/:id/reverse", adminHandler.ReversePurchase)
				authorized.POST("/purchases/:id/expire", adminHandler.ExpirePurchase)

				// 收益计划
				authorized.GET("/schedules", adminHandler.ListSchedules)
				authorized.GET("/schedules/:id", adminHandler.GetSchedule)
				authorized.GET("/schedules/:id/days", adminHandler.ListScheduleDays)
				authorized.POST("/schedules/:id/pause", adminHandler.PauseSchedule)
				authorized.POST("/schedules/:id/resume", adminHandler.ResumeSchedule)
				authorized.POST("/schedules/:id/days/:day/release", adminHandler.ReleaseScheduleDay)

				// 提现
				authorized.GET("/withdrawals", adminHandler.ListWithdrawals)
				authorized.GET("/withdrawals/:id", adminHandler.GetWithdrawal)
				authorized.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
				authorized.POST("/withdrawals/:id/processing", adminHandler.MarkWithdrawalProcessing)
				authorized.POST("/withdrawals/:id/finalize", adminHandler.FinalizeWithdrawal)

				// 扫描
				authorized.POST("/sweeps/benefit", adminHandler.RunBenefitSweep)
				authorized.POST("/sweeps/commission", adminHandler.RunCommissionSweep)

				// 用户与账本
				authorized.GET("/users", adminHandler.ListUsers)
				authorized.POST("/users/status", adminHandler.UpdateUserStatus)
				authorized.GET("/users/:id/balance", adminHandler.GetUserBalance)
				authorized.GET("/users/:id/ledger", adminHandler.GetUserLedger)

				// 权限管理
				authorized.GET("/authz/me", adminHandler.GetAuthzMe)
				authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
				authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
				authorized.DELETE("/authz/roles/:role", adminHandler.DeleteAuthzRole)
				authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
				authorized.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
				authorized.GET("/authz/admins/:id/roles", adminHandler.GetAuthzAdminRoles)
				authorized.PUT("/authz/admins/:id/roles", adminHandler.SetAuthzAdminRoles)
				authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
					response.Success(ctx, buildAdminPermissionCatalog(r))
				})
			}
		}
	}

	if cfg.Metrics.Enabled {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) {
		status := "ok"
		if err := cache.Ping(c.Request.Context()); err != nil {
			status = "degraded"
		}
		c.JSON(200, gin.H{"status": status})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		if item.Path == "/api/v1/admin/login" {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
