package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/license-ledger/internal/cache"
	"github.com/license-ledger/internal/config"
	"github.com/license-ledger/internal/constants"
	"github.com/license-ledger/internal/logger"
	"github.com/license-ledger/internal/models"
	"github.com/license-ledger/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidToken = errors.New("invalid token")

// AuthService 管理员与用户的登录和令牌校验
type AuthService struct {
	cfg       *config.Config
	adminRepo repository.AdminRepository
	userRepo  repository.UserRepository
}

// NewAuthService 创建认证服务实例
func NewAuthService(cfg *config.Config, adminRepo repository.AdminRepository, userRepo repository.UserRepository) *AuthService {
	return &AuthService{
		cfg:       cfg,
		adminRepo: adminRepo,
		userRepo:  userRepo,
	}
}

// HashPassword 使用 bcrypt 加密密码
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 验证密码
func (s *AuthService) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// JWTClaims 管理员 JWT 声明
type JWTClaims struct {
	AdminID      uint   `json:"admin_id"`
	Username     string `json:"username"`
	TokenVersion uint64 `json:"token_version"`
	// IsSuper 由服务端鉴权时回填，不写入 Token
	IsSuper bool `json:"-"`
	jwt.RegisteredClaims
}

// UserJWTClaims 用户 JWT 声明
type UserJWTClaims struct {
	UserID       uint   `json:"user_id"`
	Email        string `json:"email"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

func signHS256(claims jwt.Claims, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseHS256(tokenString, secret string, claims jwt.Claims) error {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errInvalidToken
	}
	return nil
}

func registeredClaims(expireHours int) (jwt.RegisteredClaims, time.Time) {
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(expireHours) * time.Hour)
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}, expiresAt
}

// GenerateJWT 生成管理员 Token
func (s *AuthService) GenerateJWT(admin *models.Admin) (string, time.Time, error) {
	registered, expiresAt := registeredClaims(s.cfg.JWT.ExpireHours)
	tokenString, err := signHS256(JWTClaims{
		AdminID:          admin.ID,
		Username:         admin.Username,
		TokenVersion:     admin.TokenVersion,
		RegisteredClaims: registered,
	}, s.cfg.JWT.SecretKey)
	if err != nil {
		return "", time.Time{}, errors.Join(ErrTokenGenerate, err)
	}
	return tokenString, expiresAt, nil
}

// ParseJWT 解析管理员 Token
func (s *AuthService) ParseJWT(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	if err := parseHS256(tokenString, s.cfg.JWT.SecretKey, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateUserJWT 生成用户 Token
func (s *AuthService) GenerateUserJWT(user *models.User) (string, time.Time, error) {
	registered, expiresAt := registeredClaims(s.cfg.UserJWT.ExpireHours)
	tokenString, err := signHS256(UserJWTClaims{
		UserID:           user.ID,
		Email:            user.Email,
		TokenVersion:     user.TokenVersion,
		RegisteredClaims: registered,
	}, s.cfg.UserJWT.SecretKey)
	if err != nil {
		return "", time.Time{}, errors.Join(ErrTokenGenerate, err)
	}
	return tokenString, expiresAt, nil
}

// ParseUserJWT 解析用户 Token
func (s *AuthService) ParseUserJWT(tokenString string) (*UserJWTClaims, error) {
	claims := &UserJWTClaims{}
	if err := parseHS256(tokenString, s.cfg.UserJWT.SecretKey, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Login 管理员登录
func (s *AuthService) Login(username, password string) (*models.Admin, string, time.Time, error) {
	admin, err := s.adminRepo.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if admin == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := s.VerifyPassword(admin.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.GenerateJWT(admin)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now()
	if err := s.adminRepo.TouchLastLogin(admin.ID, now); err != nil {
		return nil, "", time.Time{}, err
	}
	admin.LastLoginAt = &now
	_ = cache.SetAdminAuthState(context.Background(), cache.BuildAdminAuthState(admin))
	logger.Infow("admin_login", "admin_id", admin.ID, "username", admin.Username)
	return admin, token, expiresAt, nil
}

// UserLogin 用户登录（账号注册与找回由外部认证模块负责）
func (s *AuthService) UserLogin(email, password string) (*models.User, string, time.Time, error) {
	user, err := s.userRepo.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := s.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if strings.ToLower(user.Status) != constants.UserStatusActive {
		return nil, "", time.Time{}, ErrAccountInactive
	}
	token, expiresAt, err := s.GenerateUserJWT(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	_ = cache.SetUserAuthState(context.Background(), cache.BuildUserAuthState(user))
	return user, token, expiresAt, nil
}

// AuthenticateUser 校验用户 Token 并确认账号状态与令牌版本
func (s *AuthService) AuthenticateUser(ctx context.Context, tokenString string) (*UserJWTClaims, error) {
	claims, err := s.ParseUserJWT(tokenString)
	if err != nil {
		return nil, err
	}
	state, hit, err := cache.GetUserAuthState(ctx, claims.UserID)
	if err != nil {
		logger.Warnw("user_auth_state_cache_failed", "user_id", claims.UserID, "error", err)
	}
	if !hit {
		user, err := s.userRepo.GetByID(claims.UserID)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrUserNotFound
		}
		state = cache.BuildUserAuthState(user)
		_ = cache.SetUserAuthState(ctx, state)
	}
	if strings.ToLower(state.Status) != constants.UserStatusActive {
		return nil, ErrAccountInactive
	}
	if state.TokenVersion != claims.TokenVersion {
		return nil, errInvalidToken
	}
	return claims, nil
}

// AuthenticateAdmin 校验管理员 Token
func (s *AuthService) AuthenticateAdmin(ctx context.Context, tokenString string) (*JWTClaims, error) {
	claims, err := s.ParseJWT(tokenString)
	if err != nil {
		return nil, err
	}
	state, hit, err := cache.GetAdminAuthState(ctx, claims.AdminID)
	if err != nil {
		logger.Warnw("admin_auth_state_cache_failed", "admin_id", claims.AdminID, "error", err)
	}
	if !hit {
		admin, err := s.adminRepo.GetByID(claims.AdminID)
		if err != nil {
			return nil, err
		}
		if admin == nil {
			return nil, ErrInvalidCredentials
		}
		state = cache.BuildAdminAuthState(admin)
		_ = cache.SetAdminAuthState(ctx, state)
	}
	if state.TokenVersion != claims.TokenVersion {
		return nil, errInvalidToken
	}
	claims.IsSuper = state.IsSuper
	return claims, nil
}

// IsInvalidToken 是否为令牌无效错误
func IsInvalidToken(err error) bool {
	return errors.Is(err, errInvalidToken) ||
		errors.Is(err, jwt.ErrTokenMalformed) ||
		errors.Is(err, jwt.ErrTokenExpired) ||
		errors.Is(err, jwt.ErrTokenNotValidYet) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenUnverifiable)
}
