package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/license-ledger/internal/logger"

	"github.com/casbin/casbin/v3"
	"github.com/casbin/casbin/v3/model"
	"github.com/casbin/casbin/v3/util"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
)

const (
	apiV1Prefix     = "/api/v1"
	casbinTableName = "ledger_admin_rules"
	adminSubjectFmt = "admin:%d"
	rolePrefix      = "role:"
	// roleAnchor 让没有任何策略的角色也能被列出
	roleAnchor = "role:__anchor__"
)

// 后台接口按路由模板授权：p 行是 (角色, 路由, 方法)，g 行是 管理员→角色 或 角色→父角色
const ledgerRBACModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = (g(r.sub, p.sub) || r.sub == p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// 授权错误
var (
	ErrUnavailable     = errors.New("authz service unavailable")
	ErrRoleRequired    = errors.New("role is required")
	ErrRoleReserved    = errors.New("reserved role is not allowed")
	ErrRoleUnknown     = errors.New("role does not exist")
	ErrBuiltinRole     = errors.New("builtin role cannot be changed this way")
	ErrActionRequired  = errors.New("action is required")
	ErrAdminIDRequired = errors.New("admin id is required")
)

// Policy 权限策略
type Policy struct {
	Subject string `json:"subject"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// RoleSummary 角色概览
type RoleSummary struct {
	Role        string `json:"role"`
	Builtin     bool   `json:"builtin"`
	PolicyCount int    `json:"policy_count"`
}

// Service 后台管理员授权（casbin + gorm 持久化）
type Service struct {
	enforcer *casbin.SyncedEnforcer
}

// NewService 创建授权服务并加载已有策略
func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("authz db is nil")
	}
	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", casbinTableName)
	if err != nil {
		return nil, fmt.Errorf("create authz adapter: %w", err)
	}
	m, err := model.NewModelFromString(ledgerRBACModel)
	if err != nil {
		return nil, fmt.Errorf("load authz model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("init authz enforcer: %w", err)
	}
	enforcer.AddFunction("keyMatch2", util.KeyMatch2Func)
	// 每次增删策略直接落库，无需手动 SavePolicy
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load authz policy: %w", err)
	}
	return &Service{enforcer: enforcer}, nil
}

func (s *Service) ready() error {
	if s == nil || s.enforcer == nil {
		return ErrUnavailable
	}
	return nil
}

// EnforceAdmin 判定管理员能否以 act 方法访问 obj 路由
func (s *Service) EnforceAdmin(adminID uint, obj, act string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	return s.enforcer.Enforce(SubjectForAdmin(adminID), NormalizeObject(obj), NormalizeAction(act))
}

// EnsureRole 角色不存在时创建
func (s *Service) EnsureRole(role string) (string, error) {
	normalized, err := normalizeAssignableRole(role)
	if err != nil {
		return "", err
	}
	if err := s.ready(); err != nil {
		return "", err
	}
	if _, err := s.enforcer.AddNamedGroupingPolicy("g", normalized, roleAnchor); err != nil {
		return "", fmt.Errorf("create role %s: %w", normalized, err)
	}
	return normalized, nil
}

func (s *Service) roleExists(role string) (bool, error) {
	exists, err := s.enforcer.HasNamedGroupingPolicy("g", role, roleAnchor)
	if err != nil {
		return false, fmt.Errorf("check role %s: %w", role, err)
	}
	return exists, nil
}

// ListRoles 列出全部角色及其直接策略数
func (s *Service) ListRoles() ([]RoleSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredNamedGroupingPolicy("g", 1, roleAnchor)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	summaries := make([]RoleSummary, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 1 || !strings.HasPrefix(rule[0], rolePrefix) {
			continue
		}
		policies, err := s.enforcer.GetFilteredPolicy(0, rule[0])
		if err != nil {
			return nil, fmt.Errorf("count role policies: %w", err)
		}
		summaries = append(summaries, RoleSummary{
			Role:        rule[0],
			Builtin:     isBuiltinRole(rule[0]),
			PolicyCount: len(policies),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Role < summaries[j].Role })
	return summaries, nil
}

// DeleteRole 删除自定义角色：移除其策略、继承关系与管理员绑定；预置角色不可删除
func (s *Service) DeleteRole(role string) error {
	normalized, err := normalizeAssignableRole(role)
	if err != nil {
		return err
	}
	if isBuiltinRole(normalized) {
		return ErrBuiltinRole
	}
	if err := s.ready(); err != nil {
		return err
	}
	exists, err := s.roleExists(normalized)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRoleUnknown
	}
	if _, err := s.enforcer.RemoveFilteredPolicy(0, normalized); err != nil {
		return fmt.Errorf("remove role policies: %w", err)
	}
	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, normalized); err != nil {
		return fmt.Errorf("remove role links: %w", err)
	}
	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 1, normalized); err != nil {
		return fmt.Errorf("remove role members: %w", err)
	}
	logger.Infow("authz_role_deleted", "role", normalized)
	return nil
}

// GrantRolePolicy 为角色授予路由权限，角色不存在时自动创建
func (s *Service) GrantRolePolicy(role, object, action string) error {
	normalizedRole, err := s.EnsureRole(role)
	if err != nil {
		return err
	}
	normalizedAction := NormalizeAction(action)
	if normalizedAction == "" {
		return ErrActionRequired
	}
	if _, err := s.enforcer.AddPolicy(normalizedRole, NormalizeObject(object), normalizedAction); err != nil {
		return fmt.Errorf("grant policy: %w", err)
	}
	return nil
}

// RevokeRolePolicy 撤销角色权限；预置角色的内置权限会在启动时重新写入，因此不允许撤销
func (s *Service) RevokeRolePolicy(role, object, action string) error {
	normalizedRole, err := normalizeAssignableRole(role)
	if err != nil {
		return err
	}
	normalizedObject := NormalizeObject(object)
	normalizedAction := NormalizeAction(action)
	if normalizedAction == "" {
		return ErrActionRequired
	}
	if isBuiltinPolicy(normalizedRole, normalizedObject, normalizedAction) {
		return ErrBuiltinRole
	}
	if err := s.ready(); err != nil {
		return err
	}
	if _, err := s.enforcer.RemovePolicy(normalizedRole, normalizedObject, normalizedAction); err != nil {
		return fmt.Errorf("revoke policy: %w", err)
	}
	return nil
}

// GetRolePolicies 查询角色的直接策略
func (s *Service) GetRolePolicies(role string) ([]Policy, error) {
	normalizedRole, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	rules, err := s.enforcer.GetFilteredPolicy(0, normalizedRole)
	if err != nil {
		return nil, fmt.Errorf("get role policies: %w", err)
	}
	return convertPolicies(rules), nil
}

// SetAdminRoles 覆盖管理员的角色绑定；只能绑定已存在的角色
func (s *Service) SetAdminRoles(adminID uint, roles []string) error {
	if adminID == 0 {
		return ErrAdminIDRequired
	}
	if err := s.ready(); err != nil {
		return err
	}
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		name, err := normalizeAssignableRole(role)
		if err != nil {
			return err
		}
		exists, err := s.roleExists(name)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrRoleUnknown, name)
		}
		normalized = append(normalized, name)
	}

	subject := SubjectForAdmin(adminID)
	if _, err := s.enforcer.RemoveFilteredNamedGroupingPolicy("g", 0, subject); err != nil {
		return fmt.Errorf("clear admin roles: %w", err)
	}
	for _, role := range normalized {
		if _, err := s.enforcer.AddNamedGroupingPolicy("g", subject, role); err != nil {
			return fmt.Errorf("assign admin role: %w", err)
		}
	}
	return nil
}

// GetAdminRoles 查询管理员直接绑定的角色
func (s *Service) GetAdminRoles(adminID uint) ([]string, error) {
	if adminID == 0 {
		return nil, ErrAdminIDRequired
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	roles, err := s.enforcer.GetRolesForUser(SubjectForAdmin(adminID))
	if err != nil {
		return nil, fmt.Errorf("get admin roles: %w", err)
	}
	filtered := make([]string, 0, len(roles))
	for _, role := range roles {
		if strings.HasPrefix(role, rolePrefix) && role != roleAnchor {
			filtered = append(filtered, role)
		}
	}
	sort.Strings(filtered)
	return filtered, nil
}

// GetAdminPolicies 查询管理员生效策略（直接策略 + 角色及其父角色的策略）
func (s *Service) GetAdminPolicies(adminID uint) ([]Policy, error) {
	if adminID == 0 {
		return nil, ErrAdminIDRequired
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	subject := SubjectForAdmin(adminID)
	rules, err := s.enforcer.GetImplicitPermissionsForUser(subject)
	if err != nil {
		return nil, fmt.Errorf("get admin policies: %w", err)
	}
	seen := make(map[Policy]struct{}, len(rules))
	result := make([]Policy, 0, len(rules))
	for _, item := range convertPolicies(rules) {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Object != result[j].Object {
			return result[i].Object < result[j].Object
		}
		if result[i].Action != result[j].Action {
			return result[i].Action < result[j].Action
		}
		return result[i].Subject < result[j].Subject
	})
	return result, nil
}

func convertPolicies(rules [][]string) []Policy {
	policies := make([]Policy, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		policies = append(policies, Policy{
			Subject: strings.TrimSpace(rule[0]),
			Object:  NormalizeObject(rule[1]),
			Action:  NormalizeAction(rule[2]),
		})
	}
	return policies
}

// SubjectForAdmin 生成管理员主体标识
func SubjectForAdmin(adminID uint) string {
	return fmt.Sprintf(adminSubjectFmt, adminID)
}

// NormalizeRole 统一角色名称：去空白、空格转下划线、补 role: 前缀
func NormalizeRole(role string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(role), " ", "_")
	if !strings.HasPrefix(normalized, rolePrefix) {
		normalized = rolePrefix + normalized
	}
	if len(normalized) <= len(rolePrefix) {
		return "", ErrRoleRequired
	}
	return normalized, nil
}

func normalizeAssignableRole(role string) (string, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return "", err
	}
	if normalized == roleAnchor {
		return "", ErrRoleReserved
	}
	return normalized, nil
}

// NormalizeObject 统一授权路由：补前导斜杠并去掉 /api/v1 前缀
func NormalizeObject(object string) string {
	normalized := strings.TrimSpace(object)
	if normalized == "" {
		return "/"
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if normalized == apiV1Prefix {
		return "/"
	}
	if strings.HasPrefix(normalized, apiV1Prefix+"/") {
		return strings.TrimPrefix(normalized, apiV1Prefix)
	}
	return normalized
}

// NormalizeAction 统一授权动作
func NormalizeAction(action string) string {
	return strings.ToUpper(strings.TrimSpace(action))
}
