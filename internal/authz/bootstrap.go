package authz

import (
	"fmt"

	"github.com/license-ledger/internal/logger"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role      string
	Inherits  []string
	Policies  []Policy
	Immutable bool
}

// BuiltinRoleSeeds 系统预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: "readonly_auditor",
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
			Immutable: true,
		},
		{
			Role:     "operations",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/purchases/confirmed", Action: "POST"},
				{Object: "/admin/purchases/:id/expire", Action: "POST"},
				{Object: "/admin/schedules/:id/pause", Action: "POST"},
				{Object: "/admin/schedules/:id/resume", Action: "POST"},
				{Object: "/admin/schedules/:id/days/:day/release", Action: "POST"},
				{Object: "/admin/sweeps/benefit", Action: "POST"},
				{Object: "/admin/users/status", Action: "POST"},
			},
			Immutable: true,
		},
		{
			Role: "support",
			Policies: []Policy{
				{Object: "/admin/users/:id/balance", Action: "GET"},
				{Object: "/admin/users/:id/ledger", Action: "GET"},
				{Object: "/admin/withdrawals", Action: "GET"},
				{Object: "/admin/withdrawals/:id", Action: "GET"},
				{Object: "/admin/purchases", Action: "GET"},
				{Object: "/admin/purchases/:id", Action: "GET"},
			},
			Immutable: true,
		},
		{
			Role:     "finance",
			Inherits: []string{"readonly_auditor"},
			Policies: []Policy{
				{Object: "/admin/withdrawals/:id/approve", Action: "POST"},
				{Object: "/admin/withdrawals/:id/processing", Action: "POST"},
				{Object: "/admin/withdrawals/:id/finalize", Action: "POST"},
				{Object: "/admin/purchases/:id/reverse", Action: "POST"},
				{Object: "/admin/sweeps/commission", Action: "POST"},
			},
			Immutable: true,
		},
	}
}

func builtinSeed(role string) (RoleSeed, bool) {
	for _, seed := range BuiltinRoleSeeds() {
		if normalized, err := NormalizeRole(seed.Role); err == nil && normalized == role {
			return seed, true
		}
	}
	return RoleSeed{}, false
}

func isBuiltinRole(role string) bool {
	seed, ok := builtinSeed(role)
	return ok && seed.Immutable
}

func isBuiltinPolicy(role, object, action string) bool {
	seed, ok := builtinSeed(role)
	if !ok || !seed.Immutable {
		return false
	}
	for _, policy := range seed.Policies {
		if NormalizeObject(policy.Object) == object && NormalizeAction(policy.Action) == action {
			return true
		}
	}
	return false
}

// BootstrapBuiltinRoles 写入预置角色、继承关系与内置权限，可重复执行
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}
	added := 0
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}
		ok, err := s.enforcer.AddNamedGroupingPolicy("g", role, roleAnchor)
		if err != nil {
			return fmt.Errorf("create builtin role %s: %w", role, err)
		}
		if ok {
			added++
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			ok, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole)
			if err != nil {
				return fmt.Errorf("link builtin role %s to %s: %w", role, parentRole, err)
			}
			if ok {
				added++
			}
		}
		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return ErrActionRequired
			}
			ok, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action)
			if err != nil {
				return fmt.Errorf("add builtin policy for %s: %w", role, err)
			}
			if ok {
				added++
			}
		}
	}
	if added > 0 {
		logger.Infow("authz_builtin_roles_seeded", "rules_added", added)
	}
	return nil
}
