package authz

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceAdminWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/withdrawals/:id", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetAdminRoles(1, []string{"ops"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(1, "/api/v1/admin/withdrawals/42", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceAdmin(1, "/api/v1/admin/withdrawals/42", "POST")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestSetAdminRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/purchases", "GET"); err != nil {
		t.Fatalf("grant ops policy failed: %v", err)
	}
	if err := svc.GrantRolePolicy("finance", "/admin/withdrawals", "GET"); err != nil {
		t.Fatalf("grant finance policy failed: %v", err)
	}

	if err := svc.SetAdminRoles(2, []string{"ops"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	roles, err := svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:ops" {
		t.Fatalf("roles want [role:ops], got=%v", roles)
	}

	if err := svc.SetAdminRoles(2, []string{"finance"}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	roles, err = svc.GetAdminRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:finance" {
		t.Fatalf("roles want [role:finance], got=%v", roles)
	}

	allow, err := svc.EnforceAdmin(2, "/admin/purchases", "GET")
	if err != nil {
		t.Fatalf("enforce old role failed: %v", err)
	}
	if allow {
		t.Fatalf("expected old role permission removed")
	}

	allow, err = svc.EnforceAdmin(2, "/admin/withdrawals", "GET")
	if err != nil {
		t.Fatalf("enforce new role failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected new role permission granted")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/purchases/:id", want: "/admin/purchases/:id"},
		{in: "/admin/purchases/:id", want: "/admin/purchases/:id"},
		{in: "admin/purchases", want: "/admin/purchases"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:readonly_auditor": true,
		"role:operations":       true,
		"role:support":          true,
		"role:finance":          true,
	}
	for _, role := range roles {
		if !role.Builtin {
			t.Fatalf("seeded role %s should be builtin", role.Role)
		}
		delete(wantRoles, role.Role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	if err := svc.SetAdminRoles(3, []string{"operations"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}

	allow, err := svc.EnforceAdmin(3, "/admin/withdrawals", "GET")
	if err != nil {
		t.Fatalf("enforce inherited readonly failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected inherited readonly permission")
	}

	allow, err = svc.EnforceAdmin(3, "/api/v1/admin/withdrawals/9/finalize", "POST")
	if err != nil {
		t.Fatalf("enforce readonly write failed: %v", err)
	}
	if allow {
		t.Fatalf("operations must not finalize withdrawals")
	}

	if err := svc.SetAdminRoles(4, []string{"finance"}); err != nil {
		t.Fatalf("set finance role failed: %v", err)
	}
	allow, err = svc.EnforceAdmin(4, "/api/v1/admin/withdrawals/9/finalize", "POST")
	if err != nil {
		t.Fatalf("enforce finance finalize failed: %v", err)
	}
	if !allow {
		t.Fatalf("finance should finalize withdrawals")
	}
	allow, err = svc.EnforceAdmin(4, "/api/v1/admin/sweeps/benefit", "POST")
	if err != nil {
		t.Fatalf("enforce finance sweep failed: %v", err)
	}
	if allow {
		t.Fatalf("benefit sweep belongs to operations")
	}
}

func TestDeleteRoleProtectsBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.DeleteRole("finance"); !errors.Is(err, ErrBuiltinRole) {
		t.Fatalf("expected ErrBuiltinRole, got %v", err)
	}
	if err := svc.DeleteRole("night_shift"); !errors.Is(err, ErrRoleUnknown) {
		t.Fatalf("expected ErrRoleUnknown, got %v", err)
	}

	if err := svc.GrantRolePolicy("night_shift", "/admin/withdrawals/:id/approve", "POST"); err != nil {
		t.Fatalf("grant custom policy failed: %v", err)
	}
	if err := svc.SetAdminRoles(5, []string{"night_shift"}); err != nil {
		t.Fatalf("bind custom role failed: %v", err)
	}
	allow, err := svc.EnforceAdmin(5, "/api/v1/admin/withdrawals/3/approve", "POST")
	if err != nil || !allow {
		t.Fatalf("custom role should approve, allow=%v err=%v", allow, err)
	}

	if err := svc.DeleteRole("night_shift"); err != nil {
		t.Fatalf("delete custom role failed: %v", err)
	}
	allow, err = svc.EnforceAdmin(5, "/api/v1/admin/withdrawals/3/approve", "POST")
	if err != nil || allow {
		t.Fatalf("deleted role must not grant access, allow=%v err=%v", allow, err)
	}
	roles, err := svc.GetAdminRoles(5)
	if err != nil || len(roles) != 0 {
		t.Fatalf("admin binding should be removed, roles=%v err=%v", roles, err)
	}
}

func TestRevokeBuiltinPolicyRejected(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.RevokeRolePolicy("finance", "/api/v1/admin/withdrawals/:id/finalize", "post"); !errors.Is(err, ErrBuiltinRole) {
		t.Fatalf("expected ErrBuiltinRole, got %v", err)
	}

	if err := svc.GrantRolePolicy("finance", "/admin/users/:id/ledger", "GET"); err != nil {
		t.Fatalf("grant extra policy failed: %v", err)
	}
	if err := svc.RevokeRolePolicy("finance", "/admin/users/:id/ledger", "GET"); err != nil {
		t.Fatalf("extra policy on builtin role should be revocable: %v", err)
	}
}

func TestSetAdminRolesRejectsUnknownRole(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.SetAdminRoles(6, []string{"typo_role"}); !errors.Is(err, ErrRoleUnknown) {
		t.Fatalf("expected ErrRoleUnknown, got %v", err)
	}
	if err := svc.SetAdminRoles(0, nil); !errors.Is(err, ErrAdminIDRequired) {
		t.Fatalf("expected ErrAdminIDRequired, got %v", err)
	}
}

func TestGetAdminPoliciesIncludesInheritedRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}
	if err := svc.SetAdminRoles(7, []string{"operations"}); err != nil {
		t.Fatalf("set admin roles failed: %v", err)
	}
	policies, err := svc.GetAdminPolicies(7)
	if err != nil {
		t.Fatalf("get admin policies failed: %v", err)
	}
	found := map[string]bool{}
	for _, policy := range policies {
		found[policy.Subject+" "+policy.Action+" "+policy.Object] = true
	}
	if !found["role:readonly_auditor GET /admin/*"] {
		t.Fatalf("inherited auditor policy missing: %v", policies)
	}
	if !found["role:operations POST /admin/sweeps/benefit"] {
		t.Fatalf("direct operations policy missing: %v", policies)
	}
}
