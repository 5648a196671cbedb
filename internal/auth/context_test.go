package auth

import (
	"context"
	"testing"

	"github.com/dukerupert/pointkeeper/internal/model"
)

func TestWithAuthAndFromContext(t *testing.T) {
	ac := AuthContext{
		UserID:    "USR-CON-20240305-001",
		AdminID:   "USR-ADM-20240305-001",
		Role:      model.RoleContributor,
		SessionID: 3,
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got != ac {
		t.Errorf("AuthContext = %+v, want %+v", got, ac)
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
}

func TestAdminID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{AdminID: "USR-ADM-20240305-001"})
	if AdminID(ctx) != "USR-ADM-20240305-001" {
		t.Errorf("AdminID = %q", AdminID(ctx))
	}
	if AdminID(context.Background()) != "" {
		t.Error("expected empty admin id for missing context")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: "USR-CON-20240305-007"})
	if UserID(ctx) != "USR-CON-20240305-007" {
		t.Errorf("UserID = %q", UserID(ctx))
	}
	if UserID(context.Background()) != "" {
		t.Error("expected empty user id for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	if !IsAdmin(WithAuth(context.Background(), AuthContext{Role: model.RoleAdmin})) {
		t.Error("expected IsAdmin = true for admin role")
	}
	if IsAdmin(WithAuth(context.Background(), AuthContext{Role: model.RoleContributor})) {
		t.Error("expected IsAdmin = false for contributor role")
	}
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}
