package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"honourus/internal/domain"
)

func TestPasswordRoundTrip(t *testing.T) {
	HashCost = bcrypt.MinCost
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hash, "correct horse"); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestProfilePolicy(t *testing.T) {
	member := domain.User{ID: "u1", Role: domain.RoleMember}
	manager := domain.User{ID: "u2", Role: domain.RoleManager}
	admin := domain.User{ID: "u3", Role: domain.RoleAdmin}

	if err := CanEditProfile(member, "u1"); err != nil {
		t.Fatalf("self edit denied: %v", err)
	}
	var fe ForbiddenError
	if err := CanEditProfile(member, "u2"); !errors.As(err, &fe) {
		t.Fatalf("member editing other should be forbidden, got %v", err)
	}
	if err := CanEditProfile(manager, "u1"); err == nil {
		t.Fatalf("manager editing other should be forbidden")
	}
	if err := CanEditProfile(admin, "u1"); err != nil {
		t.Fatalf("admin edit denied: %v", err)
	}
	if err := CanChangeRole(manager); err == nil {
		t.Fatalf("manager role change should be forbidden")
	}
	if err := CanViewCredits(manager, "u1"); err != nil {
		t.Fatalf("manager credit view denied: %v", err)
	}
	if err := CanViewCredits(member, "u2"); err == nil {
		t.Fatalf("member credit view of other should be forbidden")
	}
}

func TestTeamPolicy(t *testing.T) {
	team := domain.Team{ID: "t1", Name: "Core", LeaderID: "lead"}
	if err := CanManageTeam(domain.User{ID: "lead", Role: domain.RoleMember}, team); err != nil {
		t.Fatalf("leader denied: %v", err)
	}
	if err := CanManageTeam(domain.User{ID: "x", Role: domain.RoleManager}, team); err == nil {
		t.Fatalf("non-leader manager should be forbidden")
	}
	if err := CanManageTeam(domain.User{ID: "x", Role: domain.RoleAdmin}, team); err != nil {
		t.Fatalf("admin denied: %v", err)
	}
}
