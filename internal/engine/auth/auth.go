package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"honourus/internal/domain"
)

// ForbiddenError indicates the actor may not perform an action.
type ForbiddenError struct {
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: cannot %s", e.Action)
}

// ErrInvalidCredentials covers unknown emails, wrong passwords and bad tokens.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashCost is the bcrypt cost used for new password hashes.
var HashCost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func ComparePassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func ValidRole(role string) bool {
	switch role {
	case domain.RoleMember, domain.RoleManager, domain.RoleAdmin:
		return true
	}
	return false
}

func IsAdmin(u domain.User) bool { return u.Role == domain.RoleAdmin }

// IsManager is true for managers and admins.
func IsManager(u domain.User) bool {
	return u.Role == domain.RoleManager || u.Role == domain.RoleAdmin
}

// CanEditProfile allows self-service edits and admin edits.
func CanEditProfile(actor domain.User, targetID string) error {
	if actor.ID == targetID || IsAdmin(actor) {
		return nil
	}
	return ForbiddenError{Action: "update another user's profile"}
}

func CanChangeRole(actor domain.User) error {
	if IsAdmin(actor) {
		return nil
	}
	return ForbiddenError{Action: "change roles"}
}

// CanViewCredits allows self, managers and admins.
func CanViewCredits(actor domain.User, targetID string) error {
	if actor.ID == targetID || IsManager(actor) {
		return nil
	}
	return ForbiddenError{Action: "view another user's credit history"}
}

func CanManageTeam(actor domain.User, team domain.Team) error {
	if team.LeaderID == actor.ID || IsAdmin(actor) {
		return nil
	}
	return ForbiddenError{Action: "manage team " + team.Name}
}

// CanActFor allows acting on behalf of userID only for that user or an admin.
func CanActFor(actor domain.User, userID string) error {
	if actor.ID == userID || IsAdmin(actor) {
		return nil
	}
	return ForbiddenError{Action: "act on behalf of another user"}
}
