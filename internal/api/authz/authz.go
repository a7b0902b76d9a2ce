package authz

import (
	"context"
	"errors"
	"sort"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type Permission string

const (
	PermRoomRead           Permission = "room.read"
	PermRoomWrite          Permission = "room.write"
	PermTeamCreate         Permission = "team.create"
	PermTeamCreateElevated Permission = "team.create.elevated"
	PermTeamReadElevated   Permission = "team.read.elevated"
	PermTeamDelete         Permission = "team.delete"
	PermReservationWrite   Permission = "reservation.write"
)

const (
	RoleStudent   = "student"
	RoleProfessor = "professor"
	RoleAdmin     = "admin"
)

var studentPermissions = []Permission{
	PermRoomRead,
	PermTeamCreate,
	PermTeamDelete,
	PermReservationWrite,
}

var rolePermissions = map[string][]Permission{
	RoleStudent:   studentPermissions,
	RoleProfessor: append([]Permission{PermTeamCreateElevated, PermTeamReadElevated}, studentPermissions...),
	RoleAdmin: {
		PermRoomRead,
		PermRoomWrite,
		PermTeamCreate,
		PermTeamCreateElevated,
		PermTeamReadElevated,
		PermTeamDelete,
		PermReservationWrite,
	},
}

type AuthUser struct {
	ID   int64
	Name string
	Role string
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// KnownRole reports whether role has a permission set.
func KnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Permissions returns the sorted permission names granted to role. Unknown
// roles get nothing.
func Permissions(role string) []string {
	perms := rolePermissions[role]
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	sort.Strings(names)
	return names
}

func HasPermission(user *AuthUser, perm Permission) bool {
	if user == nil {
		return false
	}
	for _, p := range rolePermissions[user.Role] {
		if p == perm {
			return true
		}
	}
	return false
}

func IsAdmin(user *AuthUser) bool {
	return user != nil && user.Role == RoleAdmin
}

func RequirePermission(ctx context.Context, perm Permission) error {
	user := UserFromContext(ctx)
	if user == nil {
		return ErrUnauthenticated
	}
	if !HasPermission(user, perm) {
		return ErrForbidden
	}
	return nil
}
