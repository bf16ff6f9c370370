package core

import "context"

// SyncTier is the verification-derived policy controlling sync scope.
type SyncTier string

const (
	TierVerified   SyncTier = "verified"
	TierUnverified SyncTier = "unverified"
)

// User is the acting field worker.
type User struct {
	Username     string
	Verified     bool
	Organisation string
}

// UserProvider exposes the currently logged-in user.
type UserProvider interface {
	CurrentUser(ctx context.Context) (User, error)
}

// StaticUser is a UserProvider that always returns itself.
type StaticUser User

// CurrentUser implements UserProvider.
func (u StaticUser) CurrentUser(context.Context) (User, error) {
	return User(u), nil
}

// Resolve selects the sync tier for user.
func Resolve(user User) SyncTier {
	if user.Verified {
		return TierVerified
	}
	return TierUnverified
}
