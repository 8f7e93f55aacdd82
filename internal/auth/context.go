// internal/auth/context.go
//
// Request-scoped user identity.
//
// Usage
// -----
//     // After the bearer token is verified.
//     ctx = auth.WithUser(ctx, "user-42")
//
//     // Downstream handlers retrieve the id.
//     id, ok := auth.UserID(ctx)   // "user-42", true
//
// Notes
// -----
// • User ids are opaque strings issued by the external identity provider.
// • Oxford commas, two spaces after periods.

package auth

import "context"

// userKey is unexported to avoid context-key collisions.
type userKey struct{}

// WithUser returns a new context carrying userID.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID extracts the user id from ctx.  It returns ("", false) when no
// user is set.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}
