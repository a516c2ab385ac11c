package identity

import "context"

// UserRepository stores accounts. Emails are unique case-insensitively;
// Create reports a clash as ErrEmailTaken.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}
