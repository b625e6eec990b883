package model

import "time"

// User roles.
const (
	RoleCustomer   = "CUSTOMER"
	RoleInstructor = "INSTRUCTOR"
	RoleStudio     = "STUDIO"
)

// User represents an application user record as stored in the `users`
// table.  Customers book classes; instructors teach them; the studio
// role manages templates, schedules and cancellation requests.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – CUSTOMER, INSTRUCTOR or STUDIO.
//  WalletID     – the user's studio-credit wallet.
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	WalletID     uint64    // users.wallet_id
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The
// plain token is never stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (null if active)
	CreatedAt time.Time  // refresh_tokens.created_at
}
