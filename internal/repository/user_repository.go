package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/GeorgesCH/studio-class-scheduler/internal/model"
	"github.com/GeorgesCH/studio-class-scheduler/internal/utils"
)

var ErrEmailExists = errors.New("email already exists")

// UserRepo mirrors the 'users' table.  Every user owns exactly one
// studio-credit wallet; wallet_id is assigned at creation and equals
// the user id.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user, assigns their wallet and returns the ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE users SET wallet_id=? WHERE id=?", id, id); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,wallet_id,is_active,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.WalletID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,wallet_id,is_active,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.WalletID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// WalletID returns the wallet owned by a user.
func (r *UserRepo) WalletID(ctx context.Context, userID uint64) (uint64, error) {
	var walletID uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT wallet_id FROM users WHERE id=? LIMIT 1", userID).Scan(&walletID)
	return walletID, err
}
