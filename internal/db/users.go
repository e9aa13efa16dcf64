package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is a registered account. Anonymous API use maps to a shared
// default user and never touches this table.
type User struct {
	UserID       string    `json:"user_id"`
	Handle       string    `json:"handle"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ErrHandleTaken is returned when registering an existing handle.
var ErrHandleTaken = errors.New("handle already taken")

// CreateUser inserts a new account with a pre-hashed password.
func (d *DB) CreateUser(handle, passwordHash string) (*User, error) {
	u := &User{
		UserID:       NewID(),
		Handle:       handle,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := d.conn.Exec(`INSERT INTO users (user_id, handle, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.UserID, u.Handle, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrHandleTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByHandle looks an account up by handle.
func (d *DB) GetUserByHandle(handle string) (*User, error) {
	row := d.conn.QueryRow(`SELECT user_id, handle, password_hash, created_at FROM users WHERE handle = ?`, handle)
	var u User
	err := row.Scan(&u.UserID, &u.Handle, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
