package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sjawhar/kalakaar/internal/apperr"
)

const (
	DemoEmail    = "demo@kalakaar.ai"
	DemoUsername = "demo_user"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Phone        string    `json:"phone"`
	Location     string    `json:"location"`
	CraftType    string    `json:"craft_type"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u User) (User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" || u.PasswordHash == "" {
		return User{}, apperr.New(apperr.InvalidInput, "email and password are required")
	}
	if u.Username == "" {
		u.Username = strings.SplitN(u.Email, "@", 2)[0]
	}
	u.CreatedAt = s.now()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users(username, email, password_hash, first_name, last_name, phone, location, craft_type, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Location, u.CraftType,
		u.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return User{}, apperr.New(apperr.Conflict, "an account with this email or username already exists")
		}
		return User{}, apperr.Wrap(apperr.StorageError, "create user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, apperr.Wrap(apperr.StorageError, "create user id", err)
	}
	u.ID = id
	return u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.queryUser(ctx, `WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	return s.queryUser(ctx, `WHERE id = ?`, id)
}

// EnsureDemoUser returns the shared fallback identity, creating it once.
func (s *SQLiteStore) EnsureDemoUser(ctx context.Context, passwordHash string) (User, error) {
	u, err := s.GetUserByEmail(ctx, DemoEmail)
	if err == nil {
		return u, nil
	}
	if !apperr.Is(err, apperr.NotFound) {
		return User{}, err
	}

	u, err = s.CreateUser(ctx, User{
		Username:     DemoUsername,
		Email:        DemoEmail,
		PasswordHash: passwordHash,
		FirstName:    "Demo",
		LastName:     "User",
	})
	if apperr.Is(err, apperr.Conflict) {
		return s.GetUserByEmail(ctx, DemoEmail)
	}
	return u, err
}

func (s *SQLiteStore) queryUser(ctx context.Context, where string, arg any) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, first_name, last_name, phone, location, craft_type, created_at
		 FROM users `+where,
		arg,
	)

	var u User
	var createdAt string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Phone, &u.Location, &u.CraftType, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.Wrap(apperr.NotFound, "user not found", err)
		}
		return User{}, apperr.Wrap(apperr.StorageError, "load user", err)
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return User{}, apperr.Wrap(apperr.StorageError, "parse user created_at", err)
	}
	u.CreatedAt = parsed
	return u, nil
}
