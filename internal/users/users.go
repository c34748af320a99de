// Package users is plain account CRUD. Passwords are bcrypt-hashed on write
// and never leave this package.
package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/games-store/api/internal/orders"
)

type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Role      string     `json:"role"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type Repo struct {
	DB         *pgxpool.Pool
	BcryptCost int
}

// HashPassword is exposed for tests; cost 0 falls back to bcrypt's default.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(h), err
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (r *Repo) Create(ctx context.Context, u *User, password string) error {
	if u.Username == "" || u.Email == "" {
		return orders.ErrInvalidArgumentf("username and email are required")
	}
	if len(password) < 6 {
		return orders.ErrInvalidArgumentf("password must be at least 6 characters")
	}
	if u.Role == "" {
		u.Role = "customer"
	}
	hash, err := HashPassword(password, r.BcryptCost)
	if err != nil {
		return orders.ErrInternal("hash password", err)
	}
	u.ID = uuid.NewString()
	u.Active = true
	u.CreatedAt = time.Now().UTC()

	_, err = r.DB.Exec(ctx, `
		INSERT INTO users (id, username, email, password, full_name, phone, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		u.ID, u.Username, u.Email, hash, u.FullName, u.Phone, u.Role, u.Active, u.CreatedAt)
	if isUniqueViolation(err) {
		return orders.ErrInvalidArgumentf("username or email already taken")
	}
	if err != nil {
		return orders.ErrInternal("create user", err)
	}
	return nil
}

func (r *Repo) ByID(ctx context.Context, id string) (*User, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, username, email, full_name, phone, role, active, created_at, last_login
		FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound("user", id)
	}
	if err != nil {
		return nil, orders.ErrInternal("load user", err)
	}
	return u, nil
}

func (r *Repo) List(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, username, email, full_name, phone, role, active, created_at, last_login
		FROM users ORDER BY username LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, orders.ErrInternal("list users", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, orders.ErrInternal("scan user", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, u *User) error {
	if u.Username == "" || u.Email == "" {
		return orders.ErrInvalidArgumentf("username and email are required")
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE users SET username=$2, email=$3, full_name=$4, phone=$5, role=$6, active=$7
		WHERE id=$1`,
		u.ID, u.Username, u.Email, u.FullName, u.Phone, u.Role, u.Active)
	if isUniqueViolation(err) {
		return orders.ErrInvalidArgumentf("username or email already taken")
	}
	if err != nil {
		return orders.ErrInternal("update user", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound("user", u.ID)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `UPDATE users SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return orders.ErrInternal("delete user", err)
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrNotFound("user", id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (*User, error) {
	var u User
	err := r.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Phone, &u.Role, &u.Active,
		&u.CreatedAt, &u.LastLogin)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
