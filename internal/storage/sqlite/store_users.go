package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatdeck/chatdeck/internal/storage"
	"github.com/chatdeck/chatdeck/internal/user"
)

const userColumns = `id, username, email, first_name, last_name, avatar_url, password_hash, roles, online, last_seen, created_at`

// CreateUser inserts a new account. Duplicate usernames fail with
// storage.ErrAlreadyExists.
func (s *Store) CreateUser(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !u.Validate() {
		return fmt.Errorf("user id and username are required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, username, email, first_name, last_name, avatar_url, password_hash, roles, online, last_seen, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		u.ID,
		u.Username,
		u.Email,
		u.FirstName,
		u.LastName,
		u.AvatarURL,
		u.PasswordHash,
		joinRoles(u.Roles),
		toMillis(u.LastSeen),
		toMillis(u.CreatedAt),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByID fetches an account by id.
func (s *Store) UserByID(ctx context.Context, userID string) (user.User, error) {
	return s.userBy(ctx, "id = ?", userID)
}

// UserByUsername fetches an account by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.userBy(ctx, "username = ?", username)
}

func (s *Store) userBy(ctx context.Context, where string, arg string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, storage.ErrNotFound
		}
		return user.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// SearchUsers returns accounts whose username contains query, case
// insensitively.
func (s *Store) SearchUsers(ctx context.Context, query string) ([]user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+userColumns+` FROM users
WHERE LOWER(username) LIKE ?
ORDER BY username
LIMIT 50`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// UpdateProfile updates the mutable profile fields.
func (s *Store) UpdateProfile(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE users SET first_name = ?, last_name = ?, avatar_url = ? WHERE id = ?`,
		u.FirstName, u.LastName, u.AvatarURL, u.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SetOnline writes the best-effort presence projection with a
// last-seen stamp.
func (s *Store) SetOnline(ctx context.Context, userID string, online bool, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	onlineValue := 0
	if online {
		onlineValue = 1
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
UPDATE users SET online = ?, last_seen = ? WHERE id = ?`,
		onlineValue, toMillis(at), userID); err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	var roles string
	var online int64
	var lastSeen int64
	var createdAt int64
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.AvatarURL, &u.PasswordHash, &roles, &online, &lastSeen, &createdAt); err != nil {
		return user.User{}, err
	}
	u.Roles = splitRoles(roles)
	u.Online = online != 0
	u.LastSeen = fromMillis(lastSeen)
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

func joinRoles(roles []string) string {
	if len(roles) == 0 {
		return user.RoleUser
	}
	return strings.Join(roles, ",")
}

func splitRoles(roles string) []string {
	if strings.TrimSpace(roles) == "" {
		return []string{user.RoleUser}
	}
	return strings.Split(roles, ",")
}
