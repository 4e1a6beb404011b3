package repo

import (
	"context"
	"database/sql"
	"errors"

	"taskflow/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const userColumns = `user_id,display_name,COALESCE(farcaster_username,'') AS farcaster_username,farcaster_fid,created_at,updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.UserID, &u.DisplayName, &u.FarcasterUsername, &u.FarcasterFID, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users(user_id,display_name,farcaster_username,farcaster_fid,created_at,updated_at) VALUES (?,?,?,?,?,?)`,
		u.UserID, u.DisplayName, nullable(u.FarcasterUsername), u.FarcasterFID, u.CreatedAt, u.UpdatedAt)
	return err
}

func (r Repo) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=?`, userID))
}

// GetUserByFID looks a user up by Farcaster identity. The fid is the only
// lookup key shared by the frame path and the authenticated path, so both
// converge on the same row.
func (r Repo) GetUserByFID(ctx context.Context, fid int64) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE farcaster_fid=?`, fid))
}

func (r Repo) UpdateUser(ctx context.Context, userID, updatedAt string, displayName, username *string) error {
	var (
		fields []string
		args   []any
	)
	if displayName != nil {
		fields = append(fields, "display_name=?")
		args = append(args, *displayName)
	}
	if username != nil {
		fields = append(fields, "farcaster_username=?")
		args = append(args, nullable(*username))
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, updatedAt, userID)
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET `+joinFields(fields)+` WHERE user_id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ","
		}
		out += f
	}
	return out
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}
