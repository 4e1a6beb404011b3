package repo

import (
	"context"
	"database/sql"
	"time"

	"taskflow/internal/domain"
)

const subscriptionColumns = `id,user_id,feature_type,is_active,expires_at,created_at`

func (r Repo) InsertSubscription(ctx context.Context, tx *sql.Tx, s domain.Subscription) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO user_subscriptions(user_id,feature_type,is_active,expires_at,created_at) VALUES (?,?,?,?,?)`,
		s.UserID, s.FeatureType, s.IsActive, nullableStringPtr(s.ExpiresAt), s.CreatedAt)
	return err
}

// ListActiveSubscriptions returns rows still flagged active. Expiry is not
// evaluated here; HasActiveSubscription owns the lazy-expiry check.
func (r Repo) ListActiveSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE user_id=? AND is_active=1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		var expiresAt sql.NullString
		if err := rows.Scan(&s.ID, &s.UserID, &s.FeatureType, &s.IsActive, &expiresAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			s.ExpiresAt = &expiresAt.String
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// HasActiveSubscription reports whether the user holds a grant for the
// feature that is live at the given instant. A grant whose expiry has
// passed is deactivated as a side effect of this read; the write-back is
// unguarded, so concurrent readers near the boundary may briefly both
// observe the grant as active.
func (r Repo) HasActiveSubscription(ctx context.Context, userID, featureType string, now time.Time) (bool, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM user_subscriptions WHERE user_id=? AND feature_type=? AND is_active=1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		userID, featureType)
	var s domain.Subscription
	var expiresAt sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.FeatureType, &s.IsActive, &expiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !expiresAt.Valid {
		return true, nil
	}
	exp, err := time.Parse(time.RFC3339, expiresAt.String)
	if err != nil {
		return false, err
	}
	if exp.Before(now) {
		if _, err := r.DB.ExecContext(ctx, `UPDATE user_subscriptions SET is_active=0 WHERE id=?`, s.ID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r Repo) DeactivateSubscription(ctx context.Context, userID, featureType string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE user_subscriptions SET is_active=0 WHERE user_id=? AND feature_type=?`, userID, featureType)
	return err
}
