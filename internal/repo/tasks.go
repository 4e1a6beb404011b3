package repo

import (
	"context"
	"database/sql"

	"taskflow/internal/domain"
)

const taskColumns = `task_id,user_id,title,description,due_date,is_completed,project_id,created_at,updated_at`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(task_id,user_id,title,description,due_date,is_completed,project_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		t.TaskID, t.UserID, t.Title, nullable(t.Description), t.DueDate, t.IsCompleted, nullableStringPtr(t.ProjectID), t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	var t domain.Task
	var description, projectID sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id=?`, taskID).
		Scan(&t.TaskID, &t.UserID, &t.Title, &description, &t.DueDate, &t.IsCompleted, &projectID, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if description.Valid {
		t.Description = description.String
	}
	if projectID.Valid {
		t.ProjectID = &projectID.String
	}
	return t, nil
}

func (r Repo) ListTasksByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id=? ORDER BY created_at DESC, task_id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		var description, projectID sql.NullString
		if err := rows.Scan(&t.TaskID, &t.UserID, &t.Title, &description, &t.DueDate, &t.IsCompleted, &projectID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			t.Description = description.String
		}
		if projectID.Valid {
			t.ProjectID = &projectID.String
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, due_date=?, is_completed=?, project_id=?, updated_at=? WHERE task_id=?`,
		t.Title, nullable(t.Description), t.DueDate, t.IsCompleted, nullableStringPtr(t.ProjectID), t.UpdatedAt, t.TaskID)
	return err
}

func (r Repo) DeleteTask(ctx context.Context, taskID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM tasks WHERE task_id=?`, taskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
