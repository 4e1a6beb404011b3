package repo

import (
	"context"
	"database/sql"

	"taskflow/internal/domain"
)

const projectColumns = `project_id,user_id,title,description,status,created_at,updated_at`

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(project_id,user_id,title,description,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		p.ProjectID, p.UserID, p.Title, nullable(p.Description), p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	var p domain.Project
	var description sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE project_id=?`, projectID).
		Scan(&p.ProjectID, &p.UserID, &p.Title, &description, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if description.Valid {
		p.Description = description.String
	}
	return p, nil
}

func (r Repo) ListProjectsByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE user_id=? ORDER BY created_at DESC, project_id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var description sql.NullString
		if err := rows.Scan(&p.ProjectID, &p.UserID, &p.Title, &description, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			p.Description = description.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `UPDATE projects SET title=?, description=?, status=?, updated_at=? WHERE project_id=?`,
		p.Title, nullable(p.Description), p.Status, p.UpdatedAt, p.ProjectID)
	return err
}

func (r Repo) DeleteProject(ctx context.Context, projectID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE project_id=?`, projectID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
