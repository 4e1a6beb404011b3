package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/config"
	"taskflow/internal/domain"
	"taskflow/internal/events"
	"taskflow/internal/farcaster"
	"taskflow/internal/repo"
)

// ErrPremiumRequired is returned when an operation needs a paid feature
// the user has no active grant for.
var ErrPremiumRequired = errors.New("premium subscription required")

// ErrInvalidSignature is returned when a Farcaster signed message fails
// verification.
var ErrInvalidSignature = errors.New("invalid signature")

// Verifier validates Farcaster signed messages and resolves profiles.
// *farcaster.Client satisfies it; tests substitute fakes.
type Verifier interface {
	VerifySignature(ctx context.Context, messageBytes string) (bool, error)
	UserByFID(ctx context.Context, fid int64) (farcaster.Profile, error)
}

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Farcaster Verifier
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config, fc Verifier) Engine {
	return Engine{
		DB:        db,
		Repo:      repo.Repo{DB: db},
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Farcaster: fc,
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// UserIDForFID derives the canonical user ID for a Farcaster ID. Both the
// frame path and the signed-in path mint IDs this way, so a user who
// pressed frame buttons before signing in keeps their history.
func UserIDForFID(fid int64) string {
	return fmt.Sprintf("fid_%d", fid)
}

// Authenticate verifies a signed Farcaster message, resolves the profile
// and returns the matching user, creating it on first sign-in.
func (e Engine) Authenticate(ctx context.Context, fid int64, signature, message string) (domain.User, error) {
	if e.Farcaster == nil {
		return domain.User{}, errors.New("farcaster client not configured")
	}
	ok, err := e.Farcaster.VerifySignature(ctx, message)
	if err != nil {
		return domain.User{}, fmt.Errorf("verify signature: %w", err)
	}
	if !ok {
		return domain.User{}, ErrInvalidSignature
	}
	profile, err := e.Farcaster.UserByFID(ctx, fid)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch profile: %w", err)
	}

	u, err := e.Repo.GetUserByFID(ctx, fid)
	if errors.Is(err, repo.ErrNotFound) {
		return e.registerUser(ctx, fid, profile)
	}
	if err != nil {
		return domain.User{}, err
	}
	return e.refreshProfile(ctx, u, profile)
}

func (e Engine) registerUser(ctx context.Context, fid int64, profile farcaster.Profile) (domain.User, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	ts := e.now().UTC().Format(time.RFC3339)
	u := domain.User{
		UserID:            UserIDForFID(fid),
		DisplayName:       profile.DisplayName,
		FarcasterUsername: profile.Username,
		FarcasterFID:      fid,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	if u.DisplayName == "" {
		u.DisplayName = fmt.Sprintf("User %d", fid)
	}
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "user.registered", u.UserID, "user", u.UserID, events.EventPayload{"fid": fid}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// refreshProfile keeps the stored name and username in sync with the
// Farcaster profile. A provisional frame-created user is upgraded to its
// real identity on first sign-in.
func (e Engine) refreshProfile(ctx context.Context, u domain.User, profile farcaster.Profile) (domain.User, error) {
	var displayName, username *string
	if profile.DisplayName != "" && profile.DisplayName != u.DisplayName {
		displayName = &profile.DisplayName
	}
	if profile.Username != "" && profile.Username != u.FarcasterUsername {
		username = &profile.Username
	}
	if displayName == nil && username == nil {
		return u, nil
	}
	u.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateUser(ctx, u.UserID, u.UpdatedAt, displayName, username); err != nil {
		return domain.User{}, err
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	if username != nil {
		u.FarcasterUsername = *username
	}
	return u, nil
}

func (e Engine) requireFeature(ctx context.Context, userID, featureType string) error {
	ok, err := e.Repo.HasActiveSubscription(ctx, userID, featureType, e.now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return ErrPremiumRequired
	}
	return nil
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	UserID      string
	Title       string
	Description string
	DueDate     string
	ProjectID   *string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.DueDate == "" {
		opts.DueDate = e.now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, opts.DueDate); err != nil {
		return domain.Task{}, fmt.Errorf("due date: %w", err)
	}
	if _, err := e.Repo.GetUserByID(ctx, opts.UserID); err != nil {
		return domain.Task{}, err
	}
	if opts.ProjectID != nil {
		if err := e.requireFeature(ctx, opts.UserID, domain.FeatureProjectLinking); err != nil {
			return domain.Task{}, err
		}
		if err := e.ensureProjectOwned(ctx, *opts.ProjectID, opts.UserID); err != nil {
			return domain.Task{}, err
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	ts := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		TaskID:      uuid.NewString(),
		UserID:      opts.UserID,
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		DueDate:     opts.DueDate,
		IsCompleted: false,
		ProjectID:   opts.ProjectID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", t.UserID, "task", t.TaskID, events.EventPayload{"title": t.Title}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// TaskUpdateOptions are parameters for a partial task update. Nil fields
// are left untouched; ClearProject unlinks the task.
type TaskUpdateOptions struct {
	TaskID       string
	UserID       string
	Title        *string
	Description  *string
	DueDate      *string
	IsCompleted  *bool
	ProjectID    *string
	ClearProject bool
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.UserID != opts.UserID {
		return domain.Task{}, repo.ErrNotFound
	}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return domain.Task{}, errors.New("title is required")
		}
		t.Title = strings.TrimSpace(*opts.Title)
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.DueDate != nil {
		if _, err := time.Parse(time.RFC3339, *opts.DueDate); err != nil {
			return domain.Task{}, fmt.Errorf("due date: %w", err)
		}
		t.DueDate = *opts.DueDate
	}
	if opts.IsCompleted != nil {
		t.IsCompleted = *opts.IsCompleted
	}
	if opts.ProjectID != nil {
		if err := e.requireFeature(ctx, opts.UserID, domain.FeatureProjectLinking); err != nil {
			return domain.Task{}, err
		}
		if err := e.ensureProjectOwned(ctx, *opts.ProjectID, opts.UserID); err != nil {
			return domain.Task{}, err
		}
		t.ProjectID = opts.ProjectID
	} else if opts.ClearProject {
		t.ProjectID = nil
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.updated", t.UserID, "task", t.TaskID, events.EventPayload{"is_completed": t.IsCompleted}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) DeleteTask(ctx context.Context, taskID, userID string) error {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if t.UserID != userID {
		return repo.ErrNotFound
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE task_id=?`, taskID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "task.deleted", userID, "task", taskID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) ensureProjectOwned(ctx context.Context, projectID, userID string) error {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return repo.ErrNotFound
	}
	return nil
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	UserID      string
	Title       string
	Description string
	Status      string
}

func validProjectStatus(status string) bool {
	switch status {
	case domain.ProjectActive, domain.ProjectCompleted, domain.ProjectPaused:
		return true
	}
	return false
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Project{}, errors.New("title is required")
	}
	if opts.Status == "" {
		opts.Status = domain.ProjectActive
	}
	if !validProjectStatus(opts.Status) {
		return domain.Project{}, fmt.Errorf("invalid status %q", opts.Status)
	}
	if err := e.requireFeature(ctx, opts.UserID, domain.FeatureProjectLinking); err != nil {
		return domain.Project{}, err
	}
	if _, err := e.Repo.GetUserByID(ctx, opts.UserID); err != nil {
		return domain.Project{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	ts := e.now().UTC().Format(time.RFC3339)
	p := domain.Project{
		ProjectID:   uuid.NewString(),
		UserID:      opts.UserID,
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		Status:      opts.Status,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.created", p.UserID, "project", p.ProjectID, events.EventPayload{"title": p.Title}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ProjectUpdateOptions are parameters for a partial project update.
type ProjectUpdateOptions struct {
	ProjectID   string
	UserID      string
	Title       *string
	Description *string
	Status      *string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	if p.UserID != opts.UserID {
		return domain.Project{}, repo.ErrNotFound
	}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return domain.Project{}, errors.New("title is required")
		}
		p.Title = strings.TrimSpace(*opts.Title)
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.Status != nil {
		if !validProjectStatus(*opts.Status) {
			return domain.Project{}, fmt.Errorf("invalid status %q", *opts.Status)
		}
		p.Status = *opts.Status
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p.UpdatedAt = e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("update project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.updated", p.UserID, "project", p.ProjectID, events.EventPayload{"status": p.Status}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// DeleteProject removes a project. Tasks linked to it are unlinked, not
// deleted.
func (e Engine) DeleteProject(ctx context.Context, projectID, userID string) error {
	if err := e.ensureProjectOwned(ctx, projectID, userID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET project_id=NULL WHERE project_id=?`, projectID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE project_id=?`, projectID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "project.deleted", userID, "project", projectID, nil); err != nil {
		return err
	}
	return tx.Commit()
}
