// Package frame implements the Farcaster frame surface: a stateless
// button-press protocol engine, an SVG card renderer and a metadata
// document composer. Each button press arrives as a discrete POST; the
// engine resolves the actor, applies the mutation and names the next
// card. No session state survives between presses.
package frame

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/domain"
	"taskflow/internal/events"
	"taskflow/internal/repo"
)

// Action names a renderable card. The engine only ever emits values from
// this set.
type Action string

const (
	ActionHome      Action = "home"
	ActionToday     Action = "today"
	ActionAddTask   Action = "add_task"
	ActionTaskAdded Action = "task_added"
	ActionProjects  Action = "projects"
	ActionOpenApp   Action = "open_app"
	ActionError     Action = "error"
)

// ParseAction maps a query-string value to an Action, defaulting to home
// for empty or unknown input.
func ParseAction(s string) Action {
	switch Action(s) {
	case ActionHome, ActionToday, ActionAddTask, ActionTaskAdded, ActionProjects, ActionOpenApp, ActionError:
		return Action(s)
	}
	return ActionHome
}

// Event is one button press relayed by the embedding client.
type Event struct {
	FID         int64
	ButtonIndex int
	InputText   string
}

// Descriptor is the engine's verdict: which card to show next, for whom,
// with an optional confirmation message.
type Descriptor struct {
	Action  Action
	UserID  string
	Message string
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func NewEngine(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// HandleEvent runs one button press through the state machine. It is
// total: any internal fault degrades to the error card instead of
// propagating, since the embedding client can only render frames.
// Callers must reject events with no FID before calling.
func (e Engine) HandleEvent(ctx context.Context, evt Event) Descriptor {
	user, err := e.resolveUser(ctx, evt.FID)
	if err != nil {
		log.Printf("frame: resolve user fid=%d: %v", evt.FID, err)
		return Descriptor{Action: ActionError}
	}

	switch evt.ButtonIndex {
	case 1:
		return Descriptor{Action: ActionToday, UserID: user.UserID}
	case 2:
		title := strings.TrimSpace(evt.InputText)
		if title == "" {
			return Descriptor{Action: ActionAddTask, UserID: user.UserID}
		}
		if err := e.createTask(ctx, user.UserID, title); err != nil {
			log.Printf("frame: create task fid=%d: %v", evt.FID, err)
			return Descriptor{Action: ActionError}
		}
		return Descriptor{Action: ActionTaskAdded, UserID: user.UserID, Message: "Task added successfully!"}
	case 3:
		return Descriptor{Action: ActionProjects, UserID: user.UserID}
	case 4:
		return Descriptor{Action: ActionOpenApp, UserID: user.UserID}
	default:
		return Descriptor{Action: ActionHome, UserID: user.UserID}
	}
}

// resolveUser finds the user for a Farcaster ID, provisioning a
// placeholder record on first contact. The placeholder shares its key
// with the signed-in path, so later authentication lands on the same
// row and inherits any tasks created from the frame.
func (e Engine) resolveUser(ctx context.Context, fid int64) (domain.User, error) {
	u, err := e.Repo.GetUserByFID(ctx, fid)
	if err == nil {
		return u, nil
	}
	if err != repo.ErrNotFound {
		return domain.User{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	ts := e.now().UTC().Format(time.RFC3339)
	u = domain.User{
		UserID:            fmt.Sprintf("fid_%d", fid),
		DisplayName:       fmt.Sprintf("User %d", fid),
		FarcasterUsername: fmt.Sprintf("user%d", fid),
		FarcasterFID:      fid,
		CreatedAt:         ts,
		UpdatedAt:         ts,
	}
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "user.provisioned", u.UserID, "user", u.UserID, events.EventPayload{"fid": fid}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) createTask(ctx context.Context, userID, title string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		TaskID:      uuid.NewString(),
		UserID:      userID,
		Title:       title,
		DueDate:     ts,
		IsCompleted: false,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", userID, "task", t.TaskID, events.EventPayload{"title": t.Title, "source": "frame"}); err != nil {
		return err
	}
	return tx.Commit()
}
