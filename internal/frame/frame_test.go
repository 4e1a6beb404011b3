package frame_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"taskflow/internal/db"
	"taskflow/internal/domain"
	"taskflow/internal/frame"
	"taskflow/internal/migrate"
	"taskflow/internal/repo"
)

func newFrameEngine(t *testing.T) frame.Engine {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	fe := frame.NewEngine(conn)
	fe.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return fe
}

func TestHandleEventProvisionsUser(t *testing.T) {
	fe := newFrameEngine(t)
	ctx := context.Background()

	desc := fe.HandleEvent(ctx, frame.Event{FID: 555, ButtonIndex: 1})
	if desc.Action != frame.ActionToday {
		t.Fatalf("action = %s, want today", desc.Action)
	}
	if desc.UserID != "fid_555" {
		t.Fatalf("user id = %q, want fid_555", desc.UserID)
	}

	u, err := fe.Repo.GetUserByFID(ctx, 555)
	if err != nil {
		t.Fatalf("provisioned user not found: %v", err)
	}
	if u.DisplayName != "User 555" || u.FarcasterUsername != "user555" {
		t.Fatalf("provisional identity wrong: %+v", u)
	}

	// Second press reuses the row.
	desc2 := fe.HandleEvent(ctx, frame.Event{FID: 555, ButtonIndex: 3})
	if desc2.UserID != desc.UserID {
		t.Fatalf("second press resolved a different user")
	}
	if desc2.Action != frame.ActionProjects {
		t.Fatalf("action = %s, want projects", desc2.Action)
	}
}

func TestHandleEventCreatesTaskFromInput(t *testing.T) {
	fe := newFrameEngine(t)
	ctx := context.Background()

	desc := fe.HandleEvent(ctx, frame.Event{FID: 42, ButtonIndex: 2, InputText: "  Ship release  "})
	if desc.Action != frame.ActionTaskAdded {
		t.Fatalf("action = %s, want task_added", desc.Action)
	}
	if desc.Message != "Task added successfully!" {
		t.Fatalf("message = %q", desc.Message)
	}

	tasks, err := fe.Repo.ListTasksByUser(ctx, desc.UserID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	if tasks[0].Title != "Ship release" {
		t.Fatalf("title = %q", tasks[0].Title)
	}
	if tasks[0].DueDate != "2024-06-01T12:00:00Z" {
		t.Fatalf("due date = %q, want press time", tasks[0].DueDate)
	}
	if tasks[0].IsCompleted {
		t.Fatalf("new task must not be completed")
	}
}

func TestHandleEventWithoutInputShowsPrompt(t *testing.T) {
	fe := newFrameEngine(t)
	ctx := context.Background()

	desc := fe.HandleEvent(ctx, frame.Event{FID: 42, ButtonIndex: 2, InputText: "   "})
	if desc.Action != frame.ActionAddTask {
		t.Fatalf("action = %s, want add_task", desc.Action)
	}
	tasks, err := fe.Repo.ListTasksByUser(ctx, desc.UserID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("blank input created a task")
	}
}

func TestHandleEventUnknownButtonGoesHome(t *testing.T) {
	fe := newFrameEngine(t)
	for _, idx := range []int{0, 5, -1, 99} {
		desc := fe.HandleEvent(context.Background(), frame.Event{FID: 7, ButtonIndex: idx})
		if desc.Action != frame.ActionHome {
			t.Fatalf("button %d: action = %s, want home", idx, desc.Action)
		}
	}
}

func TestParseAction(t *testing.T) {
	if got := frame.ParseAction("projects"); got != frame.ActionProjects {
		t.Fatalf("parse projects = %s", got)
	}
	for _, raw := range []string{"", "bogus", "HOME"} {
		if got := frame.ParseAction(raw); got != frame.ActionHome {
			t.Fatalf("parse %q = %s, want home", raw, got)
		}
	}
}

func TestRendererNeverFails(t *testing.T) {
	fe := newFrameEngine(t)
	r := frame.Renderer{Repo: fe.Repo, Now: fe.Now}
	actions := []frame.Action{
		frame.ActionHome, frame.ActionToday, frame.ActionAddTask, frame.ActionTaskAdded,
		frame.ActionProjects, frame.ActionOpenApp, frame.ActionError, frame.Action("bogus"),
	}
	for _, action := range actions {
		for _, userID := range []string{"", "no-such-user"} {
			svg := string(r.Render(context.Background(), action, userID))
			if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
				t.Fatalf("action %s user %q: not an svg document", action, userID)
			}
		}
	}
}

func TestRendererStatsOverlay(t *testing.T) {
	fe := newFrameEngine(t)
	ctx := context.Background()
	desc := fe.HandleEvent(ctx, frame.Event{FID: 9, ButtonIndex: 2, InputText: "due today"})

	// A completed task due on another day.
	tx, err := fe.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	err = fe.Repo.InsertTask(ctx, tx, domain.Task{
		TaskID: "t-later", UserID: desc.UserID, Title: "later", DueDate: "2024-06-15T12:00:00Z",
		IsCompleted: true, CreatedAt: "2024-06-01T12:00:00Z", UpdatedAt: "2024-06-01T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	r := frame.Renderer{Repo: fe.Repo, Now: fe.Now}
	svg := string(r.Render(ctx, frame.ActionHome, desc.UserID))
	for _, want := range []string{"Total Tasks: 2", "Completed: 1", "Due Today: 1"} {
		if !strings.Contains(svg, want) {
			t.Fatalf("stats overlay missing %q", want)
		}
	}

	// No user means no overlay.
	svg = string(r.Render(ctx, frame.ActionHome, ""))
	if strings.Contains(svg, "Your Stats") {
		t.Fatalf("overlay rendered without a user")
	}
}

func TestRendererStatsFailSoft(t *testing.T) {
	fe := newFrameEngine(t)
	ctx := context.Background()
	r := frame.Renderer{Repo: repo.Repo{DB: fe.DB}, Now: fe.Now}

	// Unknown user resolves to zero tasks, not an error card.
	svg := string(r.Render(ctx, frame.ActionToday, "ghost"))
	if !strings.Contains(svg, "Today") {
		t.Fatalf("card content missing")
	}

	// A failed stats fetch drops the overlay, never the card.
	desc := fe.HandleEvent(ctx, frame.Event{FID: 1, ButtonIndex: 1})
	fe.DB.Close()
	svg = string(r.Render(ctx, frame.ActionHome, desc.UserID))
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("fetch failure broke the card: %q", svg)
	}
	if strings.Contains(svg, "Your Stats") {
		t.Fatalf("overlay rendered from a failed stats fetch")
	}
}

func TestComposerTemplates(t *testing.T) {
	c := frame.Composer{BaseURL: "https://frames.example.com", AppURL: "https://app.example.com"}

	home := c.Compose(frame.ActionHome, "", "")
	if len(home.Buttons) != 4 {
		t.Fatalf("home has %d buttons, want 4", len(home.Buttons))
	}
	if home.PostURL != "https://frames.example.com/api/frame" {
		t.Fatalf("post url = %q", home.PostURL)
	}

	add := c.Compose(frame.ActionAddTask, "fid_1", "")
	if add.InputPlaceholder == "" {
		t.Fatalf("add_task has no input placeholder")
	}
	if !strings.Contains(add.ImageURL, "action=add_task") || !strings.Contains(add.ImageURL, "userId=fid_1") {
		t.Fatalf("image url = %q", add.ImageURL)
	}

	// Unknown action falls back to the home template.
	weird := c.Compose(frame.Action("bogus"), "", "")
	if len(weird.Buttons) != 4 {
		t.Fatalf("unknown action did not fall back to home")
	}
}

func TestComposerFollowsBasePath(t *testing.T) {
	c := frame.Composer{BaseURL: "https://frames.example.com", AppURL: "https://app.example.com", BasePath: "/svc"}
	doc := c.Compose(frame.ActionHome, "fid_1", "")
	if doc.PostURL != "https://frames.example.com/svc/frame" {
		t.Fatalf("post url = %q", doc.PostURL)
	}
	if !strings.HasPrefix(doc.ImageURL, "https://frames.example.com/svc/frame/image?") {
		t.Fatalf("image url = %q", doc.ImageURL)
	}

	// Missing or unslashed paths normalize to a mountable prefix.
	for raw, want := range map[string]string{"": "/api", "api/": "/api", "/svc": "/svc"} {
		c := frame.Composer{BaseURL: "https://frames.example.com", BasePath: raw}
		if got := c.Compose(frame.ActionHome, "", "").PostURL; got != "https://frames.example.com"+want+"/frame" {
			t.Fatalf("base path %q: post url = %q", raw, got)
		}
	}
}

func TestComposerOpenAppLinkButton(t *testing.T) {
	c := frame.Composer{BaseURL: "https://frames.example.com", AppURL: "https://app.example.com"}
	doc := c.Compose(frame.ActionOpenApp, "", "")
	if len(doc.Buttons) != 1 {
		t.Fatalf("open_app has %d buttons, want 1", len(doc.Buttons))
	}
	if !doc.Buttons[0].IsLink || doc.Buttons[0].Target != "https://app.example.com" {
		t.Fatalf("open_app button is not a link to the app: %+v", doc.Buttons[0])
	}

	html := string(doc.HTML())
	for _, want := range []string{
		`<meta name="fc:frame" content="vNext" />`,
		`<meta name="fc:frame:button:1:action" content="link" />`,
		`<meta name="fc:frame:button:1:target" content="https://app.example.com" />`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("frame html missing %q", want)
		}
	}
}

func TestDocumentHTMLCarriesMessage(t *testing.T) {
	c := frame.Composer{BaseURL: "https://frames.example.com", AppURL: "https://app.example.com"}
	doc := c.Compose(frame.ActionTaskAdded, "fid_1", "Task added successfully!")
	html := string(doc.HTML())
	if !strings.Contains(html, "Task added successfully!") {
		t.Fatalf("confirmation message missing from html")
	}
	if !strings.Contains(html, `fc:frame:image`) || !strings.Contains(html, "action=task_added") {
		t.Fatalf("image meta missing or wrong action")
	}
}
