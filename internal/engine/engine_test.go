package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskflow/internal/config"
	"taskflow/internal/db"
	"taskflow/internal/domain"
	"taskflow/internal/engine"
	"taskflow/internal/farcaster"
	"taskflow/internal/frame"
	"taskflow/internal/migrate"
	"taskflow/internal/repo"
)

type fakeFarcaster struct {
	valid   bool
	profile farcaster.Profile
	err     error
}

func (f fakeFarcaster) VerifySignature(ctx context.Context, messageBytes string) (bool, error) {
	return f.valid, f.err
}

func (f fakeFarcaster) UserByFID(ctx context.Context, fid int64) (farcaster.Profile, error) {
	if f.err != nil {
		return farcaster.Profile{}, f.err
	}
	p := f.profile
	if p.FID == 0 {
		p.FID = fid
	}
	return p, nil
}

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T, fc engine.Verifier) testEnv {
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
	eng := engine.New(conn, config.Default(), fc)
	eng.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func seedUser(t *testing.T, env testEnv, userID string, fid int64) {
	t.Helper()
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	ts := "2024-06-01T00:00:00Z"
	err = env.Engine.Repo.InsertUser(env.Ctx, tx, domain.User{
		UserID:       userID,
		DisplayName:  "Test User",
		FarcasterFID: fid,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func seedSubscription(t *testing.T, env testEnv, s domain.Subscription) {
	t.Helper()
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()
	if err := env.Engine.Repo.InsertSubscription(env.Ctx, tx, s); err != nil {
		t.Fatalf("insert subscription: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestAuthenticateRejectsInvalidSignature(t *testing.T) {
	env := newTestEnv(t, fakeFarcaster{valid: false})
	_, err := env.Engine.Authenticate(env.Ctx, 777, "sig", "msg")
	if !errors.Is(err, engine.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestAuthenticateCreatesUser(t *testing.T) {
	env := newTestEnv(t, fakeFarcaster{valid: true, profile: farcaster.Profile{Username: "alice", DisplayName: "Alice"}})
	u, err := env.Engine.Authenticate(env.Ctx, 777, "sig", "msg")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.UserID != "fid_777" {
		t.Fatalf("user id = %q, want fid_777", u.UserID)
	}
	if u.DisplayName != "Alice" || u.FarcasterUsername != "alice" {
		t.Fatalf("profile not applied: %+v", u)
	}
}

func TestAuthenticateConvergesWithFrameUser(t *testing.T) {
	env := newTestEnv(t, fakeFarcaster{valid: true, profile: farcaster.Profile{Username: "bob", DisplayName: "Bob"}})

	fe := frame.Engine{DB: env.Engine.DB, Repo: env.Engine.Repo, Events: env.Engine.Events, Now: env.Engine.Now}
	desc := fe.HandleEvent(env.Ctx, frame.Event{FID: 555, ButtonIndex: 2, InputText: "Ship release"})
	if desc.Action != frame.ActionTaskAdded {
		t.Fatalf("frame action = %s, want task_added", desc.Action)
	}

	u, err := env.Engine.Authenticate(env.Ctx, 555, "sig", "msg")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.UserID != desc.UserID {
		t.Fatalf("sign-in landed on %q, frame user was %q", u.UserID, desc.UserID)
	}
	if u.DisplayName != "Bob" {
		t.Fatalf("provisional name not upgraded: %q", u.DisplayName)
	}
	tasks, err := env.Engine.Repo.ListTasksByUser(env.Ctx, u.UserID)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("frame task not inherited: %v (%d tasks)", err, len(tasks))
	}
}

func TestCreateTaskDefaultsDueDate(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{UserID: "u1", Title: "Do work"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.DueDate != "2024-06-01T12:00:00Z" {
		t.Fatalf("due date = %q", task.DueDate)
	}
	if task.IsCompleted {
		t.Fatalf("new task must not be completed")
	}
}

func TestCreateTaskRequiresTitle(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{UserID: "u1", Title: "  "}); err == nil {
		t.Fatalf("expected title error")
	}
}

func TestProjectCreationRequiresGrant(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	_, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{UserID: "u1", Title: "Website"})
	if !errors.Is(err, engine.ErrPremiumRequired) {
		t.Fatalf("expected ErrPremiumRequired, got %v", err)
	}

	if _, err := env.Engine.PurchaseFeature(env.Ctx, engine.PurchaseOptions{
		UserID: "u1", FeatureType: domain.FeatureProjectLinking, TxHash: "0xabc",
	}); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{UserID: "u1", Title: "Website"})
	if err != nil {
		t.Fatalf("create project after grant: %v", err)
	}
	if p.Status != domain.ProjectActive {
		t.Fatalf("status = %q, want active", p.Status)
	}
}

func TestTaskLinkingRequiresGrant(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	seedSubscription(t, env, domain.Subscription{
		UserID: "u1", FeatureType: domain.FeatureProjectLinking, IsActive: true, CreatedAt: "2024-06-01T00:00:00Z",
	})
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{UserID: "u1", Title: "Website"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{UserID: "u1", Title: "Do work", ProjectID: &p.ProjectID})
	if err != nil {
		t.Fatalf("create linked task: %v", err)
	}
	if task.ProjectID == nil || *task.ProjectID != p.ProjectID {
		t.Fatalf("task not linked")
	}

	seedUser(t, env, "u2", 2)
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{UserID: "u2", Title: "Sneaky", ProjectID: &p.ProjectID})
	if !errors.Is(err, engine.ErrPremiumRequired) {
		t.Fatalf("expected ErrPremiumRequired for ungranted user, got %v", err)
	}
}

func TestLinkingRejectsForeignProject(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	seedUser(t, env, "u2", 2)
	for _, user := range []string{"u1", "u2"} {
		seedSubscription(t, env, domain.Subscription{
			UserID: user, FeatureType: domain.FeatureProjectLinking, IsActive: true, CreatedAt: "2024-06-01T00:00:00Z",
		})
	}
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{UserID: "u1", Title: "Mine"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{UserID: "u2", Title: "Cross", ProjectID: &p.ProjectID})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for foreign project, got %v", err)
	}
}

func TestPremiumBundleGrantsBothFeatures(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	subs, err := env.Engine.PurchaseFeature(env.Ctx, engine.PurchaseOptions{
		UserID: "u1", FeatureType: domain.FeaturePremiumBundle, TxHash: "0xdef",
	})
	if err != nil {
		t.Fatalf("purchase bundle: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("bundle created %d grants, want 2", len(subs))
	}
	if *subs[0].ExpiresAt != *subs[1].ExpiresAt {
		t.Fatalf("bundle grants expire at different times: %s vs %s", *subs[0].ExpiresAt, *subs[1].ExpiresAt)
	}
	want := "2024-07-01T12:00:00Z"
	if *subs[0].ExpiresAt != want {
		t.Fatalf("expiry = %s, want %s (30 days)", *subs[0].ExpiresAt, want)
	}
	for _, feature := range []string{domain.FeatureNotifications, domain.FeatureProjectLinking} {
		ok, err := env.Engine.HasFeature(env.Ctx, "u1", feature)
		if err != nil || !ok {
			t.Fatalf("feature %s not active: %v", feature, err)
		}
	}
}

func TestLazyExpiryIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	past := "2024-01-01T00:00:00Z"
	seedSubscription(t, env, domain.Subscription{
		UserID: "u1", FeatureType: domain.FeatureNotifications, IsActive: true, ExpiresAt: &past, CreatedAt: "2023-12-01T00:00:00Z",
	})

	for i := 0; i < 2; i++ {
		ok, err := env.Engine.HasFeature(env.Ctx, "u1", domain.FeatureNotifications)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if ok {
			t.Fatalf("check %d: expired grant reported active", i)
		}
	}
	subs, err := env.Engine.Repo.ListActiveSubscriptions(env.Ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expired grant still listed active")
	}
}

func TestUnexpiredGrantSurvivesReads(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	future := time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339)
	seedSubscription(t, env, domain.Subscription{
		UserID: "u1", FeatureType: domain.FeatureNotifications, IsActive: true, ExpiresAt: &future, CreatedAt: "2024-06-01T00:00:00Z",
	})
	for i := 0; i < 2; i++ {
		ok, err := env.Engine.HasFeature(env.Ctx, "u1", domain.FeatureNotifications)
		if err != nil || !ok {
			t.Fatalf("check %d: live grant not active: %v", i, err)
		}
	}
}

func TestUpdateTaskEnforcesOwnership(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	seedUser(t, env, "u2", 2)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{UserID: "u1", Title: "Private"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	done := true
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{TaskID: task.TaskID, UserID: "u2", IsCompleted: &done})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-user update: got %v, want not found", err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, task.TaskID, "u2"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-user delete: got %v, want not found", err)
	}
}

func TestDeleteProjectUnlinksTasks(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	seedSubscription(t, env, domain.Subscription{
		UserID: "u1", FeatureType: domain.FeatureProjectLinking, IsActive: true, CreatedAt: "2024-06-01T00:00:00Z",
	})
	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{UserID: "u1", Title: "Doomed"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{UserID: "u1", Title: "Work", ProjectID: &p.ProjectID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := env.Engine.DeleteProject(env.Ctx, p.ProjectID, "u1"); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	got, err := env.Engine.Repo.GetTask(env.Ctx, task.TaskID)
	if err != nil {
		t.Fatalf("task gone after project delete: %v", err)
	}
	if got.ProjectID != nil {
		t.Fatalf("task still linked to deleted project")
	}
}

func TestDeactivateBundleCancelsBoth(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	if _, err := env.Engine.PurchaseFeature(env.Ctx, engine.PurchaseOptions{
		UserID: "u1", FeatureType: domain.FeaturePremiumBundle, TxHash: "0x1",
	}); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if err := env.Engine.DeactivateFeature(env.Ctx, "u1", domain.FeaturePremiumBundle); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	for _, feature := range []string{domain.FeatureNotifications, domain.FeatureProjectLinking} {
		ok, err := env.Engine.HasFeature(env.Ctx, "u1", feature)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if ok {
			t.Fatalf("feature %s still active after bundle deactivation", feature)
		}
	}
}

func TestPurchaseUnknownFeature(t *testing.T) {
	env := newTestEnv(t, nil)
	seedUser(t, env, "u1", 1)
	if _, err := env.Engine.PurchaseFeature(env.Ctx, engine.PurchaseOptions{
		UserID: "u1", FeatureType: "teleportation", TxHash: "0x2",
	}); err == nil {
		t.Fatalf("expected unknown feature error")
	}
}
