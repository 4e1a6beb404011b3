package frame

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"taskflow/internal/repo"
)

const (
	cardWidth  = 1200
	cardHeight = 630

	colorBg            = "#1e1b4b"
	colorSurface       = "#312e81"
	colorAccent        = "#8b5cf6"
	colorPrimary       = "#3b82f6"
	colorText          = "#f8fafc"
	colorTextSecondary = "#cbd5e1"
)

// Renderer draws the card for an action as SVG. Rendering is pure given
// the action, the actor's task state and the render date.
type Renderer struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (r Renderer) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

type cardStats struct {
	total     int
	completed int
	dueToday  int
}

// Render produces the card image for an action. When a user ID is given
// the card carries a stats overlay computed from that user's tasks; a
// failed stats fetch drops the overlay rather than the card.
func (r Renderer) Render(ctx context.Context, action Action, userID string) []byte {
	var stats *cardStats
	if userID != "" {
		s, err := r.fetchStats(ctx, userID)
		if err != nil {
			log.Printf("frame: stats for %s: %v", userID, err)
		} else {
			stats = &s
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg width="%d" height="%d" viewBox="0 0 %d %d" xmlns="http://www.w3.org/2000/svg">`, cardWidth, cardHeight, cardWidth, cardHeight)
	b.WriteString(`<defs><linearGradient id="bgGradient" x1="0%" y1="0%" x2="100%" y2="100%">`)
	fmt.Fprintf(&b, `<stop offset="0%%" style="stop-color:%s;stop-opacity:1"/>`, colorBg)
	b.WriteString(`<stop offset="100%" style="stop-color:#0f172a;stop-opacity:1"/>`)
	b.WriteString(`</linearGradient></defs>`)
	b.WriteString(`<rect width="100%" height="100%" fill="url(#bgGradient)"/>`)
	fmt.Fprintf(&b, `<circle cx="100" cy="100" r="50" fill="%s" opacity="0.1"/>`, colorAccent)
	fmt.Fprintf(&b, `<circle cx="1100" cy="530" r="80" fill="%s" opacity="0.1"/>`, colorPrimary)
	b.WriteString(actionContent(action))
	if stats != nil {
		writeStats(&b, *stats)
	}
	fmt.Fprintf(&b, `<text x="600" y="600" text-anchor="middle" fill="%s" font-size="12" opacity="0.7">TaskFlow | Master your workflow, on-chain</text>`, colorTextSecondary)
	b.WriteString(`</svg>`)
	return []byte(b.String())
}

// fetchStats counts the user's tasks. Due today compares calendar dates
// in the renderer's local clock, so the overlay shifts at midnight even
// when no task changed.
func (r Renderer) fetchStats(ctx context.Context, userID string) (cardStats, error) {
	tasks, err := r.Repo.ListTasksByUser(ctx, userID)
	if err != nil {
		return cardStats{}, err
	}
	ty, tm, td := r.now().Local().Date()
	var s cardStats
	s.total = len(tasks)
	for _, t := range tasks {
		if t.IsCompleted {
			s.completed++
		}
		due, err := time.Parse(time.RFC3339, t.DueDate)
		if err != nil {
			continue
		}
		y, m, d := due.Local().Date()
		if y == ty && m == tm && d == td {
			s.dueToday++
		}
	}
	return s, nil
}

func writeStats(b *strings.Builder, s cardStats) {
	b.WriteString(`<g>`)
	fmt.Fprintf(b, `<rect x="50" y="450" width="300" height="120" rx="12" fill="%s" opacity="0.8"/>`, colorSurface)
	fmt.Fprintf(b, `<text x="70" y="480" fill="%s" font-size="16" font-weight="600">Your Stats</text>`, colorText)
	fmt.Fprintf(b, `<text x="70" y="510" fill="%s" font-size="14">Total Tasks: %d</text>`, colorTextSecondary, s.total)
	fmt.Fprintf(b, `<text x="70" y="535" fill="%s" font-size="14">Completed: %d</text>`, colorTextSecondary, s.completed)
	fmt.Fprintf(b, `<text x="70" y="560" fill="%s" font-size="14">Due Today: %d</text>`, colorTextSecondary, s.dueToday)
	b.WriteString(`</g>`)
}

func actionContent(action Action) string {
	switch action {
	case ActionHome:
		return heading(200, 48, colorText, "TaskFlow") +
			heading(250, 24, colorTextSecondary, "Your daily tasks, clearer than ever") +
			heading(300, 18, colorAccent, "Master your workflow, on-chain") +
			featureIcon(400, colorPrimary, "Today's Tasks") +
			featureIcon(500, colorAccent, "Add Task") +
			featureIcon(600, colorPrimary, "Projects") +
			featureIcon(700, colorAccent, "Open App")
	case ActionToday:
		return heading(150, 42, colorText, "Today's Tasks") +
			heading(200, 20, colorTextSecondary, "Stay focused on what matters today") +
			fmt.Sprintf(`<rect x="300" y="250" width="600" height="200" rx="16" fill="%s" opacity="0.6"/>`, colorSurface) +
			heading(290, 18, colorText, "Your Daily Focus") +
			heading(320, 16, colorTextSecondary, "Complete high-priority tasks") +
			heading(350, 16, colorTextSecondary, "Review project progress") +
			heading(380, 16, colorTextSecondary, "Plan tomorrow's priorities") +
			heading(420, 14, colorAccent, `Tap &quot;Add Task&quot; to create new items`)
	case ActionAddTask:
		return heading(150, 42, colorText, "Add New Task") +
			heading(200, 20, colorTextSecondary, "What needs to be done?") +
			fmt.Sprintf(`<rect x="250" y="280" width="700" height="80" rx="12" fill="%s" stroke="%s" stroke-width="2"/>`, colorSurface, colorAccent) +
			heading(330, 18, colorTextSecondary, "Enter your task title in the input field") +
			heading(420, 16, colorAccent, "Pro tip: Be specific for better productivity")
	case ActionTaskAdded:
		return heading(150, 42, colorText, "Task Added!") +
			heading(200, 20, colorAccent, "Great job staying organized") +
			fmt.Sprintf(`<circle cx="600" cy="320" r="60" fill="%s" opacity="0.2"/>`, colorAccent) +
			fmt.Sprintf(`<text x="600" y="335" text-anchor="middle" fill="%s" font-size="48">&#10003;</text>`, colorAccent) +
			heading(420, 16, colorTextSecondary, "Your task has been added to today's list") +
			heading(450, 14, colorTextSecondary, "Open the app to manage and complete your tasks")
	case ActionProjects:
		return heading(150, 42, colorText, "Projects") +
			heading(200, 20, colorTextSecondary, "Organize tasks by project") +
			projectTile(300, "Website", "5 tasks", 84, colorPrimary) +
			projectTile(510, "Mobile App", "3 tasks", 56, colorAccent) +
			projectTile(720, "Marketing", "2 tasks", 140, colorAccent) +
			heading(450, 14, colorTextSecondary, "Project linking requires premium subscription")
	case ActionOpenApp:
		return heading(150, 42, colorText, "Opening TaskFlow") +
			heading(200, 20, colorTextSecondary, "Get the full experience") +
			fmt.Sprintf(`<circle cx="600" cy="320" r="80" fill="%s" opacity="0.2"/>`, colorAccent) +
			heading(420, 16, colorTextSecondary, "Use the button below to launch the full app") +
			heading(450, 14, colorAccent, "Complete task management, project tracking and analytics")
	case ActionError:
		return heading(200, 42, colorText, "Oops!") +
			heading(250, 20, colorTextSecondary, "Something went wrong") +
			heading(320, 16, colorTextSecondary, "Don't worry, let's get you back on track") +
			heading(380, 14, colorAccent, "Try going back to home or refresh the frame")
	default:
		return heading(315, 48, colorText, "TaskFlow")
	}
}

func heading(y, size int, color, text string) string {
	weight := ""
	if size >= 42 {
		weight = ` font-weight="700"`
	}
	return fmt.Sprintf(`<text x="600" y="%d" text-anchor="middle" fill="%s" font-size="%d"%s>%s</text>`, y, color, size, weight, text)
}

func featureIcon(x int, color, label string) string {
	return fmt.Sprintf(`<g transform="translate(%d, 350)"><circle cx="0" cy="0" r="30" fill="%s" opacity="0.2"/><text x="0" y="60" text-anchor="middle" fill="%s" font-size="12">%s</text></g>`,
		x, color, colorTextSecondary, label)
}

func projectTile(x int, name, count string, fill int, barColor string) string {
	return fmt.Sprintf(`<g transform="translate(%d, 280)"><rect x="0" y="0" width="180" height="120" rx="12" fill="%s" opacity="0.8"/><text x="90" y="30" text-anchor="middle" fill="%s" font-size="16" font-weight="600">%s</text><text x="90" y="55" text-anchor="middle" fill="%s" font-size="12">%s</text><rect x="20" y="70" width="140" height="8" rx="4" fill="%s"/><rect x="20" y="70" width="%d" height="8" rx="4" fill="%s"/></g>`,
		x, colorSurface, colorText, name, colorTextSecondary, count, colorBg, fill, barColor)
}
