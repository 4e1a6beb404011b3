package frame

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

// Button is one frame button. Link buttons open Target in a browser
// instead of posting back to the engine.
type Button struct {
	Label  string
	IsLink bool
	Target string
}

// Document is the metadata bundle the embedding client needs to render
// one card: image reference, button set and callback URL.
type Document struct {
	Title            string
	InputPlaceholder string
	Buttons          []Button
	ImageURL         string
	PostURL          string
	Message          string
	AppURL           string
}

// Composer templates a Descriptor into a Document. It holds the only
// deployment knowledge the frame surface needs: where the frame
// endpoints live and where the full application lives. BasePath must
// match the path the frame routes are mounted under; empty means /api.
type Composer struct {
	BaseURL  string
	AppURL   string
	BasePath string
}

func (c Composer) basePath() string {
	bp := strings.TrimRight(c.BasePath, "/")
	if bp == "" {
		return "/api"
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return bp
}

// Compose builds the document for a card. Unknown actions fall back to
// the home template; the engine never emits one, but the GET endpoint
// accepts arbitrary query strings.
func (c Composer) Compose(action Action, userID, message string) Document {
	d := Document{
		Title:    "TaskFlow",
		ImageURL: c.imageURL(action, userID),
		PostURL:  c.BaseURL + c.basePath() + "/frame",
		Message:  message,
		AppURL:   c.AppURL,
	}
	switch action {
	case ActionToday:
		d.Title = "TaskFlow - Today's Tasks"
		d.Buttons = []Button{{Label: "Home"}, {Label: "Add Task"}, {Label: "Open App"}}
	case ActionAddTask:
		d.Title = "TaskFlow - Add New Task"
		d.InputPlaceholder = "Enter task title..."
		d.Buttons = []Button{{Label: "Home"}, {Label: "Create Task"}}
	case ActionTaskAdded:
		d.Title = "TaskFlow - Task Added!"
		d.Buttons = []Button{{Label: "Home"}, {Label: "View Today"}, {Label: "Open App"}}
	case ActionProjects:
		d.Title = "TaskFlow - Projects"
		d.Buttons = []Button{{Label: "Home"}, {Label: "Add Task"}, {Label: "Open App"}}
	case ActionOpenApp:
		d.Title = "TaskFlow - Opening App..."
		d.Buttons = []Button{{Label: "Launch TaskFlow", IsLink: true, Target: c.AppURL}}
	case ActionError:
		d.Title = "TaskFlow - Error"
		d.Buttons = []Button{{Label: "Home"}, {Label: "Try Again"}}
	default:
		d.Title = "TaskFlow - Master Your Workflow"
		d.Buttons = []Button{{Label: "Today's Tasks"}, {Label: "Add Task"}, {Label: "Projects"}, {Label: "Open App"}}
	}
	return d
}

func (c Composer) imageURL(action Action, userID string) string {
	q := url.Values{}
	q.Set("action", string(action))
	if userID != "" {
		q.Set("userId", userID)
	}
	return c.BaseURL + c.basePath() + "/frame/image?" + q.Encode()
}

// HTML renders the document as the frame page: fc:frame meta tags plus a
// minimal human-readable body for anyone opening the URL directly.
func (d Document) HTML() []byte {
	title := html.EscapeString(d.Title)
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(`<meta charset="utf-8">` + "\n")
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">` + "\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", title)
	b.WriteString(`<meta name="fc:frame" content="vNext" />` + "\n")
	fmt.Fprintf(&b, `<meta name="fc:frame:image" content="%s" />`+"\n", html.EscapeString(d.ImageURL))
	fmt.Fprintf(&b, `<meta name="fc:frame:post_url" content="%s" />`+"\n", html.EscapeString(d.PostURL))
	if d.InputPlaceholder != "" {
		fmt.Fprintf(&b, `<meta name="fc:frame:input:text" content="%s" />`+"\n", html.EscapeString(d.InputPlaceholder))
	}
	for i, btn := range d.Buttons {
		n := i + 1
		fmt.Fprintf(&b, `<meta name="fc:frame:button:%d" content="%s" />`+"\n", n, html.EscapeString(btn.Label))
		if btn.IsLink {
			fmt.Fprintf(&b, `<meta name="fc:frame:button:%d:action" content="link" />`+"\n", n)
			fmt.Fprintf(&b, `<meta name="fc:frame:button:%d:target" content="%s" />`+"\n", n, html.EscapeString(btn.Target))
		}
	}
	fmt.Fprintf(&b, `<meta property="og:title" content="%s" />`+"\n", title)
	b.WriteString(`<meta property="og:description" content="Your daily tasks, clearer than ever. Master your workflow, on-chain." />` + "\n")
	fmt.Fprintf(&b, `<meta property="og:image" content="%s" />`+"\n", html.EscapeString(d.ImageURL))
	fmt.Fprintf(&b, `<meta property="og:url" content="%s" />`+"\n", html.EscapeString(d.AppURL))
	b.WriteString(`<meta property="og:type" content="website" />` + "\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString("<h1>TaskFlow</h1>\n<p>Your daily tasks, clearer than ever.</p>\n")
	if d.Message != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(d.Message))
	}
	fmt.Fprintf(&b, `<a href="%s">Open TaskFlow App</a>`+"\n", html.EscapeString(d.AppURL))
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}
