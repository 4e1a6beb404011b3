package server

import (
	"encoding/json"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"taskflow/internal/frame"
)

// frameEvent is the envelope the embedding client POSTs on a button
// press. Only the untrusted block is consulted; re-validating the signed
// payload on every press would put a network round trip in the hot path.
type frameEvent struct {
	UntrustedData struct {
		FID         int64  `json:"fid"`
		ButtonIndex int    `json:"buttonIndex"`
		InputText   string `json:"inputText"`
	} `json:"untrustedData"`
	TrustedData struct {
		MessageBytes string `json:"messageBytes"`
	} `json:"trustedData"`
}

// registerFrame mounts the frame surface as raw chi routes. These speak
// HTML and SVG, not the JSON envelope, so they live outside huma.
func registerFrame(router chi.Router, basePath string, cfg Config) {
	composer := frame.Composer{
		BaseURL:  cfg.Engine.Config.App.BaseURL,
		AppURL:   cfg.Engine.Config.App.AppURL,
		BasePath: basePath,
	}
	renderer := frame.Renderer{Repo: cfg.Frame.Repo, Now: cfg.Frame.Now}
	framePath := path.Join(basePath, "frame")
	imagePath := path.Join(basePath, "frame/image")

	router.Get(framePath, func(w http.ResponseWriter, r *http.Request) {
		action := frame.ParseAction(r.URL.Query().Get("action"))
		userID := r.URL.Query().Get("userId")
		doc := composer.Compose(action, userID, "")
		w.Header().Set("Content-Type", "text/html")
		w.Write(doc.HTML())
	})

	router.Post(framePath, func(w http.ResponseWriter, r *http.Request) {
		var evt frameEvent
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid frame event", nil))
			return
		}
		if evt.UntrustedData.FID <= 0 {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "missing fid", nil))
			return
		}
		desc := cfg.Frame.HandleEvent(r.Context(), frame.Event{
			FID:         evt.UntrustedData.FID,
			ButtonIndex: evt.UntrustedData.ButtonIndex,
			InputText:   evt.UntrustedData.InputText,
		})
		doc := composer.Compose(desc.Action, desc.UserID, desc.Message)
		w.Header().Set("Content-Type", "text/html")
		w.Write(doc.HTML())
	})

	router.Get(imagePath, func(w http.ResponseWriter, r *http.Request) {
		action := frame.ParseAction(r.URL.Query().Get("action"))
		userID := r.URL.Query().Get("userId")
		svg := renderer.Render(r.Context(), action, userID)
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.Write(svg)
	})
}
