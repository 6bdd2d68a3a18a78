package api

import (
	"io/fs"
	"net/http"

	"go.uber.org/zap"
)

// NewRouter registers every route on a fresh mux. assets must hold
// index.html at its root and a static/ directory.
func NewRouter(h *Handler, assets fs.FS, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, assets, "index.html")
	})
	mux.Handle("GET /static/", http.FileServerFS(assets))
	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("GET /chat_list", h.ListChats)
	mux.HandleFunc("POST /chat", h.CreateChat)
	mux.HandleFunc("GET /chat/{id}", h.GetChat)
	mux.HandleFunc("DELETE /chat/{id}", h.DeleteChat)
	mux.HandleFunc("POST /chat/{id}/rename", h.RenameChat)
	mux.HandleFunc("POST /chat/{id}/message", h.SendMessage)

	return instrument(mux, logger)
}
