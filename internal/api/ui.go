package api

import (
	_ "embed"
	"log/slog"
	"net/http"
)

//go:embed static/index.html
var indexPage []byte

func ServeUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(indexPage); err != nil {
		slog.Error("error writing ui page", "error", err)
	}
}
