package handlers

import (
	"net/http"
)

// Health is a liveness check. It does not touch providers.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "service": "assetgen"})
}
