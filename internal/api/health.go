package api

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   s.opts.Version,
		"service":   "lecture-chat-api",
	})
}

// detailedHealth runs every component check with a short deadline
func (s *Server) detailedHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{"api": "healthy"}
	status := "healthy"
	for _, c := range s.Checks {
		if err := c.Check(ctx); err != nil {
			components[c.Name] = "unhealthy: " + err.Error()
			status = "degraded"
			continue
		}
		components[c.Name] = "healthy"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    s.opts.Version,
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"components": components,
	})
}
