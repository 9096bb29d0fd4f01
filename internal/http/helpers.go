package http

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"subtrack/internal/events"
	"subtrack/internal/session"
)

const sessionCookie = "subtrack_session"

var errInvalidID = errors.New("subscription id must be a positive integer")

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
}

// viewFor resumes the view named by the session cookie or mounts a new one.
// mounted reports whether a new view was created.
func (s *Server) viewFor(w http.ResponseWriter, r *http.Request) (v *session.View, mounted bool) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if v, ok := s.sessions.Resume(c.Value); ok {
			return v, false
		}
	}
	v = s.sessions.Mount()
	s.setSessionCookie(w, r, v.ID)
	s.metrics.Mounted()
	s.structured.LogMount(r.Context(), v.ID, false)
	st, ov := v.Dashboard.View()
	s.emit(r, v.ID, newEvent(v.ID, events.KindMounted, 0, st, ov))
	return v, true
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// parseID reads the {id} path value.
func parseID(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
