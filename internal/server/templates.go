package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"contentforge/internal/app"
	"contentforge/internal/store"
	"contentforge/internal/usertoken"
	"contentforge/pkg/domain"
)

// templatePayload is the write shape for create and update.
type templatePayload struct {
	Name        string             `json:"name"`
	Prompt      string             `json:"prompt"`
	ContentType domain.ContentType `json:"contentType"`
	SEOEnabled  bool               `json:"seoEnabled"`
	ChangeLog   string             `json:"changeLog,omitempty"`
}

func (p templatePayload) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("template name is required")
	}
	if issues := app.TemplateIssues(p.Prompt); len(issues) > 0 {
		return errors.New(issues[0])
	}
	if !domain.ValidContentType(p.ContentType) {
		return errors.New("unknown content type")
	}
	return nil
}

// templateView adds derived placeholder names to the stored template.
type templateView struct {
	domain.Template
	Placeholders []string `json:"placeholders"`
}

func viewOf(t domain.Template) templateView {
	return templateView{Template: t, Placeholders: app.ExtractPlaceholders(t.Prompt)}
}

func templateID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// writeTemplateError maps store errors for template endpoints.
func writeTemplateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "template not found")
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusNotFound, "version not found")
	default:
		writeError(w, http.StatusInternalServerError, "template operation failed")
	}
}

func (s *Server) handleTemplateList(w http.ResponseWriter, _ *http.Request, _ usertoken.Claims) {
	templates, err := s.templates.ListTemplates()
	if err != nil {
		writeTemplateError(w, err)
		return
	}
	views := make([]templateView, 0, len(templates))
	for _, t := range templates {
		views = append(views, viewOf(t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTemplateCreate(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	var payload templatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.templates.CreateTemplate(domain.Template{
		Name:        strings.TrimSpace(payload.Name),
		Prompt:      payload.Prompt,
		ContentType: payload.ContentType,
		SEOEnabled:  payload.SEOEnabled,
	}, claims.UserID)
	if err != nil {
		writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(created))
}

func (s *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	id, err := templateID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	t, err := s.templates.GetTemplate(id)
	if err != nil {
		writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(t))
}

func (s *Server) handleTemplateUpdate(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	id, err := templateID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	var payload templatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	changeLog := payload.ChangeLog
	if changeLog == "" {
		changeLog = "updated"
	}
	updated, err := s.templates.UpdateTemplate(domain.Template{
		ID:          id,
		Name:        strings.TrimSpace(payload.Name),
		Prompt:      payload.Prompt,
		ContentType: payload.ContentType,
		SEOEnabled:  payload.SEOEnabled,
	}, claims.UserID, changeLog)
	if err != nil {
		writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(updated))
}

func (s *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	id, err := templateID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	if err := s.templates.DeleteTemplate(id); err != nil {
		writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleTemplateDuplicate(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	id, err := templateID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	src, err := s.templates.GetTemplate(id)
	if err != nil {
		writeTemplateError(w, err)
		return
	}
	copyOf := src
	copyOf.ID = 0
	copyOf.Name = src.Name + " (copy)"
	created, err := s.templates.CreateTemplate(copyOf, claims.UserID)
	if err != nil {
		writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(created))
}

func (s *Server) handleTemplatePreview(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	id, err := templateID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	var body struct {
		Variables map[string]string `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := s.templates.GetTemplate(id)
	if err != nil {
		writeTemplateError(w, err)
		return
	}
	rendered, missing := app.RenderTemplate(t.Prompt, body.Variables)
	writeJSON(w, http.StatusOK, map[string]any{
		"rendered": rendered,
		"missing":  missing,
		"complete": len(missing) == 0,
	})
}

func (s *Server) handleTemplateValidate(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	issues := app.TemplateIssues(body.Prompt)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":        len(issues) == 0,
		"issues":       issues,
		"placeholders": app.ExtractPlaceholders(body.Prompt),
	})
}

func (s *Server) handleTemplateHistory(w http.ResponseWriter, r *http.Request, _ usertoken.Claims) {
	id, err := templateID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	// Look the template up first so an unknown id is a 404 rather than
	// an empty history.
	if _, err := s.templates.GetTemplate(id); err != nil {
		writeTemplateError(w, err)
		return
	}
	versions, err := s.templates.ListVersions(id)
	if err != nil {
		writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleTemplateRestore(w http.ResponseWriter, r *http.Request, claims usertoken.Claims) {
	id, err := templateID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	var body struct {
		Version int `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Version <= 0 {
		writeError(w, http.StatusBadRequest, "version must be positive")
		return
	}
	restored, err := s.templates.RestoreVersion(id, body.Version, claims.UserID)
	if err != nil {
		writeTemplateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(restored))
}
