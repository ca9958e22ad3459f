package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"opsboard/internal/core"
	"opsboard/internal/service"
	"opsboard/internal/session"
)

type IncidentHandler struct {
	svc *service.IncidentService
}

func NewIncidentHandler(svc *service.IncidentService) *IncidentHandler {
	return &IncidentHandler{svc: svc}
}

type createIncidentRequest struct {
	Category    string     `json:"category"`
	Severity    core.Level `json:"severity"`
	Description string     `json:"description"`
}

type statusRequest struct {
	Status core.Status `json:"status"`
}

// incidentView adds the numeric severity (1 Low to 4 Critical).
type incidentView struct {
	core.SecurityIncident
	SeverityLevel int `json:"severity_level"`
}

func viewIncident(inc core.SecurityIncident) incidentView {
	return incidentView{SecurityIncident: inc, SeverityLevel: inc.Severity.Rank()}
}

func (h *IncidentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.UpdateStatus)
	r.With(RequireRole(core.RoleAnalyst)).Delete("/{id}", h.Delete)
	return r
}

// List supports ?severity= or ?status= filters.
func (h *IncidentHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		incidents []core.SecurityIncident
		err       error
	)
	q := r.URL.Query()
	switch {
	case q.Get("severity") != "":
		incidents, err = h.svc.ListBySeverity(r.Context(), core.Level(q.Get("severity")))
	case q.Get("status") != "":
		incidents, err = h.svc.ListByStatus(r.Context(), core.Status(q.Get("status")))
	default:
		incidents, err = h.svc.List(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]incidentView, len(incidents))
	for i, inc := range incidents {
		views[i] = viewIncident(inc)
	}
	OK(w, views)
}

func (h *IncidentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, viewIncident(*inc))
}

// Create records the incident as reported by the signed-in user.
func (h *IncidentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	reporter := session.FromContext(r.Context()).Username
	id, err := h.svc.Create(r.Context(), req.Category, req.Severity, req.Description, core.OptionalString(reporter))
	if err != nil {
		writeError(w, r, err)
		return
	}

	inc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, viewIncident(*inc))
}

func (h *IncidentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ok, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		JSONError(w, notFound("Incident not found"))
		return
	}
	NoContent(w)
}

func (h *IncidentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		JSONError(w, notFound("Incident not found"))
		return
	}
	NoContent(w)
}

type incidentStatsResponse struct {
	core.IncidentStats
	HighSeverityByStatus core.Counts `json:"high_severity_by_status"`
}

func (h *IncidentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	high, err := h.svc.HighSeverityByStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, incidentStatsResponse{IncidentStats: stats, HighSeverityByStatus: high})
}
