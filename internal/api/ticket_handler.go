package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"opsboard/internal/core"
	"opsboard/internal/service"
)

type TicketHandler struct {
	svc *service.TicketService
}

func NewTicketHandler(svc *service.TicketService) *TicketHandler {
	return &TicketHandler{svc: svc}
}

type createTicketRequest struct {
	Priority    core.Level `json:"priority"`
	Description string     `json:"description"`
	AssignedTo  string     `json:"assigned_to"`
}

// updateTicketRequest changes status, assignee or both. An empty
// assigned_to unassigns the ticket.
type updateTicketRequest struct {
	Status     *core.Status `json:"status"`
	AssignedTo *string      `json:"assigned_to"`
}

// ticketView adds the numeric priority (1 Low to 4 Critical).
type ticketView struct {
	core.ITTicket
	PriorityLevel int `json:"priority_level"`
}

func viewTicket(t core.ITTicket) ticketView {
	return ticketView{ITTicket: t, PriorityLevel: t.Priority.Rank()}
}

func (h *TicketHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Post("/{id}/close", h.Close)
	r.With(RequireRole(core.RoleAnalyst)).Delete("/{id}", h.Delete)
	return r
}

// List supports ?status=, ?priority= or ?assigned_to= filters.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		tickets []core.ITTicket
		err     error
	)
	q := r.URL.Query()
	switch {
	case q.Get("status") != "":
		tickets, err = h.svc.ListByStatus(r.Context(), core.Status(q.Get("status")))
	case q.Get("priority") != "":
		tickets, err = h.svc.ListByPriority(r.Context(), core.Level(q.Get("priority")))
	case q.Get("assigned_to") != "":
		tickets, err = h.svc.ListByAssignee(r.Context(), q.Get("assigned_to"))
	default:
		tickets, err = h.svc.List(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]ticketView, len(tickets))
	for i, t := range tickets {
		views[i] = viewTicket(t)
	}
	OK(w, views)
}

func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, viewTicket(*t))
}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id, err := h.svc.Create(r.Context(), req.Priority, req.Description, req.AssignedTo)
	if err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, viewTicket(*t))
}

func (h *TicketHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var ok bool
	switch {
	case req.Status != nil && req.AssignedTo != nil:
		ok, err = h.svc.UpdateStatusAndAssign(r.Context(), id, *req.Status, *req.AssignedTo)
	case req.Status != nil:
		ok, err = h.svc.UpdateStatus(r.Context(), id, *req.Status)
	case req.AssignedTo != nil:
		ok, err = h.svc.Assign(r.Context(), id, *req.AssignedTo)
	default:
		JSONError(w, badRequest("Nothing to update: send status and/or assigned_to"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		JSONError(w, notFound("Ticket not found"))
		return
	}
	NoContent(w)
}

func (h *TicketHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := h.svc.Close(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		JSONError(w, notFound("Ticket not found"))
		return
	}
	NoContent(w)
}

func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
		JSONError(w, notFound("Ticket not found"))
		return
	}
	NoContent(w)
}

func (h *TicketHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, stats)
}
