package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"opsboard/internal/core"
	"opsboard/internal/service"
	"opsboard/internal/session"
)

type DatasetHandler struct {
	svc *service.DatasetService
}

func NewDatasetHandler(svc *service.DatasetService) *DatasetHandler {
	return &DatasetHandler{svc: svc}
}

type createDatasetRequest struct {
	Name        string `json:"name"`
	RowCount    int64  `json:"row_count"`
	ColumnCount int64  `json:"column_count"`
}

// datasetView adds the human readable size to a dataset.
type datasetView struct {
	core.Dataset
	Size string `json:"size"`
}

func viewDataset(ds core.Dataset) datasetView {
	return datasetView{Dataset: ds, Size: ds.SizeEstimate()}
}

func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
	r.With(RequireRole(core.RoleAnalyst)).Delete("/{id}", h.Delete)
	return r
}

// List supports an ?uploaded_by= filter.
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		datasets []core.Dataset
		err      error
	)
	if by := r.URL.Query().Get("uploaded_by"); by != "" {
		datasets, err = h.svc.ListByUploader(r.Context(), by)
	} else {
		datasets, err = h.svc.List(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]datasetView, len(datasets))
	for i, ds := range datasets {
		views[i] = viewDataset(ds)
	}
	OK(w, views)
}

func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ds, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, viewDataset(*ds))
}

// Create records metadata for a dataset uploaded by the signed-in user.
func (h *DatasetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createDatasetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	uploader := session.FromContext(r.Context()).Username
	id, err := h.svc.Create(r.Context(), req.Name, req.RowCount, req.ColumnCount, uploader)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ds, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	Created(w, viewDataset(*ds))
}

func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
		JSONError(w, notFound("Dataset not found"))
		return
	}
	NoContent(w)
}

func (h *DatasetHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	OK(w, stats)
}
