package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/medscribe/notequeue/internal/api/middleware"
	"github.com/medscribe/notequeue/internal/domain"
	"github.com/medscribe/notequeue/internal/service"
)

// QueueHandler exposes the queue coordinator over HTTP.
type QueueHandler struct {
	svc    *service.QueueService
	logger *zap.Logger
}

func NewQueueHandler(svc *service.QueueService, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{svc: svc, logger: logger}
}

type enqueueBody struct {
	Text string `json:"text"`
}

type submitFunc func(context.Context, domain.EnqueueRequest) (*domain.QueueEntry, error)

// Enqueue handles POST /api/v1/notes/{kind}/{noteID}/queue
//
// @Summary  Queue a note for generation
// @Tags     queue
// @Accept   json
// @Produce  json
// @Param    X-User-ID  header    string       true  "Owner"
// @Param    kind       path      string       true  "Note kind"
// @Param    noteID     path      string       true  "Note ID"
// @Param    body       body      enqueueBody  true  "Raw note text"
// @Success  202        {object}  domain.QueueEntry
// @Failure  404        {object}  map[string]string
// @Failure  422        {object}  map[string]string
// @Failure  503        {object}  map[string]string
// @Router   /api/v1/notes/{kind}/{noteID}/queue [post]
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.svc.Enqueue, "enqueue")
}

// Regenerate handles POST /api/v1/notes/{kind}/{noteID}/regenerate
//
// @Summary  Queue a fresh generation for a note that was processed before
// @Tags     queue
// @Accept   json
// @Produce  json
// @Param    X-User-ID  header    string       true  "Owner"
// @Param    kind       path      string       true  "Note kind"
// @Param    noteID     path      string       true  "Note ID"
// @Param    body       body      enqueueBody  true  "Raw note text"
// @Success  202        {object}  domain.QueueEntry
// @Router   /api/v1/notes/{kind}/{noteID}/regenerate [post]
func (h *QueueHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, h.svc.Regenerate, "regenerate")
}

func (h *QueueHandler) submit(w http.ResponseWriter, r *http.Request, fn submitFunc, op string) {
	var body enqueueBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	e, err := fn(r.Context(), domain.EnqueueRequest{
		Note:    noteRef(r),
		OwnerID: apimw.GetOwnerID(r.Context()),
		Text:    body.Text,
	})
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn(op+" failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, e)
}

// Status handles GET /api/v1/notes/{kind}/{noteID}/status
//
// @Summary  Status of the most recent queue entry for a note
// @Tags     queue
// @Produce  json
// @Param    kind    path      string  true  "Note kind"
// @Param    noteID  path      string  true  "Note ID"
// @Success  200     {object}  domain.QueueEntry
// @Failure  404     {object}  map[string]string
// @Router   /api/v1/notes/{kind}/{noteID}/status [get]
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	note := noteRef(r)
	if !note.Kind.IsValid() {
		respondError(w, http.StatusUnprocessableEntity, domain.ErrUnknownNoteKind.Error())
		return
	}
	e, err := h.svc.LatestEntry(r.Context(), note)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// List handles GET /api/v1/queue
//
// @Summary  The caller's active entries with live queue positions
// @Tags     queue
// @Produce  json
// @Param    X-User-ID  header    string  true  "Owner"
// @Success  200        {object}  map[string]any
// @Router   /api/v1/queue [get]
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	positions, err := h.svc.ListActiveForOwner(r.Context(), apimw.GetOwnerID(r.Context()))
	if err != nil {
		mapError(w, err)
		return
	}

	total := 0
	if len(positions) > 0 {
		total = positions[0].Total
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  positions,
		"total": total,
	})
}

// DeleteEntry handles DELETE /api/v1/queue/{entryID}
//
// @Summary  Remove a queue entry that is not being processed
// @Tags     queue
// @Param    entryID  path  string  true  "Entry UUID"
// @Success  204
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/queue/{entryID} [delete]
func (h *QueueHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteQueueEntry(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteForNote handles DELETE /api/v1/notes/{kind}/{noteID}/queue
//
// @Summary  Remove every queue entry for a note (note deletion cascade)
// @Tags     queue
// @Produce  json
// @Param    kind    path      string  true  "Note kind"
// @Param    noteID  path      string  true  "Note ID"
// @Success  200     {object}  map[string]int64
// @Router   /api/v1/notes/{kind}/{noteID}/queue [delete]
func (h *QueueHandler) DeleteForNote(w http.ResponseWriter, r *http.Request) {
	note := noteRef(r)
	if !note.Kind.IsValid() {
		respondError(w, http.StatusUnprocessableEntity, domain.ErrUnknownNoteKind.Error())
		return
	}
	n, err := h.svc.DeleteAllForNote(r.Context(), note)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func noteRef(r *http.Request) domain.NoteRef {
	return domain.NoteRef{
		Kind: domain.NoteKind(chi.URLParam(r, "kind")),
		ID:   chi.URLParam(r, "noteID"),
	}
}
