package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"gabinet/internal/csvimport"
	"gabinet/internal/kanban"
)

// GET /api/pipelines/{id}/board
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.Board(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// POST /api/cards/{id}/drop {"target": "<stage or card id>"}
// The board is reloaded for every drop so the order is computed from what
// is stored, not from the client's copy.
func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target string `json:"target"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	ctx := r.Context()
	cardID := mux.Vars(r)["id"]
	pipelineID, err := s.store.CardPipeline(ctx, cardID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	b, err := s.store.Board(ctx, pipelineID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	mv, err := kanban.Drop(ctx, s.store, b, cardID, req.Target)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mv)
}

const maxImportBytes = 32 << 20

// POST /api/import/{entity} with a CSV body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	entity := mux.Vars(r)["entity"]
	if _, err := csvimport.FieldsFor(entity); err != nil {
		writeStoreError(w, err)
		return
	}

	im := &csvimport.Importer{Creator: s.store, BatchSize: s.cfg.Import.BatchSize}
	res, err := im.Import(r.Context(), entity, http.MaxBytesReader(w, r.Body, maxImportBytes), nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid CSV: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
