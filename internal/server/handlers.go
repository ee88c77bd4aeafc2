package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/incisive-io/tabled/internal/query"
)

func (s *Server) handleGetTables(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	tables, err := s.engine.GetTables(r.Context(), id.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

func (s *Server) handleGetTableConfig(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	cfg, err := s.engine.GetTableConfig(chi.URLParam(r, "table"), id.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetTableRows(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	params := listParams(r)

	page, err := s.engine.GetTableRows(r.Context(), chi.URLParam(r, "table"), id.Role, params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetTableRow(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	row, err := s.engine.GetTableRow(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"), id.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleCreateTableRow(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	payload, err := decodeBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	row, err := s.engine.CreateTableRow(r.Context(), chi.URLParam(r, "table"), payload, id.Role, id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleUpdateTableRow(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	payload, err := decodeBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	row, err := s.engine.UpdateTableRow(r.Context(),
		chi.URLParam(r, "table"), chi.URLParam(r, "id"), payload, id.Role, id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleDeleteTableRow(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	err := s.engine.DeleteTableRow(r.Context(),
		chi.URLParam(r, "table"), chi.URLParam(r, "id"), id.Role, id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Record deleted successfully"})
}

// --- special (lab, product) operations ---

func (s *Server) handleUpdateMarkup(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	payload, err := decodeBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	row, err := s.engine.UpdateMarkup(r.Context(), payload, id.Role, id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": []any{row}})
}

func (s *Server) handleDeleteMarkup(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	payload, err := decodeBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.engine.DeleteMarkup(r.Context(), payload, id.Role, id.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Record deleted successfully"})
}

func (s *Server) handleUpsertRevShare(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	payload, err := decodeBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rows, err := s.engine.UpsertRevShare(r.Context(), payload, id.Role, id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (s *Server) handleDeleteRevShare(w http.ResponseWriter, r *http.Request) {
	id := callerIdentity(r)
	payload, err := decodeBody(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	count, err := s.engine.DeleteRevShare(r.Context(), payload, id.Role, id.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Records deleted successfully",
		"count":   count,
	})
}

// --- lookups ---

func (s *Server) handleLookupLabs(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.LookupLabs(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"labs": rows})
}

func (s *Server) handleLookupPractices(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.LookupPractices(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"practices": rows})
}

func (s *Server) handleLookupProducts(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.LookupProducts(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": rows})
}

func (s *Server) handleLookupDentalGroups(w http.ResponseWriter, r *http.Request) {
	rows, err := s.engine.LookupDentalGroups(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dentalGroups": rows})
}

// listParams reads the list query parameters. Unparseable numbers fall
// back to the engine defaults.
func listParams(r *http.Request) query.ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return query.ListParams{
		Page:      page,
		Limit:     limit,
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Filters:   q.Get("filters"),
	}
}
