package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"ppkgen/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps domain errors onto HTTP statuses: validation failures
// are 422, missing records 404, immutable-field writes 409.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrImmutableField):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.Validationf("", "invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, core.Validationf("id", "invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// queryPeriod reads the year and month query parameters.
func queryPeriod(r *http.Request) (core.Period, error) {
	var p core.Period
	year := strings.TrimSpace(r.URL.Query().Get("year"))
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if year == "" || month == "" {
		return p, core.Validationf("period", "year and month query parameters are required")
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return p, core.Validationf("year", "invalid year %q", year)
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return p, core.Validationf("month", "invalid month %q", month)
	}
	p = core.Period{Year: y, Month: m}
	return p, p.Validate()
}

// --- Organizations ---

func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.filings.ListOrganizations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	org, err := s.filings.GetOrganization(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var data core.CreateOrganization
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, r, err)
		return
	}
	org, err := s.filings.CreateOrganization(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var data core.UpdateOrganization
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, r, err)
		return
	}
	org, err := s.filings.UpdateOrganization(r.Context(), id, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (s *Server) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.filings.DeleteOrganization(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Members ---

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	members, err := s.filings.ListMembers(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	member, err := s.filings.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var data core.CreateMember
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, r, err)
		return
	}
	data.OrganizationID = orgID
	member, err := s.filings.CreateMember(r.Context(), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var data core.UpdateMember
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, r, err)
		return
	}
	member, err := s.filings.UpdateMember(r.Context(), id, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.filings.DeleteMember(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidatePesel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PESEL string `json:"pesel"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.filings.ValidatePesel(body.PESEL))
}

// --- Contributions ---

func (s *Server) handleListContributions(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	period, err := queryPeriod(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := s.filings.ListContributions(r.Context(), orgID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleUpsertContribution(w http.ResponseWriter, r *http.Request) {
	var data core.UpsertContribution
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.filings.UpsertContribution(r.Context(), data); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePrefillContributions(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body core.Period
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.filings.PrefillContributions(r.Context(), orgID, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Created int64 `json:"created"`
	}{Created: created})
}

func (s *Server) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	periods, err := s.filings.AvailablePeriods(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

// --- Generations ---

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body core.Period
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.filings.Generate(r.Context(), orgID, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result.Generation)
}

func (s *Server) handleListGenerations(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gens, err := s.filings.ListGenerations(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gens)
}

func (s *Server) handleGetGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gen, err := s.filings.GetGeneration(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gen.Generation)
}

// handleExportGeneration streams the rebuilt ZIP artifact.
func (s *Server) handleExportGeneration(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := strconv.FormatInt(id, 10)
	if export, found := s.exportCache.Get(key); found {
		slog.DebugContext(r.Context(), "Export cache hit", "generation_id", id)
		writeArchive(w, export)
		return
	}

	result, err := s.filings.ExportGeneration(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	export := cachedExport{Filename: result.Generation.FilePath, ZipBytes: result.ZipBytes}
	s.exportCache.Set(key, export)
	writeArchive(w, export)
}

func writeArchive(w http.ResponseWriter, export cachedExport) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.ZipBytes)
}
