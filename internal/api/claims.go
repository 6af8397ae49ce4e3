package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/fratlas/internal/export"
	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/pipeline"
	"github.com/ppiankov/fratlas/internal/store"
)

func (h *Handler) createClaim(w http.ResponseWriter, r *http.Request) {
	var in pipeline.ClaimInput
	if err := decodeJSON(r, &in, false); err != nil {
		badRequest(w, "invalid claim body")
		return
	}

	c, err := h.intake.SaveClaim(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// claimFilter reads list filters from the query string
func claimFilter(r *http.Request) (store.ClaimFilter, error) {
	q := r.URL.Query()
	f := store.ClaimFilter{
		Status:   model.ClaimStatus(q.Get("status")),
		Village:  q.Get("village"),
		District: q.Get("district"),
		Search:   q.Get("search"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("unknown status %q", f.Status)
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%s must be a non-negative integer", name)
		}
		*dst = n
	}
	return f, nil
}

func (h *Handler) listClaims(w http.ResponseWriter, r *http.Request) {
	f, err := claimFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	claims, err := h.intake.Claims(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *Handler) getClaim(w http.ResponseWriter, r *http.Request) {
	c, err := h.intake.Claim(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// getClaimByClaimID looks a claim up by the ID printed on its form
func (h *Handler) getClaimByClaimID(w http.ResponseWriter, r *http.Request) {
	c, err := h.intake.ClaimByClaimID(r.Context(), r.PathValue("claimId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) updateClaim(w http.ResponseWriter, r *http.Request) {
	var in pipeline.ClaimInput
	if err := decodeJSON(r, &in, false); err != nil {
		badRequest(w, "invalid claim body")
		return
	}

	c, err := h.intake.UpdateClaim(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type statusRequest struct {
	Status model.ClaimStatus `json:"status"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req, false); err != nil {
		badRequest(w, "invalid status body")
		return
	}

	if err := h.intake.SetStatus(r.Context(), r.PathValue("id"), req.Status); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *Handler) deleteClaim(w http.ResponseWriter, r *http.Request) {
	if err := h.intake.DeleteClaim(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.intake.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.intake.Analytics(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	f, err := claimFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	claims, err := h.intake.Claims(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	name := fmt.Sprintf("fra-claims-%s.csv", time.Now().UTC().Format(time.DateOnly))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.WriteClaimsCSV(w, claims); err != nil {
		h.logger.Warn("csv export interrupted", zap.Error(err))
	}
}
