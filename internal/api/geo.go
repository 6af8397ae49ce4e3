package api

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/ppiankov/fratlas/internal/boundary"
	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/store"
)

func (h *Handler) villages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, boundary.Villages())
}

func (h *Handler) village(w http.ResponseWriter, r *http.Request) {
	loc, ok := boundary.Lookup(r.PathValue("name"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown village"})
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// boundaryPreview synthesizes a polygon without saving anything
func (h *Handler) boundaryPreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	area, err := strconv.ParseFloat(strings.TrimSpace(q.Get("area")), 64)
	if err != nil || math.IsNaN(area) || math.IsInf(area, 0) {
		badRequest(w, "area must be a number of hectares")
		return
	}
	writeJSON(w, http.StatusOK, h.boundaries.Generate(q.Get("village"), area))
}

// mapFeatures returns every claim with a boundary as a GeoJSON collection
func (h *Handler) mapFeatures(w http.ResponseWriter, r *http.Request) {
	f, err := claimFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if f.Limit == 0 {
		f.Limit = store.MaxListLimit
	}

	claims, err := h.intake.Claims(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, featureCollection(claims))
}

func featureCollection(claims []model.Claim) model.FeatureCollection {
	fc := model.FeatureCollection{Type: "FeatureCollection", Features: []model.Feature{}}
	for _, c := range claims {
		if c.BoundaryGeometry == nil {
			continue
		}
		fc.Features = append(fc.Features, model.Feature{
			Type:     "Feature",
			Geometry: c.BoundaryGeometry,
			Properties: map[string]interface{}{
				"id":           c.ID,
				"claimId":      c.ClaimID,
				"claimantName": c.ClaimantName,
				"village":      c.Village,
				"status":       c.Status,
				"area":         c.Area,
			},
		})
	}
	return fc
}
