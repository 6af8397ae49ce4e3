package telegram

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/pipeline"
)

const helpText = `Send a photo or PDF of a FORM-A claim and I will read it.

Commands:
/villages - known villages
/boundary <village> <hectares> - preview a claim boundary
/claim <claim ID> - status of a saved claim
/stats - claim counters`

const failureText = "Something went wrong while processing your request. Please try again later."

// parseBoundaryArgs splits "<village> <hectares>". Village names may contain
// spaces; the area is always the last word.
func parseBoundaryArgs(args string) (string, float64, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", 0, errors.New("village and area are required")
	}

	area, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil || math.IsNaN(area) || math.IsInf(area, 0) || area <= 0 {
		return "", 0, fmt.Errorf("invalid area %q", fields[len(fields)-1])
	}
	return strings.Join(fields[:len(fields)-1], " "), area, nil
}

func formatRecognition(rec *pipeline.Recognition) string {
	r := rec.Result

	var b strings.Builder
	fmt.Fprintf(&b, "FORM-A read with %d%% confidence\n\n", r.Confidence)
	writeField(&b, "Claim ID", r.ClaimID)
	writeField(&b, "Claimant", r.ClaimantName)
	writeField(&b, "Spouse", r.SpouseName)
	writeField(&b, "Village", r.Village)
	writeField(&b, "Tehsil/Taluka", r.TehsilTaluka)
	writeField(&b, "District", r.District)
	writeField(&b, "State", r.State)
	if r.Area != "" {
		fmt.Fprintf(&b, "Area: %s ha\n", r.Area)
	}
	writeField(&b, "Survey No", r.SurveyNumber)
	if n := len(r.FamilyMembers); n > 0 {
		fmt.Fprintf(&b, "Family members: %d\n", n)
	}

	if r.Confidence < pipeline.ReviewThreshold {
		b.WriteString("\nLow confidence: the claim will need manual review.")
	}
	fmt.Fprintf(&b, "\nUpload ID: %s", rec.File.ID)

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

func formatVillages(villages []model.VillageLocation) string {
	var b strings.Builder
	b.WriteString("Known villages:\n")
	for _, v := range villages {
		fmt.Fprintf(&b, "- %s (%s, %s) %.4f N, %.4f E\n", v.Village, v.District, v.State, v.Lat, v.Lng)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatBoundary(village string, area float64, p model.Polygon) string {
	ring := p.Ring()

	var b strings.Builder
	fmt.Fprintf(&b, "Boundary for %s, %s ha\n", village, strconv.FormatFloat(area, 'f', -1, 64))
	if len(ring) < 2 {
		b.WriteString("No boundary could be generated.")
		return b.String()
	}

	// The closing vertex repeats the first
	vertices := ring[:len(ring)-1]
	var lat, lng float64
	for _, pos := range vertices {
		lat += pos.Lat()
		lng += pos.Lng()
	}
	n := float64(len(vertices))
	fmt.Fprintf(&b, "%d vertices around %.4f N, %.4f E\n", len(vertices), lat/n, lng/n)
	for i, pos := range vertices {
		fmt.Fprintf(&b, "%d. %.5f, %.5f\n", i+1, pos.Lat(), pos.Lng())
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatClaim(c *model.ClaimWithFiles) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim %s: %s\n", c.ClaimID, c.Status)
	writeField(&b, "Claimant", c.ClaimantName)
	writeField(&b, "Village", c.Village)
	writeField(&b, "District", c.District)
	fmt.Fprintf(&b, "Area: %s ha\n", strconv.FormatFloat(c.Area, 'f', -1, 64))
	fmt.Fprintf(&b, "Scans: %d", len(c.Files))
	return b.String()
}

func formatStats(s model.DashboardStats) string {
	return fmt.Sprintf("Claims: %d\nProcessed: %d\nPending: %d\nTotal area: %s ha",
		s.TotalClaims, s.Processed, s.Pending, strconv.FormatFloat(math.Round(s.TotalArea*100)/100, 'f', -1, 64))
}
