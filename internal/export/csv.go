// Package export renders claims for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/ppiankov/fratlas/internal/model"
)

// Header is the column order of the claims CSV
var Header = []string{
	"claimId", "claimantName", "village", "district", "state",
	"area", "status", "ocrConfidence", "createdAt",
}

// WriteClaimsCSV writes one row per claim. A missing confidence is an empty cell.
func WriteClaimsCSV(w io.Writer, claims []model.Claim) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, c := range claims {
		confidence := ""
		if c.OCRConfidence != nil {
			confidence = strconv.Itoa(*c.OCRConfidence)
		}
		row := []string{
			c.ClaimID,
			c.ClaimantName,
			c.Village,
			c.District,
			c.State,
			strconv.FormatFloat(c.Area, 'f', -1, 64),
			string(c.Status),
			confidence,
			c.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
