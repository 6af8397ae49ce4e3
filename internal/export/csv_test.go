package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/ppiankov/fratlas/internal/model"
)

func TestWriteClaimsCSV(t *testing.T) {
	conf := 91
	claims := []model.Claim{
		{
			ClaimID:       "FRA-2024-001",
			ClaimantName:  "Rao, Devendra",
			Village:       "Mendha",
			District:      "Gadchiroli",
			State:         "Maharashtra",
			Area:          2.5,
			Status:        model.ClaimApproved,
			OCRConfidence: &conf,
			CreatedAt:     time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
		},
		{
			ClaimID:      "FRA-2024-002",
			ClaimantName: "Sita Devi",
			Village:      "Bamni",
			Area:         1,
			Status:       model.ClaimPending,
			CreatedAt:    time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	if err := WriteClaimsCSV(&buf, claims); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "claimId" || rows[0][8] != "createdAt" {
		t.Errorf("unexpected header %v", rows[0])
	}

	first := rows[1]
	if first[1] != "Rao, Devendra" {
		t.Errorf("expected quoted comma to survive, got %q", first[1])
	}
	if first[5] != "2.5" || first[7] != "91" || first[8] != "2024-05-01T08:30:00Z" {
		t.Errorf("unexpected row %v", first)
	}

	second := rows[2]
	if second[5] != "1" || second[7] != "" {
		t.Errorf("expected area 1 and empty confidence, got %v", second)
	}
}

func TestWriteClaimsCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteClaimsCSV(&buf, nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if buf.String() != "claimId,claimantName,village,district,state,area,status,ocrConfidence,createdAt\n" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}
