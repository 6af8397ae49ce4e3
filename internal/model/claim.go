package model

import "time"

// Claim is a persisted forest-rights claim record built from a reviewed
// recognition result
type Claim struct {
	ID      string `json:"id"`      // Primary key (uuid)
	ClaimID string `json:"claimId"` // Human identifier, e.g. FRA-2024-001

	ClaimantName     string `json:"claimantName"`
	SpouseName       string `json:"spouseName,omitempty"`
	FatherMotherName string `json:"fatherMotherName,omitempty"`
	Address          string `json:"address,omitempty"`
	Village          string `json:"village"`
	GramPanchayat    string `json:"gramPanchayat,omitempty"`
	TehsilTaluka     string `json:"tehsilTaluka,omitempty"`
	District         string `json:"district,omitempty"`
	State            string `json:"state,omitempty"`

	ScheduledTribe                string `json:"scheduledTribe,omitempty"`
	ScheduledTribeCertificate     string `json:"scheduledTribeCertificate,omitempty"`
	OtherTraditionalForestDweller string `json:"otherTraditionalForestDweller,omitempty"`
	SpouseScheduledTribe          string `json:"spouseScheduledTribe,omitempty"`

	FamilyMembers []FamilyMember `json:"familyMembers,omitempty"`

	LandForHabitation                float64 `json:"landForHabitation"`
	LandForSelfCultivation           float64 `json:"landForSelfCultivation"`
	DisputedLands                    float64 `json:"disputedLands"`
	PattasLeasesGrants               float64 `json:"pattasLeasesGrants"`
	LandForRehabilitationAlternative float64 `json:"landForRehabilitationAlternative"`
	LandDisplacedWithoutCompensation float64 `json:"landDisplacedWithoutCompensation"`

	Area         float64 `json:"area"` // Total hectares
	SurveyNumber string  `json:"surveyNumber,omitempty"`

	Status           ClaimStatus `json:"status"`
	OCRConfidence    *int        `json:"ocrConfidence,omitempty"`
	BoundaryGeometry *Polygon    `json:"boundaryGeometry,omitempty"`
	RawOCRText       string      `json:"rawOcrText,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// ClaimStatus is the review state of a claim
type ClaimStatus string

const (
	ClaimPending        ClaimStatus = "pending"
	ClaimApproved       ClaimStatus = "approved"
	ClaimRejected       ClaimStatus = "rejected"
	ClaimReviewRequired ClaimStatus = "review_required"
)

// Valid reports whether s is a known claim status
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimPending, ClaimApproved, ClaimRejected, ClaimReviewRequired:
		return true
	}
	return false
}

// ClaimStatuses lists every claim status in display order
func ClaimStatuses() []ClaimStatus {
	return []ClaimStatus{ClaimPending, ClaimApproved, ClaimRejected, ClaimReviewRequired}
}

// UploadedFile tracks a scanned form on disk and its recognition state
type UploadedFile struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`     // Stored name under the upload dir
	OriginalName string     `json:"originalName"` // Name supplied by the uploader
	MimeType     string     `json:"mimetype"`
	Size         int64      `json:"size"` // Bytes
	Status       FileStatus `json:"status"`
	ClaimID      string     `json:"claimId,omitempty"` // Claim primary key once linked
	UploadedAt   time.Time  `json:"uploadedAt"`
}

// FileStatus is the processing state of an uploaded file
type FileStatus string

const (
	FileUploaded   FileStatus = "uploaded"
	FileProcessing FileStatus = "processing"
	FileProcessed  FileStatus = "processed"
	FileFailed     FileStatus = "failed"
)

// DashboardStats are the headline counters on the dashboard
type DashboardStats struct {
	TotalClaims int     `json:"totalClaims"`
	Processed   int     `json:"processed"` // Claims no longer pending
	TotalArea   float64 `json:"totalArea"` // Hectares
	Pending     int     `json:"pending"`
}

// Analytics feeds the analytics charts
type Analytics struct {
	ByStatus  []NamedCount `json:"byStatus"`
	ByVillage []NamedCount `json:"byVillage"` // Top villages by claim count
	Trend     []DateCount  `json:"trend"`     // Claims created per day, ascending
}

// NamedCount is a labelled counter
type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// DateCount is a per-day counter, Date formatted YYYY-MM-DD
type DateCount struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// ClaimWithFiles is a claim together with the scans it was built from
type ClaimWithFiles struct {
	Claim
	Files []UploadedFile `json:"files"`
}
