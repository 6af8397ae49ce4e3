package model

// RecognitionResult is the structured FORM-A content produced for one scanned
// claim form. A fresh value is built per recognition call; callers persist it.
type RecognitionResult struct {
	// Basic information
	ClaimantName     string `json:"claimantName"`
	SpouseName       string `json:"spouseName,omitempty"`
	FatherMotherName string `json:"fatherMotherName,omitempty"`
	Address          string `json:"address,omitempty"`
	Village          string `json:"village"`
	GramPanchayat    string `json:"gramPanchayat,omitempty"`
	TehsilTaluka     string `json:"tehsilTaluka,omitempty"`
	District         string `json:"district,omitempty"`
	State            string `json:"state,omitempty"`

	// Tribal status ("Yes"/"No")
	ScheduledTribe                string `json:"scheduledTribe,omitempty"`
	ScheduledTribeCertificate     string `json:"scheduledTribeCertificate,omitempty"`
	OtherTraditionalForestDweller string `json:"otherTraditionalForestDweller,omitempty"`
	SpouseScheduledTribe          string `json:"spouseScheduledTribe,omitempty"`

	FamilyMembers []FamilyMember `json:"familyMembers,omitempty"`

	// Nature of claim on land, hectares
	LandForHabitation                float64 `json:"landForHabitation"`
	LandForSelfCultivation           float64 `json:"landForSelfCultivation"`
	DisputedLands                    float64 `json:"disputedLands"`
	PattasLeasesGrants               float64 `json:"pattasLeasesGrants"`
	LandForRehabilitationAlternative float64 `json:"landForRehabilitationAlternative"`
	LandDisplacedWithoutCompensation float64 `json:"landDisplacedWithoutCompensation"`

	ClaimID      string `json:"claimId"`
	Area         string `json:"area"` // total hectares, decimal string
	SurveyNumber string `json:"surveyNumber,omitempty"`
	RawText      string `json:"rawText"`
	Confidence   int    `json:"confidence"` // percent, 0-100
}

// FamilyMember is one entry of the claimant's family list
type FamilyMember struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Relation string `json:"relation"` // Spouse, Son, Daughter, ...
}

// Corrections are reviewer edits laid over a recognition result. Nil fields are
// left untouched.
type Corrections struct {
	ClaimantName     *string `json:"claimantName,omitempty"`
	SpouseName       *string `json:"spouseName,omitempty"`
	FatherMotherName *string `json:"fatherMotherName,omitempty"`
	Address          *string `json:"address,omitempty"`
	Village          *string `json:"village,omitempty"`
	GramPanchayat    *string `json:"gramPanchayat,omitempty"`
	TehsilTaluka     *string `json:"tehsilTaluka,omitempty"`
	District         *string `json:"district,omitempty"`
	State            *string `json:"state,omitempty"`

	ScheduledTribe                *string `json:"scheduledTribe,omitempty"`
	ScheduledTribeCertificate     *string `json:"scheduledTribeCertificate,omitempty"`
	OtherTraditionalForestDweller *string `json:"otherTraditionalForestDweller,omitempty"`
	SpouseScheduledTribe          *string `json:"spouseScheduledTribe,omitempty"`

	FamilyMembers []FamilyMember `json:"familyMembers,omitempty"`

	LandForHabitation                *float64 `json:"landForHabitation,omitempty"`
	LandForSelfCultivation           *float64 `json:"landForSelfCultivation,omitempty"`
	DisputedLands                    *float64 `json:"disputedLands,omitempty"`
	PattasLeasesGrants               *float64 `json:"pattasLeasesGrants,omitempty"`
	LandForRehabilitationAlternative *float64 `json:"landForRehabilitationAlternative,omitempty"`
	LandDisplacedWithoutCompensation *float64 `json:"landDisplacedWithoutCompensation,omitempty"`

	ClaimID      *string `json:"claimId,omitempty"`
	Area         *string `json:"area,omitempty"`
	SurveyNumber *string `json:"surveyNumber,omitempty"`
	RawText      *string `json:"rawText,omitempty"`
}

// Apply copies every non-nil correction onto r
func (c Corrections) Apply(r *RecognitionResult) {
	setString(&r.ClaimantName, c.ClaimantName)
	setString(&r.SpouseName, c.SpouseName)
	setString(&r.FatherMotherName, c.FatherMotherName)
	setString(&r.Address, c.Address)
	setString(&r.Village, c.Village)
	setString(&r.GramPanchayat, c.GramPanchayat)
	setString(&r.TehsilTaluka, c.TehsilTaluka)
	setString(&r.District, c.District)
	setString(&r.State, c.State)

	setString(&r.ScheduledTribe, c.ScheduledTribe)
	setString(&r.ScheduledTribeCertificate, c.ScheduledTribeCertificate)
	setString(&r.OtherTraditionalForestDweller, c.OtherTraditionalForestDweller)
	setString(&r.SpouseScheduledTribe, c.SpouseScheduledTribe)

	if c.FamilyMembers != nil {
		r.FamilyMembers = append([]FamilyMember(nil), c.FamilyMembers...)
	}

	setFloat(&r.LandForHabitation, c.LandForHabitation)
	setFloat(&r.LandForSelfCultivation, c.LandForSelfCultivation)
	setFloat(&r.DisputedLands, c.DisputedLands)
	setFloat(&r.PattasLeasesGrants, c.PattasLeasesGrants)
	setFloat(&r.LandForRehabilitationAlternative, c.LandForRehabilitationAlternative)
	setFloat(&r.LandDisplacedWithoutCompensation, c.LandDisplacedWithoutCompensation)

	setString(&r.ClaimID, c.ClaimID)
	setString(&r.Area, c.Area)
	setString(&r.SurveyNumber, c.SurveyNumber)
	setString(&r.RawText, c.RawText)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Entities are the label-anchored candidates recovered from free text, in
// order of appearance
type Entities struct {
	Villages []string `json:"villages"`
	Names    []string `json:"names"`
	Areas    []string `json:"areas"`
	IDs      []string `json:"ids"`
}
