package recognize

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/sim"
)

// Sampling pools for the synthetic FORM-A content
var (
	villagePool       = []string{"Kachargaon", "Mendha", "Bamni", "Navegaon", "Dhamangaon", "Pench", "Tadoba"}
	maleNamePool      = []string{"Ramesh Kumar", "Mohan Singh", "Suresh Yadav", "Devendra Rao", "Prakash Gond"}
	femaleNamePool    = []string{"Sita Devi", "Geeta Bai", "Kamala Devi", "Savita Kumari", "Madhuri Bai"}
	districtPool      = []string{"Seoni", "Gadchiroli", "Gondia", "Wardha", "Amravati", "Chandrapur"}
	statePool         = []string{"Madhya Pradesh", "Maharashtra"}
	gramPanchayatPool = []string{"Gram Panchayat Kachargaon", "Gram Panchayat Mendha", "Gram Panchayat Central"}
	tehsilPool        = []string{"Seoni", "Kurkheda", "Gondia", "Hinganghat", "Chikhaldara"}

	claimantPool = append(append([]string{}, maleNamePool...), femaleNamePool...)
)

const (
	parentName         = "Late Govind Rao"
	stCertificate      = "ST Certificate No. ST/2020/1234"
	habitationShare    = 0.3
	cultivationShare   = 0.6
	minTotalArea       = 1.0
	maxTotalArea       = 5.0
	claimIDPrefix      = "FRA"
	surveyNumberPrefix = "SY"
)

// ageBand is an inclusive-exclusive age range [min, min+span)
type ageBand struct {
	min, span int
}

var (
	spouseAge   = ageBand{25, 15}
	sonAge      = ageBand{8, 12}
	daughterAge = ageBand{6, 10}
)

func (b ageBand) draw(r sim.Rand) int {
	return b.min + r.IntN(b.span)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// landSplit divides a total area into habitation, self-cultivation and the
// disputed remainder. The remainder never goes negative.
func landSplit(total float64) (habitation, cultivation, disputed float64) {
	habitation = round2(total * habitationShare)
	cultivation = round2(total * cultivationShare)
	disputed = round2(total - habitation - cultivation)
	if disputed < 0 {
		disputed = 0
	}
	return habitation, cultivation, disputed
}

// newClaimID derives an identifier from the clock: FRA-<year>-<last four
// digits of the unix milliseconds>
func newClaimID(now time.Time) string {
	return fmt.Sprintf("%s-%d-%04d", claimIDPrefix, now.Year(), now.UnixMilli()%10000)
}

func yesNo(r sim.Rand) string {
	if r.Float64() > 0.5 {
		return "Yes"
	}
	return "No"
}

// synthesize draws a complete FORM-A field set. rawConfidence is the
// unrounded score quoted at the end of the transcript.
func synthesize(r sim.Rand, claimID string, rawConfidence float64) model.RecognitionResult {
	village := sim.Pick(r, villagePool)
	claimant := sim.Pick(r, claimantPool)
	spouse := sim.Pick(r, femaleNamePool)
	district := sim.Pick(r, districtPool)
	state := sim.Pick(r, statePool)
	gramPanchayat := sim.Pick(r, gramPanchayatPool)
	tehsil := sim.Pick(r, tehsilPool)

	total := round2(sim.Between(r, minTotalArea, maxTotalArea))
	habitation, cultivation, disputed := landSplit(total)

	family := []model.FamilyMember{
		{Name: spouse, Age: spouseAge.draw(r), Relation: "Spouse"},
		{Name: "Ravi Kumar", Age: sonAge.draw(r), Relation: "Son"},
		{Name: "Meera Kumari", Age: daughterAge.draw(r), Relation: "Daughter"},
	}

	res := model.RecognitionResult{
		ClaimantName:     claimant,
		SpouseName:       spouse,
		FatherMotherName: parentName,
		Address:          fmt.Sprintf("Village %s, Post %s", village, village),
		Village:          village,
		GramPanchayat:    gramPanchayat,
		TehsilTaluka:     tehsil,
		District:         district,
		State:            state,

		ScheduledTribe:                yesNo(r),
		ScheduledTribeCertificate:     stCertificate,
		OtherTraditionalForestDweller: yesNo(r),
		SpouseScheduledTribe:          "Yes",

		FamilyMembers: family,

		LandForHabitation:      habitation,
		LandForSelfCultivation: cultivation,
		DisputedLands:          disputed,

		ClaimID:      claimID,
		Area:         formatArea(total),
		SurveyNumber: fmt.Sprintf("%s-%d", surveyNumberPrefix, 1000+r.IntN(9999)),
		Confidence:   int(math.Round(rawConfidence)),
	}
	res.RawText = transcript(res, total, rawConfidence)

	return res
}

// formatArea prints hectares without trailing zeros: 2.5, 3.42, 4
func formatArea(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// transcript renders the raw text a recognizer would have read off the form
func transcript(r model.RecognitionResult, total, rawConfidence float64) string {
	members := make([]string, 0, len(r.FamilyMembers))
	for _, m := range r.FamilyMembers {
		members = append(members, fmt.Sprintf("%s (%d years, %s)", m.Name, m.Age, m.Relation))
	}

	var b strings.Builder
	b.WriteString("FORM - A\n")
	b.WriteString("CLAIM FORM FOR RIGHTS TO FOREST LAND\n\n")
	fmt.Fprintf(&b, "1. Name of the claimant: %s\n", r.ClaimantName)
	fmt.Fprintf(&b, "2. Name of the spouse: %s\n", r.SpouseName)
	fmt.Fprintf(&b, "3. Name of father/mother: %s\n", r.FatherMotherName)
	fmt.Fprintf(&b, "4. Address: %s\n", r.Address)
	fmt.Fprintf(&b, "5. Village: %s\n", r.Village)
	fmt.Fprintf(&b, "6. Gram Panchayat: %s\n", r.GramPanchayat)
	fmt.Fprintf(&b, "7. Tehsil/Taluka: %s\n", r.TehsilTaluka)
	fmt.Fprintf(&b, "8. District: %s\n", r.District)
	fmt.Fprintf(&b, "9. (a) Scheduled Tribe: %s\n", r.ScheduledTribe)
	fmt.Fprintf(&b, "   (b) Other Traditional Forest Dweller: %s\n", r.OtherTraditionalForestDweller)
	fmt.Fprintf(&b, "10. Family members: %s\n\n", strings.Join(members, ", "))
	b.WriteString("Nature of claim on land:\n")
	b.WriteString("1. Extent of forest land occupied\n")
	fmt.Fprintf(&b, "   (a) for habitation: %s hectares\n", formatArea(r.LandForHabitation))
	fmt.Fprintf(&b, "   (b) for self-cultivation: %s hectares\n", formatArea(r.LandForSelfCultivation))
	fmt.Fprintf(&b, "   Total area: %s hectares\n", formatArea(total))
	fmt.Fprintf(&b, "   Survey No: %s\n\n", r.SurveyNumber)
	fmt.Fprintf(&b, "Extracted with %.1f%% confidence.", rawConfidence)

	return b.String()
}
