package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/fratlas/internal/model"
)

// MaxListLimit caps a single claims page
const MaxListLimit = 1000

const unknownVillage = "Unknown"

// ClaimRepo reads and writes claims
type ClaimRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

// NewClaimRepo creates a ClaimRepo over db
func NewClaimRepo(db *sql.DB) *ClaimRepo {
	return &ClaimRepo{DB: db, Now: time.Now}
}

// ClaimFilter narrows List. Empty fields match everything.
type ClaimFilter struct {
	Status   model.ClaimStatus
	Village  string
	District string
	Search   string // Claimant, claim ID or village substring, case-insensitive
	Limit    int
	Offset   int
}

const claimColumns = `id, claim_id,
  claimant_name, spouse_name, father_mother_name, address, village,
  gram_panchayat, tehsil_taluka, district, state,
  scheduled_tribe, scheduled_tribe_certificate, other_traditional_forest_dweller, spouse_scheduled_tribe,
  family_members,
  land_for_habitation, land_for_self_cultivation, disputed_lands, pattas_leases_grants,
  land_for_rehabilitation_alternative, land_displaced_without_compensation,
  area, survey_number, status, ocr_confidence, boundary_geometry, raw_ocr_text,
  created_at, updated_at`

// Create inserts c, assigning its ID, default status and timestamps
func (r *ClaimRepo) Create(ctx context.Context, c *model.Claim) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.ClaimPending
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now

	args, err := claimArgs(c)
	if err != nil {
		return err
	}

	const q = `
insert into claims (` + claimColumns + `)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
        $21,$22,$23,$24,$25,$26,$27,$28,$29,$30)`
	if _, err := r.DB.ExecContext(ctx, q, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("claim %s: %w", c.ClaimID, ErrDuplicate)
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

// Get returns the claim with primary key id
func (r *ClaimRepo) Get(ctx context.Context, id string) (*model.Claim, error) {
	row := r.DB.QueryRowContext(ctx, `select `+claimColumns+` from claims where id = $1`, id)
	return scanClaim(row)
}

// GetByClaimID returns the claim with human identifier claimID
func (r *ClaimRepo) GetByClaimID(ctx context.Context, claimID string) (*model.Claim, error) {
	row := r.DB.QueryRowContext(ctx, `select `+claimColumns+` from claims where claim_id = $1`, claimID)
	return scanClaim(row)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// List returns claims matching f, newest first
func (r *ClaimRepo) List(ctx context.Context, f ClaimFilter) ([]model.Claim, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}

	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.Village != "" {
		add("lower(village) = ?", strings.ToLower(strings.TrimSpace(f.Village)))
	}
	if f.District != "" {
		add("lower(district) = ?", strings.ToLower(strings.TrimSpace(f.District)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add(`(lower(claimant_name) like ? escape '\' or lower(claim_id) like ? escape '\' or lower(village) like ? escape '\')`,
			"%"+escapeLike(strings.ToLower(s))+"%")
	}

	limit := f.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	q := `select ` + claimColumns + ` from claims`
	if len(where) > 0 {
		q += ` where ` + strings.Join(where, " and ")
	}
	args = append(args, limit, offset)
	q += fmt.Sprintf(` order by created_at desc, claim_id limit $%d offset $%d`, len(args)-1, len(args))

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	claims := []model.Claim{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// Update overwrites every editable field of c and bumps UpdatedAt
func (r *ClaimRepo) Update(ctx context.Context, c *model.Claim) error {
	c.UpdatedAt = r.now()

	args, err := claimArgs(c)
	if err != nil {
		return err
	}

	// created_at is immutable; updated_at takes its slot as $29
	const q = `
update claims set
  claim_id = $2,
  claimant_name = $3, spouse_name = $4, father_mother_name = $5, address = $6, village = $7,
  gram_panchayat = $8, tehsil_taluka = $9, district = $10, state = $11,
  scheduled_tribe = $12, scheduled_tribe_certificate = $13,
  other_traditional_forest_dweller = $14, spouse_scheduled_tribe = $15,
  family_members = $16,
  land_for_habitation = $17, land_for_self_cultivation = $18, disputed_lands = $19,
  pattas_leases_grants = $20, land_for_rehabilitation_alternative = $21,
  land_displaced_without_compensation = $22,
  area = $23, survey_number = $24, status = $25, ocr_confidence = $26,
  boundary_geometry = $27, raw_ocr_text = $28, updated_at = $29
where id = $1`
	res, err := r.DB.ExecContext(ctx, q, append(args[:28:28], args[29])...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("claim %s: %w", c.ClaimID, ErrDuplicate)
		}
		return fmt.Errorf("update claim: %w", err)
	}
	return expectOne(res)
}

// UpdateStatus changes only the review status of claim id
func (r *ClaimRepo) UpdateStatus(ctx context.Context, id string, status model.ClaimStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid claim status %q", status)
	}
	res, err := r.DB.ExecContext(ctx,
		`update claims set status = $1, updated_at = $2 where id = $3`,
		string(status), r.now(), id)
	if err != nil {
		return fmt.Errorf("update claim status: %w", err)
	}
	return expectOne(res)
}

// Delete removes claim id and unlinks its uploaded files
func (r *ClaimRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `update uploaded_files set claim_id = null where claim_id = $1`, id); err != nil {
		return fmt.Errorf("unlink files: %w", err)
	}
	res, err := tx.ExecContext(ctx, `delete from claims where id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete claim: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	return tx.Commit()
}

// Stats computes the dashboard counters
func (r *ClaimRepo) Stats(ctx context.Context) (model.DashboardStats, error) {
	const q = `
select count(*),
       coalesce(sum(case when status <> 'pending' then 1 else 0 end), 0),
       coalesce(sum(area), 0),
       coalesce(sum(case when status = 'pending' then 1 else 0 end), 0)
from claims`
	var s model.DashboardStats
	if err := r.DB.QueryRowContext(ctx, q).Scan(&s.TotalClaims, &s.Processed, &s.TotalArea, &s.Pending); err != nil {
		return s, fmt.Errorf("claim stats: %w", err)
	}
	return s, nil
}

// Analytics aggregates claims by status, village (top 10) and creation day (UTC)
func (r *ClaimRepo) Analytics(ctx context.Context) (model.Analytics, error) {
	out := model.Analytics{ByStatus: []model.NamedCount{}, ByVillage: []model.NamedCount{}, Trend: []model.DateCount{}}

	rows, err := r.DB.QueryContext(ctx, `select status, village, created_at from claims`)
	if err != nil {
		return out, fmt.Errorf("claim analytics: %w", err)
	}
	defer rows.Close()

	byStatus := map[string]int{}
	byVillage := map[string]int{}
	byDate := map[string]int{}
	for rows.Next() {
		var (
			status, village string
			created         dbTime
		)
		if err := rows.Scan(&status, &village, &created); err != nil {
			return out, fmt.Errorf("scan analytics row: %w", err)
		}
		byStatus[status]++
		if strings.TrimSpace(village) == "" {
			village = unknownVillage
		}
		byVillage[village]++
		byDate[created.UTC().Format(time.DateOnly)]++
	}
	if err := rows.Err(); err != nil {
		return out, err
	}

	for _, st := range model.ClaimStatuses() {
		if n, ok := byStatus[string(st)]; ok {
			out.ByStatus = append(out.ByStatus, model.NamedCount{Name: string(st), Value: n})
		}
	}

	for name, n := range byVillage {
		out.ByVillage = append(out.ByVillage, model.NamedCount{Name: name, Value: n})
	}
	sort.Slice(out.ByVillage, func(i, j int) bool {
		a, b := out.ByVillage[i], out.ByVillage[j]
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return a.Name < b.Name
	})
	if len(out.ByVillage) > 10 {
		out.ByVillage = out.ByVillage[:10]
	}

	for date, n := range byDate {
		out.Trend = append(out.Trend, model.DateCount{Date: date, Value: n})
	}
	sort.Slice(out.Trend, func(i, j int) bool { return out.Trend[i].Date < out.Trend[j].Date })

	return out, nil
}

func (r *ClaimRepo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

// claimArgs flattens c in claimColumns order
func claimArgs(c *model.Claim) ([]any, error) {
	family, err := jsonText(c.FamilyMembers, len(c.FamilyMembers) == 0)
	if err != nil {
		return nil, fmt.Errorf("encode family members: %w", err)
	}
	boundary, err := jsonText(c.BoundaryGeometry, c.BoundaryGeometry == nil)
	if err != nil {
		return nil, fmt.Errorf("encode boundary: %w", err)
	}
	var confidence sql.NullInt64
	if c.OCRConfidence != nil {
		confidence = sql.NullInt64{Int64: int64(*c.OCRConfidence), Valid: true}
	}

	return []any{
		c.ID, c.ClaimID,
		c.ClaimantName, c.SpouseName, c.FatherMotherName, c.Address, c.Village,
		c.GramPanchayat, c.TehsilTaluka, c.District, c.State,
		c.ScheduledTribe, c.ScheduledTribeCertificate, c.OtherTraditionalForestDweller, c.SpouseScheduledTribe,
		family,
		c.LandForHabitation, c.LandForSelfCultivation, c.DisputedLands, c.PattasLeasesGrants,
		c.LandForRehabilitationAlternative, c.LandDisplacedWithoutCompensation,
		c.Area, c.SurveyNumber, string(c.Status), confidence, boundary, c.RawOCRText,
		c.CreatedAt, c.UpdatedAt,
	}, nil
}

func jsonText(v any, empty bool) (sql.NullString, error) {
	if empty {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*model.Claim, error) {
	var (
		c                  model.Claim
		status             string
		family, boundary   sql.NullString
		confidence         sql.NullInt64
		createdAt, updated dbTime
	)
	err := row.Scan(
		&c.ID, &c.ClaimID,
		&c.ClaimantName, &c.SpouseName, &c.FatherMotherName, &c.Address, &c.Village,
		&c.GramPanchayat, &c.TehsilTaluka, &c.District, &c.State,
		&c.ScheduledTribe, &c.ScheduledTribeCertificate, &c.OtherTraditionalForestDweller, &c.SpouseScheduledTribe,
		&family,
		&c.LandForHabitation, &c.LandForSelfCultivation, &c.DisputedLands, &c.PattasLeasesGrants,
		&c.LandForRehabilitationAlternative, &c.LandDisplacedWithoutCompensation,
		&c.Area, &c.SurveyNumber, &status, &confidence, &boundary, &c.RawOCRText,
		&createdAt, &updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}

	c.Status = model.ClaimStatus(status)
	c.CreatedAt, c.UpdatedAt = createdAt.Time, updated.Time
	if confidence.Valid {
		v := int(confidence.Int64)
		c.OCRConfidence = &v
	}
	if family.Valid && family.String != "" {
		if err := json.Unmarshal([]byte(family.String), &c.FamilyMembers); err != nil {
			return nil, fmt.Errorf("decode family members: %w", err)
		}
	}
	if boundary.Valid && boundary.String != "" {
		var p model.Polygon
		if err := json.Unmarshal([]byte(boundary.String), &p); err != nil {
			return nil, fmt.Errorf("decode boundary: %w", err)
		}
		c.BoundaryGeometry = &p
	}
	return &c, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
