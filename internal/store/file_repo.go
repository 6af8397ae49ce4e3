package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/fratlas/internal/model"
)

// FileRepo tracks uploaded scans
type FileRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

// NewFileRepo creates a FileRepo over db
func NewFileRepo(db *sql.DB) *FileRepo {
	return &FileRepo{DB: db, Now: time.Now}
}

const fileColumns = `id, filename, original_name, mimetype, size, status, claim_id, uploaded_at`

// Create inserts f, assigning its ID, status and upload time when unset
func (r *FileRepo) Create(ctx context.Context, f *model.UploadedFile) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Status == "" {
		f.Status = model.FileUploaded
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = r.now()
	}

	const q = `insert into uploaded_files (` + fileColumns + `) values ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.DB.ExecContext(ctx, q,
		f.ID, f.Filename, f.OriginalName, f.MimeType, f.Size, string(f.Status), nullable(f.ClaimID), f.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("file %s: %w", f.ID, ErrDuplicate)
		}
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// Get returns the uploaded file with id
func (r *FileRepo) Get(ctx context.Context, id string) (*model.UploadedFile, error) {
	row := r.DB.QueryRowContext(ctx, `select `+fileColumns+` from uploaded_files where id = $1`, id)
	return scanFile(row)
}

// UpdateStatus moves file id to status
func (r *FileRepo) UpdateStatus(ctx context.Context, id string, status model.FileStatus) error {
	res, err := r.DB.ExecContext(ctx, `update uploaded_files set status = $1 where id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	return expectOne(res)
}

// AttachClaim links file id to the claim with primary key claimID
func (r *FileRepo) AttachClaim(ctx context.Context, id, claimID string) error {
	res, err := r.DB.ExecContext(ctx, `update uploaded_files set claim_id = $1 where id = $2`, claimID, id)
	if err != nil {
		return fmt.Errorf("attach file: %w", err)
	}
	return expectOne(res)
}

// ListByClaim returns the files linked to claimID, oldest first
func (r *FileRepo) ListByClaim(ctx context.Context, claimID string) ([]model.UploadedFile, error) {
	rows, err := r.DB.QueryContext(ctx,
		`select `+fileColumns+` from uploaded_files where claim_id = $1 order by uploaded_at, id`, claimID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []model.UploadedFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

func (r *FileRepo) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}

func scanFile(row rowScanner) (*model.UploadedFile, error) {
	var (
		f        model.UploadedFile
		status   string
		claimID  sql.NullString
		uploaded dbTime
	)
	if err := row.Scan(&f.ID, &f.Filename, &f.OriginalName, &f.MimeType, &f.Size, &status, &claimID, &uploaded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}
	f.Status = model.FileStatus(status)
	f.ClaimID = claimID.String
	f.UploadedAt = uploaded.Time
	return &f, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
