package submissions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/pathways/pkg/repository"
)

const columns = `id, content_type, submitter_name, location_key, transcript,
	representative, public_document, representative_document,
	status, progress, failure, created_at, updated_at`

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository creates a PostgreSQL-backed Store over the submissions table.
func NewRepository(db *sql.DB, logger *slog.Logger) Store {
	return &repo{
		db:     db,
		logger: logger.With("system", "submissions"),
	}
}

func (r *repo) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	q := `SELECT ` + columns + ` FROM submissions WHERE id = $1`

	s, err := repository.QueryOne(ctx, r.db, q, []any{id}, scanSubmission)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (r *repo) Put(ctx context.Context, s *Submission) error {
	args, err := upsertArgs(s)
	if err != nil {
		return err
	}

	q := `
		INSERT INTO submissions(` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			submitter_name = EXCLUDED.submitter_name,
			location_key = EXCLUDED.location_key,
			transcript = EXCLUDED.transcript,
			representative = EXCLUDED.representative,
			public_document = EXCLUDED.public_document,
			representative_document = EXCLUDED.representative_document,
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			failure = EXCLUDED.failure,
			updated_at = EXCLUDED.updated_at`

	_, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, q, args...)
	})
	if err != nil {
		return fmt.Errorf("put submission %s: %w", s.ID, repository.MapError(err, ErrNotFound, ErrDuplicate))
	}

	r.logger.DebugContext(ctx, "submission stored", "id", s.ID, "status", s.Status)
	return nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, "DELETE FROM submissions WHERE id = $1", id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete submission %s: %w", id, err)
	}

	r.logger.InfoContext(ctx, "submission deleted", "id", id)
	return nil
}

func upsertArgs(s *Submission) ([]any, error) {
	rep, err := encodeJSON(s.Representative)
	if err != nil {
		return nil, err
	}
	pub, err := encodeJSON(s.PublicDocument)
	if err != nil {
		return nil, err
	}
	repDoc, err := encodeJSON(s.RepresentativeDocument)
	if err != nil {
		return nil, err
	}
	failure, err := encodeJSON(s.Failure)
	if err != nil {
		return nil, err
	}

	return []any{
		s.ID,
		s.ContentType,
		s.SubmitterName,
		s.LocationKey,
		s.Transcript,
		rep,
		pub,
		repDoc,
		string(s.Status),
		s.Progress,
		failure,
		s.CreatedAt,
		s.UpdatedAt,
	}, nil
}

func scanSubmission(sc repository.Scanner) (Submission, error) {
	var (
		s                         Submission
		status                    string
		rep, pub, repDoc, failure []byte
	)

	err := sc.Scan(
		&s.ID,
		&s.ContentType,
		&s.SubmitterName,
		&s.LocationKey,
		&s.Transcript,
		&rep,
		&pub,
		&repDoc,
		&status,
		&s.Progress,
		&failure,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return s, err
	}
	s.Status = Status(status)

	if s.Representative, err = decodeJSON[Representative](rep); err != nil {
		return s, err
	}
	if s.PublicDocument, err = decodeJSON[Document](pub); err != nil {
		return s, err
	}
	if s.RepresentativeDocument, err = decodeJSON[Document](repDoc); err != nil {
		return s, err
	}
	if s.Failure, err = decodeJSON[Failure](failure); err != nil {
		return s, err
	}

	return s, nil
}

// encodeJSON returns nil for a nil value so the column is stored as SQL NULL.
func encodeJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return &v, nil
}
