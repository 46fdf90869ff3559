package carechart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carechart/carechart/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type submissionRepoPG struct{ pool *pgxpool.Pool }

// NewSubmissionRepoPG stores submissions in checkup_submission and
// checkup_answer.
func NewSubmissionRepoPG(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepoPG{pool: pool}
}

func (r *submissionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *submissionRepoPG) ListSubmissions(ctx context.Context, practitionerID, patientID, questionnaireTitle string) ([]*Submission, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT s.id, s.authored, a.link_id, a.value
		FROM checkup_submission s
		LEFT JOIN checkup_answer a ON a.submission_id = s.id
		WHERE s.practitioner_id = $1 AND s.patient_id = $2 AND s.questionnaire_title = $3
		ORDER BY s.authored, s.id, a.link_id`,
		practitionerID, patientID, questionnaireTitle)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var scanned []submissionRow
	for rows.Next() {
		var row submissionRow
		if err := rows.Scan(&row.id, &row.authored, &row.linkID, &row.value); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		scanned = append(scanned, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return groupSubmissions(scanned), nil
}

// submissionRow is one submission joined with one of its answers. linkID and
// value are nil for a submission without answers.
type submissionRow struct {
	id       uuid.UUID
	authored time.Time
	linkID   *int
	value    *int
}

// groupSubmissions folds consecutive rows of the same submission together.
// pgx returns timestamptz in the process's local zone; authored is kept in
// UTC so chart labels match the FHIR store.
func groupSubmissions(rows []submissionRow) []*Submission {
	var out []*Submission
	var current *Submission
	for _, row := range rows {
		if current == nil || current.ID != row.id.String() {
			current = &Submission{ID: row.id.String(), Authored: row.authored.UTC(), Answers: map[int]int{}}
			out = append(out, current)
		}
		if row.linkID != nil && row.value != nil {
			current.Answers[*row.linkID] = *row.value
		}
	}
	return out
}

func (r *submissionRepoPG) CreateSubmission(ctx context.Context, rec *SubmissionRecord) error {
	id := uuid.New()
	if rec.ID != "" {
		parsed, err := uuid.Parse(rec.ID)
		if err != nil {
			return fmt.Errorf("invalid submission id %q: %w", rec.ID, err)
		}
		id = parsed
	}

	err := db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		if _, err := q.Exec(ctx, `
			INSERT INTO checkup_submission (id, questionnaire_title, patient_id, practitioner_id, authored)
			VALUES ($1,$2,$3,$4,$5)`,
			id, rec.QuestionnaireTitle, rec.PatientID, rec.PractitionerID, rec.Authored.UTC()); err != nil {
			return fmt.Errorf("insert submission: %w", err)
		}
		for i, v := range rec.Answers {
			if _, err := q.Exec(ctx, `
				INSERT INTO checkup_answer (submission_id, link_id, value) VALUES ($1,$2,$3)`,
				id, i+1, v); err != nil {
				return fmt.Errorf("insert answer %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	rec.ID = id.String()
	return nil
}
