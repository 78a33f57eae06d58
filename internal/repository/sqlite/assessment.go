package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/pkg/errors"
	"github.com/azgovernor/azgovernor/internal/pkg/metrics"
)

// AssessmentRepository implements assessment.Repository on sqlite. Structured
// payloads (category results, recommendations) are stored as JSON columns;
// findings get their own table so they can be queried independently.
type AssessmentRepository struct {
	db *sql.DB
}

func NewAssessmentRepository(db *sql.DB) assessment.Repository {
	return &AssessmentRepository{db: db}
}

func (r *AssessmentRepository) CreateAssessment(ctx context.Context, a *assessment.Assessment) error {
	start := time.Now()
	subs, err := json.Marshal(a.SubscriptionIDs)
	if err != nil {
		return errors.PersistenceError("encode subscription ids", err)
	}
	options, err := json.Marshal(a.Options)
	if err != nil {
		return errors.PersistenceError("encode request options", err)
	}

	query := `INSERT INTO assessments (id, customer_id, environment_id, type, status, subscription_ids, options, resources_analyzed, issues_found, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.CustomerID, a.EnvironmentID, string(a.Type), string(a.Status),
		string(subs), string(options), a.ResourcesAnalyzed, a.IssuesFound, a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return errors.PersistenceError("create assessment", err)
	}
	metrics.RecordDBQuery("insert", "assessments", time.Since(start))
	return nil
}

func (r *AssessmentRepository) GetAssessment(ctx context.Context, id string) (*assessment.Assessment, error) {
	start := time.Now()
	query := `SELECT id, customer_id, environment_id, type, status, subscription_ids, options,
		overall_score, started_at, completed_at, error_message,
		category_results, recommendations, unavailable_categories,
		resources_analyzed, issues_found, created_at
		FROM assessments WHERE id = ?`

	var a assessment.Assessment
	var atype, status, subs, options, createdAt string
	var startedAt, completedAt, categoryResults, recommendations, unavailable sql.NullString
	var overallScore sql.NullFloat64

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.CustomerID, &a.EnvironmentID, &atype, &status, &subs, &options,
		&overallScore, &startedAt, &completedAt, &a.ErrorMessage,
		&categoryResults, &recommendations, &unavailable,
		&a.ResourcesAnalyzed, &a.IssuesFound, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("Assessment")
	}
	if err != nil {
		return nil, errors.PersistenceError("get assessment", err)
	}
	metrics.RecordDBQuery("select", "assessments", time.Since(start))

	a.Type = assessment.Type(atype)
	a.Status = assessment.Status(status)
	if err := json.Unmarshal([]byte(subs), &a.SubscriptionIDs); err != nil {
		return nil, errors.PersistenceError("decode subscription ids", err)
	}
	if options != "" {
		if err := json.Unmarshal([]byte(options), &a.Options); err != nil {
			return nil, errors.PersistenceError("decode request options", err)
		}
	}
	if overallScore.Valid {
		a.OverallScore = &overallScore.Float64
	}
	if t, ok := parseTime(startedAt); ok {
		a.StartedAt = t
	}
	if t, ok := parseTime(completedAt); ok {
		a.CompletedAt = t
	}
	if categoryResults.Valid && categoryResults.String != "" {
		if err := json.Unmarshal([]byte(categoryResults.String), &a.CategoryResults); err != nil {
			return nil, errors.PersistenceError("decode category results", err)
		}
	}
	if recommendations.Valid && recommendations.String != "" {
		if err := json.Unmarshal([]byte(recommendations.String), &a.Recommendations); err != nil {
			return nil, errors.PersistenceError("decode recommendations", err)
		}
	}
	if unavailable.Valid && unavailable.String != "" {
		if err := json.Unmarshal([]byte(unavailable.String), &a.UnavailableCategories); err != nil {
			return nil, errors.PersistenceError("decode unavailable categories", err)
		}
	}
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	findings, err := r.GetFindingsByAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Findings = findings

	return &a, nil
}

// UpdateAssessmentStatus performs an optimistic status transition. When the
// stored status no longer matches expectedCurrent the update affects no rows
// and the caller loses the race.
func (r *AssessmentRepository) UpdateAssessmentStatus(ctx context.Context, id string, expectedCurrent, next assessment.Status) error {
	start := time.Now()
	var result sql.Result
	var err error

	if next == assessment.StatusInProgress {
		result, err = r.db.ExecContext(ctx,
			`UPDATE assessments SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
			string(next), time.Now().UTC().Format(time.RFC3339), id, string(expectedCurrent))
	} else {
		result, err = r.db.ExecContext(ctx,
			`UPDATE assessments SET status = ? WHERE id = ? AND status = ?`,
			string(next), id, string(expectedCurrent))
	}
	if err != nil {
		return errors.PersistenceError("update assessment status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.PersistenceError("update assessment status", err)
	}
	if rows == 0 {
		return errors.Conflict(fmt.Sprintf("assessment %s is not %s", id, expectedCurrent))
	}
	metrics.RecordDBQuery("update", "assessments", time.Since(start))
	return nil
}

func (r *AssessmentRepository) UpdateAssessmentResult(ctx context.Context, a *assessment.Assessment, completedAt time.Time) error {
	start := time.Now()
	categoryResults, err := json.Marshal(a.CategoryResults)
	if err != nil {
		return errors.PersistenceError("encode category results", err)
	}
	recommendations, err := json.Marshal(a.Recommendations)
	if err != nil {
		return errors.PersistenceError("encode recommendations", err)
	}
	unavailable, err := json.Marshal(a.UnavailableCategories)
	if err != nil {
		return errors.PersistenceError("encode unavailable categories", err)
	}

	var overallScore interface{}
	if a.OverallScore != nil {
		overallScore = *a.OverallScore
	}
	var startedAt interface{}
	if a.StartedAt != nil {
		startedAt = a.StartedAt.UTC().Format(time.RFC3339)
	}

	query := `UPDATE assessments SET status = ?, overall_score = ?, started_at = COALESCE(?, started_at),
		completed_at = ?, error_message = ?, category_results = ?, recommendations = ?,
		unavailable_categories = ?, resources_analyzed = ?, issues_found = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(a.Status), overallScore, startedAt,
		completedAt.UTC().Format(time.RFC3339), a.ErrorMessage,
		string(categoryResults), string(recommendations), string(unavailable),
		a.ResourcesAnalyzed, a.IssuesFound, a.ID)
	if err != nil {
		return errors.PersistenceError("update assessment result", err)
	}
	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return errors.NotFound("Assessment")
	}
	metrics.RecordDBQuery("update", "assessments", time.Since(start))
	return nil
}

func (r *AssessmentRepository) CreateFindings(ctx context.Context, findings []assessment.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.PersistenceError("begin findings transaction", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO findings
		(id, assessment_id, category, resource_id, resource_name, resource_type, severity, issue, recommendation, estimated_effort, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return errors.PersistenceError("prepare findings insert", err)
	}
	defer stmt.Close()

	for _, f := range findings {
		_, err := stmt.ExecContext(ctx,
			f.ID, f.AssessmentID, string(f.Category), f.ResourceID, f.ResourceName, f.ResourceType,
			string(f.Severity), f.Issue, f.Recommendation, f.EstimatedEffort, string(f.Status),
			f.CreatedAt.Format(time.RFC3339))
		if err != nil {
			tx.Rollback()
			return errors.PersistenceError("insert finding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.PersistenceError("commit findings", err)
	}
	metrics.RecordDBQuery("insert", "findings", time.Since(start))
	return nil
}

func (r *AssessmentRepository) GetFindingsByAssessment(ctx context.Context, assessmentID string) ([]assessment.Finding, error) {
	start := time.Now()
	query := `SELECT id, assessment_id, category, resource_id, resource_name, resource_type, severity, issue, recommendation, estimated_effort, status, created_at
		FROM findings WHERE assessment_id = ?
		ORDER BY CASE severity
			WHEN 'critical' THEN 0
			WHEN 'high' THEN 1
			WHEN 'medium' THEN 2
			WHEN 'low' THEN 3
			ELSE 4 END, category, id`

	rows, err := r.db.QueryContext(ctx, query, assessmentID)
	if err != nil {
		return nil, errors.PersistenceError("list findings", err)
	}
	defer rows.Close()

	var findings []assessment.Finding
	for rows.Next() {
		var f assessment.Finding
		var category, severity, status, createdAt string
		if err := rows.Scan(&f.ID, &f.AssessmentID, &category, &f.ResourceID, &f.ResourceName, &f.ResourceType,
			&severity, &f.Issue, &f.Recommendation, &f.EstimatedEffort, &status, &createdAt); err != nil {
			return nil, errors.PersistenceError("scan finding", err)
		}
		f.Category = assessment.Category(category)
		f.Severity = assessment.Severity(severity)
		f.Status = assessment.FindingStatus(status)
		f.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.PersistenceError("iterate findings", err)
	}
	metrics.RecordDBQuery("select", "findings", time.Since(start))
	return findings, nil
}

func (r *AssessmentRepository) GetPendingAssessments(ctx context.Context) ([]*assessment.Assessment, error) {
	start := time.Now()
	query := `SELECT id, customer_id, environment_id, type, status, subscription_ids, options, created_at
		FROM assessments WHERE status = ? ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, string(assessment.StatusPending))
	if err != nil {
		return nil, errors.PersistenceError("list pending assessments", err)
	}
	defer rows.Close()

	var out []*assessment.Assessment
	for rows.Next() {
		var a assessment.Assessment
		var atype, status, subs, options, createdAt string
		if err := rows.Scan(&a.ID, &a.CustomerID, &a.EnvironmentID, &atype, &status, &subs, &options, &createdAt); err != nil {
			return nil, errors.PersistenceError("scan pending assessment", err)
		}
		a.Type = assessment.Type(atype)
		a.Status = assessment.Status(status)
		if err := json.Unmarshal([]byte(subs), &a.SubscriptionIDs); err != nil {
			return nil, errors.PersistenceError("decode subscription ids", err)
		}
		if options != "" {
			if err := json.Unmarshal([]byte(options), &a.Options); err != nil {
				return nil, errors.PersistenceError("decode request options", err)
			}
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.PersistenceError("iterate pending assessments", err)
	}
	metrics.RecordDBQuery("select", "assessments", time.Since(start))
	return out, nil
}

// parseTime converts a nullable RFC3339 column into a *time.Time.
func parseTime(v sql.NullString) (*time.Time, bool) {
	if !v.Valid || v.String == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil, false
	}
	return &t, true
}
