package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Meridian-Analytics/Beacon/internal/scoring"
)

const scoreRecordColumns = `id, company_id, run_id, period,
	composite_score, grade, risk_level, trend,
	predicted_default_prob, recommendation, renormalized,
	channels, warnings, created_at`

// encodeChannels and decodeChannels carry the channel breakdown through
// the JSONB column. Round-tripping must preserve every contribution
// exactly, so scores reload bit-identical for trend computation.
func encodeChannels(channels []scoring.ChannelResult) ([]byte, error) {
	return json.Marshal(channels)
}

func decodeChannels(data []byte) ([]scoring.ChannelResult, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out []scoring.ChannelResult
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode channel breakdown: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateScoreRecord(ctx context.Context, r *ScoreRecord) error {
	channelsJSON, err := encodeChannels(r.Channels)
	if err != nil {
		return fmt.Errorf("encode channel breakdown: %w", err)
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO score_records (company_id, run_id, period,
			composite_score, grade, risk_level, trend,
			predicted_default_prob, recommendation, renormalized,
			channels, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		r.CompanyID, r.RunID, r.Period,
		r.Composite, r.Grade, r.RiskLevel, r.Trend,
		r.PredictedPD, r.Recommendation, r.Renormalized,
		channelsJSON, r.Warnings,
	).Scan(&r.ID, &r.CreatedAt)
}

func scanScoreRecord(row pgx.Row) (*ScoreRecord, error) {
	r := &ScoreRecord{}
	var recommendation sql.NullString
	var channelsJSON []byte
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.RunID, &r.Period,
		&r.Composite, &r.Grade, &r.RiskLevel, &r.Trend,
		&r.PredictedPD, &recommendation, &r.Renormalized,
		&channelsJSON, &r.Warnings, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if recommendation.Valid {
		r.Recommendation = recommendation.String
	}
	r.Channels, err = decodeChannels(channelsJSON)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func scanScoreRecords(rows pgx.Rows) ([]*ScoreRecord, error) {
	var out []*ScoreRecord
	for rows.Next() {
		r, err := scanScoreRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetLatestScoreRecord(ctx context.Context, companyID uuid.UUID) (*ScoreRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+scoreRecordColumns+`
		FROM score_records WHERE company_id = $1
		ORDER BY period DESC, created_at DESC
		LIMIT 1`, companyID)
	r, err := scanScoreRecord(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetLatestScoreBefore returns the newest record strictly older than the
// given period, the prior observation the trend compares against.
func (s *PostgresStore) GetLatestScoreBefore(ctx context.Context, companyID uuid.UUID, period string) (*ScoreRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+scoreRecordColumns+`
		FROM score_records WHERE company_id = $1 AND period < $2
		ORDER BY period DESC, created_at DESC
		LIMIT 1`, companyID, period)
	r, err := scanScoreRecord(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListScoreHistory(ctx context.Context, companyID uuid.UUID, limit int) ([]*ScoreRecord, error) {
	if limit <= 0 {
		limit = 24
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+scoreRecordColumns+`
		FROM score_records WHERE company_id = $1
		ORDER BY period DESC, created_at DESC
		LIMIT $2`, companyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoreRecords(rows)
}

// ListLatestScores returns the newest record per company, riskiest first.
func (s *PostgresStore) ListLatestScores(ctx context.Context) ([]*ScoreRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (company_id) `+scoreRecordColumns+`
		FROM score_records
		ORDER BY company_id, period DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records, err := scanScoreRecords(rows)
	if err != nil {
		return nil, err
	}
	sortByComposite(records)
	return records, nil
}

// Watchlist returns companies whose latest grade is WARNING or CRITICAL,
// ascending by composite score.
func (s *PostgresStore) Watchlist(ctx context.Context, limit int) ([]*ScoreRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+scoreRecordColumns+` FROM (
			SELECT DISTINCT ON (company_id) `+scoreRecordColumns+`
			FROM score_records
			ORDER BY company_id, period DESC, created_at DESC
		) latest
		WHERE grade IN ('WARNING', 'CRITICAL')
		ORDER BY composite_score ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoreRecords(rows)
}

// sortByComposite orders records riskiest first, breaking composite ties
// by company ID for a stable listing.
func sortByComposite(records []*ScoreRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Composite != records[j].Composite {
			return records[i].Composite < records[j].Composite
		}
		return records[i].CompanyID.String() < records[j].CompanyID.String()
	})
}

// --- Scoring runs ---

const scoringRunColumns = `id, period, status, started_at, completed_at,
	companies_scored, companies_failed,
	propagation_converged, propagation_iterations, error`

func (s *PostgresStore) CreateScoringRun(ctx context.Context, run *ScoringRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scoring_runs (id, period, status, started_at,
			companies_scored, companies_failed,
			propagation_converged, propagation_iterations, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.Period, run.Status, run.StartedAt,
		run.CompaniesScored, run.CompaniesFailed,
		run.PropagationConverged, run.PropagationIterations, run.Error,
	)
	return err
}

func (s *PostgresStore) UpdateScoringRun(ctx context.Context, run *ScoringRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE scoring_runs SET
			status = $2, completed_at = $3,
			companies_scored = $4, companies_failed = $5,
			propagation_converged = $6, propagation_iterations = $7, error = $8
		WHERE id = $1`,
		run.ID, run.Status, run.CompletedAt,
		run.CompaniesScored, run.CompaniesFailed,
		run.PropagationConverged, run.PropagationIterations, run.Error,
	)
	return err
}

func scanScoringRun(row pgx.Row) (*ScoringRun, error) {
	run := &ScoringRun{}
	var runError sql.NullString
	err := row.Scan(
		&run.ID, &run.Period, &run.Status, &run.StartedAt, &run.CompletedAt,
		&run.CompaniesScored, &run.CompaniesFailed,
		&run.PropagationConverged, &run.PropagationIterations, &runError,
	)
	if err != nil {
		return nil, err
	}
	if runError.Valid {
		run.Error = runError.String
	}
	return run, nil
}

func (s *PostgresStore) GetScoringRun(ctx context.Context, id uuid.UUID) (*ScoringRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+scoringRunColumns+` FROM scoring_runs WHERE id = $1`, id)
	run, err := scanScoringRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *PostgresStore) ListScoringRuns(ctx context.Context, limit int) ([]*ScoringRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+scoringRunColumns+`
		FROM scoring_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScoringRun
	for rows.Next() {
		run, err := scanScoringRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// --- Alerts ---

const alertColumns = `id, company_id, run_id, period, channel, code, severity, message,
	value, threshold, acknowledged, acknowledged_by, acknowledged_at, created_at`

func (s *PostgresStore) CreateAlert(ctx context.Context, a *Alert) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO alerts (company_id, run_id, period, channel, code, severity, message, value, threshold)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		a.CompanyID, a.RunID, a.Period, a.Channel, a.Code, a.Severity, a.Message, a.Value, a.Threshold,
	).Scan(&a.ID, &a.CreatedAt)
}

func scanAlert(row pgx.Row) (*Alert, error) {
	a := &Alert{}
	var channel, ackBy sql.NullString
	err := row.Scan(
		&a.ID, &a.CompanyID, &a.RunID, &a.Period, &channel, &a.Code, &a.Severity, &a.Message,
		&a.Value, &a.Threshold, &a.Acknowledged, &ackBy, &a.AcknowledgedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if channel.Valid {
		a.Channel = channel.String
	}
	if ackBy.Valid {
		a.AcknowledgedBy = ackBy.String
	}
	return a, nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.CompanyID != nil {
		n++
		query += fmt.Sprintf(" AND company_id = $%d", n)
		args = append(args, *filter.CompanyID)
	}
	if filter.Severity != "" {
		n++
		query += fmt.Sprintf(" AND severity = $%d", n)
		args = append(args, filter.Severity)
	}
	if filter.Acknowledged != nil {
		n++
		query += fmt.Sprintf(" AND acknowledged = $%d", n)
		args = append(args, *filter.Acknowledged)
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, id uuid.UUID, by string) (*Alert, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE alerts SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = NOW()
		WHERE id = $1
		RETURNING `+alertColumns, id, by)
	a, err := scanAlert(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// --- Dashboard ---

func (s *PostgresStore) DashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	sum := &DashboardSummary{GradeCounts: make(map[string]int)}

	rows, err := s.pool.Query(ctx, `
		SELECT grade, trend, composite_score FROM (
			SELECT DISTINCT ON (company_id) grade, trend, composite_score
			FROM score_records
			ORDER BY company_id, period DESC, created_at DESC
		) latest`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	total := 0
	compositeSum := 0.0
	for rows.Next() {
		var grade, trend string
		var composite float64
		if err := rows.Scan(&grade, &trend, &composite); err != nil {
			return nil, err
		}
		total++
		compositeSum += composite
		sum.GradeCounts[grade]++
		if trend == string(scoring.TrendDeteriorating) {
			sum.Deteriorating++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sum.TotalCompanies = total
	if total > 0 {
		sum.AvgComposite = compositeSum / float64(total)
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE NOT acknowledged`).Scan(&sum.OpenAlerts); err != nil {
		return nil, err
	}

	runRow := s.pool.QueryRow(ctx, `
		SELECT `+scoringRunColumns+`
		FROM scoring_runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanScoringRun(runRow)
	if err != nil && err != pgx.ErrNoRows {
		return nil, err
	}
	if err == nil {
		sum.LastRun = run
	}
	return sum, nil
}
