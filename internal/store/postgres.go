package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const companyColumns = `id, name, industry, listed, credit_grade, standalone_pd, created_at, updated_at`

func (s *PostgresStore) CreateCompany(ctx context.Context, c *Company) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO companies (name, industry, listed, credit_grade, standalone_pd)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		c.Name, c.Industry, c.Listed, c.CreditGrade, c.StandalonePD,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func scanCompany(row pgx.Row) (*Company, error) {
	c := &Company{}
	var industry, creditGrade sql.NullString
	err := row.Scan(
		&c.ID, &c.Name, &industry, &c.Listed, &creditGrade, &c.StandalonePD,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if industry.Valid {
		c.Industry = industry.String
	}
	if creditGrade.Valid {
		c.CreditGrade = creditGrade.String
	}
	return c, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id uuid.UUID) (*Company, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
	c, err := scanCompany(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]*Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Listed != nil {
		n++
		query += fmt.Sprintf(" AND listed = $%d", n)
		args = append(args, *filter.Listed)
	}
	if filter.Industry != "" {
		n++
		query += fmt.Sprintf(" AND industry = $%d", n)
		args = append(args, filter.Industry)
	}

	query += " ORDER BY name ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 500
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

	var out []*Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Channel metric rows ---

func (s *PostgresStore) UpsertTransactionMetrics(ctx context.Context, m *TransactionMetrics) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO transaction_metrics (company_id, period, limit_utilization, payment_delay_days, deposit_outflow_rate, overdraft_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, period) DO UPDATE SET
			limit_utilization = EXCLUDED.limit_utilization,
			payment_delay_days = EXCLUDED.payment_delay_days,
			deposit_outflow_rate = EXCLUDED.deposit_outflow_rate,
			overdraft_count = EXCLUDED.overdraft_count
		RETURNING created_at`,
		m.CompanyID, m.Period, m.LimitUtilization, m.PaymentDelayDays, m.DepositOutflow, m.OverdraftCount,
	).Scan(&m.CreatedAt)
}

func (s *PostgresStore) GetTransactionMetrics(ctx context.Context, companyID uuid.UUID, period string) (*TransactionMetrics, error) {
	m := &TransactionMetrics{}
	err := s.pool.QueryRow(ctx, `
		SELECT company_id, period, limit_utilization, payment_delay_days, deposit_outflow_rate, overdraft_count, created_at
		FROM transaction_metrics WHERE company_id = $1 AND period = $2`, companyID, period,
	).Scan(&m.CompanyID, &m.Period, &m.LimitUtilization, &m.PaymentDelayDays, &m.DepositOutflow, &m.OverdraftCount, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) UpsertRegistryMetrics(ctx context.Context, m *RegistryMetrics) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO registry_metrics (company_id, period, unresolved_total, unresolved_severe)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, period) DO UPDATE SET
			unresolved_total = EXCLUDED.unresolved_total,
			unresolved_severe = EXCLUDED.unresolved_severe
		RETURNING created_at`,
		m.CompanyID, m.Period, m.UnresolvedTotal, m.UnresolvedSevere,
	).Scan(&m.CreatedAt)
}

func (s *PostgresStore) GetRegistryMetrics(ctx context.Context, companyID uuid.UUID, period string) (*RegistryMetrics, error) {
	m := &RegistryMetrics{}
	err := s.pool.QueryRow(ctx, `
		SELECT company_id, period, unresolved_total, unresolved_severe, created_at
		FROM registry_metrics WHERE company_id = $1 AND period = $2`, companyID, period,
	).Scan(&m.CompanyID, &m.Period, &m.UnresolvedTotal, &m.UnresolvedSevere, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) UpsertMarketMetrics(ctx context.Context, m *MarketMetrics) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO market_metrics (company_id, period, distance_to_default, asset_value, liabilities,
			expected_return, asset_volatility, horizon_years, cds_spread_bps, implied_pd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (company_id, period) DO UPDATE SET
			distance_to_default = EXCLUDED.distance_to_default,
			asset_value = EXCLUDED.asset_value,
			liabilities = EXCLUDED.liabilities,
			expected_return = EXCLUDED.expected_return,
			asset_volatility = EXCLUDED.asset_volatility,
			horizon_years = EXCLUDED.horizon_years,
			cds_spread_bps = EXCLUDED.cds_spread_bps,
			implied_pd = EXCLUDED.implied_pd
		RETURNING created_at`,
		m.CompanyID, m.Period, m.DistanceToDefault, m.AssetValue, m.Liabilities,
		m.ExpectedReturn, m.AssetVolatility, m.HorizonYears, m.CDSSpreadBps, m.ImpliedPD,
	).Scan(&m.CreatedAt)
}

func (s *PostgresStore) GetMarketMetrics(ctx context.Context, companyID uuid.UUID, period string) (*MarketMetrics, error) {
	m := &MarketMetrics{}
	err := s.pool.QueryRow(ctx, `
		SELECT company_id, period, distance_to_default, asset_value, liabilities,
			expected_return, asset_volatility, horizon_years, cds_spread_bps, implied_pd, created_at
		FROM market_metrics WHERE company_id = $1 AND period = $2`, companyID, period,
	).Scan(&m.CompanyID, &m.Period, &m.DistanceToDefault, &m.AssetValue, &m.Liabilities,
		&m.ExpectedReturn, &m.AssetVolatility, &m.HorizonYears, &m.CDSSpreadBps, &m.ImpliedPD, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) UpsertNewsMetrics(ctx context.Context, m *NewsMetrics) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO news_metrics (company_id, period, avg_sentiment, negative_ratio, article_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, period) DO UPDATE SET
			avg_sentiment = EXCLUDED.avg_sentiment,
			negative_ratio = EXCLUDED.negative_ratio,
			article_count = EXCLUDED.article_count
		RETURNING created_at`,
		m.CompanyID, m.Period, m.AvgSentiment, m.NegativeRatio, m.ArticleCount,
	).Scan(&m.CreatedAt)
}

func (s *PostgresStore) GetNewsMetrics(ctx context.Context, companyID uuid.UUID, period string) (*NewsMetrics, error) {
	m := &NewsMetrics{}
	err := s.pool.QueryRow(ctx, `
		SELECT company_id, period, avg_sentiment, negative_ratio, article_count, created_at
		FROM news_metrics WHERE company_id = $1 AND period = $2`, companyID, period,
	).Scan(&m.CompanyID, &m.Period, &m.AvgSentiment, &m.NegativeRatio, &m.ArticleCount, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PostgresStore) UpsertFinancialMetrics(ctx context.Context, m *FinancialMetrics) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO financial_metrics (company_id, period, leverage_z, liquidity_z, interest_coverage_z, operating_margin_z, asset_turnover_z)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id, period) DO UPDATE SET
			leverage_z = EXCLUDED.leverage_z,
			liquidity_z = EXCLUDED.liquidity_z,
			interest_coverage_z = EXCLUDED.interest_coverage_z,
			operating_margin_z = EXCLUDED.operating_margin_z,
			asset_turnover_z = EXCLUDED.asset_turnover_z
		RETURNING created_at`,
		m.CompanyID, m.Period, m.Leverage, m.Liquidity, m.InterestCoverage, m.OperatingMargin, m.AssetTurnover,
	).Scan(&m.CreatedAt)
}

func (s *PostgresStore) GetFinancialMetrics(ctx context.Context, companyID uuid.UUID, period string) (*FinancialMetrics, error) {
	m := &FinancialMetrics{}
	err := s.pool.QueryRow(ctx, `
		SELECT company_id, period, leverage_z, liquidity_z, interest_coverage_z, operating_margin_z, asset_turnover_z, created_at
		FROM financial_metrics WHERE company_id = $1 AND period = $2`, companyID, period,
	).Scan(&m.CompanyID, &m.Period, &m.Leverage, &m.Liquidity, &m.InterestCoverage, &m.OperatingMargin, &m.AssetTurnover, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// --- Supply-chain edges ---

func (s *PostgresStore) CreateSupplyChainEdge(ctx context.Context, e *SupplyChainEdge) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO supply_chain_edges (company_id, partner_id, dependency_ratio, payment_status, period)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (company_id, partner_id, period) DO UPDATE SET
			dependency_ratio = EXCLUDED.dependency_ratio,
			payment_status = EXCLUDED.payment_status
		RETURNING id, created_at`,
		e.CompanyID, e.PartnerID, e.DependencyRatio, e.PaymentStatus, e.Period,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *PostgresStore) ListSupplyChainEdges(ctx context.Context, period string) ([]*SupplyChainEdge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, partner_id, dependency_ratio, payment_status, period, created_at
		FROM supply_chain_edges WHERE period = $1
		ORDER BY created_at ASC`, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SupplyChainEdge
	for rows.Next() {
		e := &SupplyChainEdge{}
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.PartnerID, &e.DependencyRatio, &e.PaymentStatus, &e.Period, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
