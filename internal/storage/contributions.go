package storage

import (
	"context"
	"fmt"
	"log/slog"

	"ppkgen/internal/core"
)

const contributionRowCols = `c.id, c.member_id, c.period_year, c.period_month,
	c.employee_basic, c.employee_additional, c.employer_basic, c.employer_additional,
	c.reduced_basic_flag, c.source, c.updated_at,
	m.pesel, m.first_name, m.second_name, m.last_name, m.gender, m.date_of_birth,
	m.citizenship, m.doc_type, m.doc_number, m.status`

func (r *Repository) queryContributionRows(ctx context.Context, query string, args ...any) ([]core.ContributionRow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	defer rows.Close()

	result := []core.ContributionRow{}
	for rows.Next() {
		var c core.ContributionRow
		err := rows.Scan(&c.ID, &c.MemberID, &c.PeriodYear, &c.PeriodMonth,
			&c.EmployeeBasic, &c.EmployeeAdditional, &c.EmployerBasic, &c.EmployerAdditional,
			&c.ReducedBasicFlag, &c.Source, &c.UpdatedAt,
			&c.PESEL, &c.FirstName, &c.SecondName, &c.LastName, &c.Gender, &c.DateOfBirth,
			&c.Citizenship, &c.DocType, &c.DocNumber, &c.MemberStatus)
		if err != nil {
			return nil, fmt.Errorf("scan contribution row: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// ListContributions returns the joined contribution+member view for one
// organization and period, ordered by member name.
func (r *Repository) ListContributions(ctx context.Context, organizationID int64, period core.Period) ([]core.ContributionRow, error) {
	return r.queryContributionRows(ctx,
		`SELECT `+contributionRowCols+`
		 FROM contributions c
		 JOIN members m ON c.member_id = m.id
		 WHERE m.organization_id = ? AND c.period_year = ? AND c.period_month = ?
		 ORDER BY m.last_name, m.first_name`,
		organizationID, period.Year, period.Month)
}

// ListActiveContributions is ListContributions restricted to members with
// status active; resigned members are excluded even when a row exists.
func (r *Repository) ListActiveContributions(ctx context.Context, organizationID int64, period core.Period) ([]core.ContributionRow, error) {
	return r.queryContributionRows(ctx,
		`SELECT `+contributionRowCols+`
		 FROM contributions c
		 JOIN members m ON c.member_id = m.id
		 WHERE m.organization_id = ? AND c.period_year = ? AND c.period_month = ?
		   AND m.status = ?
		 ORDER BY m.last_name, m.first_name`,
		organizationID, period.Year, period.Month, core.StatusActive)
}

// UpsertContribution inserts or updates the single row keyed on
// (member, period). Absent fields keep the stored value on update and
// default to zero / "N" on insert; provenance is always forced to manual.
func (r *Repository) UpsertContribution(ctx context.Context, data core.UpsertContribution) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contributions (member_id, period_year, period_month,
		     employee_basic, employee_additional, employer_basic, employer_additional,
		     reduced_basic_flag, source)
		 VALUES (?1, ?2, ?3,
		     COALESCE(?4, '0.00'), COALESCE(?5, '0.00'), COALESCE(?6, '0.00'), COALESCE(?7, '0.00'),
		     COALESCE(?8, 'N'), 'manual')
		 ON CONFLICT(member_id, period_year, period_month)
		 DO UPDATE SET
		     employee_basic = COALESCE(?4, employee_basic),
		     employee_additional = COALESCE(?5, employee_additional),
		     employer_basic = COALESCE(?6, employer_basic),
		     employer_additional = COALESCE(?7, employer_additional),
		     reduced_basic_flag = COALESCE(?8, reduced_basic_flag),
		     source = 'manual',
		     updated_at = datetime('now')`,
		data.MemberID, data.PeriodYear, data.PeriodMonth,
		data.EmployeeBasic, data.EmployeeAdditional, data.EmployerBasic, data.EmployerAdditional,
		data.ReducedBasicFlag)
	if err != nil {
		return fmt.Errorf("upsert contribution: %w", err)
	}
	return nil
}

// PrefillContributions seeds the target period for every active member of
// the organization that has no row for it yet: figures are copied from
// the immediately preceding period when present, otherwise a zero-valued
// row is created. Both inserts run in one transaction. Members already
// holding a target-period row are never touched, so repeated runs do not
// overwrite manual edits.
func (r *Repository) PrefillContributions(ctx context.Context, organizationID int64, target core.Period) (int64, error) {
	prev := target.Previous()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prefill: %w", err)
	}
	defer tx.Rollback()

	copied, err := tx.ExecContext(ctx,
		`INSERT INTO contributions (member_id, period_year, period_month,
		     employee_basic, employee_additional, employer_basic, employer_additional,
		     reduced_basic_flag, source)
		 SELECT m.id, ?2, ?3,
		        p.employee_basic, p.employee_additional, p.employer_basic, p.employer_additional,
		        p.reduced_basic_flag, 'prefill'
		 FROM members m
		 JOIN contributions p ON p.member_id = m.id
		      AND p.period_year = ?4 AND p.period_month = ?5
		 WHERE m.organization_id = ?1
		   AND m.status = 'active'
		   AND NOT EXISTS (
		       SELECT 1 FROM contributions c
		       WHERE c.member_id = m.id AND c.period_year = ?2 AND c.period_month = ?3
		   )`,
		organizationID, target.Year, target.Month, prev.Year, prev.Month)
	if err != nil {
		return 0, fmt.Errorf("prefill copy from previous period: %w", err)
	}

	zeroed, err := tx.ExecContext(ctx,
		`INSERT INTO contributions (member_id, period_year, period_month,
		     employee_basic, employee_additional, employer_basic, employer_additional,
		     reduced_basic_flag, source)
		 SELECT m.id, ?2, ?3, '0.00', '0.00', '0.00', '0.00', 'N', 'prefill'
		 FROM members m
		 WHERE m.organization_id = ?1
		   AND m.status = 'active'
		   AND NOT EXISTS (
		       SELECT 1 FROM contributions c
		       WHERE c.member_id = m.id AND c.period_year = ?2 AND c.period_month = ?3
		   )
		   AND NOT EXISTS (
		       SELECT 1 FROM contributions p
		       WHERE p.member_id = m.id AND p.period_year = ?4 AND p.period_month = ?5
		   )`,
		organizationID, target.Year, target.Month, prev.Year, prev.Month)
	if err != nil {
		return 0, fmt.Errorf("prefill zero rows: %w", err)
	}

	copiedN, err := copied.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prefill copied rows: %w", err)
	}
	zeroedN, err := zeroed.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prefill zeroed rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prefill: %w", err)
	}

	slog.InfoContext(ctx, "Contributions prefilled",
		"organization_id", organizationID,
		"period", target.String(),
		"copied", copiedN,
		"zeroed", zeroedN)

	return copiedN + zeroedN, nil
}

// ListPeriods returns every period that has any contribution or any
// generation for the organization, newest first.
func (r *Repository) ListPeriods(ctx context.Context, organizationID int64) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT period_year, period_month FROM (
		     SELECT DISTINCT c.period_year AS period_year, c.period_month AS period_month
		     FROM contributions c
		     JOIN members m ON c.member_id = m.id
		     WHERE m.organization_id = ?1
		     UNION
		     SELECT DISTINCT g.period_year, g.period_month
		     FROM generations g
		     WHERE g.organization_id = ?1
		 )
		 ORDER BY period_year DESC, period_month DESC`,
		organizationID)
	if err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	defer rows.Close()

	periods := []core.Period{}
	for rows.Next() {
		var p core.Period
		if err := rows.Scan(&p.Year, &p.Month); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}
