package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"ppkgen/internal/core"
)

const generationCols = `id, organization_id, period_year, period_month, generated_at, file_path,
	total_employee_basic, total_employee_additional, total_employer_basic, total_employer_additional,
	member_count`

func scanGeneration(row interface{ Scan(...any) error }) (core.Generation, error) {
	var g core.Generation
	err := row.Scan(&g.ID, &g.OrganizationID, &g.PeriodYear, &g.PeriodMonth,
		&g.GeneratedAt, &g.FilePath,
		&g.TotalEmployeeBasic, &g.TotalEmployeeAdditional,
		&g.TotalEmployerBasic, &g.TotalEmployerAdditional,
		&g.MemberCount)
	return g, err
}

// ListGenerations returns the organization's generations newest first.
func (r *Repository) ListGenerations(ctx context.Context, organizationID int64) ([]core.Generation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+generationCols+" FROM generations WHERE organization_id = ? ORDER BY id DESC",
		organizationID)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	gens := []core.Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

func (r *Repository) GetGeneration(ctx context.Context, id int64) (core.GenerationWithSnapshot, error) {
	var g core.GenerationWithSnapshot
	err := r.db.QueryRowContext(ctx,
		`SELECT `+generationCols+`, snapshot_json FROM generations WHERE id = ?`, id).
		Scan(&g.ID, &g.OrganizationID, &g.PeriodYear, &g.PeriodMonth,
			&g.GeneratedAt, &g.FilePath,
			&g.TotalEmployeeBasic, &g.TotalEmployeeAdditional,
			&g.TotalEmployerBasic, &g.TotalEmployerAdditional,
			&g.MemberCount, &g.SnapshotJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return core.GenerationWithSnapshot{}, fmt.Errorf("generation %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.GenerationWithSnapshot{}, fmt.Errorf("get generation: %w", err)
	}
	return g, nil
}

// InsertGeneration persists a new immutable snapshot. It never touches
// earlier generations for the same period.
func (r *Repository) InsertGeneration(ctx context.Context, g core.Generation, snapshotJSON string) (core.Generation, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO generations (organization_id, period_year, period_month, file_path,
		     total_employee_basic, total_employee_additional,
		     total_employer_basic, total_employer_additional,
		     member_count, snapshot_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.OrganizationID, g.PeriodYear, g.PeriodMonth, g.FilePath,
		g.TotalEmployeeBasic, g.TotalEmployeeAdditional,
		g.TotalEmployerBasic, g.TotalEmployerAdditional,
		g.MemberCount, snapshotJSON)
	if err != nil {
		return core.Generation{}, fmt.Errorf("insert generation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Generation{}, fmt.Errorf("generation insert id: %w", err)
	}

	slog.InfoContext(ctx, "Generation stored",
		"id", id,
		"organization_id", g.OrganizationID,
		"period", core.Period{Year: g.PeriodYear, Month: g.PeriodMonth}.String(),
		"member_count", g.MemberCount)

	stored, err := r.GetGeneration(ctx, id)
	if err != nil {
		return core.Generation{}, err
	}
	return stored.Generation, nil
}
