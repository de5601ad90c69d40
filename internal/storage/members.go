package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"ppkgen/internal/core"
)

const memberCols = "id, organization_id, pesel, first_name, second_name, last_name, gender, date_of_birth, citizenship, doc_type, doc_number, status, created_at, updated_at"

func scanMember(row interface{ Scan(...any) error }) (core.Member, error) {
	var m core.Member
	err := row.Scan(&m.ID, &m.OrganizationID, &m.PESEL, &m.FirstName, &m.SecondName,
		&m.LastName, &m.Gender, &m.DateOfBirth, &m.Citizenship, &m.DocType,
		&m.DocNumber, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *Repository) queryMembers(ctx context.Context, query string, args ...any) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []core.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListMembers returns all members of one organization; there is no
// unscoped member listing.
func (r *Repository) ListMembers(ctx context.Context, organizationID int64) ([]core.Member, error) {
	return r.queryMembers(ctx,
		"SELECT "+memberCols+" FROM members WHERE organization_id = ? ORDER BY last_name, first_name",
		organizationID)
}

func (r *Repository) ListActiveMembers(ctx context.Context, organizationID int64) ([]core.Member, error) {
	return r.queryMembers(ctx,
		"SELECT "+memberCols+" FROM members WHERE organization_id = ? AND status = ? ORDER BY last_name, first_name",
		organizationID, core.StatusActive)
}

func (r *Repository) GetMember(ctx context.Context, id int64) (core.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx,
		"SELECT "+memberCols+" FROM members WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, fmt.Errorf("member %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// CreateMember inserts an enrolled member. Gender and date of birth are
// the values decoded from the PESEL by the caller.
func (r *Repository) CreateMember(ctx context.Context, data core.CreateMember, gender, dateOfBirth string) (core.Member, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO members (organization_id, pesel, first_name, second_name, last_name,
		                      gender, date_of_birth, citizenship, doc_type, doc_number)
		 VALUES (?, ?, ?, COALESCE(?, ''), ?, ?, ?, COALESCE(?, 'PL'), COALESCE(?, ''), COALESCE(?, ''))`,
		data.OrganizationID, data.PESEL, data.FirstName, data.SecondName, data.LastName,
		gender, dateOfBirth, data.Citizenship, data.DocType, data.DocNumber)
	if err != nil {
		return core.Member{}, fmt.Errorf("create member: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Member{}, fmt.Errorf("member insert id: %w", err)
	}

	slog.InfoContext(ctx, "Member created",
		"id", id,
		"organization_id", data.OrganizationID,
		"last_name", data.LastName)
	return r.GetMember(ctx, id)
}

// UpdateMember applies a patch; nil fields keep their stored value.
// Immutable fields are rejected upstream, before this runs.
func (r *Repository) UpdateMember(ctx context.Context, id int64, data core.UpdateMember) (core.Member, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE members SET
		     first_name = COALESCE(?, first_name),
		     second_name = COALESCE(?, second_name),
		     last_name = COALESCE(?, last_name),
		     citizenship = COALESCE(?, citizenship),
		     doc_type = COALESCE(?, doc_type),
		     doc_number = COALESCE(?, doc_number),
		     status = COALESCE(?, status),
		     updated_at = datetime('now')
		 WHERE id = ?`,
		data.FirstName, data.SecondName, data.LastName, data.Citizenship,
		data.DocType, data.DocNumber, data.Status, id)
	if err != nil {
		return core.Member{}, fmt.Errorf("update member: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.Member{}, fmt.Errorf("update member rows: %w", err)
	}
	if affected == 0 {
		return core.Member{}, fmt.Errorf("member %d: %w", id, core.ErrNotFound)
	}

	return r.GetMember(ctx, id)
}

// DeleteMember removes the member and, via cascade, its contributions.
func (r *Repository) DeleteMember(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete member: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM members WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete member rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member %d: %w", id, core.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete member: %w", err)
	}

	slog.InfoContext(ctx, "Member deleted with contributions", "id", id)
	return nil
}
