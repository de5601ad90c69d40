package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"ppkgen/internal/core"
)

const organizationCols = "id, name, nip, regon, contact_person, created_at, updated_at"

func scanOrganization(row interface{ Scan(...any) error }) (core.Organization, error) {
	var o core.Organization
	err := row.Scan(&o.ID, &o.Name, &o.NIP, &o.REGON, &o.ContactPerson, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *Repository) ListOrganizations(ctx context.Context) ([]core.Organization, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+organizationCols+" FROM organizations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	orgs := []core.Organization{}
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (r *Repository) GetOrganization(ctx context.Context, id int64) (core.Organization, error) {
	o, err := scanOrganization(r.db.QueryRowContext(ctx,
		"SELECT "+organizationCols+" FROM organizations WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Organization{}, fmt.Errorf("organization %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Organization{}, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

func (r *Repository) CreateOrganization(ctx context.Context, data core.CreateOrganization) (core.Organization, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO organizations (name, nip, regon, contact_person) VALUES (?, ?, ?, ?)",
		data.Name, data.NIP, data.REGON, data.ContactPerson)
	if err != nil {
		return core.Organization{}, fmt.Errorf("create organization: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Organization{}, fmt.Errorf("organization insert id: %w", err)
	}

	slog.InfoContext(ctx, "Organization created", "id", id, "name", data.Name)
	return r.GetOrganization(ctx, id)
}

func (r *Repository) UpdateOrganization(ctx context.Context, id int64, data core.UpdateOrganization) (core.Organization, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE organizations
		 SET name = ?, nip = ?, regon = ?, contact_person = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		data.Name, data.NIP, data.REGON, data.ContactPerson, id)
	if err != nil {
		return core.Organization{}, fmt.Errorf("update organization: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return core.Organization{}, fmt.Errorf("update organization rows: %w", err)
	}
	if affected == 0 {
		return core.Organization{}, fmt.Errorf("organization %d: %w", id, core.ErrNotFound)
	}

	return r.GetOrganization(ctx, id)
}

// DeleteOrganization removes the organization with all its members, their
// contributions and its generations as one atomic unit.
func (r *Repository) DeleteOrganization(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete organization: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM organizations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete organization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete organization rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("organization %d: %w", id, core.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete organization: %w", err)
	}

	slog.InfoContext(ctx, "Organization deleted with cascade", "id", id)
	return nil
}
