// Package services implements the filing engine on top of the entity
// store: identifier-gated CRUD, the carry-forward prefill, and filing
// generation with exact-decimal totals.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ppkgen/internal/amqp"
	"ppkgen/internal/core"
	"ppkgen/internal/generator"
	"ppkgen/internal/storage"
	"ppkgen/internal/validation"
)

// FilingService orchestrates every engine operation. The AMQP client is
// optional; without it generation events are simply not announced.
type FilingService struct {
	store  *storage.Repository
	events *amqp.Client
}

func NewFilingService(store *storage.Repository, events *amqp.Client) *FilingService {
	return &FilingService{store: store, events: events}
}

// Close closes the store and the event channel.
func (s *FilingService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close filing service: %v", errs)
	}
	return nil
}

// --- Organizations ---

func (s *FilingService) ListOrganizations(ctx context.Context) ([]core.Organization, error) {
	return s.store.ListOrganizations(ctx)
}

func (s *FilingService) GetOrganization(ctx context.Context, id int64) (core.Organization, error) {
	return s.store.GetOrganization(ctx, id)
}

func (s *FilingService) CreateOrganization(ctx context.Context, data core.CreateOrganization) (core.Organization, error) {
	if err := validateOrganization(data); err != nil {
		return core.Organization{}, err
	}
	return s.store.CreateOrganization(ctx, data)
}

func (s *FilingService) UpdateOrganization(ctx context.Context, id int64, data core.UpdateOrganization) (core.Organization, error) {
	if err := validateOrganization(data); err != nil {
		return core.Organization{}, err
	}
	return s.store.UpdateOrganization(ctx, id, data)
}

func (s *FilingService) DeleteOrganization(ctx context.Context, id int64) error {
	return s.store.DeleteOrganization(ctx, id)
}

func validateOrganization(data core.CreateOrganization) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if err := validation.ValidateNip(data.NIP); err != nil {
		return core.Validationf("nip", "%v", err)
	}
	if err := validation.ValidateRegon(data.REGON); err != nil {
		return core.Validationf("regon", "%v", err)
	}
	return nil
}

// --- Members ---

func (s *FilingService) ListMembers(ctx context.Context, organizationID int64) ([]core.Member, error) {
	return s.store.ListMembers(ctx, organizationID)
}

func (s *FilingService) GetMember(ctx context.Context, id int64) (core.Member, error) {
	return s.store.GetMember(ctx, id)
}

// CreateMember enrolls a member. The PESEL must pass its checksum;
// gender and date of birth are decoded from it, never taken from the
// caller.
func (s *FilingService) CreateMember(ctx context.Context, data core.CreateMember) (core.Member, error) {
	if err := data.Validate(); err != nil {
		return core.Member{}, err
	}
	info, err := validation.ValidatePesel(data.PESEL)
	if err != nil {
		return core.Member{}, core.Validationf("pesel", "%v", err)
	}
	if _, err := s.store.GetOrganization(ctx, data.OrganizationID); err != nil {
		return core.Member{}, err
	}
	return s.store.CreateMember(ctx, data, info.Gender, info.DateOfBirth)
}

// UpdateMember applies a patch to the member's mutable fields. The PESEL
// and the owning organization are fixed at creation.
func (s *FilingService) UpdateMember(ctx context.Context, id int64, data core.UpdateMember) (core.Member, error) {
	if data.PESEL != nil {
		return core.Member{}, fmt.Errorf("pesel: %w", core.ErrImmutableField)
	}
	if data.OrganizationID != nil {
		return core.Member{}, fmt.Errorf("organization_id: %w", core.ErrImmutableField)
	}
	if data.Status != nil {
		if err := data.Status.Validate(); err != nil {
			return core.Member{}, err
		}
	}
	if data.FirstName != nil && *data.FirstName == "" {
		return core.Member{}, core.Validationf("first_name", "first name is required")
	}
	if data.LastName != nil && *data.LastName == "" {
		return core.Member{}, core.Validationf("last_name", "last name is required")
	}
	return s.store.UpdateMember(ctx, id, data)
}

func (s *FilingService) DeleteMember(ctx context.Context, id int64) error {
	return s.store.DeleteMember(ctx, id)
}

// PeselValidation is the live-feedback result for a PESEL entered in a
// form, before any record is written.
type PeselValidation struct {
	Valid       bool   `json:"valid"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (s *FilingService) ValidatePesel(pesel string) PeselValidation {
	info, err := validation.ValidatePesel(pesel)
	if err != nil {
		return PeselValidation{Valid: false, Error: err.Error()}
	}
	return PeselValidation{Valid: true, DateOfBirth: info.DateOfBirth, Gender: info.Gender}
}

// --- Contributions ---

func (s *FilingService) ListContributions(ctx context.Context, organizationID int64, period core.Period) ([]core.ContributionRow, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListContributions(ctx, organizationID, period)
}

// UpsertContribution writes the single row for (member, period). Absent
// fields keep their stored value; provenance becomes manual.
func (s *FilingService) UpsertContribution(ctx context.Context, data core.UpsertContribution) error {
	period := core.Period{Year: data.PeriodYear, Month: data.PeriodMonth}
	if err := period.Validate(); err != nil {
		return err
	}

	amounts := []struct {
		field string
		value *string
	}{
		{"employee_basic", data.EmployeeBasic},
		{"employee_additional", data.EmployeeAdditional},
		{"employer_basic", data.EmployerBasic},
		{"employer_additional", data.EmployerAdditional},
	}
	for _, a := range amounts {
		if a.value == nil {
			continue
		}
		if err := core.ValidateAmount(*a.value); err != nil {
			return core.Validationf(a.field, "%v", err)
		}
	}
	if data.ReducedBasicFlag != nil {
		if err := data.ReducedBasicFlag.Validate(); err != nil {
			return err
		}
	}

	if _, err := s.store.GetMember(ctx, data.MemberID); err != nil {
		return err
	}

	return s.store.UpsertContribution(ctx, data)
}

// PrefillContributions carries the previous period forward for every
// active member without a row for the target period, and returns how
// many rows were created. Safe to repeat: populated members are skipped.
func (s *FilingService) PrefillContributions(ctx context.Context, organizationID int64, period core.Period) (int64, error) {
	if err := period.Validate(); err != nil {
		return 0, err
	}
	if _, err := s.store.GetOrganization(ctx, organizationID); err != nil {
		return 0, err
	}
	return s.store.PrefillContributions(ctx, organizationID, period)
}

func (s *FilingService) AvailablePeriods(ctx context.Context, organizationID int64) ([]core.Period, error) {
	return s.store.ListPeriods(ctx, organizationID)
}

// --- Generations ---

// GenerateResult carries a stored generation together with the raw
// artifact bytes and the four aggregate totals.
type GenerateResult struct {
	Generation              core.Generation `json:"generation"`
	ZipBytes                []byte          `json:"zip_bytes"`
	TotalEmployeeBasic      string          `json:"total_employee_basic"`
	TotalEmployeeAdditional string          `json:"total_employee_additional"`
	TotalEmployerBasic      string          `json:"total_employer_basic"`
	TotalEmployerAdditional string          `json:"total_employer_additional"`
	MemberCount             int             `json:"member_count"`
}

// snapshot is the immutable data a generation was produced from.
type snapshot struct {
	Organization  core.Organization      `json:"organization"`
	Contributions []core.ContributionRow `json:"contributions"`
	Period        core.Period            `json:"period"`
}

// Generate aggregates the period's contributions of active members,
// builds the filing artifact and stores a new generation snapshot.
// Repeating it for the same period adds another independent generation;
// it never replaces an earlier one.
func (s *FilingService) Generate(ctx context.Context, organizationID int64, period core.Period) (GenerateResult, error) {
	if err := period.Validate(); err != nil {
		return GenerateResult{}, err
	}

	org, err := s.store.GetOrganization(ctx, organizationID)
	if err != nil {
		return GenerateResult{}, err
	}

	rows, err := s.store.ListActiveContributions(ctx, organizationID, period)
	if err != nil {
		return GenerateResult{}, err
	}
	if len(rows) == 0 {
		return GenerateResult{}, core.Validationf("period", "no contributions to generate for %s", period)
	}

	totals, err := sumContributionTotals(rows)
	if err != nil {
		return GenerateResult{}, err
	}

	now := time.Now()
	xml := generator.BuildXML(org, rows, period, now)
	csv := generator.BuildCSV(rows, period)
	archive, err := generator.BuildArchive(xml, csv, now)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("build archive: %w", err)
	}

	snap, err := json.Marshal(snapshot{Organization: org, Contributions: rows, Period: period})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	stored, err := s.store.InsertGeneration(ctx, core.Generation{
		OrganizationID:          organizationID,
		PeriodYear:              period.Year,
		PeriodMonth:             period.Month,
		FilePath:                archive.ZipFilename,
		TotalEmployeeBasic:      totals[0],
		TotalEmployeeAdditional: totals[1],
		TotalEmployerBasic:      totals[2],
		TotalEmployerAdditional: totals[3],
		MemberCount:             len(rows),
	}, string(snap))
	if err != nil {
		return GenerateResult{}, err
	}

	s.publishGenerationEvent(ctx, stored)

	return GenerateResult{
		Generation:              stored,
		ZipBytes:                archive.ZipBytes,
		TotalEmployeeBasic:      totals[0],
		TotalEmployeeAdditional: totals[1],
		TotalEmployerBasic:      totals[2],
		TotalEmployerAdditional: totals[3],
		MemberCount:             len(rows),
	}, nil
}

func (s *FilingService) ListGenerations(ctx context.Context, organizationID int64) ([]core.Generation, error) {
	return s.store.ListGenerations(ctx, organizationID)
}

func (s *FilingService) GetGeneration(ctx context.Context, id int64) (core.GenerationWithSnapshot, error) {
	return s.store.GetGeneration(ctx, id)
}

// ExportGeneration rebuilds the filing artifact of a stored generation
// from its snapshot, without touching current data.
func (s *FilingService) ExportGeneration(ctx context.Context, id int64) (GenerateResult, error) {
	gen, err := s.store.GetGeneration(ctx, id)
	if err != nil {
		return GenerateResult{}, err
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(gen.SnapshotJSON), &snap); err != nil {
		return GenerateResult{}, fmt.Errorf("parse generation snapshot: %w", err)
	}

	generatedAt := archiveTime(gen.FilePath, gen.GeneratedAt)

	xml := generator.BuildXML(snap.Organization, snap.Contributions, snap.Period, generatedAt)
	csv := generator.BuildCSV(snap.Contributions, snap.Period)
	archive, err := generator.BuildArchive(xml, csv, generatedAt)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("build archive: %w", err)
	}

	return GenerateResult{
		Generation:              gen.Generation,
		ZipBytes:                archive.ZipBytes,
		TotalEmployeeBasic:      gen.TotalEmployeeBasic,
		TotalEmployeeAdditional: gen.TotalEmployeeAdditional,
		TotalEmployerBasic:      gen.TotalEmployerBasic,
		TotalEmployerAdditional: gen.TotalEmployerAdditional,
		MemberCount:             gen.MemberCount,
	}, nil
}

// archiveTime recovers the instant a generation's archive was named
// after. The stored file path is authoritative: its stem was produced
// from the local wall clock at generation, while the generated_at column
// is written in UTC by the database, so only the stem reproduces the
// same inner filenames and GENERACJA line on rebuild.
func archiveTime(filePath, generatedAt string) time.Time {
	stem := strings.TrimSuffix(strings.TrimPrefix(filePath, "SKLADKA_"), ".zip")
	if t, err := time.ParseInLocation("20060102_150405", stem, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", generatedAt); err == nil {
		return t
	}
	return time.Now()
}

func (s *FilingService) publishGenerationEvent(ctx context.Context, g core.Generation) {
	if s.events == nil {
		slog.DebugContext(ctx, "AMQP client not configured, skipping generation event")
		return
	}
	event := amqp.NewGenerationEvent(g.ID, g.OrganizationID, g.PeriodYear, g.PeriodMonth)
	if err := s.events.PublishGeneration(ctx, event); err != nil {
		// The generation is already stored; a lost event never fails
		// the operation.
		slog.ErrorContext(ctx, "Failed to publish generation event",
			"generation_id", g.ID, "error", err)
	}
}

// sumContributionTotals adds the four money columns across rows using
// integer-cents arithmetic. Order: employee basic, employee additional,
// employer basic, employer additional.
func sumContributionTotals(rows []core.ContributionRow) ([4]string, error) {
	pick := [4]func(core.ContributionRow) string{
		func(c core.ContributionRow) string { return c.EmployeeBasic },
		func(c core.ContributionRow) string { return c.EmployeeAdditional },
		func(c core.ContributionRow) string { return c.EmployerBasic },
		func(c core.ContributionRow) string { return c.EmployerAdditional },
	}

	var totals [4]string
	for i, f := range pick {
		values := make([]string, len(rows))
		for j, row := range rows {
			values[j] = f(row)
		}
		total, err := core.SumAmounts(values)
		if err != nil {
			return totals, fmt.Errorf("sum contribution totals: %w", err)
		}
		totals[i] = total
	}
	return totals, nil
}
