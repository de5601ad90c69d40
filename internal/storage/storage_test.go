package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ppkgen/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createTestOrg(t *testing.T, repo *Repository) core.Organization {
	t.Helper()
	org, err := repo.CreateOrganization(context.Background(), core.CreateOrganization{
		Name:          "Firma Testowa",
		NIP:           "5261040828",
		REGON:         "123456785",
		ContactPerson: "Jan Kowalski",
	})
	if err != nil {
		t.Fatalf("create test organization: %v", err)
	}
	return org
}

func createTestMember(t *testing.T, repo *Repository, orgID int64, pesel, lastName string) core.Member {
	t.Helper()
	m, err := repo.CreateMember(context.Background(), core.CreateMember{
		OrganizationID: orgID,
		PESEL:          pesel,
		FirstName:      "Anna",
		LastName:       lastName,
	}, "K", "1985-03-22")
	if err != nil {
		t.Fatalf("create test member: %v", err)
	}
	return m
}

func strPtr(s string) *string { return &s }

func TestOrganizationCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	if org.ID == 0 {
		t.Fatal("organization id not assigned")
	}
	if org.CreatedAt == "" || org.UpdatedAt == "" {
		t.Error("timestamps not set")
	}

	got, err := repo.GetOrganization(ctx, org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Firma Testowa" {
		t.Errorf("name %q", got.Name)
	}

	updated, err := repo.UpdateOrganization(ctx, org.ID, core.UpdateOrganization{
		Name: "Firma Zmieniona", NIP: org.NIP, REGON: org.REGON, ContactPerson: "Ewa Nowak",
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Firma Zmieniona" || updated.ContactPerson != "Ewa Nowak" {
		t.Errorf("update not applied: %+v", updated)
	}

	orgs, err := repo.ListOrganizations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(orgs) != 1 {
		t.Fatalf("got %d organizations, want 1", len(orgs))
	}

	if _, err := repo.GetOrganization(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get missing organization: %v", err)
	}
	if _, err := repo.UpdateOrganization(ctx, 9999, core.UpdateOrganization{Name: "x"}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("update missing organization: %v", err)
	}
}

func TestDeleteOrganizationNotFoundTwice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	if err := repo.DeleteOrganization(ctx, org.ID); err != nil {
		t.Fatal(err)
	}
	// Repeated delete is not a silent no-op.
	if err := repo.DeleteOrganization(ctx, org.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: %v, want not found", err)
	}
}

func TestDeleteOrganizationCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	m1 := createTestMember(t, repo, org.ID, "85032212342", "Nowak")
	m2 := createTestMember(t, repo, org.ID, "92061578905", "Wozniak")

	for _, m := range []core.Member{m1, m2} {
		err := repo.UpsertContribution(ctx, core.UpsertContribution{
			MemberID: m.ID, PeriodYear: 2024, PeriodMonth: 3,
			EmployeeBasic: strPtr("94.38"),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	_, err := repo.InsertGeneration(ctx, core.Generation{
		OrganizationID: org.ID, PeriodYear: 2024, PeriodMonth: 3,
		FilePath:           "SKLADKA_test.zip",
		TotalEmployeeBasic: "188.76", TotalEmployeeAdditional: "0.00",
		TotalEmployerBasic: "0.00", TotalEmployerAdditional: "0.00",
		MemberCount: 2,
	}, "{}")
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.DeleteOrganization(ctx, org.ID); err != nil {
		t.Fatal(err)
	}

	// Nothing referencing the organization may remain queryable.
	if _, err := repo.GetMember(ctx, m1.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("member survived cascade: %v", err)
	}
	rows, err := repo.ListContributions(ctx, org.ID, core.Period{Year: 2024, Month: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("%d contributions survived cascade", len(rows))
	}
	gens, err := repo.ListGenerations(ctx, org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 0 {
		t.Errorf("%d generations survived cascade", len(gens))
	}
}

func TestDeleteMemberCascadesOwnContributionsOnly(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	m1 := createTestMember(t, repo, org.ID, "85032212342", "Nowak")
	m2 := createTestMember(t, repo, org.ID, "92061578905", "Wozniak")
	period := core.Period{Year: 2024, Month: 3}

	for _, m := range []core.Member{m1, m2} {
		err := repo.UpsertContribution(ctx, core.UpsertContribution{
			MemberID: m.ID, PeriodYear: period.Year, PeriodMonth: period.Month,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := repo.DeleteMember(ctx, m1.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteMember(ctx, m1.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete: %v, want not found", err)
	}

	rows, err := repo.ListContributions(ctx, org.ID, period)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].MemberID != m2.ID {
		t.Errorf("expected only the second member's contribution, got %+v", rows)
	}
}

func TestUpdateMemberPatchSemantics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	m := createTestMember(t, repo, org.ID, "85032212342", "Nowak")

	status := core.StatusResigned
	updated, err := repo.UpdateMember(ctx, m.ID, core.UpdateMember{Status: &status})
	if err != nil {
		t.Fatal(err)
	}
	// Absent fields keep their prior values.
	if updated.FirstName != "Anna" || updated.LastName != "Nowak" {
		t.Errorf("patch clobbered names: %+v", updated)
	}
	if updated.Status != core.StatusResigned {
		t.Errorf("status not applied: %q", updated.Status)
	}

	if _, err := repo.UpdateMember(ctx, 9999, core.UpdateMember{Status: &status}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("update missing member: %v", err)
	}
}

func TestUpsertContributionKeyedOnMemberAndPeriod(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	m := createTestMember(t, repo, org.ID, "85032212342", "Nowak")
	period := core.Period{Year: 2024, Month: 3}

	err := repo.UpsertContribution(ctx, core.UpsertContribution{
		MemberID: m.ID, PeriodYear: period.Year, PeriodMonth: period.Month,
		EmployeeBasic:    strPtr("94.38"),
		EmployerBasic:    strPtr("70.79"),
		ReducedBasicFlag: flagPtr(core.FlagReduced),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Second write for the same pair updates in place; unspecified
	// fields keep their stored values.
	err = repo.UpsertContribution(ctx, core.UpsertContribution{
		MemberID: m.ID, PeriodYear: period.Year, PeriodMonth: period.Month,
		EmployeeBasic: strPtr("100.00"),
	})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := repo.ListContributions(ctx, org.ID, period)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows for the pair, want exactly 1", len(rows))
	}
	c := rows[0]
	if c.EmployeeBasic != "100.00" {
		t.Errorf("employee_basic %q, want 100.00", c.EmployeeBasic)
	}
	if c.EmployerBasic != "70.79" {
		t.Errorf("employer_basic %q, want retained 70.79", c.EmployerBasic)
	}
	if c.ReducedBasicFlag != core.FlagReduced {
		t.Errorf("flag %q, want retained T", c.ReducedBasicFlag)
	}
	if c.Source != core.SourceManual {
		t.Errorf("source %q, want manual", c.Source)
	}
}

func flagPtr(f core.ReducedFlag) *core.ReducedFlag { return &f }

func TestPrefillContributions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	withHistory := createTestMember(t, repo, org.ID, "85032212342", "Nowak")
	fresh := createTestMember(t, repo, org.ID, "92061578905", "Wozniak")
	resigned := createTestMember(t, repo, org.ID, "85010112345", "Zielinska")

	status := core.StatusResigned
	if _, err := repo.UpdateMember(ctx, resigned.ID, core.UpdateMember{Status: &status}); err != nil {
		t.Fatal(err)
	}

	// February figures to carry into March.
	err := repo.UpsertContribution(ctx, core.UpsertContribution{
		MemberID: withHistory.ID, PeriodYear: 2024, PeriodMonth: 2,
		EmployeeBasic:    strPtr("94.38"),
		EmployerBasic:    strPtr("70.79"),
		ReducedBasicFlag: flagPtr(core.FlagReduced),
	})
	if err != nil {
		t.Fatal(err)
	}

	target := core.Period{Year: 2024, Month: 3}
	created, err := repo.PrefillContributions(ctx, org.ID, target)
	if err != nil {
		t.Fatal(err)
	}
	if created != 2 {
		t.Fatalf("created %d rows, want 2 (copy + zero)", created)
	}

	rows, err := repo.ListContributions(ctx, org.ID, target)
	if err != nil {
		t.Fatal(err)
	}
	byMember := map[int64]core.ContributionRow{}
	for _, r := range rows {
		byMember[r.MemberID] = r
	}

	copied, ok := byMember[withHistory.ID]
	if !ok {
		t.Fatal("no carried-forward row")
	}
	if copied.EmployeeBasic != "94.38" || copied.EmployerBasic != "70.79" || copied.ReducedBasicFlag != core.FlagReduced {
		t.Errorf("carried values wrong: %+v", copied)
	}
	if copied.Source != core.SourcePrefill {
		t.Errorf("source %q, want prefill", copied.Source)
	}

	zeroed, ok := byMember[fresh.ID]
	if !ok {
		t.Fatal("no zero-valued row for member without history")
	}
	if zeroed.EmployeeBasic != "0.00" || zeroed.ReducedBasicFlag != core.FlagNotReduced {
		t.Errorf("zero row wrong: %+v", zeroed)
	}

	if _, ok := byMember[resigned.ID]; ok {
		t.Error("resigned member was prefilled")
	}
}

func TestPrefillIsRepeatSafe(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	m := createTestMember(t, repo, org.ID, "85032212342", "Nowak")
	target := core.Period{Year: 2024, Month: 1}

	// Manual entry for the target period before prefill runs.
	err := repo.UpsertContribution(ctx, core.UpsertContribution{
		MemberID: m.ID, PeriodYear: target.Year, PeriodMonth: target.Month,
		EmployeeBasic: strPtr("123.45"),
	})
	if err != nil {
		t.Fatal(err)
	}

	created, err := repo.PrefillContributions(ctx, org.ID, target)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("created %d rows, want 0: populated members are skipped", created)
	}

	rows, err := repo.ListContributions(ctx, org.ID, target)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].EmployeeBasic != "123.45" || rows[0].Source != core.SourceManual {
		t.Errorf("manual row was overwritten: %+v", rows)
	}

	// Second run changes nothing either.
	created, err = repo.PrefillContributions(ctx, org.ID, target)
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Errorf("second run created %d rows", created)
	}
}

func TestPrefillRollsYearBackward(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	m := createTestMember(t, repo, org.ID, "85032212342", "Nowak")

	err := repo.UpsertContribution(ctx, core.UpsertContribution{
		MemberID: m.ID, PeriodYear: 2023, PeriodMonth: 12,
		EmployeeBasic: strPtr("50.00"),
	})
	if err != nil {
		t.Fatal(err)
	}

	created, err := repo.PrefillContributions(ctx, org.ID, core.Period{Year: 2024, Month: 1})
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("created %d, want 1", created)
	}

	rows, err := repo.ListContributions(ctx, org.ID, core.Period{Year: 2024, Month: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].EmployeeBasic != "50.00" {
		t.Errorf("December figures not carried into January: %+v", rows)
	}
}

func TestListPeriodsUnionNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)
	m := createTestMember(t, repo, org.ID, "85032212342", "Nowak")

	for _, p := range []core.Period{{Year: 2023, Month: 12}, {Year: 2024, Month: 2}, {Year: 2024, Month: 1}} {
		err := repo.UpsertContribution(ctx, core.UpsertContribution{
			MemberID: m.ID, PeriodYear: p.Year, PeriodMonth: p.Month,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	// A generation-only period must appear as well.
	_, err := repo.InsertGeneration(ctx, core.Generation{
		OrganizationID: org.ID, PeriodYear: 2024, PeriodMonth: 5,
		FilePath:           "SKLADKA_x.zip",
		TotalEmployeeBasic: "0.00", TotalEmployeeAdditional: "0.00",
		TotalEmployerBasic: "0.00", TotalEmployerAdditional: "0.00",
	}, "{}")
	if err != nil {
		t.Fatal(err)
	}

	periods, err := repo.ListPeriods(ctx, org.ID)
	if err != nil {
		t.Fatal(err)
	}

	want := []core.Period{{Year: 2024, Month: 5}, {Year: 2024, Month: 2}, {Year: 2024, Month: 1}, {Year: 2023, Month: 12}}
	if len(periods) != len(want) {
		t.Fatalf("got %d periods, want %d: %v", len(periods), len(want), periods)
	}
	for i := range want {
		if periods[i] != want[i] {
			t.Errorf("periods[%d] = %v, want %v", i, periods[i], want[i])
		}
	}
}

func TestGenerations(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	org := createTestOrg(t, repo)

	g1, err := repo.InsertGeneration(ctx, core.Generation{
		OrganizationID: org.ID, PeriodYear: 2024, PeriodMonth: 3,
		FilePath:           "SKLADKA_a.zip",
		TotalEmployeeBasic: "94.38", TotalEmployeeAdditional: "0.00",
		TotalEmployerBasic: "70.79", TotalEmployerAdditional: "0.00",
		MemberCount: 1,
	}, `{"period":{"year":2024,"month":3}}`)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := repo.InsertGeneration(ctx, core.Generation{
		OrganizationID: org.ID, PeriodYear: 2024, PeriodMonth: 3,
		FilePath:           "SKLADKA_b.zip",
		TotalEmployeeBasic: "94.38", TotalEmployeeAdditional: "0.00",
		TotalEmployerBasic: "70.79", TotalEmployerAdditional: "0.00",
		MemberCount: 1,
	}, "{}")
	if err != nil {
		t.Fatal(err)
	}

	// Same period, two independent snapshots with distinct ids.
	if g1.ID == g2.ID {
		t.Fatal("generations share an id")
	}

	gens, err := repo.ListGenerations(ctx, org.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 2 || gens[0].ID != g2.ID || gens[1].ID != g1.ID {
		t.Errorf("list not newest-first: %+v", gens)
	}

	got, err := repo.GetGeneration(ctx, g1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SnapshotJSON != `{"period":{"year":2024,"month":3}}` {
		t.Errorf("snapshot %q", got.SnapshotJSON)
	}

	if _, err := repo.GetGeneration(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("get missing generation: %v", err)
	}
}
