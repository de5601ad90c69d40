package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	StatusActive   MemberStatus = "active"
	StatusResigned MemberStatus = "resigned"

	SourceManual  ContributionSource = "manual"
	SourcePrefill ContributionSource = "prefill"

	FlagReduced    ReducedFlag = "T"
	FlagNotReduced ReducedFlag = "N"
)

type (
	MemberStatus       string
	ContributionSource string
	ReducedFlag        string

	// Period identifies one monthly filing cycle.
	Period struct {
		Year  int `json:"year"`
		Month int `json:"month"`
	}

	Organization struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		NIP           string `json:"nip"`
		REGON         string `json:"regon"`
		ContactPerson string `json:"contact_person"`
		CreatedAt     string `json:"created_at"`
		UpdatedAt     string `json:"updated_at"`
	}

	Member struct {
		ID             int64        `json:"id"`
		OrganizationID int64        `json:"organization_id"`
		PESEL          string       `json:"pesel"`
		FirstName      string       `json:"first_name"`
		SecondName     string       `json:"second_name"`
		LastName       string       `json:"last_name"`
		Gender         string       `json:"gender"`
		DateOfBirth    string       `json:"date_of_birth"`
		Citizenship    string       `json:"citizenship"`
		DocType        string       `json:"doc_type"`
		DocNumber      string       `json:"doc_number"`
		Status         MemberStatus `json:"status"`
		CreatedAt      string       `json:"created_at"`
		UpdatedAt      string       `json:"updated_at"`
	}

	// Contribution holds one member's filing figures for a single period.
	// Amounts are dot-decimal strings ("94.38"); arithmetic goes through cents.
	Contribution struct {
		ID                 int64              `json:"id"`
		MemberID           int64              `json:"member_id"`
		PeriodYear         int                `json:"period_year"`
		PeriodMonth        int                `json:"period_month"`
		EmployeeBasic      string             `json:"employee_basic"`
		EmployeeAdditional string             `json:"employee_additional"`
		EmployerBasic      string             `json:"employer_basic"`
		EmployerAdditional string             `json:"employer_additional"`
		ReducedBasicFlag   ReducedFlag        `json:"reduced_basic_flag"`
		Source             ContributionSource `json:"source"`
		UpdatedAt          string             `json:"updated_at"`
	}

	// ContributionRow is a contribution joined with its member, as listed
	// per organization and period.
	ContributionRow struct {
		Contribution
		PESEL        string       `json:"pesel"`
		FirstName    string       `json:"first_name"`
		SecondName   string       `json:"second_name"`
		LastName     string       `json:"last_name"`
		Gender       string       `json:"gender"`
		DateOfBirth  string       `json:"date_of_birth"`
		Citizenship  string       `json:"citizenship"`
		DocType      string       `json:"doc_type"`
		DocNumber    string       `json:"doc_number"`
		MemberStatus MemberStatus `json:"member_status"`
	}

	// Generation is an immutable snapshot of one filing run. Multiple
	// generations may exist for the same organization and period; none
	// supersedes an earlier one.
	Generation struct {
		ID                      int64  `json:"id"`
		OrganizationID          int64  `json:"organization_id"`
		PeriodYear              int    `json:"period_year"`
		PeriodMonth             int    `json:"period_month"`
		GeneratedAt             string `json:"generated_at"`
		FilePath                string `json:"file_path"`
		TotalEmployeeBasic      string `json:"total_employee_basic"`
		TotalEmployeeAdditional string `json:"total_employee_additional"`
		TotalEmployerBasic      string `json:"total_employer_basic"`
		TotalEmployerAdditional string `json:"total_employer_additional"`
		MemberCount             int    `json:"member_count"`
	}
)

// GenerationWithSnapshot is a generation together with the JSON snapshot
// of the data it was produced from, used to rebuild the filing artifact
// on export.
type GenerationWithSnapshot struct {
	Generation
	SnapshotJSON string `json:"snapshot_json"`
}

// CreateOrganization carries the fields required to create an organization.
type CreateOrganization struct {
	Name          string `json:"name"`
	NIP           string `json:"nip"`
	REGON         string `json:"regon"`
	ContactPerson string `json:"contact_person"`
}

// UpdateOrganization replaces all mutable organization fields.
type UpdateOrganization = CreateOrganization

// CreateMember carries the fields required to enroll a member. Gender and
// date of birth are derived from the PESEL, never taken from the caller.
type CreateMember struct {
	OrganizationID int64   `json:"organization_id"`
	PESEL          string  `json:"pesel"`
	FirstName      string  `json:"first_name"`
	SecondName     *string `json:"second_name"`
	LastName       string  `json:"last_name"`
	Citizenship    *string `json:"citizenship"`
	DocType        *string `json:"doc_type"`
	DocNumber      *string `json:"doc_number"`
}

// UpdateMember is a patch: nil fields retain their prior value. PESEL and
// organization id are immutable; setting either rejects the update.
type UpdateMember struct {
	OrganizationID *int64        `json:"organization_id"`
	PESEL          *string       `json:"pesel"`
	FirstName      *string       `json:"first_name"`
	SecondName     *string       `json:"second_name"`
	LastName       *string       `json:"last_name"`
	Citizenship    *string       `json:"citizenship"`
	DocType        *string       `json:"doc_type"`
	DocNumber      *string       `json:"doc_number"`
	Status         *MemberStatus `json:"status"`
}

// UpsertContribution is a patch keyed on (member, period): nil fields keep
// the stored value on update and default to zero / "N" on insert.
type UpsertContribution struct {
	MemberID           int64        `json:"member_id"`
	PeriodYear         int          `json:"period_year"`
	PeriodMonth        int          `json:"period_month"`
	EmployeeBasic      *string      `json:"employee_basic"`
	EmployeeAdditional *string      `json:"employee_additional"`
	EmployerBasic      *string      `json:"employer_basic"`
	EmployerAdditional *string      `json:"employer_additional"`
	ReducedBasicFlag   *ReducedFlag `json:"reduced_basic_flag"`
}

var (
	ErrNotFound       = errors.New("not found")
	ErrImmutableField = errors.New("immutable field")
)

// ValidationError rejects a single write and names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for the given field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Previous returns the immediately preceding calendar period, rolling the
// year backward at the January boundary.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

func (p Period) Validate() error {
	if p.Year < 1 {
		return Validationf("year", "invalid year %d", p.Year)
	}
	if p.Month < 1 || p.Month > 12 {
		return Validationf("month", "invalid month %d", p.Month)
	}
	return nil
}

// String renders the period in the YYYY-MM wire form.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (s MemberStatus) Validate() error {
	switch s {
	case StatusActive, StatusResigned:
		return nil
	}
	return Validationf("status", "must be %q or %q", StatusActive, StatusResigned)
}

func (f ReducedFlag) Validate() error {
	switch f {
	case FlagReduced, FlagNotReduced:
		return nil
	}
	return Validationf("reduced_basic_flag", "must be %q or %q", FlagReduced, FlagNotReduced)
}

func (d CreateOrganization) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return Validationf("name", "organization name is required")
	}
	return nil
}

func (d CreateMember) Validate() error {
	if strings.TrimSpace(d.FirstName) == "" {
		return Validationf("first_name", "first name is required")
	}
	if strings.TrimSpace(d.LastName) == "" {
		return Validationf("last_name", "last name is required")
	}
	return nil
}
