package generator

import (
	"fmt"
	"strings"

	"ppkgen/internal/core"
)

const csvHeader = "LP;NR_PESEL;DOK_TOZSAMOSCI_RODZAJ;DOK_TOZSAMOSCI_SERIA_NUMER;UCZESTNIK_IDENTYFIKATOR_INFORMATYCZNY;NAZWISKO;IMIE;WARTOSC_PODST_PRACOWNIKA;WARTOSC_DODATK_PRACOWNIKA;WARTOSC_PODST_PRACODAWCY;WARTOSC_DODATK_PRACODAWCY;FLAGA_OBNIZENIE_SKL_PODST_PRACOWNIKA;ZA_MIESIAC;ZA_ROK;PZIF_RACH_PPK;ID_EPPK_UCZESTNIKA"

// BuildCSV renders the companion CSV: CRLF line endings, semicolon
// delimiter, unquoted header, all-quoted data fields, comma decimals and
// an unpadded month.
func BuildCSV(rows []core.ContributionRow, period core.Period) string {
	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteString("\r\n")

	for i, c := range rows {
		fields := []string{
			fmt.Sprintf("%d", i+1),
			c.PESEL,
			c.DocType,
			c.DocNumber,
			"", // UCZESTNIK_IDENTYFIKATOR_INFORMATYCZNY stays empty
			strings.ToUpper(c.LastName),
			strings.ToUpper(c.FirstName),
			commaDecimal(c.EmployeeBasic),
			commaDecimal(c.EmployeeAdditional),
			commaDecimal(c.EmployerBasic),
			commaDecimal(c.EmployerAdditional),
			string(c.ReducedBasicFlag),
			fmt.Sprintf("%d", period.Month),
			fmt.Sprintf("%d", period.Year),
			"", // PZIF_RACH_PPK stays empty
			"", // ID_EPPK_UCZESTNIKA stays empty
		}
		for j, f := range fields {
			if j > 0 {
				b.WriteString(";")
			}
			b.WriteString(`"` + f + `"`)
		}
		b.WriteString("\r\n")
	}

	return b.String()
}

// commaDecimal normalizes a stored amount to the display notation
// ("94.38" -> "94,38").
func commaDecimal(value string) string {
	cents, err := core.ParseCents(value)
	if err != nil {
		return strings.ReplaceAll(value, ".", ",")
	}
	return core.FormatCents(cents)
}
