// Package generator builds the filing artifact: the GRUPA_PPK XML and
// CSV documents and the ZIP archive that carries them. The institution
// parses these byte-for-byte, so both builders reproduce the exact wire
// shape (CRLF line endings, fixed indentation, empty elements spelled
// out) instead of going through encoding/xml or encoding/csv.
package generator

import (
	"fmt"
	"strings"
	"time"

	"ppkgen/internal/core"
)

// BuildXML renders the PPK filing document:
// UTF-8, CRLF line endings, 4-space indents, dot decimals, names
// uppercased, the period as "YYYY-MM".
func BuildXML(org core.Organization, rows []core.ContributionRow, period core.Period, generatedAt time.Time) string {
	var b strings.Builder

	line := func(s string, args ...any) {
		fmt.Fprintf(&b, s, args...)
		b.WriteString("\r\n")
	}

	line(`<?xml version="1.0" encoding="utf-8"?>`)
	line(`<PPK>`)
	line(`    <WERSJA>GRUPA_PPK 1.00</WERSJA>`)
	line(`    <GENERACJA>%s</GENERACJA>`, generatedAt.Format("2006-01-02 15:04:05"))
	line(`    <PRACODAWCA>`)
	line(`        <NIP>%s</NIP>`, org.NIP)
	line(`        <REGON>%s</REGON>`, org.REGON)
	line(`        <KONTAKT>%s</KONTAKT>`, org.ContactPerson)
	line(`    </PRACODAWCA>`)
	line(`    <DANE_UCZESTNIKA>`)

	for _, c := range rows {
		line(`        <UCZESTNIK>`)
		line(`            <NR_PESEL>%s</NR_PESEL>`, c.PESEL)
		line(`            <DOK_TOZ_TYP>%s</DOK_TOZ_TYP>`, c.DocType)
		line(`            <DOK_TOZ_SYM>%s</DOK_TOZ_SYM>`, c.DocNumber)
		line(`            <NAZWISKO>%s</NAZWISKO>`, strings.ToUpper(c.LastName))
		line(`            <IMIE>%s</IMIE>`, strings.ToUpper(c.FirstName))
		line(`            <PLEC>%s</PLEC>`, c.Gender)
		line(`            <IMIE_2>%s</IMIE_2>`, strings.ToUpper(c.SecondName))
		line(`            <OBYW>%s</OBYW>`, c.Citizenship)
		line(`            <DATA_UR>%s</DATA_UR>`, c.DateOfBirth)
		line(`            <SKLADKA>`)
		line(`                <UCZ_WAR_POD>%s</UCZ_WAR_POD>`, dotDecimal(c.EmployeeBasic))
		line(`                <UCZ_WAR_DOD>%s</UCZ_WAR_DOD>`, dotDecimal(c.EmployeeAdditional))
		line(`                <FIR_WAR_POD>%s</FIR_WAR_POD>`, dotDecimal(c.EmployerBasic))
		line(`                <FIR_WAR_DOD>%s</FIR_WAR_DOD>`, dotDecimal(c.EmployerAdditional))
		line(`                <UCZ_OBNIZ_SKL_POD>%s</UCZ_OBNIZ_SKL_POD>`, c.ReducedBasicFlag)
		line(`                <SKL_ZA_OKRES>%s</SKL_ZA_OKRES>`, period.String())
		line(`            </SKLADKA>`)
		line(`        </UCZESTNIK>`)
	}

	line(`    </DANE_UCZESTNIKA>`)
	line(`</PPK>`)

	return b.String()
}

// dotDecimal normalizes a stored amount to dot notation with exactly two
// fraction digits.
func dotDecimal(value string) string {
	cents, err := core.ParseCents(value)
	if err != nil {
		return value
	}
	return core.FormatCentsDot(cents)
}
