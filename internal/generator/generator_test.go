package generator

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"ppkgen/internal/core"
)

var testOrg = core.Organization{
	ID:            1,
	Name:          "Firma Testowa",
	NIP:           "5261040828",
	REGON:         "123456785",
	ContactPerson: "Jan Kowalski",
}

var testRows = []core.ContributionRow{
	{
		Contribution: core.Contribution{
			MemberID:           1,
			PeriodYear:         2024,
			PeriodMonth:        3,
			EmployeeBasic:      "94.38",
			EmployeeAdditional: "0.00",
			EmployerBasic:      "70.79",
			EmployerAdditional: "10.5",
			ReducedBasicFlag:   core.FlagNotReduced,
		},
		PESEL:       "85032212342",
		FirstName:   "Anna",
		LastName:    "Nowak",
		Gender:      "K",
		DateOfBirth: "1985-03-22",
		Citizenship: "PL",
	},
}

var when = time.Date(2024, 4, 10, 12, 30, 45, 0, time.Local)

func TestBuildXML(t *testing.T) {
	xml := BuildXML(testOrg, testRows, core.Period{Year: 2024, Month: 3}, when)

	if !strings.HasPrefix(xml, `<?xml version="1.0" encoding="utf-8"?>`+"\r\n") {
		t.Error("missing XML declaration with CRLF")
	}
	for _, want := range []string{
		"    <WERSJA>GRUPA_PPK 1.00</WERSJA>\r\n",
		"        <NIP>5261040828</NIP>\r\n",
		"            <NAZWISKO>NOWAK</NAZWISKO>\r\n",
		"            <IMIE>ANNA</IMIE>\r\n",
		"                <UCZ_WAR_POD>94.38</UCZ_WAR_POD>\r\n",
		"                <FIR_WAR_DOD>10.50</FIR_WAR_DOD>\r\n",
		"                <SKL_ZA_OKRES>2024-03</SKL_ZA_OKRES>\r\n",
		"            <DOK_TOZ_TYP></DOK_TOZ_TYP>\r\n",
	} {
		if !strings.Contains(xml, want) {
			t.Errorf("XML missing %q", want)
		}
	}
	if strings.Contains(strings.ReplaceAll(xml, "\r\n", ""), "\n") {
		t.Error("XML contains bare LF line endings")
	}
}

func TestBuildCSV(t *testing.T) {
	csv := BuildCSV(testRows, core.Period{Year: 2024, Month: 3})

	lines := strings.Split(strings.TrimSuffix(csv, "\r\n"), "\r\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if strings.Contains(lines[0], `"`) {
		t.Error("header row must be unquoted")
	}
	row := lines[1]
	for _, want := range []string{`"1"`, `"85032212342"`, `"NOWAK"`, `"ANNA"`, `"94,38"`, `"10,50"`, `"3"`, `"2024"`} {
		if !strings.Contains(row, want) {
			t.Errorf("data row missing %s: %s", want, row)
		}
	}
}

func TestBuildArchive(t *testing.T) {
	xml := BuildXML(testOrg, testRows, core.Period{Year: 2024, Month: 3}, when)
	csv := BuildCSV(testRows, core.Period{Year: 2024, Month: 3})

	a, err := BuildArchive(xml, csv, when)
	if err != nil {
		t.Fatal(err)
	}
	if a.ZipFilename != "SKLADKA_20240410_123045.zip" {
		t.Errorf("zip filename %q", a.ZipFilename)
	}

	zr, err := zip.NewReader(bytes.NewReader(a.ZipBytes), int64(len(a.ZipBytes)))
	if err != nil {
		t.Fatalf("reopen archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive holds %d files, want 2", len(zr.File))
	}

	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		contents[f.Name] = string(data)
	}

	if contents[a.XMLFilename] != xml {
		t.Error("XML content round-trip mismatch")
	}
	if contents[a.CSVFilename] != csv {
		t.Error("CSV content round-trip mismatch")
	}
}
