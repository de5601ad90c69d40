package generator

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// Archive is the finished filing artifact.
type Archive struct {
	ZipBytes    []byte
	ZipFilename string
	XMLFilename string
	CSVFilename string
}

// BuildArchive packs the XML and CSV documents into a deflate-compressed
// ZIP. All three filenames share one SKLADKA_<timestamp> stem.
func BuildArchive(xmlContent, csvContent string, generatedAt time.Time) (Archive, error) {
	stem := "SKLADKA_" + generatedAt.Format("20060102_150405")

	a := Archive{
		ZipFilename: stem + ".zip",
		XMLFilename: stem + ".xml",
		CSVFilename: stem + ".csv",
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range []struct {
		name    string
		content string
	}{
		{a.XMLFilename, xmlContent},
		{a.CSVFilename, csvContent},
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.name,
			Method:   zip.Deflate,
			Modified: generatedAt,
		})
		if err != nil {
			return Archive{}, fmt.Errorf("add %s to archive: %w", f.name, err)
		}
		if _, err := w.Write([]byte(f.content)); err != nil {
			return Archive{}, fmt.Errorf("write %s: %w", f.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return Archive{}, fmt.Errorf("finish archive: %w", err)
	}

	a.ZipBytes = buf.Bytes()
	return a, nil
}
