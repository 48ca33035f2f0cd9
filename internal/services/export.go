package services

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/soaringjerry/maat/internal/models"
)

// ResultsHeader is the column row of every per-participant results file.
var ResultsHeader = []string{
	"Participant ID",
	"Trial ID",
	"Stimuli",
	"Valence",
	"Block Name",
	"Response Time (ms)",
	"Accuracy (1=Correct, 0=Incorrect)",
	"Experiment ID",
}

func unsafeFilenameRune(r rune) bool {
	return r == '/' || r == '\\' || unicode.IsControl(r)
}

// safeFilenamePart reports whether s can be embedded in a results filename.
func safeFilenamePart(s string) bool {
	return strings.IndexFunc(s, unsafeFilenameRune) < 0
}

// ResultsFilename names a participant results file at a seconds timestamp.
// Path separators and control characters in subjectID become underscores.
func ResultsFilename(subjectID string, at time.Time) string {
	clean := strings.Map(func(r rune) rune {
		if unsafeFilenameRune(r) {
			return '_'
		}
		return r
	}, subjectID)
	return fmt.Sprintf("experiment_results_%s_%s.csv", clean, at.Format("20060102_150405"))
}

// formatFloat keeps a decimal point on integral values (100 -> "100.0").
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// ExportResultsCSV renders rows under ResultsHeader; no rows yields only the header.
func ExportResultsCSV(rows []models.ResultRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(ResultsHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			r.SubjectID,
			strconv.FormatInt(r.TrialID, 10),
			r.Stimuli,
			strconv.Itoa(r.Valence),
			r.BlockName,
			formatFloat(r.ResponseTime),
			strconv.Itoa(r.Accuracy),
			r.ExperimentID,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ZipEntry is one file to place in an archive.
type ZipEntry struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// WriteZip streams entries into a zip archive on w. An entry whose Open
// reports a missing file is passed to skip and left out.
func WriteZip(w io.Writer, entries []ZipEntry, skip func(name string, err error)) (int, error) {
	zw := zip.NewWriter(w)
	written := 0
	for _, e := range entries {
		rc, err := e.Open()
		if err != nil {
			if os.IsNotExist(err) && skip != nil {
				skip(e.Name, err)
				continue
			}
			_ = zw.Close()
			return written, err
		}
		fw, err := zw.Create(e.Name)
		if err != nil {
			rc.Close()
			_ = zw.Close()
			return written, err
		}
		_, err = io.Copy(fw, rc)
		rc.Close()
		if err != nil {
			_ = zw.Close()
			return written, err
		}
		written++
	}
	return written, zw.Close()
}

// writeFileAtomic writes data to a temp file in dir and renames it into place.
func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

const (
	sheetResponses = "responses"
	sheetSummary   = "summary"
)

// WorkbookHeader is the responses sheet column row.
var WorkbookHeader = append(append([]string(nil), ResultsHeader...), "Run ID", "Response Key")

// ExportResultsWorkbook renders every row into an xlsx workbook with a
// responses sheet and a per-experiment summary sheet.
func ExportResultsWorkbook(rows []models.ResultRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", sheetResponses)
	header := make([]interface{}, 0, len(WorkbookHeader))
	for _, h := range WorkbookHeader {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheetResponses, "A1", &header); err != nil {
		return nil, err
	}

	type agg struct {
		responses int
		correct   int
		totalRT   float64
		subjects  map[string]struct{}
	}
	byExperiment := map[string]*agg{}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		rec := []interface{}{
			r.SubjectID, r.TrialID, r.Stimuli, r.Valence, r.BlockName,
			r.ResponseTime, r.Accuracy, r.ExperimentID, r.RunID.String, r.ResponseKey,
		}
		if err := f.SetSheetRow(sheetResponses, cell, &rec); err != nil {
			return nil, err
		}
		a := byExperiment[r.ExperimentID]
		if a == nil {
			a = &agg{subjects: map[string]struct{}{}}
			byExperiment[r.ExperimentID] = a
		}
		a.responses++
		a.correct += r.Accuracy
		a.totalRT += r.ResponseTime
		a.subjects[r.SubjectID] = struct{}{}
	}

	if _, err := f.NewSheet(sheetSummary); err != nil {
		return nil, err
	}
	summaryHeader := []interface{}{"Experiment ID", "Participants", "Responses", "Accuracy Rate", "Mean Response Time (ms)"}
	if err := f.SetSheetRow(sheetSummary, "A1", &summaryHeader); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(byExperiment))
	for id := range byExperiment {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		a := byExperiment[id]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		rec := []interface{}{
			id, len(a.subjects), a.responses,
			float64(a.correct) / float64(a.responses),
			a.totalRT / float64(a.responses),
		}
		if err := f.SetSheetRow(sheetSummary, cell, &rec); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
