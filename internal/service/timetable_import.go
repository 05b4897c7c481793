package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/dto"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/export"
)

const (
	importColClassroom    = "classroomid"
	importColAcademicYear = "academicyearid"
	importColSubject      = "subjectid"
	importColTeacher      = "teacherid"
	importColDay          = "dayofweek"
	importColStart        = "starttime"
	importColEnd          = "endtime"
)

var importHeaderAliases = map[string]string{
	"classroom":    importColClassroom,
	"academicyear": importColAcademicYear,
	"year":         importColAcademicYear,
	"subject":      importColSubject,
	"teacher":      importColTeacher,
	"day":          importColDay,
	"start":        importColStart,
	"end":          importColEnd,
}

// ParseTimetableWorkbook reads an uploaded xlsx into import rows. Columns are matched by
// header name, case and separators ignored. The academic year column is optional and
// falls back to academicYearID. Blank lines are skipped.
func ParseTimetableWorkbook(raw []byte, academicYearID string, maxRows int) ([]dto.TimetableImportRow, error) {
	sheet, err := export.ReadXLSXBytes(raw)
	if err != nil {
		if errors.Is(err, export.ErrEmptyWorkbook) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "the workbook is empty")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "the upload is not a valid xlsx workbook")
	}

	columns := map[string]int{}
	for i, header := range sheet[0] {
		key := normaliseHeader(header)
		if alias, ok := importHeaderAliases[key]; ok {
			key = alias
		}
		if _, seen := columns[key]; !seen {
			columns[key] = i
		}
	}
	var missing []string
	for _, required := range []string{importColClassroom, importColSubject, importColTeacher, importColDay, importColStart, importColEnd} {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing columns: "+strings.Join(missing, ", "))
	}

	cell := func(row []string, col string) string {
		idx, ok := columns[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	rows := make([]dto.TimetableImportRow, 0, len(sheet)-1)
	for i, line := range sheet[1:] {
		if blankRow(line) {
			continue
		}
		if maxRows > 0 && len(rows) >= maxRows {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("the import is limited to %d rows", maxRows))
		}
		year := cell(line, importColAcademicYear)
		if year == "" {
			year = academicYearID
		}
		rows = append(rows, dto.TimetableImportRow{
			Row: i + 2,
			Request: dto.CreateTimetableEntryRequest{
				ClassroomID:    cell(line, importColClassroom),
				AcademicYearID: year,
				SubjectID:      cell(line, importColSubject),
				TeacherID:      cell(line, importColTeacher),
				DayOfWeek:      cell(line, importColDay),
				StartTime:      spreadsheetTime(cell(line, importColStart)),
				EndTime:        spreadsheetTime(cell(line, importColEnd)),
			},
		})
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the import contains no rows")
	}
	return rows, nil
}

func normaliseHeader(raw string) string {
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(replacer.Replace(strings.TrimSpace(raw)))
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// spreadsheetTime converts an unformatted Excel time (a fraction of a day such as
// 0.3333) into HH:MM. Anything else is returned unchanged.
func spreadsheetTime(raw string) string {
	if strings.Contains(raw, ":") {
		return raw
	}
	frac, err := strconv.ParseFloat(raw, 64)
	if err != nil || frac < 0 || frac >= 1 {
		return raw
	}
	minutes := int(math.Round(frac * 24 * 60))
	if minutes >= 24*60 {
		return raw
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
