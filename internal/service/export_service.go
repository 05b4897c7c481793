package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/dto"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
)

var exportHeaders = []string{"Day", "Start", "End", "Subject", "Teacher", "Classroom"}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type weeklyTimetableSource interface {
	WeeklyForClassroom(ctx context.Context, identity models.Identity, classroomID, academicYearID string) (dto.WeeklyTimetable, error)
}

type classroomFinder interface {
	FindClassroom(ctx context.Context, schoolID, id string) (*models.Classroom, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type titledRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders classroom timetables as files.
type ExportService struct {
	timetables weeklyTimetableSource
	classrooms classroomFinder
	csv        csvRenderer
	pdf        titledRenderer
	xlsx       titledRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the pkg/export ones.
func NewExportService(timetables weeklyTimetableSource, classrooms classroomFinder, logger *zap.Logger, csv csvRenderer, pdf, xlsx titledRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{timetables: timetables, classrooms: classrooms, csv: csv, pdf: pdf, xlsx: xlsx, logger: logger}
}

// ClassroomTimetable renders the classroom's week in the requested format. Access rules
// are those of the weekly view.
func (s *ExportService) ClassroomTimetable(ctx context.Context, identity models.Identity, classroomID, academicYearID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF && format != ExportFormatXLSX {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be one of csv, pdf, xlsx")
	}

	week, err := s.timetables.WeeklyForClassroom(ctx, identity, classroomID, academicYearID)
	if err != nil {
		return nil, err
	}
	classroom, err := s.classrooms.FindClassroom(ctx, identity.SchoolID, classroomID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load classroom")
	}

	data := weeklyDataset(week)
	title := "Timetable " + classroom.Name
	base := "timetable-" + strings.Trim(unsafeFilename.ReplaceAllString(classroom.Name, "-"), "-")

	var file ExportFile
	switch format {
	case ExportFormatCSV:
		file.Body, err = s.csv.Render(data)
		file.ContentType = "text/csv"
	case ExportFormatPDF:
		file.Body, err = s.pdf.Render(data, title)
		file.ContentType = "application/pdf"
	case ExportFormatXLSX:
		file.Body, err = s.xlsx.Render(data, classroom.Name)
		file.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		return nil, appErrors.Internal(err, fmt.Sprintf("failed to render %s export", format))
	}
	file.Filename = base + "." + format
	s.logger.Debug("timetable exported", zap.String("classroom_id", classroomID), zap.String("format", format), zap.Int("bytes", len(file.Body)))
	return &file, nil
}

func weeklyDataset(week dto.WeeklyTimetable) export.Dataset {
	data := export.Dataset{Headers: exportHeaders}
	for _, day := range models.AllWeekdays() {
		for _, entry := range week[day] {
			data.Rows = append(data.Rows, map[string]string{
				"Day":       string(day),
				"Start":     entry.StartTime.String(),
				"End":       entry.EndTime.String(),
				"Subject":   entry.SubjectName,
				"Teacher":   entry.TeacherName,
				"Classroom": entry.ClassroomName,
			})
		}
	}
	return data
}
