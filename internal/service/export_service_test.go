package service

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/dto"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/export"
)

type weeklySourceStub struct {
	week dto.WeeklyTimetable
	err  error
}

func (s weeklySourceStub) WeeklyForClassroom(ctx context.Context, identity models.Identity, classroomID, academicYearID string) (dto.WeeklyTimetable, error) {
	return s.week, s.err
}

type classroomFinderStub struct{}

func (classroomFinderStub) FindClassroom(ctx context.Context, schoolID, id string) (*models.Classroom, error) {
	if id != "c1" {
		return nil, sql.ErrNoRows
	}
	return &models.Classroom{ID: id, SchoolID: schoolID, Name: "6eme A"}, nil
}

func sampleWeek() dto.WeeklyTimetable {
	week := BuildWeeklyView([]models.TimetableEntryDetail{
		{
			TimetableEntry: models.TimetableEntry{ID: "e2", DayOfWeek: models.Tuesday, StartTime: models.MustTimeOfDay("10:00"), EndTime: models.MustTimeOfDay("11:00")},
			SubjectName:    "Physique", TeacherName: "M. Diallo", ClassroomName: "6eme A",
		},
		{
			TimetableEntry: models.TimetableEntry{ID: "e1", DayOfWeek: models.Monday, StartTime: models.MustTimeOfDay("08:00"), EndTime: models.MustTimeOfDay("09:00")},
			SubjectName:    "Maths", TeacherName: "Mme Sow", ClassroomName: "6eme A",
		},
	})
	return week
}

func TestExportServiceCSV(t *testing.T) {
	svc := NewExportService(weeklySourceStub{week: sampleWeek()}, classroomFinderStub{}, nil, nil, nil, nil)

	file, err := svc.ClassroomTimetable(context.Background(), schoolAdmin, "c1", "y1", "")
	require.NoError(t, err)
	assert.Equal(t, "timetable-6eme-A.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	lines := strings.Split(strings.TrimSpace(string(file.Body)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Day,Start,End,Subject,Teacher,Classroom", lines[0])
	assert.Equal(t, "MONDAY,08:00,09:00,Maths,Mme Sow,6eme A", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "TUESDAY,10:00"))
}

func TestExportServicePDFAndXLSX(t *testing.T) {
	svc := NewExportService(weeklySourceStub{week: sampleWeek()}, classroomFinderStub{}, nil, nil, nil, nil)

	pdf, err := svc.ClassroomTimetable(context.Background(), schoolAdmin, "c1", "y1", "PDF")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Body, []byte("%PDF")))
	assert.Equal(t, "application/pdf", pdf.ContentType)

	xlsx, err := svc.ClassroomTimetable(context.Background(), schoolAdmin, "c1", "y1", "xlsx")
	require.NoError(t, err)
	rows, err := export.ReadXLSXBytes(xlsx.Body)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Maths", rows[1][3])
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(weeklySourceStub{week: sampleWeek()}, classroomFinderStub{}, nil, nil, nil, nil)

	_, err := svc.ClassroomTimetable(context.Background(), schoolAdmin, "c1", "y1", "docx")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServicePropagatesAccessError(t *testing.T) {
	denied := appErrors.Clone(appErrors.ErrForbidden, "you are not allowed to view this timetable")
	svc := NewExportService(weeklySourceStub{err: denied}, classroomFinderStub{}, nil, nil, nil, nil)

	_, err := svc.ClassroomTimetable(context.Background(), schoolAdmin, "c1", "y1", "csv")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
