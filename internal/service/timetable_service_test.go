package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/dto"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

type txProviderMock struct {
	db *sqlx.DB
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

// memoryTimetableStore keeps entries in memory; schools own classrooms, subjects,
// teachers and years through the maps below.
type memoryTimetableStore struct {
	entries     map[string]models.TimetableEntry
	classrooms  map[string]string
	subjects    map[string]string
	teachers    map[string]string
	years       map[string]string
	slotQueries int
	createErr   error
	nextID      int
}

func newMemoryTimetableStore() *memoryTimetableStore {
	return &memoryTimetableStore{
		entries:    map[string]models.TimetableEntry{},
		classrooms: map[string]string{"c1": "school-1", "c2": "school-1", "c9": "school-2"},
		subjects:   map[string]string{"s1": "school-1", "s2": "school-1", "s9": "school-2"},
		teachers:   map[string]string{"t1": "school-1", "t2": "school-1", "t9": "school-2"},
		years:      map[string]string{"y1": "school-1", "y9": "school-2"},
	}
}

func (m *memoryTimetableStore) detail(e models.TimetableEntry) models.TimetableEntryDetail {
	return models.TimetableEntryDetail{
		TimetableEntry: e,
		ClassroomName:  "class " + e.ClassroomID,
		SubjectName:    "subject " + e.SubjectID,
		TeacherName:    "teacher " + e.TeacherID,
	}
}

func (m *memoryTimetableStore) ListSlotEntries(ctx context.Context, exec sqlx.ExtContext, q models.SlotQuery) ([]models.TimetableEntry, error) {
	m.slotQueries++
	var out []models.TimetableEntry
	for _, e := range m.entries {
		if e.ID == q.ExcludeID || e.AcademicYearID != q.AcademicYearID || e.DayOfWeek != q.DayOfWeek {
			continue
		}
		if q.ClassroomID != "" && e.ClassroomID != q.ClassroomID {
			continue
		}
		if q.TeacherID != "" && e.TeacherID != q.TeacherID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryTimetableStore) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error) {
	var out []models.TimetableEntryDetail
	for _, e := range m.entries {
		if m.classrooms[e.ClassroomID] != filter.SchoolID {
			continue
		}
		if filter.AcademicYearID != "" && e.AcademicYearID != filter.AcademicYearID {
			continue
		}
		if filter.ClassroomID != "" && e.ClassroomID != filter.ClassroomID {
			continue
		}
		if filter.TeacherID != "" && e.TeacherID != filter.TeacherID {
			continue
		}
		if filter.DayOfWeek != "" && e.DayOfWeek != filter.DayOfWeek {
			continue
		}
		out = append(out, m.detail(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryTimetableStore) FindByID(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (*models.TimetableEntryDetail, error) {
	e, ok := m.entries[id]
	if !ok || m.classrooms[e.ClassroomID] != schoolID {
		return nil, sql.ErrNoRows
	}
	d := m.detail(e)
	return &d, nil
}

func (m *memoryTimetableStore) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	if m.createErr != nil {
		return m.createErr
	}
	if entry.ID == "" {
		m.nextID++
		entry.ID = fmt.Sprintf("e%d", m.nextID)
	}
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memoryTimetableStore) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	if _, ok := m.entries[entry.ID]; !ok {
		return sql.ErrNoRows
	}
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memoryTimetableStore) Delete(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) error {
	e, ok := m.entries[id]
	if !ok || m.classrooms[e.ClassroomID] != schoolID {
		return sql.ErrNoRows
	}
	delete(m.entries, id)
	return nil
}

func (m *memoryTimetableStore) AcademicYearInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error) {
	return m.years[id] == schoolID, nil
}

func (m *memoryTimetableStore) ClassroomInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error) {
	return m.classrooms[id] == schoolID, nil
}

func (m *memoryTimetableStore) SubjectInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error) {
	return m.subjects[id] == schoolID, nil
}

func (m *memoryTimetableStore) TeacherInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error) {
	return m.teachers[id] == schoolID, nil
}

func (m *memoryTimetableStore) FindClassroom(ctx context.Context, schoolID, id string) (*models.Classroom, error) {
	if m.classrooms[id] != schoolID {
		return nil, sql.ErrNoRows
	}
	return &models.Classroom{ID: id, SchoolID: schoolID, Name: "class " + id}, nil
}

type recordingAuditor struct {
	actions []string
}

func (r *recordingAuditor) Record(ctx context.Context, identity models.Identity, action, resource, resourceID string, before, after interface{}) {
	r.actions = append(r.actions, action)
}

type timetableFixture struct {
	svc     *TimetableService
	store   *memoryTimetableStore
	mock    sqlmock.Sqlmock
	audit   *recordingAuditor
	metrics *MetricsService
}

func newTimetableFixture(t *testing.T) *timetableFixture {
	t.Helper()
	store := newMemoryTimetableStore()
	tx, mock := newTxProviderMock(t)
	audit := &recordingAuditor{}
	metrics := NewMetricsService()
	gate := NewAccessGate(&accessStoreStub{}, nil)
	svc := NewTimetableService(store, store, gate, tx, audit, metrics, nil, nil)
	return &timetableFixture{svc: svc, store: store, mock: mock, audit: audit, metrics: metrics}
}

var schoolAdmin = models.Identity{UserID: "admin", SchoolID: "school-1", Role: models.RoleAdmin}

func entryRequest(classroom, teacher, day, start, end string) dto.CreateTimetableEntryRequest {
	return dto.CreateTimetableEntryRequest{
		ClassroomID:    classroom,
		AcademicYearID: "y1",
		SubjectID:      "s1",
		TeacherID:      teacher,
		DayOfWeek:      day,
		StartTime:      start,
		EndTime:        end,
	}
}

func (f *timetableFixture) mustCreate(t *testing.T, req dto.CreateTimetableEntryRequest) *models.TimetableEntryDetail {
	t.Helper()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	entry, err := f.svc.Create(context.Background(), schoolAdmin, req)
	require.NoError(t, err)
	return entry
}

func (f *timetableFixture) createRejected(t *testing.T, req dto.CreateTimetableEntryRequest) error {
	t.Helper()
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.Create(context.Background(), schoolAdmin, req)
	require.Error(t, err)
	return err
}

func requireConflict(t *testing.T, err error, resource string) {
	t.Helper()
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
	assert.Contains(t, appErr.Message, resource+" conflict")
}

func TestTimetableServiceCreateEndToEnd(t *testing.T) {
	f := newTimetableFixture(t)
	ctx := context.Background()

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	first, err := f.svc.Create(ctx, schoolAdmin, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))
	require.NoError(t, err)
	assert.Equal(t, models.MustTimeOfDay("08:00"), first.StartTime)
	assert.Equal(t, "subject s1", first.SubjectName)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Create(ctx, schoolAdmin, entryRequest("c1", "t2", "MONDAY", "08:30", "09:30"))
	requireConflict(t, err, "classroom")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Create(ctx, schoolAdmin, entryRequest("c2", "t1", "MONDAY", "08:30", "09:30"))
	requireConflict(t, err, "teacher")

	assert.Len(t, f.store.entries, 1)
	assert.Equal(t, []string{models.AuditActionTimetableCreate}, f.audit.actions)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTimetableServiceCreateReportsClassroomFirst(t *testing.T) {
	f := newTimetableFixture(t)
	f.mustCreate(t, entryRequest("c1", "t1", "TUESDAY", "10:00", "11:00"))

	err := f.createRejected(t, entryRequest("c1", "t1", "TUESDAY", "10:30", "11:30"))
	requireConflict(t, err, "classroom")
}

func TestTimetableServiceTouchingRangesBothSucceed(t *testing.T) {
	f := newTimetableFixture(t)
	f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))
	f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "09:00", "10:00"))
	f.mustCreate(t, entryRequest("c1", "t1", "TUESDAY", "08:00", "09:00"))
	assert.Len(t, f.store.entries, 3)
}

func TestTimetableServiceCreateAcceptsISODateTimes(t *testing.T) {
	f := newTimetableFixture(t)
	entry := f.mustCreate(t, entryRequest("c1", "t1", "friday", "2024-09-06T08:15:00.000Z", "2024-09-06T09:45:00+02:00"))
	assert.Equal(t, models.Friday, entry.DayOfWeek)
	assert.Equal(t, "08:15", entry.StartTime.String())
	assert.Equal(t, "09:45", entry.EndTime.String())
}

func TestTimetableServiceCreateValidation(t *testing.T) {
	f := newTimetableFixture(t)

	_, err := f.svc.Create(context.Background(), schoolAdmin, entryRequest("c1", "t1", "MONDAY", "10:00", "09:00"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "startTime must be before endTime", appErr.Message)

	_, err = f.svc.Create(context.Background(), schoolAdmin, dto.CreateTimetableEntryRequest{DayOfWeek: "MONDAY"})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "classroomId is required")
	assert.Empty(t, f.store.entries)
}

func TestTimetableServiceCreateRejectsForeignReferences(t *testing.T) {
	f := newTimetableFixture(t)
	req := entryRequest("c1", "t9", "MONDAY", "08:00", "09:00")

	err := f.createRejected(t, req)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "teacher not found", appErr.Message)
}

func TestTimetableServiceCreateRequiresAdmin(t *testing.T) {
	f := newTimetableFixture(t)
	teacher := models.Identity{UserID: "u2", SchoolID: "school-1", Role: models.RoleTeacher, TeacherID: "t1"}

	_, err := f.svc.Create(context.Background(), teacher, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceCreateTranslatesStorageRejection(t *testing.T) {
	f := newTimetableFixture(t)
	f.store.createErr = &models.ErrSlotTaken{Resource: models.ConflictResourceTeacher}

	err := f.createRejected(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))
	requireConflict(t, err, "teacher")
}

func TestTimetableServiceUpdateSubjectOnlySkipsCheck(t *testing.T) {
	f := newTimetableFixture(t)
	created := f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))

	queries := f.store.slotQueries
	subject := "s2"
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	updated, err := f.svc.Update(context.Background(), schoolAdmin, created.ID, dto.UpdateTimetableEntryRequest{SubjectID: &subject})
	require.NoError(t, err)
	assert.Equal(t, "s2", updated.SubjectID)
	assert.Equal(t, queries, f.store.slotQueries)
	assert.Contains(t, f.audit.actions, models.AuditActionTimetableUpdate)
}

func TestTimetableServiceUpdateExcludesSelf(t *testing.T) {
	f := newTimetableFixture(t)
	created := f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))

	start, end := "08:30", "09:30"
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	updated, err := f.svc.Update(context.Background(), schoolAdmin, created.ID, dto.UpdateTimetableEntryRequest{StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, "08:30", updated.StartTime.String())
}

func TestTimetableServiceUpdateDetectsConflict(t *testing.T) {
	f := newTimetableFixture(t)
	f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))
	second := f.mustCreate(t, entryRequest("c2", "t2", "MONDAY", "08:00", "09:00"))

	teacher := "t1"
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.Update(context.Background(), schoolAdmin, second.ID, dto.UpdateTimetableEntryRequest{TeacherID: &teacher})
	requireConflict(t, err, "teacher")
	assert.Equal(t, "t2", f.store.entries[second.ID].TeacherID)
}

func TestTimetableServiceUpdateMergedRangeMustBeValid(t *testing.T) {
	f := newTimetableFixture(t)
	created := f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))

	start := "09:30"
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.Update(context.Background(), schoolAdmin, created.ID, dto.UpdateTimetableEntryRequest{StartTime: &start})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceOtherSchoolIsNotFound(t *testing.T) {
	f := newTimetableFixture(t)
	created := f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))

	outsider := models.Identity{UserID: "admin-2", SchoolID: "school-2", Role: models.RoleAdmin}
	ctx := context.Background()

	_, err := f.svc.Get(ctx, outsider, created.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	subject := "s9"
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err = f.svc.Update(ctx, outsider, created.ID, dto.UpdateTimetableEntryRequest{SubjectID: &subject})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	err = f.svc.Delete(ctx, outsider, created.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Len(t, f.store.entries, 1)
}

func TestTimetableServiceDelete(t *testing.T) {
	f := newTimetableFixture(t)
	created := f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))

	require.NoError(t, f.svc.Delete(context.Background(), schoolAdmin, created.ID))
	assert.Empty(t, f.store.entries)
	assert.Contains(t, f.audit.actions, models.AuditActionTimetableDelete)

	err := f.svc.Delete(context.Background(), schoolAdmin, created.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceListForNonAdmin(t *testing.T) {
	f := newTimetableFixture(t)
	f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))

	teacher := models.Identity{UserID: "u-t1", SchoolID: "school-1", Role: models.RoleTeacher, TeacherID: "t1"}
	ctx := context.Background()

	_, err := f.svc.List(ctx, teacher, "y1", dto.TimetableListFilter{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	entries, err := f.svc.List(ctx, teacher, "y1", dto.TimetableListFilter{TeacherID: "t1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = f.svc.List(ctx, schoolAdmin, "y1", dto.TimetableListFilter{DayOfWeek: "tuesday"})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	_, err = f.svc.List(ctx, schoolAdmin, "y1", dto.TimetableListFilter{DayOfWeek: "someday"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceWeeklyForClassroom(t *testing.T) {
	f := newTimetableFixture(t)
	f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "10:00", "11:00"))
	f.mustCreate(t, entryRequest("c1", "t2", "MONDAY", "08:00", "09:00"))

	week, err := f.svc.WeeklyForClassroom(context.Background(), schoolAdmin, "c1", "y1")
	require.NoError(t, err)
	assert.Len(t, week, 7)
	require.Len(t, week[models.Monday], 2)
	assert.Equal(t, "08:00", week[models.Monday][0].StartTime.String())
	assert.NotNil(t, week[models.Sunday])

	_, err = f.svc.WeeklyForClassroom(context.Background(), schoolAdmin, "c9", "y1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceWeeklyForTeacher(t *testing.T) {
	f := newTimetableFixture(t)
	f.mustCreate(t, entryRequest("c1", "t1", "WEDNESDAY", "08:00", "09:00"))

	self := models.Identity{UserID: "u-t1", SchoolID: "school-1", Role: models.RoleTeacher, TeacherID: "t1"}
	week, err := f.svc.WeeklyForTeacher(context.Background(), self, "t1", "y1")
	require.NoError(t, err)
	assert.Len(t, week[models.Wednesday], 1)

	other := models.Identity{UserID: "u-t2", SchoolID: "school-1", Role: models.RoleTeacher, TeacherID: "t2"}
	_, err = f.svc.WeeklyForTeacher(context.Background(), other, "t1", "y1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceBulkImportPartial(t *testing.T) {
	f := newTimetableFixture(t)
	rows := []dto.TimetableImportRow{
		{Row: 2, Request: entryRequest("c1", "t1", "MONDAY", "08:00", "09:00")},
		{Row: 3, Request: entryRequest("c1", "t2", "MONDAY", "08:30", "09:30")},
		{Row: 4, Request: entryRequest("c2", "t2", "MONDAY", "08:30", "09:30")},
		{Row: 5, Request: entryRequest("c2", "t2", "FUNDAY", "08:30", "09:30")},
	}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	result, err := f.svc.BulkImport(context.Background(), schoolAdmin, rows, true)
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, 3, result.Failures[0].Row)
	assert.Contains(t, result.Failures[0].Error, "classroom conflict")
	assert.Equal(t, 5, result.Failures[1].Row)
	assert.Len(t, f.store.entries, 2)
	assert.Contains(t, f.audit.actions, models.AuditActionTimetableImport)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestTimetableServiceBulkImportAllOrNothing(t *testing.T) {
	f := newTimetableFixture(t)
	rows := []dto.TimetableImportRow{
		{Row: 2, Request: entryRequest("c1", "t1", "MONDAY", "08:00", "09:00")},
		{Row: 3, Request: entryRequest("c2", "t1", "MONDAY", "08:00", "08:45")},
	}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.BulkImport(context.Background(), schoolAdmin, rows, false)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrScheduleConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "row 3: teacher conflict")
	assert.Empty(t, f.store.entries)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestConflictMetricIsRecorded(t *testing.T) {
	f := newTimetableFixture(t)
	f.mustCreate(t, entryRequest("c1", "t1", "MONDAY", "08:00", "09:00"))
	f.createRejected(t, entryRequest("c1", "t2", "MONDAY", "08:00", "09:00"))

	families, err := f.metrics.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, family := range families {
		if family.GetName() != "mon_ecole_timetable_conflicts_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "resource" && label.GetValue() == models.ConflictResourceClassroom {
					found = metric.GetCounter().GetValue() == 1
				}
			}
		}
	}
	assert.True(t, found)
}
