package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/dto"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

const timetableAuditResource = "timetable_entry"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableEntryStore interface {
	timetableSlotReader
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (*models.TimetableEntryDetail, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error
	Delete(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) error
}

type timetableScopeStore interface {
	AcademicYearInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error)
	ClassroomInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error)
	SubjectInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error)
	TeacherInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID, id string) (bool, error)
	FindClassroom(ctx context.Context, schoolID, id string) (*models.Classroom, error)
}

type timetableAccessChecker interface {
	RequireClassroomTimetable(ctx context.Context, identity models.Identity, classroomID, academicYearID string) error
	CanViewTeacherTimetable(identity models.Identity, schoolID, teacherID string) bool
}

type timetableAuditor interface {
	Record(ctx context.Context, identity models.Identity, action, resource, resourceID string, before, after interface{})
}

// TimetableService schedules weekly entries without double-booking classrooms or teachers.
type TimetableService struct {
	entries   timetableEntryStore
	scope     timetableScopeStore
	access    timetableAccessChecker
	checker   *ConflictChecker
	tx        txProvider
	audit     timetableAuditor
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	entries timetableEntryStore,
	scope timetableScopeStore,
	access timetableAccessChecker,
	tx txProvider,
	audit timetableAuditor,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if audit == nil {
		audit = (*AuditService)(nil)
	}
	return &TimetableService{
		entries:   entries,
		scope:     scope,
		access:    access,
		checker:   NewConflictChecker(entries),
		tx:        tx,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create schedules a new entry after checking that neither its classroom nor its teacher
// is already booked.
func (s *TimetableService) Create(ctx context.Context, identity models.Identity, req dto.CreateTimetableEntryRequest) (*models.TimetableEntryDetail, error) {
	if !identity.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school administrators can edit timetables")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	entry, err := entryFromRequest(req)
	if err != nil {
		return nil, err
	}

	var created *models.TimetableEntryDetail
	err = s.inSerializableTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.ensureInSchool(ctx, tx, identity.SchoolID, entry, nil); err != nil {
			return err
		}
		if err := s.ensureNoConflict(ctx, tx, entry, ""); err != nil {
			return err
		}
		if err := s.entries.Create(ctx, tx, &entry); err != nil {
			return err
		}
		detail, err := s.entries.FindByID(ctx, tx, identity.SchoolID, entry.ID)
		if err != nil {
			return err
		}
		created = detail
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTimetableWrite("create", 1)
	s.audit.Record(ctx, identity, models.AuditActionTimetableCreate, timetableAuditResource, created.ID, nil, created.TimetableEntry)
	return created, nil
}

// Update applies a partial patch. The conflict check only runs when a field that affects
// scheduling changes; a subject-only patch never re-checks.
func (s *TimetableService) Update(ctx context.Context, identity models.Identity, id string, req dto.UpdateTimetableEntryRequest) (*models.TimetableEntryDetail, error) {
	if !identity.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school administrators can edit timetables")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	var before models.TimetableEntry
	var updated *models.TimetableEntryDetail
	err := s.inSerializableTx(ctx, func(tx *sqlx.Tx) error {
		current, err := s.entries.FindByID(ctx, tx, identity.SchoolID, id)
		if err != nil {
			return err
		}
		before = current.TimetableEntry
		if req.Empty() {
			updated = current
			return nil
		}

		merged, err := applyPatch(before, req)
		if err != nil {
			return err
		}
		if err := s.ensureInSchool(ctx, tx, identity.SchoolID, merged, &before); err != nil {
			return err
		}
		if schedulingChanged(before, merged) {
			if err := s.ensureNoConflict(ctx, tx, merged, id); err != nil {
				return err
			}
		}
		if err := s.entries.Update(ctx, tx, &merged); err != nil {
			return err
		}
		detail, err := s.entries.FindByID(ctx, tx, identity.SchoolID, id)
		if err != nil {
			return err
		}
		updated = detail
		return nil
	})
	if err != nil {
		return nil, err
	}
	if req.Empty() {
		return updated, nil
	}

	s.metrics.RecordTimetableWrite("update", 1)
	s.audit.Record(ctx, identity, models.AuditActionTimetableUpdate, timetableAuditResource, id, before, updated.TimetableEntry)
	return updated, nil
}

// Delete removes an entry of the caller's school.
func (s *TimetableService) Delete(ctx context.Context, identity models.Identity, id string) error {
	if !identity.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only school administrators can edit timetables")
	}
	current, err := s.entries.FindByID(ctx, nil, identity.SchoolID, id)
	if err != nil {
		return entryLookupError(err)
	}
	if err := s.entries.Delete(ctx, nil, identity.SchoolID, id); err != nil {
		return entryLookupError(err)
	}
	s.metrics.RecordTimetableWrite("delete", 1)
	s.audit.Record(ctx, identity, models.AuditActionTimetableDelete, timetableAuditResource, id, current.TimetableEntry, nil)
	return nil
}

// Get returns one entry. Non-admins must be allowed to see the entry's classroom.
func (s *TimetableService) Get(ctx context.Context, identity models.Identity, id string) (*models.TimetableEntryDetail, error) {
	entry, err := s.entries.FindByID(ctx, nil, identity.SchoolID, id)
	if err != nil {
		return nil, entryLookupError(err)
	}
	if !identity.IsAdmin() {
		if err := s.access.RequireClassroomTimetable(ctx, identity, entry.ClassroomID, entry.AcademicYearID); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// List returns the school's entries for one academic year. Admins may list everything;
// other members must name a classroom they can see, or their own teacher profile.
func (s *TimetableService) List(ctx context.Context, identity models.Identity, academicYearID string, filter dto.TimetableListFilter) ([]models.TimetableEntryDetail, error) {
	query := models.TimetableFilter{
		SchoolID:       identity.SchoolID,
		AcademicYearID: academicYearID,
		ClassroomID:    filter.ClassroomID,
		TeacherID:      filter.TeacherID,
	}
	if filter.DayOfWeek != "" {
		day, err := models.ParseWeekday(filter.DayOfWeek)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "day must be one of MONDAY..SUNDAY")
		}
		query.DayOfWeek = day
	}

	if !identity.IsAdmin() {
		switch {
		case filter.ClassroomID != "":
			if err := s.access.RequireClassroomTimetable(ctx, identity, filter.ClassroomID, academicYearID); err != nil {
				return nil, err
			}
		case filter.TeacherID != "" && s.access.CanViewTeacherTimetable(identity, identity.SchoolID, filter.TeacherID):
		default:
			return nil, appErrors.Clone(appErrors.ErrForbidden, "classroomId is required to list timetable entries")
		}
	}

	entries, err := s.entries.List(ctx, query)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list timetable entries")
	}
	if entries == nil {
		entries = []models.TimetableEntryDetail{}
	}
	return entries, nil
}

// WeeklyForClassroom returns the classroom's week grouped by day.
func (s *TimetableService) WeeklyForClassroom(ctx context.Context, identity models.Identity, classroomID, academicYearID string) (dto.WeeklyTimetable, error) {
	if _, err := s.scope.FindClassroom(ctx, identity.SchoolID, classroomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Internal(err, "failed to load classroom")
	}
	if err := s.access.RequireClassroomTimetable(ctx, identity, classroomID, academicYearID); err != nil {
		return nil, err
	}
	entries, err := s.entries.List(ctx, models.TimetableFilter{
		SchoolID:       identity.SchoolID,
		AcademicYearID: academicYearID,
		ClassroomID:    classroomID,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load classroom timetable")
	}
	return BuildWeeklyView(entries), nil
}

// WeeklyForTeacher returns the teacher's week grouped by day.
func (s *TimetableService) WeeklyForTeacher(ctx context.Context, identity models.Identity, teacherID, academicYearID string) (dto.WeeklyTimetable, error) {
	ok, err := s.scope.TeacherInSchool(ctx, nil, identity.SchoolID, teacherID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teacher")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	if !s.access.CanViewTeacherTimetable(identity, identity.SchoolID, teacherID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not allowed to view this timetable")
	}
	entries, err := s.entries.List(ctx, models.TimetableFilter{
		SchoolID:       identity.SchoolID,
		AcademicYearID: academicYearID,
		TeacherID:      teacherID,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teacher timetable")
	}
	return BuildWeeklyView(entries), nil
}

// BulkImport creates many entries in one transaction. Each row is checked against stored
// entries and against the rows accepted before it. When partialOnError is false the
// first failing row aborts the whole import.
func (s *TimetableService) BulkImport(ctx context.Context, identity models.Identity, rows []dto.TimetableImportRow, partialOnError bool) (*dto.TimetableImportResult, error) {
	if !identity.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only school administrators can edit timetables")
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "the import contains no rows")
	}

	result := &dto.TimetableImportResult{Created: []models.TimetableEntryDetail{}}
	err := s.inSerializableTx(ctx, func(tx *sqlx.Tx) error {
		accepted := make([]models.TimetableEntry, 0, len(rows))
		for _, row := range rows {
			entry, err := s.prepareImportRow(ctx, tx, identity.SchoolID, row, accepted)
			if err != nil {
				appErr := appErrors.FromError(err)
				if appErr.Status >= 500 {
					return err
				}
				if !partialOnError {
					return appErrors.Clone(appErr, fmt.Sprintf("row %d: %s", row.Row, appErr.Message))
				}
				result.Failures = append(result.Failures, dto.TimetableImportFailure{Row: row.Row, Error: appErr.Message})
				continue
			}
			accepted = append(accepted, entry)
		}
		for i := range accepted {
			if err := s.entries.Create(ctx, tx, &accepted[i]); err != nil {
				return err
			}
			detail, err := s.entries.FindByID(ctx, tx, identity.SchoolID, accepted[i].ID)
			if err != nil {
				return err
			}
			result.Created = append(result.Created, *detail)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTimetableWrite("import", len(result.Created))
	if len(result.Created) > 0 {
		s.audit.Record(ctx, identity, models.AuditActionTimetableImport, timetableAuditResource, "", nil, map[string]int{
			"created": len(result.Created),
			"failed":  len(result.Failures),
		})
	}
	return result, nil
}

func (s *TimetableService) prepareImportRow(ctx context.Context, tx *sqlx.Tx, schoolID string, row dto.TimetableImportRow, accepted []models.TimetableEntry) (models.TimetableEntry, error) {
	if err := s.validator.Struct(row.Request); err != nil {
		return models.TimetableEntry{}, validationError(err)
	}
	entry, err := entryFromRequest(row.Request)
	if err != nil {
		return models.TimetableEntry{}, err
	}
	if err := s.ensureInSchool(ctx, tx, schoolID, entry, nil); err != nil {
		return models.TimetableEntry{}, err
	}
	if err := s.ensureNoConflict(ctx, tx, entry, ""); err != nil {
		return models.TimetableEntry{}, err
	}
	if batch := CheckAgainst(entry, accepted); batch.HasConflict() {
		s.metrics.RecordTimetableConflict(batch.Resource())
		return models.TimetableEntry{}, batch.Err()
	}
	return entry, nil
}

func (s *TimetableService) ensureNoConflict(ctx context.Context, exec sqlx.ExtContext, entry models.TimetableEntry, excludeID string) error {
	result, err := s.checker.Check(ctx, exec, entry, excludeID)
	if err != nil {
		return err
	}
	if result.HasConflict() {
		s.metrics.RecordTimetableConflict(result.Resource())
		s.logger.Debug("timetable conflict",
			zap.String("resource", result.Resource()),
			zap.String("classroom_id", entry.ClassroomID),
			zap.String("teacher_id", entry.TeacherID),
			zap.String("day", string(entry.DayOfWeek)),
		)
		return result.Err()
	}
	return nil
}

// ensureInSchool 404s on any reference outside the school. With a previous version only
// the references that changed are checked again.
func (s *TimetableService) ensureInSchool(ctx context.Context, exec sqlx.ExtContext, schoolID string, entry models.TimetableEntry, previous *models.TimetableEntry) error {
	checks := []struct {
		name    string
		id      string
		changed bool
		fn      func(context.Context, sqlx.ExtContext, string, string) (bool, error)
	}{
		{"classroom", entry.ClassroomID, previous == nil || previous.ClassroomID != entry.ClassroomID, s.scope.ClassroomInSchool},
		{"academic year", entry.AcademicYearID, previous == nil || previous.AcademicYearID != entry.AcademicYearID, s.scope.AcademicYearInSchool},
		{"subject", entry.SubjectID, previous == nil || previous.SubjectID != entry.SubjectID, s.scope.SubjectInSchool},
		{"teacher", entry.TeacherID, previous == nil || previous.TeacherID != entry.TeacherID, s.scope.TeacherInSchool},
	}
	for _, check := range checks {
		if !check.changed {
			continue
		}
		ok, err := check.fn(ctx, exec, schoolID, check.id)
		if err != nil {
			return err
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, check.name+" not found")
		}
	}
	return nil
}

func (s *TimetableService) inSerializableTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return appErrors.Internal(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return s.writeError(err)
	}
	if err := tx.Commit(); err != nil {
		return s.writeError(err)
	}
	return nil
}

// writeError maps storage failures of a write transaction. Exclusion violations and
// serialization failures mean a concurrent write took the slot.
func (s *TimetableService) writeError(err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	var taken *models.ErrSlotTaken
	if errors.As(err, &taken) {
		s.metrics.RecordTimetableConflict(taken.Resource)
		return conflictError(taken.Resource, nil)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == "40001" {
		s.metrics.RecordTimetableConflict("")
		return conflictError("", nil)
	}
	return entryLookupError(err)
}

func entryLookupError(err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
	}
	return appErrors.Internal(err, "timetable storage failure")
}

func entryFromRequest(req dto.CreateTimetableEntryRequest) (models.TimetableEntry, error) {
	day, err := models.ParseWeekday(req.DayOfWeek)
	if err != nil {
		return models.TimetableEntry{}, appErrors.Clone(appErrors.ErrValidation, "dayOfWeek must be one of MONDAY..SUNDAY")
	}
	start, err := models.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return models.TimetableEntry{}, appErrors.Clone(appErrors.ErrValidation, "startTime is not a valid time")
	}
	end, err := models.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return models.TimetableEntry{}, appErrors.Clone(appErrors.ErrValidation, "endTime is not a valid time")
	}
	if _, err := models.NewTimeRange(day, start, end); err != nil {
		return models.TimetableEntry{}, appErrors.Clone(appErrors.ErrValidation, "startTime must be before endTime")
	}
	return models.TimetableEntry{
		ClassroomID:    req.ClassroomID,
		AcademicYearID: req.AcademicYearID,
		SubjectID:      req.SubjectID,
		TeacherID:      req.TeacherID,
		DayOfWeek:      day,
		StartTime:      start,
		EndTime:        end,
	}, nil
}

func applyPatch(current models.TimetableEntry, req dto.UpdateTimetableEntryRequest) (models.TimetableEntry, error) {
	merged := current
	if req.ClassroomID != nil {
		merged.ClassroomID = *req.ClassroomID
	}
	if req.AcademicYearID != nil {
		merged.AcademicYearID = *req.AcademicYearID
	}
	if req.SubjectID != nil {
		merged.SubjectID = *req.SubjectID
	}
	if req.TeacherID != nil {
		merged.TeacherID = *req.TeacherID
	}
	if req.DayOfWeek != nil {
		day, err := models.ParseWeekday(*req.DayOfWeek)
		if err != nil {
			return current, appErrors.Clone(appErrors.ErrValidation, "dayOfWeek must be one of MONDAY..SUNDAY")
		}
		merged.DayOfWeek = day
	}
	if req.StartTime != nil {
		start, err := models.ParseTimeOfDay(*req.StartTime)
		if err != nil {
			return current, appErrors.Clone(appErrors.ErrValidation, "startTime is not a valid time")
		}
		merged.StartTime = start
	}
	if req.EndTime != nil {
		end, err := models.ParseTimeOfDay(*req.EndTime)
		if err != nil {
			return current, appErrors.Clone(appErrors.ErrValidation, "endTime is not a valid time")
		}
		merged.EndTime = end
	}
	if _, err := models.NewTimeRange(merged.DayOfWeek, merged.StartTime, merged.EndTime); err != nil {
		return current, appErrors.Clone(appErrors.ErrValidation, "startTime must be before endTime")
	}
	return merged, nil
}

func schedulingChanged(before, after models.TimetableEntry) bool {
	return before.ClassroomID != after.ClassroomID ||
		before.AcademicYearID != after.AcademicYearID ||
		before.TeacherID != after.TeacherID ||
		before.DayOfWeek != after.DayOfWeek ||
		before.StartTime != after.StartTime ||
		before.EndTime != after.EndTime
}
