package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

type timetableAccessStore interface {
	TeacherHasClassroom(ctx context.Context, teacherID, classroomID, academicYearID string) (bool, error)
	StudentEnrolled(ctx context.Context, studentID, classroomID, academicYearID string) (bool, error)
	ParentHasEnrolledChild(ctx context.Context, parentID, classroomID, academicYearID string) (bool, error)
}

// AccessGate decides who may read a timetable. Any satisfied rule grants access.
type AccessGate struct {
	store  timetableAccessStore
	logger *zap.Logger
}

// NewAccessGate constructs the gate.
func NewAccessGate(store timetableAccessStore, logger *zap.Logger) *AccessGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGate{store: store, logger: logger}
}

// CanViewClassroomTimetable allows school admins, teachers assigned to or scheduled in the
// classroom, students enrolled in it, and parents of such students.
func (g *AccessGate) CanViewClassroomTimetable(ctx context.Context, identity models.Identity, schoolID, classroomID, academicYearID string) (bool, error) {
	if identity.SchoolID != schoolID {
		return false, nil
	}
	if identity.IsAdmin() {
		return true, nil
	}
	if identity.TeacherID != "" {
		ok, err := g.store.TeacherHasClassroom(ctx, identity.TeacherID, classroomID, academicYearID)
		if err != nil {
			return false, appErrors.Internal(err, "failed to check teacher access")
		}
		if ok {
			return true, nil
		}
	}
	if identity.StudentID != "" {
		ok, err := g.store.StudentEnrolled(ctx, identity.StudentID, classroomID, academicYearID)
		if err != nil {
			return false, appErrors.Internal(err, "failed to check student access")
		}
		if ok {
			return true, nil
		}
	}
	if identity.ParentID != "" {
		ok, err := g.store.ParentHasEnrolledChild(ctx, identity.ParentID, classroomID, academicYearID)
		if err != nil {
			return false, appErrors.Internal(err, "failed to check parent access")
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// CanViewTeacherTimetable allows school admins and the teacher themself.
func (g *AccessGate) CanViewTeacherTimetable(identity models.Identity, schoolID, teacherID string) bool {
	if identity.SchoolID != schoolID {
		return false
	}
	return identity.IsAdmin() || (identity.TeacherID != "" && identity.TeacherID == teacherID)
}

// RequireClassroomTimetable is CanViewClassroomTimetable turned into a 403 error.
func (g *AccessGate) RequireClassroomTimetable(ctx context.Context, identity models.Identity, classroomID, academicYearID string) error {
	ok, err := g.CanViewClassroomTimetable(ctx, identity, identity.SchoolID, classroomID, academicYearID)
	if err != nil {
		return err
	}
	if !ok {
		g.logger.Debug("timetable access denied",
			zap.String("user_id", identity.UserID),
			zap.String("classroom_id", classroomID),
			zap.String("role", string(identity.Role)),
		)
		return appErrors.Clone(appErrors.ErrForbidden, "you are not allowed to view this timetable")
	}
	return nil
}
