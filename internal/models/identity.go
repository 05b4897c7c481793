package models

// SchoolMembership is a user's role inside one school plus the profile rows the user
// owns there. Profile ids are nil when the user has no such profile.
type SchoolMembership struct {
	UserID    string   `db:"user_id" json:"userId"`
	SchoolID  string   `db:"school_id" json:"schoolId"`
	Role      UserRole `db:"role" json:"role"`
	TeacherID *string  `db:"teacher_id" json:"teacherId,omitempty"`
	StudentID *string  `db:"student_id" json:"studentId,omitempty"`
	ParentID  *string  `db:"parent_id" json:"parentId,omitempty"`
}

// Identity is the resolved caller of a tenant-scoped request. It is built once per
// request and passed explicitly to services.
type Identity struct {
	UserID    string
	SchoolID  string
	Role      UserRole
	TeacherID string
	StudentID string
	ParentID  string

	IPAddress string
	UserAgent string
}

// IdentityFromMembership flattens a membership into an Identity.
func IdentityFromMembership(m SchoolMembership) Identity {
	id := Identity{UserID: m.UserID, SchoolID: m.SchoolID, Role: m.Role}
	if m.TeacherID != nil {
		id.TeacherID = *m.TeacherID
	}
	if m.StudentID != nil {
		id.StudentID = *m.StudentID
	}
	if m.ParentID != nil {
		id.ParentID = *m.ParentID
	}
	return id
}

// IsAdmin reports whether the identity administers its school.
func (i Identity) IsAdmin() bool {
	return i.Role.IsAdministrative()
}
