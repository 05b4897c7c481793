package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/dto"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/middleware"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/service"
	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/response"
)

const defaultImportMaxFileSize = 5 << 20

type timetableService interface {
	Create(ctx context.Context, identity models.Identity, req dto.CreateTimetableEntryRequest) (*models.TimetableEntryDetail, error)
	Update(ctx context.Context, identity models.Identity, id string, req dto.UpdateTimetableEntryRequest) (*models.TimetableEntryDetail, error)
	Delete(ctx context.Context, identity models.Identity, id string) error
	Get(ctx context.Context, identity models.Identity, id string) (*models.TimetableEntryDetail, error)
	List(ctx context.Context, identity models.Identity, academicYearID string, filter dto.TimetableListFilter) ([]models.TimetableEntryDetail, error)
	WeeklyForClassroom(ctx context.Context, identity models.Identity, classroomID, academicYearID string) (dto.WeeklyTimetable, error)
	WeeklyForTeacher(ctx context.Context, identity models.Identity, teacherID, academicYearID string) (dto.WeeklyTimetable, error)
	BulkImport(ctx context.Context, identity models.Identity, rows []dto.TimetableImportRow, partialOnError bool) (*dto.TimetableImportResult, error)
}

type timetableExporter interface {
	ClassroomTimetable(ctx context.Context, identity models.Identity, classroomID, academicYearID, format string) (*service.ExportFile, error)
}

// TimetableHandler serves timetable entries and weekly views.
type TimetableHandler struct {
	service       timetableService
	exporter      timetableExporter
	maxUploadSize int64
	maxImportRows int
}

// NewTimetableHandler constructs the handler. A non-positive maxUploadSize uses 5 MiB.
func NewTimetableHandler(svc timetableService, exporter timetableExporter, maxUploadSize int64, maxImportRows int) *TimetableHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = defaultImportMaxFileSize
	}
	return &TimetableHandler{service: svc, exporter: exporter, maxUploadSize: maxUploadSize, maxImportRows: maxImportRows}
}

// List godoc
// @Summary List timetable entries
// @Description Admins may list the whole school; other members must filter on a classroom they can see or on their own teacher profile.
// @Tags Timetable
// @Produce json
// @Param x-school-id header string true "School ID"
// @Param x-academic-year-id header string false "Academic year ID"
// @Param academicYearId query string false "Academic year ID, takes precedence over the header"
// @Param classroomId query string false "Filter by classroom"
// @Param teacherId query string false "Filter by teacher"
// @Param day query string false "Filter by weekday"
// @Success 200 {object} map[string][]models.TimetableEntryDetail
// @Failure 403 {object} response.ErrorBody
// @Router /timetable-entries [get]
func (h *TimetableHandler) List(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := dto.TimetableListFilter{
		ClassroomID:    c.Query("classroomId"),
		TeacherID:      c.Query("teacherId"),
		DayOfWeek:      c.DefaultQuery("day", c.Query("dayOfWeek")),
		AcademicYearID: c.Query("academicYearId"),
	}
	yearID := filter.AcademicYearID
	if yearID == "" {
		yearID = middleware.AcademicYearFromContext(c)
	}

	entries, err := h.service.List(c.Request.Context(), identity, yearID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "timetableEntries", entries)
}

// Get godoc
// @Summary Get a timetable entry
// @Tags Timetable
// @Produce json
// @Param x-school-id header string true "School ID"
// @Param id path string true "Entry ID"
// @Success 200 {object} map[string]models.TimetableEntryDetail
// @Failure 404 {object} response.ErrorBody
// @Router /timetable-entries/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entry, err := h.service.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "timetableEntry", entry)
}

// Create godoc
// @Summary Schedule a timetable entry
// @Description Rejects the entry when its classroom or teacher is already booked at an overlapping time.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param x-school-id header string true "School ID"
// @Param payload body dto.CreateTimetableEntryRequest true "Entry"
// @Success 201 {object} map[string]models.TimetableEntryDetail
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /timetable-entries [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateTimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable entry payload"))
		return
	}

	entry, err := h.service.Create(c.Request.Context(), identity, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "timetableEntry", entry)
}

// Update godoc
// @Summary Update a timetable entry
// @Description Partial update; the conflict check runs again when the day, times, classroom, teacher or year change.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param x-school-id header string true "School ID"
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateTimetableEntryRequest true "Patch"
// @Success 200 {object} map[string]models.TimetableEntryDetail
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /timetable-entries/{id} [patch]
func (h *TimetableHandler) Update(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateTimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable entry payload"))
		return
	}

	entry, err := h.service.Update(c.Request.Context(), identity, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "timetableEntry", entry)
}

// Delete godoc
// @Summary Delete a timetable entry
// @Tags Timetable
// @Param x-school-id header string true "School ID"
// @Param id path string true "Entry ID"
// @Success 204
// @Failure 404 {object} response.ErrorBody
// @Router /timetable-entries/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), identity, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Import godoc
// @Summary Import timetable entries from a spreadsheet
// @Description Reads the first sheet of an xlsx upload. Columns: classroomId, subjectId, teacherId, dayOfWeek, startTime, endTime and optionally academicYearId.
// @Tags Timetable
// @Accept multipart/form-data
// @Produce json
// @Param x-school-id header string true "School ID"
// @Param file formData file true "xlsx workbook"
// @Param x-academic-year-id header string false "Academic year for rows without an academicYearId column"
// @Param partialOnError query bool false "Keep valid rows when some rows fail"
// @Success 201 {object} map[string]dto.TimetableImportResult
// @Success 200 {object} map[string]dto.TimetableImportResult "No row was created"
// @Failure 400 {object} response.ErrorBody
// @Router /timetable-entries/import [post]
func (h *TimetableHandler) Import(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	partial, err := strconv.ParseBool(c.DefaultQuery("partialOnError", "false"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "partialOnError must be true or false"))
		return
	}

	raw, err := h.readUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := service.ParseTimetableWorkbook(raw, middleware.AcademicYearFromContext(c), h.maxImportRows)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.BulkImport(c.Request.Context(), identity, rows, partial)
	if err != nil {
		response.Error(c, err)
		return
	}
	if len(result.Created) == 0 {
		response.JSON(c, http.StatusOK, "timetableImport", result)
		return
	}
	response.Created(c, "timetableImport", result)
}

func (h *TimetableHandler) readUpload(c *gin.Context) ([]byte, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "a file field with an xlsx workbook is required")
	}
	if file.Size > h.maxUploadSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("the file exceeds the %d byte limit", h.maxUploadSize))
	}
	f, err := file.Open()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open upload")
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, h.maxUploadSize+1))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to read upload")
	}
	if int64(len(raw)) > h.maxUploadSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("the file exceeds the %d byte limit", h.maxUploadSize))
	}
	return raw, nil
}

// ClassroomWeek godoc
// @Summary Weekly timetable of a classroom
// @Tags Timetable
// @Produce json
// @Param x-school-id header string true "School ID"
// @Param x-academic-year-id header string false "Academic year ID"
// @Param id path string true "Classroom ID"
// @Success 200 {object} map[string]dto.WeeklyTimetable
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /classrooms/{id}/timetable [get]
func (h *TimetableHandler) ClassroomWeek(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	week, err := h.service.WeeklyForClassroom(c.Request.Context(), identity, c.Param("id"), middleware.AcademicYearFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "timetable", week)
}

// ExportClassroomWeek godoc
// @Summary Download a classroom timetable
// @Tags Timetable
// @Produce text/csv,application/pdf,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param x-school-id header string true "School ID"
// @Param id path string true "Classroom ID"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /classrooms/{id}/timetable/export [get]
func (h *TimetableHandler) ExportClassroomWeek(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	file, err := h.exporter.ClassroomTimetable(c.Request.Context(), identity, c.Param("id"), middleware.AcademicYearFromContext(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// TeacherWeek godoc
// @Summary Weekly timetable of a teacher
// @Tags Timetable
// @Produce json
// @Param x-school-id header string true "School ID"
// @Param id path string true "Teacher ID"
// @Success 200 {object} map[string]dto.WeeklyTimetable
// @Failure 403 {object} response.ErrorBody
// @Router /teachers/{id}/timetable [get]
func (h *TimetableHandler) TeacherWeek(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	week, err := h.service.WeeklyForTeacher(c.Request.Context(), identity, c.Param("id"), middleware.AcademicYearFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "timetable", week)
}
