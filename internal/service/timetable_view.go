package service

import (
	"sort"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/dto"
	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
)

// BuildWeeklyView groups entries by weekday. All seven days are present, empty days hold
// an empty slice, and each day is ordered by start time keeping input order for ties.
func BuildWeeklyView(entries []models.TimetableEntryDetail) dto.WeeklyTimetable {
	view := make(dto.WeeklyTimetable, 7)
	for _, day := range models.AllWeekdays() {
		view[day] = []models.TimetableEntryDetail{}
	}
	for _, entry := range entries {
		bucket, ok := view[entry.DayOfWeek]
		if !ok {
			continue
		}
		view[entry.DayOfWeek] = append(bucket, entry)
	}
	for day := range view {
		items := view[day]
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].StartTime < items[j].StartTime
		})
	}
	return view
}
