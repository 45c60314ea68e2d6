package domain

type StatsSummary struct {
	UsersToday            int            `json:"users_today"`
	UsersWeek             int            `json:"users_week"`
	BookingsToday         int            `json:"bookings_today"`
	ApprovedWeek          int            `json:"approved_week"`
	RegistrationsByLesson map[string]int `json:"registrations_by_lesson"`
}

// StatusCount is one row of the booking summary report.
type StatusCount struct {
	CourseID int64         `json:"course_id"`
	Status   BookingStatus `json:"status"`
	Count    int           `json:"count"`
}
