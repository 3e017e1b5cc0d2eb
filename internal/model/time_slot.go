package model

import "time"

type SlotStatus string

const (
	SlotStatusFree SlotStatus = "free"
	SlotStatusBusy SlotStatus = "busy"
)

// TimeSlot is a teacher-published period a student can book
type TimeSlot struct {
	ID            string     `json:"id"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       time.Time  `json:"endTime"`
	Status        SlotStatus `json:"status"`
	StudentID     *string    `json:"studentId,omitempty"`
	StudentName   *string    `json:"studentName,omitempty"`
	CourseContent *string    `json:"courseContent,omitempty"`
	IsConfirmed   bool       `json:"isConfirmed"`
}

// Booking holds the student fields attached to a busy slot
type Booking struct {
	StudentID     string `json:"studentId"`
	StudentName   string `json:"studentName"`
	CourseContent string `json:"courseContent"`
}

// SlotRange is a requested start/end pair for a new slot
type SlotRange struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Valid checks that the range is non-empty and ordered
func (r SlotRange) Valid() bool {
	return !r.StartTime.IsZero() && r.StartTime.Before(r.EndTime)
}

// Overlaps reports whether two half-open ranges intersect
func (r SlotRange) Overlaps(other SlotRange) bool {
	return r.StartTime.Before(other.EndTime) && other.StartTime.Before(r.EndTime)
}

func (s *TimeSlot) Range() SlotRange {
	return SlotRange{StartTime: s.StartTime, EndTime: s.EndTime}
}

func (s *TimeSlot) IsFree() bool {
	return s.Status == SlotStatusFree
}

// OwnedBy checks that the slot is busy and booked by studentID
func (s *TimeSlot) OwnedBy(studentID string) bool {
	return s.Status == SlotStatusBusy && s.StudentID != nil && *s.StudentID == studentID
}

// Occupy attaches a booking and marks the slot busy
func (s *TimeSlot) Occupy(b Booking, confirmed bool) {
	s.Status = SlotStatusBusy
	s.StudentID = &b.StudentID
	s.StudentName = &b.StudentName
	s.CourseContent = &b.CourseContent
	s.IsConfirmed = confirmed
}

// Release clears the booking and marks the slot free
func (s *TimeSlot) Release() {
	s.Status = SlotStatusFree
	s.StudentID = nil
	s.StudentName = nil
	s.CourseContent = nil
	s.IsConfirmed = false
}

// Clone returns a deep copy so callers can't alias stored state
func (s *TimeSlot) Clone() *TimeSlot {
	c := *s
	c.StudentID = clonePtr(s.StudentID)
	c.StudentName = clonePtr(s.StudentName)
	c.CourseContent = clonePtr(s.CourseContent)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
