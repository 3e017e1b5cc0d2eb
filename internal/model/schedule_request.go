package model

import "time"

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

type RequestType string

const (
	RequestTypeNew    RequestType = "new"
	RequestTypeModify RequestType = "modify"
)

// ScheduleRequest is a student's proposal to claim or move to a slot.
// CourseContent carries the stated reason.
type ScheduleRequest struct {
	ID             string        `json:"id"`
	StudentID      string        `json:"studentId"`
	StudentName    string        `json:"studentName"`
	OriginalSlotID *string       `json:"originalSlotId,omitempty"`
	TargetSlotID   string        `json:"targetSlotId"`
	CourseContent  string        `json:"courseContent"`
	Status         RequestStatus `json:"status"`
	RequestType    RequestType   `json:"requestType"`
	CreatedAt      time.Time     `json:"createdAt"`
	ProcessedAt    *time.Time    `json:"processedAt,omitempty"`
}

// IsPending checks if request is pending
func (r *ScheduleRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// IsTerminal checks if request was approved or rejected
func (r *ScheduleRequest) IsTerminal() bool {
	return r.Status == RequestStatusApproved || r.Status == RequestStatusRejected
}

// References reports whether the request points at slotID as original or target
func (r *ScheduleRequest) References(slotID string) bool {
	if r.TargetSlotID == slotID {
		return true
	}
	return r.OriginalSlotID != nil && *r.OriginalSlotID == slotID
}

// Booking returns the student fields to copy onto the target slot
func (r *ScheduleRequest) Booking() Booking {
	return Booking{
		StudentID:     r.StudentID,
		StudentName:   r.StudentName,
		CourseContent: r.CourseContent,
	}
}

// Clone returns a deep copy
func (r *ScheduleRequest) Clone() *ScheduleRequest {
	c := *r
	c.OriginalSlotID = clonePtr(r.OriginalSlotID)
	c.ProcessedAt = clonePtr(r.ProcessedAt)
	return &c
}
