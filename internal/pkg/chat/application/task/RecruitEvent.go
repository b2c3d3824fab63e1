package task

import (
	"fmt"
	"strings"
	"time"
)

// Task types published by the recruitment workflows.
const (
	ApplicationCreatedTaskType  = "recruit:application_created"
	InterviewScheduledTaskType  = "recruit:interview_scheduled"
	OfferSentTaskType           = "recruit:offer_sent"
	ApplicationRejectedTaskType = "recruit:application_rejected"
)

// QueueName is the asynq queue recruitment events travel on.
const QueueName = "chat"

// recruitEvent is implemented by every payload the ingestor accepts.
type recruitEvent interface {
	// route returns sender, receiver and the correlated application id.
	route() (sender, receiver, applicationID int64)
	body() string
}

type ApplicationCreated struct {
	ApplicationID int64  `json:"applicationId"`
	JobID         int64  `json:"jobId"`
	SeekerUserID  int64  `json:"seekerUserId"`
	HRUserID      int64  `json:"hrUserId"`
	NoteText      string `json:"noteText"`
}

func (e ApplicationCreated) route() (int64, int64, int64) {
	return e.SeekerUserID, e.HRUserID, e.ApplicationID
}

func (e ApplicationCreated) body() string {
	return withNote(fmt.Sprintf("I have applied for job #%d.", e.JobID), e.NoteText)
}

type InterviewScheduled struct {
	InterviewID   int64     `json:"interviewId"`
	ApplicationID int64     `json:"applicationId"`
	SeekerUserID  int64     `json:"seekerUserId"`
	HRUserID      int64     `json:"hrUserId"`
	Time          time.Time `json:"time"`
	Location      string    `json:"location"`
	Interviewer   string    `json:"interviewer"`
	Note          string    `json:"note"`
}

func (e InterviewScheduled) route() (int64, int64, int64) {
	return e.HRUserID, e.SeekerUserID, e.ApplicationID
}

func (e InterviewScheduled) body() string {
	var b strings.Builder
	b.WriteString("Interview scheduled for ")
	b.WriteString(e.Time.Format("2006-01-02 15:04 MST"))
	if e.Location != "" {
		b.WriteString(" at ")
		b.WriteString(e.Location)
	}
	if e.Interviewer != "" {
		b.WriteString(" with ")
		b.WriteString(e.Interviewer)
	}
	b.WriteString(".")
	return withNote(b.String(), e.Note)
}

type OfferSent struct {
	ApplicationID int64  `json:"applicationId"`
	SeekerUserID  int64  `json:"seekerUserId"`
	HRUserID      int64  `json:"hrUserId"`
	Title         string `json:"title"`
	BaseSalary    string `json:"baseSalary"`
	StartDate     string `json:"startDate"`
	Note          string `json:"note"`
}

func (e OfferSent) route() (int64, int64, int64) {
	return e.HRUserID, e.SeekerUserID, e.ApplicationID
}

func (e OfferSent) body() string {
	parts := []string{"You have received an offer"}
	if e.Title != "" {
		parts[0] += " for " + e.Title
	}
	if e.BaseSalary != "" {
		parts = append(parts, "base salary "+e.BaseSalary)
	}
	if e.StartDate != "" {
		parts = append(parts, "starting "+e.StartDate)
	}
	return withNote(strings.Join(parts, ", ")+".", e.Note)
}

type ApplicationRejected struct {
	ApplicationID int64  `json:"applicationId"`
	SeekerUserID  int64  `json:"seekerUserId"`
	HRUserID      int64  `json:"hrUserId"`
	Reason        string `json:"reason"`
}

func (e ApplicationRejected) route() (int64, int64, int64) {
	return e.HRUserID, e.SeekerUserID, e.ApplicationID
}

func (e ApplicationRejected) body() string {
	return withNote("Unfortunately your application was not successful.", e.Reason)
}

func withNote(text, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return text
	}
	return text + "\n" + note
}
