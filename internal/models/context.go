package models

// InterviewContext is everything the agent knows when a session opens:
// the job, the candidate, and the gap analysis between them. Fetched from
// the profile store and cached in Redis per (user, job).
type InterviewContext struct {
	UserID string `json:"user_id"`
	JobID  string `json:"job_id"`

	Job  JobInfo       `json:"job"`
	User CandidateInfo `json:"user"`
	Gaps GapReport     `json:"gaps"`
}

type JobInfo struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description,omitempty"`
}

type CandidateInfo struct {
	Name   string   `json:"name"`
	Skills []string `json:"skills,omitempty"`
}

// GapReport summarizes how the candidate measures against the job.
type GapReport struct {
	Status             string   `json:"status,omitempty"` // ready|gap_detected
	MissingSkills      []string `json:"missing_skills,omitempty"`
	WeakAreas          []string `json:"weak_areas,omitempty"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
	Assessment         string   `json:"assessment,omitempty"`
}
