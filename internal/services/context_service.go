package services

import (
	"context"
	"time"

	"github.com/careerflow/interview/internal/cache"
	"github.com/careerflow/interview/internal/models"
	"github.com/careerflow/interview/internal/utils"
)

// ContextLoader is the profile-store boundary: it produces the interview
// context (job, candidate, gap report) for a user/job pair. The real
// implementation lives behind an internal API; tests and the CLI inject
// their own.
type ContextLoader interface {
	LoadInterviewContext(ctx context.Context, userID, jobID string) (*models.InterviewContext, error)
}

type ContextLoaderFunc func(ctx context.Context, userID, jobID string) (*models.InterviewContext, error)

func (f ContextLoaderFunc) LoadInterviewContext(ctx context.Context, userID, jobID string) (*models.InterviewContext, error) {
	return f(ctx, userID, jobID)
}

// contextTTL mirrors the profile cache window: short, because gap analysis
// changes as the user updates their profile.
const contextTTL = 5 * time.Minute

type ContextService interface {
	Fetch(ctx context.Context, userID, jobID string) (*models.InterviewContext, error)
}

type contextService struct {
	loader ContextLoader
	cache  cache.Cache
}

func NewContextService(loader ContextLoader, c cache.Cache) ContextService {
	return &contextService{loader: loader, cache: c}
}

func contextKey(userID, jobID string) string {
	return "interview_ctx:" + userID + ":" + jobID
}

// Fetch is cache-first with loader fallback; a loader result is validated
// before it is served or cached, so a half-populated profile fails the
// session up front instead of mid-interview.
func (s *contextService) Fetch(ctx context.Context, userID, jobID string) (*models.InterviewContext, error) {
	const op = "ContextService.Fetch"

	if userID == "" || jobID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and job_id are required", nil)
	}

	key := contextKey(userID, jobID)
	if s.cache != nil {
		var cached models.InterviewContext
		if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	out, err := s.loader.LoadInterviewContext(ctx, userID, jobID)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load interview context", err)
	}
	if out == nil || out.Job.Title == "" || out.User.Name == "" {
		return nil, utils.E(utils.CodeNotFound, op, "missing required job or user information", nil)
	}
	out.UserID = userID
	out.JobID = jobID

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, key, out, contextTTL)
	}
	return out, nil
}
