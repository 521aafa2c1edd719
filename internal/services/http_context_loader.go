package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/careerflow/interview/internal/models"
	"github.com/careerflow/interview/internal/utils"
)

// HTTPContextLoader fetches interview context from the profile service:
// GET {base}/internal/context/{user_id}/{job_id} returning an
// InterviewContext body.
type HTTPContextLoader struct {
	Base   string
	Client *http.Client
}

func NewHTTPContextLoader(base string) *HTTPContextLoader {
	return &HTTPContextLoader{
		Base:   base,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (l *HTTPContextLoader) LoadInterviewContext(ctx context.Context, userID, jobID string) (*models.InterviewContext, error) {
	const op = "HTTPContextLoader.LoadInterviewContext"

	u := fmt.Sprintf("%s/internal/context/%s/%s",
		l.Base, url.PathEscape(userID), url.PathEscape(jobID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to build request", err)
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "profile service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, utils.E(utils.CodeNotFound, op, "no context for user/job", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, utils.E(utils.CodeUnavailable, op,
			fmt.Sprintf("profile service returned %d", resp.StatusCode), nil)
	}

	var out models.InterviewContext
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to decode context", err)
	}
	return &out, nil
}
