package provision

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rdilshan/e-voting-web-sub000/types"
)

// validate checks the request before anything is sent to the chain and
// returns its period.
func validate(req *types.ElectionRequest) (time.Time, time.Time, error) {
	if req == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: empty request", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Title) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	start, end, err := req.Period()
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	// contract timestamps are unsigned
	if start.Unix() < 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date %s is before the unix epoch", ErrInvalidRequest, req.StartDate)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date must be after start date", ErrInvalidRequest)
	}
	if len(req.Candidates) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: at least one candidate is required", ErrInvalidRequest)
	}
	candidates := make(map[string]struct{}, len(req.Candidates))
	for i, cand := range req.Candidates {
		if strings.TrimSpace(cand.Name) == "" || cand.Identifier == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: candidate %d needs a name and an identifier", ErrInvalidRequest, i)
		}
		if _, ok := candidates[cand.Identifier]; ok {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: duplicate candidate identifier %s", ErrInvalidRequest, cand.Identifier)
		}
		candidates[cand.Identifier] = struct{}{}
	}
	if len(req.Voters) == 0 {
		return time.Time{}, time.Time{}, ErrNoEligibleVoters
	}
	voters := make(map[string]struct{}, len(req.Voters))
	for _, id := range req.Voters {
		if id == "" {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: empty voter identifier", ErrInvalidRequest)
		}
		if _, ok := voters[id]; ok {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: duplicate voter identifier %s", ErrInvalidRequest, id)
		}
		voters[id] = struct{}{}
	}
	return start, end, nil
}
