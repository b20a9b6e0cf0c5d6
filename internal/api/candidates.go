package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"
)

type createRequest struct {
	JobDescription string `json:"jobDescription"`
	CVFile         string `json:"cvFile"`
}

type createResponse struct {
	CandidateID string `json:"candidateId"`
}

// CreateCandidate submits an encoded CV with its job description and returns
// the backend assigned candidate id. 202 Accepted is the documented answer;
// 200 OK is tolerated for simpler deployments.
func (c *Client) CreateCandidate(ctx context.Context, jobDescription, cvFile string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, candidatesPath, createRequest{
		JobDescription: jobDescription,
		CVFile:         cvFile,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.request(req)
	if err != nil {
		return "", err
	}

	body, err := readBody(resp)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp, body)
	}

	var created createResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	id := strings.TrimSpace(created.CandidateID)
	if id == "" {
		return "", ErrMissingCandidateID
	}

	c.logger.Debug("job accepted", zap.String("candidate_id", id), zap.Int("code", resp.StatusCode))

	return id, nil
}

// GetCandidate fetches the analysis result for id. ErrNotReady is returned while
// the backend still answers 404.
func (c *Client) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("candidate id is required")
	}

	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/%s", candidatesPath, url.PathEscape(id)), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNotReady
	default:
		return nil, c.statusError(resp, body)
	}

	var item interface{}
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}

	candidate, err := decodeCandidate(item)
	if err != nil {
		return nil, err
	}

	if candidate.CandidateID == "" {
		candidate.CandidateID = id
	}

	return candidate, nil
}

// ListCandidates returns every stored result, newest first.
// Records that fail validation are skipped and logged.
func (c *Client) ListCandidates(ctx context.Context) ([]*Candidate, error) {
	req, err := c.newRequest(ctx, http.MethodGet, candidatesPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.request(req)
	if err != nil {
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp, body)
	}

	var items []interface{}
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decoding candidates: %w", err)
	}

	candidates := make([]*Candidate, 0, len(items))
	for i, item := range items {
		candidate, err := decodeCandidate(item)
		if err != nil {
			c.logger.Warn("skipping candidate record", zap.Int("index", i), zap.Error(err))
			continue
		}
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ProcessingTimestamp.After(candidates[j].ProcessingTimestamp)
	})

	c.logger.Debug("got candidates", zap.Int("count", len(candidates)), zap.Int("skipped", len(items)-len(candidates)))

	return candidates, nil
}
