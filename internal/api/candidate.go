package api

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Verdict is the backend classification of a candidate.
type Verdict string

const (
	VerdictRecommended Verdict = "RECOMMENDED"
	VerdictRejected    Verdict = "REJECTED"
)

// ScoreBand is a coarse grouping of the match score.
type ScoreBand string

const (
	BandStrong   ScoreBand = "strong"
	BandModerate ScoreBand = "moderate"
	BandWeak     ScoreBand = "weak"
)

// Candidate is a validated analysis result.
type Candidate struct {
	CandidateID         string    `json:"candidateId"`
	Name                string    `json:"name,omitempty"`
	Email               string    `json:"email,omitempty"`
	Score               int       `json:"score"`
	Status              Verdict   `json:"status"`
	Summary             []string  `json:"summary"`
	JobDescription      string    `json:"jobDescription,omitempty"`
	ProcessingTimestamp time.Time `json:"processingTimestamp,omitempty"`
}

// ScoreBand classifies the score: 80 and above is strong, 60 and above moderate.
func (c *Candidate) ScoreBand() ScoreBand {
	switch {
	case c.Score >= 80:
		return BandStrong
	case c.Score >= 60:
		return BandModerate
	default:
		return BandWeak
	}
}

// rawCandidate mirrors the backend record before validation.
type rawCandidate struct {
	CandidateID         string      `mapstructure:"CandidateID"`
	Name                string      `mapstructure:"Name"`
	Email               string      `mapstructure:"Email"`
	Score               *float64    `mapstructure:"Score"`
	Status              *string     `mapstructure:"Status"`
	Summary             interface{} `mapstructure:"Summary"`
	JobDescription      string      `mapstructure:"JobDescription"`
	ProcessingTimestamp string      `mapstructure:"ProcessingTimestamp"`
}

// decodeCandidate converts one generic JSON record into a validated Candidate.
func decodeCandidate(item interface{}) (*Candidate, error) {
	var raw rawCandidate
	if err := mapstructure.Decode(item, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}

	return raw.validate()
}

func (r *rawCandidate) validate() (*Candidate, error) {
	if r.Score == nil {
		return nil, fmt.Errorf("%w: score is missing", ErrInvalidResult)
	}
	score := *r.Score
	if score < 0 || score > 100 || score != math.Trunc(score) {
		return nil, fmt.Errorf("%w: score %v is not an integer in [0, 100]", ErrInvalidResult, score)
	}

	if r.Status == nil || strings.TrimSpace(*r.Status) == "" {
		return nil, fmt.Errorf("%w: status is missing", ErrInvalidResult)
	}

	summary, err := parseSummary(r.Summary)
	if err != nil {
		return nil, err
	}

	c := &Candidate{
		CandidateID:    strings.TrimSpace(r.CandidateID),
		Name:           strings.TrimSpace(r.Name),
		Email:          strings.TrimSpace(r.Email),
		Score:          int(score),
		Status:         Verdict(strings.ToUpper(strings.TrimSpace(*r.Status))),
		Summary:        summary,
		JobDescription: r.JobDescription,
	}

	if ts := strings.TrimSpace(r.ProcessingTimestamp); ts != "" {
		// the dashboard only sorts on it, so an unknown format leaves it zero
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			c.ProcessingTimestamp = parsed
		}
	}

	return c, nil
}

// parseSummary accepts a JSON encoded array of strings, a JSON string, a bare
// string or an already decoded array. Anything else is rejected.
func parseSummary(v interface{}) ([]string, error) {
	switch s := v.(type) {
	case string:
		return parseSummaryString(s)
	case []interface{}:
		return summaryFromList(s)
	case nil:
		return nil, fmt.Errorf("%w: summary is missing", ErrInvalidResult)
	default:
		return nil, fmt.Errorf("%w: summary has unsupported type %T", ErrInvalidResult, v)
	}
}

func parseSummaryString(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: summary is empty", ErrInvalidResult)
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
			return nil, fmt.Errorf("%w: malformed summary: %w", ErrInvalidResult, err)
		}
		return []string{s}, nil
	}

	switch d := decoded.(type) {
	case string:
		return parseSummaryString(d)
	case []interface{}:
		return summaryFromList(d)
	default:
		return nil, fmt.Errorf("%w: summary has unsupported shape %T", ErrInvalidResult, decoded)
	}
}

func summaryFromList(list []interface{}) ([]string, error) {
	points := make([]string, 0, len(list))
	for i, entry := range list {
		point, ok := entry.(string)
		if !ok {
			return nil, fmt.Errorf("%w: summary entry %d is %T, not a string", ErrInvalidResult, i, entry)
		}
		if point = strings.TrimSpace(point); point != "" {
			points = append(points, point)
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: summary is empty", ErrInvalidResult)
	}

	return points, nil
}
