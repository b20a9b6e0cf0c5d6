package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func backend(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestCreateCandidateAccepted(t *testing.T) {
	t.Parallel()

	ts := backend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/candidates", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Backend Engineer", body["jobDescription"])
		assert.Equal(t, "JVBERi0=", body["cvFile"])

		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"candidateId":"c1"}`)
	})

	c := New(zap.NewNop(), ts.URL+"/", "secret")
	id, err := c.CreateCandidate(context.Background(), "Backend Engineer", "JVBERi0=")
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
}

func TestCreateCandidateWithoutToken(t *testing.T) {
	t.Parallel()

	ts := backend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"candidateId":"c2"}`)
	})

	c := New(nil, ts.URL, "")
	assert.False(t, c.Authenticated())

	id, err := c.CreateCandidate(context.Background(), "jd", "x")
	require.NoError(t, err)
	assert.Equal(t, "c2", id)
}

func TestCreateCandidateRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    int
		body    string
		message string
	}{
		{name: "server message", code: http.StatusBadRequest, body: `{"message":"cvFile is not a PDF"}`, message: "cvFile is not a PDF"},
		{name: "error field", code: http.StatusForbidden, body: `{"error":"token expired"}`, message: "token expired"},
		{name: "no body", code: http.StatusInternalServerError, body: ``, message: "Server error: 500 Internal Server Error"},
		{name: "created is not accepted", code: http.StatusCreated, body: `{"candidateId":"c1"}`, message: "Server error: 201 Created"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := backend(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := New(nil, ts.URL, "").CreateCandidate(context.Background(), "jd", "x")
			require.Error(t, err)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.code, statusErr.Code)
			assert.Equal(t, tt.message, err.Error())
			assert.ErrorIs(t, err, ErrUnexpectedStatus)
		})
	}
}

func TestCreateCandidateMissingID(t *testing.T) {
	t.Parallel()

	ts := backend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{}`)
	})

	_, err := New(nil, ts.URL, "").CreateCandidate(context.Background(), "jd", "x")
	require.ErrorIs(t, err, ErrMissingCandidateID)
}

func TestGetCandidate(t *testing.T) {
	t.Parallel()

	ts := backend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/candidates/c1", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"CandidateID": "c1",
			"Name": "Jane Doe",
			"Email": "jane@example.com",
			"Score": 85,
			"Status": "RECOMMENDED",
			"Summary": "[\"Strong fit\", \"Go experience\"]",
			"JobDescription": "Backend Engineer",
			"ProcessingTimestamp": "2025-01-02T03:04:05Z"
		}`)
	})

	got, err := New(nil, ts.URL, "").GetCandidate(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.CandidateID)
	assert.Equal(t, 85, got.Score)
	assert.Equal(t, VerdictRecommended, got.Status)
	assert.Equal(t, []string{"Strong fit", "Go experience"}, got.Summary)
	assert.Equal(t, BandStrong, got.ScoreBand())
	assert.False(t, got.ProcessingTimestamp.IsZero())
}

func TestGetCandidateGzip(t *testing.T) {
	t.Parallel()

	ts := backend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = io.WriteString(gz, `{"Score":40,"Status":"REJECTED","Summary":"Missing Go"}`)
		_ = gz.Close()
	})

	got, err := New(nil, ts.URL, "").GetCandidate(context.Background(), "c9")
	require.NoError(t, err)
	assert.Equal(t, "c9", got.CandidateID, "id falls back to the requested one")
	assert.Equal(t, []string{"Missing Go"}, got.Summary)
	assert.Equal(t, BandWeak, got.ScoreBand())
}

func TestGetCandidateNotReady(t *testing.T) {
	t.Parallel()

	ts := backend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := New(nil, ts.URL, "").GetCandidate(context.Background(), "c1")
	require.ErrorIs(t, err, ErrNotReady)
}

func TestGetCandidateFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		code   int
		body   string
		target error
	}{
		{name: "server error", code: http.StatusInternalServerError, body: `oops`, target: ErrUnexpectedStatus},
		{name: "not json", code: http.StatusOK, body: `<html>`, target: ErrInvalidResult},
		{name: "score out of range", code: http.StatusOK, body: `{"Score":120,"Summary":"x"}`, target: ErrInvalidResult},
		{name: "fractional score", code: http.StatusOK, body: `{"Score":85.5,"Summary":"x"}`, target: ErrInvalidResult},
		{name: "score as string", code: http.StatusOK, body: `{"Score":"85","Summary":"x"}`, target: ErrInvalidResult},
		{name: "missing summary", code: http.StatusOK, body: `{"Score":85,"Status":"RECOMMENDED"}`, target: ErrInvalidResult},
		{name: "missing score", code: http.StatusOK, body: `{"Status":"RECOMMENDED","Summary":"[\"ok\"]"}`, target: ErrInvalidResult},
		{name: "null score", code: http.StatusOK, body: `{"Score":null,"Status":"RECOMMENDED","Summary":"ok"}`, target: ErrInvalidResult},
		{name: "missing status", code: http.StatusOK, body: `{"Score":85,"Summary":"[\"ok\"]"}`, target: ErrInvalidResult},
		{name: "blank status", code: http.StatusOK, body: `{"Score":85,"Status":" ","Summary":"ok"}`, target: ErrInvalidResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts := backend(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := New(nil, ts.URL, "").GetCandidate(context.Background(), "c1")
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestGetCandidateRequiresID(t *testing.T) {
	t.Parallel()

	_, err := New(nil, "http://127.0.0.1:1", "").GetCandidate(context.Background(), " ")
	require.Error(t, err)
}

func TestListCandidatesSortedNewestFirst(t *testing.T) {
	t.Parallel()

	ts := backend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/candidates", r.URL.Path)
		_, _ = io.WriteString(w, `[
			{"CandidateID":"old","Score":50,"Status":"REJECTED","Summary":"a","ProcessingTimestamp":"2025-01-01T00:00:00Z"},
			{"CandidateID":"broken","Score":500,"Status":"REJECTED","Summary":"a"},
			{"CandidateID":"unscored","Status":"RECOMMENDED","Summary":"a"},
			{"CandidateID":"new","Score":90,"Status":"RECOMMENDED","Summary":"[\"b\"]","ProcessingTimestamp":"2025-03-01T00:00:00Z"}
		]`)
	})

	list, err := New(nil, ts.URL, "").ListCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].CandidateID)
	assert.Equal(t, "old", list[1].CandidateID)
}

func TestListCandidatesBadStatus(t *testing.T) {
	t.Parallel()

	ts := backend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Unauthorized"}`)
	})

	_, err := New(nil, ts.URL, "").ListCandidates(context.Background())
	require.EqualError(t, err, "Unauthorized")
}
