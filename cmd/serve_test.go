package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-cli/internal/config"
	"github.com/sells-group/listing-cli/internal/model"
	"github.com/sells-group/listing-cli/internal/pipeline"
)

type runnerFunc func(ctx context.Context, q model.Query) (*model.RunResult, error)

func (f runnerFunc) Run(ctx context.Context, q model.Query) (*model.RunResult, error) {
	return f(ctx, q)
}

func serverConfig(envelope string) config.ServerConfig {
	return config.ServerConfig{Envelope: envelope, CORSOrigins: []string{"*"}, RequestTimeoutSecs: 5}
}

func pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{MaxResults: 30, Country: "Canada"}
}

func cafeResult(q model.Query) *model.RunResult {
	rec, _ := model.NewRecord(model.SourceMapDirectory, 1, "Cafe X", q.City, time.Now())
	rec.Phone = "250-555-0000"
	return &model.RunResult{
		RunID:   "run-1",
		Query:   q,
		Status:  model.RunStatusDone,
		Count:   1,
		Results: []model.BusinessRecord{rec},
	}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	h := buildRouter(nil, serverConfig("object"), pipelineConfig())

	rr := get(t, h, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
}

func TestScrape_ObjectEnvelope(t *testing.T) {
	var got model.Query
	run := runnerFunc(func(_ context.Context, q model.Query) (*model.RunResult, error) {
		got = q
		return cafeResult(q), nil
	})
	h := buildRouter(run, serverConfig("object"), pipelineConfig())

	rr := get(t, h, "/scrape?query="+url.QueryEscape("restaurants in Vernon"))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Count   int                    `json:"count"`
		Results []model.BusinessRecord `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Results, 1)
	assert.Equal(t, "Cafe X", body.Results[0].Title)
	assert.Equal(t, "250-555-0000", body.Results[0].Phone)

	assert.Equal(t, "restaurants in Vernon", got.Text)
	assert.Equal(t, "Vernon", got.City)
	assert.Equal(t, "Canada", got.Country)
	assert.Equal(t, 30, got.MaxResults)
}

func TestScrape_ArrayEnvelope(t *testing.T) {
	run := runnerFunc(func(_ context.Context, q model.Query) (*model.RunResult, error) {
		return cafeResult(q), nil
	})
	h := buildRouter(run, serverConfig("array"), pipelineConfig())

	rr := get(t, h, "/scrape?query=plumbers&city=Kelowna")

	require.Equal(t, http.StatusOK, rr.Code)
	var body []model.BusinessRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Kelowna", body[0].City)
}

func TestScrape_EmptyResultIsStillWellFormed(t *testing.T) {
	run := runnerFunc(func(_ context.Context, q model.Query) (*model.RunResult, error) {
		return &model.RunResult{Query: q, Status: model.RunStatusDone, Results: []model.BusinessRecord{}}, nil
	})
	h := buildRouter(run, serverConfig("object"), pipelineConfig())

	rr := get(t, h, "/scrape?query=unicorns")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count":0,"results":[]}`, rr.Body.String())
}

func TestScrape_BadRequest(t *testing.T) {
	run := runnerFunc(func(context.Context, model.Query) (*model.RunResult, error) {
		t.Fatal("runner must not be called")
		return nil, nil
	})
	h := buildRouter(run, serverConfig("object"), pipelineConfig())

	for _, target := range []string{
		"/scrape",
		"/scrape?query=",
		"/scrape?query=%20%20",
		"/scrape?query=" + strings.Repeat("a", maxQueryLen+1),
	} {
		rr := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.NotEmpty(t, body["error"])
	}
}

func TestScrape_PipelineFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"session", eris.Wrap(pipeline.ErrSessionFailure, "pipeline: launch"), "failed to start the browser session"},
		{"all sources", pipeline.ErrAllSourcesFailed, "every source failed"},
		{"other", eris.New("boom"), "scrape failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := runnerFunc(func(_ context.Context, q model.Query) (*model.RunResult, error) {
				return &model.RunResult{Query: q, Status: model.RunStatusFailed}, tt.err
			})
			h := buildRouter(run, serverConfig("object"), pipelineConfig())

			rr := get(t, h, "/scrape?query=plumbers")

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestScrape_RequestTimeoutAppliedToRun(t *testing.T) {
	run := runnerFunc(func(ctx context.Context, q model.Query) (*model.RunResult, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return cafeResult(q), nil
	})
	h := buildRouter(run, serverConfig("object"), pipelineConfig())

	rr := get(t, h, "/scrape?query=plumbers")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBuildRouter_CORSPreflight(t *testing.T) {
	h := buildRouter(nil, config.ServerConfig{CORSOrigins: []string{"https://app.example"}}, pipelineConfig())

	req := httptest.NewRequest(http.MethodOptions, "/scrape?query=x", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildRouter_UnknownRoute(t *testing.T) {
	h := buildRouter(nil, serverConfig("object"), pipelineConfig())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}
