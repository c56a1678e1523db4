package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvision/internal/api/handler"
	"cvision/internal/config"
	"cvision/internal/processor"
	"cvision/internal/types"
)

const testResume = `Youssef Trabelsi
Software Engineer | Tunis, Tunisia
youssef@example.com

Education
Master of Computer Science
University of Tunis

Skills: Go, Docker, Kubernetes
`

func newTestEngine(t *testing.T, serverCfg config.ServerConfig, auth config.AuthConfig) *server.Hertz {
	t.Helper()
	p, err := processor.NewPipelineFromConfig(config.DefaultConfig().Extraction, zerolog.Nop())
	require.NoError(t, err)
	svc := processor.NewProfileService(p, nil, config.DefaultConfig().RabbitMQ, processor.WithServiceLogger(zerolog.Nop()))

	serverCfg.Address = "127.0.0.1:0"
	h := NewServer(serverCfg)
	RegisterRoutes(h, handler.NewProfileHandler(svc), serverCfg, auth)
	return h
}

func jsonBody(t *testing.T, v interface{}) *ut.Body {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return &ut.Body{Body: bytes.NewReader(data), Len: len(data)}
}

var jsonHeader = ut.Header{Key: "Content-Type", Value: "application/json"}

func TestHealth(t *testing.T) {
	h := newTestEngine(t, config.ServerConfig{}, config.AuthConfig{})
	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["persistent"])
}

func TestExtractProfileJSON(t *testing.T) {
	h := newTestEngine(t, config.ServerConfig{}, config.AuthConfig{})

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/profiles/extract",
		jsonBody(t, types.ResumeText{Filename: "youssef.txt", RawText: testResume}), jsonHeader)
	require.Equal(t, http.StatusOK, resp.Code)

	var result types.ProfileResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.NotNil(t, result.Profile)
	assert.Equal(t, "youssef.txt", result.Profile.Filename)
	assert.Equal(t, "Youssef Trabelsi", result.Profile.Name)
	assert.Equal(t, []string{"youssef@example.com"}, result.Profile.Emails)
	assert.Contains(t, result.Relationships, types.NewDegreeFrom("Master Of Computer Science", "University Of Tunis"))
}

func TestExtractProfileBadRequests(t *testing.T) {
	h := newTestEngine(t, config.ServerConfig{}, config.AuthConfig{})

	cases := []struct {
		name string
		body *ut.Body
		path string
		code int
	}{
		{"无效JSON", &ut.Body{Body: bytes.NewBufferString("{"), Len: 1}, "/api/v1/profiles/extract", http.StatusBadRequest},
		{"缺少文件名", jsonBody(t, types.ResumeText{RawText: testResume}), "/api/v1/profiles/extract", http.StatusBadRequest},
		{"空文本", jsonBody(t, types.ResumeText{Filename: "blank.txt", RawText: "  "}), "/api/v1/profiles/extract", http.StatusUnprocessableEntity},
		{"异步但无队列", jsonBody(t, types.ResumeText{Filename: "a.txt", RawText: testResume}), "/api/v1/profiles/extract?async=true", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := ut.PerformRequest(h.Engine, "POST", tc.path, tc.body, jsonHeader)
			assert.Equal(t, tc.code, resp.Code)
			assert.Contains(t, resp.Body.String(), "error")
		})
	}
}

func TestExtractProfileMultipart(t *testing.T) {
	h := newTestEngine(t, config.ServerConfig{}, config.AuthConfig{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "youssef.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte(testResume))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/profiles/extract",
		&ut.Body{Body: &buf, Len: buf.Len()},
		ut.Header{Key: "Content-Type", Value: w.FormDataContentType()})
	require.Equal(t, http.StatusOK, resp.Code)

	var result types.ProfileResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	assert.Equal(t, "youssef.txt", result.Profile.Filename)
	assert.Equal(t, "Youssef Trabelsi", result.Profile.Name)
}

func TestInferRelationships(t *testing.T) {
	h := newTestEngine(t, config.ServerConfig{}, config.AuthConfig{})

	profile := types.ExtractedProfile{
		Filename:       "p.json",
		Skills:         []string{"Aws", "Python"},
		JobTitles:      []string{"Python Developer"},
		Certifications: []string{"Aws Certified"},
	}
	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/relationships/infer", jsonBody(t, profile), jsonHeader)
	require.Equal(t, http.StatusOK, resp.Code)

	var set types.RelationshipSet
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &set))
	assert.Equal(t, "p.json", set.Filename)
	assert.Contains(t, set.Relationships, types.NewSkillToJob("Python", "Python Developer"))
	assert.Contains(t, set.Relationships, types.NewCertificationForSkill("Aws Certified", "Aws"))

	resp = ut.PerformRequest(h.Engine, "POST", "/api/v1/relationships/infer",
		&ut.Body{Body: bytes.NewBufferString("[]"), Len: 2}, jsonHeader)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestStorageBackedRoutesWithoutStorage(t *testing.T) {
	h := newTestEngine(t, config.ServerConfig{}, config.AuthConfig{})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/profiles/a.txt", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = ut.PerformRequest(h.Engine, "GET", "/api/v1/export.csv", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	resp = ut.PerformRequest(h.Engine, "GET", "/api/v1/export.csv?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	h := newTestEngine(t, config.ServerConfig{}, config.AuthConfig{APIKeys: []string{"secret-1", "secret-2"}})
	body := func() *ut.Body { return jsonBody(t, types.ExtractedProfile{Filename: "p.json"}) }

	resp := ut.PerformRequest(h.Engine, "POST", "/api/v1/relationships/infer", body(), jsonHeader)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ut.PerformRequest(h.Engine, "POST", "/api/v1/relationships/infer", body(), jsonHeader,
		ut.Header{Key: "X-API-Key", Value: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ut.PerformRequest(h.Engine, "POST", "/api/v1/relationships/infer", body(), jsonHeader,
		ut.Header{Key: "X-API-Key", Value: "secret-2"})
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRateLimit(t *testing.T) {
	h := newTestEngine(t, config.ServerConfig{RateLimitRPS: 0.001, RateLimitBurst: 1}, config.AuthConfig{})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "1", string(resp.Header().Peek("Retry-After")))
}

func TestRateLimitDisabled(t *testing.T) {
	called := 0
	mw := RateLimit(0, 0)
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	h.Use(mw)
	h.GET("/ping", func(c context.Context, ctx *app.RequestContext) {
		called++
		ctx.String(http.StatusOK, "pong")
	})
	for i := 0; i < 5; i++ {
		resp := ut.PerformRequest(h.Engine, "GET", "/ping", nil)
		assert.Equal(t, http.StatusOK, resp.Code)
	}
	assert.Equal(t, 5, called)
}
