package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Skufu/bloodpanel/internal/catalog"
	"github.com/Skufu/bloodpanel/internal/classifier"
	"github.com/Skufu/bloodpanel/internal/dataset"
	"github.com/Skufu/bloodpanel/internal/panel"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const normalBody = `{"WBC":7.0,"RBC":4.9,"HGB":14.5,"PLT":250,"NEUT":55.0,"LYMPH":32.0,"MONO":5.0,"EO":2.5,"BASO":0.6}`

func bodyWithout(t *testing.T, field string) string {
	t.Helper()
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(normalBody), &obj))
	delete(obj, field)
	out, err := json.Marshal(obj)
	require.NoError(t, err)
	return string(out)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(testConfig(), nil, fakePredictor{ready: true})

	w := doRequest(router, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"status": "ok", "message": healthMessage}, decodeBody(t, w))
}

func TestParsePDFIsNotImplemented(t *testing.T) {
	router := newTestRouter(testConfig(), nil, fakePredictor{ready: true})

	for _, body := range []string{"", "{}", "%PDF-1.4 binary", normalBody} {
		w := doRequest(router, http.MethodPost, "/api/parse-pdf", body)
		assert.Equal(t, http.StatusNotImplemented, w.Code)
		assert.Equal(t, parsePDFMessage, decodeBody(t, w)["error"])
	}
}

func TestAnalyzeMissingField(t *testing.T) {
	router := newTestRouter(testConfig(), nil, fakePredictor{label: catalog.Normal, ready: true})

	for _, field := range panel.Fields() {
		t.Run(field, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/analyze", bodyWithout(t, field))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "Missing required field: "+field, decodeBody(t, w)["error"])
		})
	}
}

func TestAnalyzeInvalidInput(t *testing.T) {
	router := newTestRouter(testConfig(), nil, fakePredictor{label: catalog.Normal, ready: true})

	cases := map[string]string{
		"non-numeric string": strings.Replace(normalBody, `"HGB":14.5`, `"HGB":"high"`, 1),
		"null value":         strings.Replace(normalBody, `"PLT":250`, `"PLT":null`, 1),
		"array value":        strings.Replace(normalBody, `"EO":2.5`, `"EO":[2.5]`, 1),
		"malformed json":     `{"WBC": 7.0,`,
		"array body":         `[1,2,3]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/api/analyze", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			msg, _ := decodeBody(t, w)["error"].(string)
			assert.True(t, strings.HasPrefix(msg, "Invalid input: "), msg)
		})
	}
}

func TestAnalyzeNumericStringsAreCoerced(t *testing.T) {
	router := newTestRouter(testConfig(), nil, fakePredictor{label: catalog.Normal, ready: true})
	body := strings.Replace(normalBody, `"WBC":7.0`, `"WBC":" 7.0 "`, 1)

	w := doRequest(router, http.MethodPost, "/api/analyze", body)
	require.Equal(t, http.StatusOK, w.Code)
	values := decodeBody(t, w)["input_values"].(map[string]any)
	assert.Equal(t, 7.0, values["WBC"])
}

func TestAnalyzeSuccessShape(t *testing.T) {
	router := newTestRouter(testConfig(), nil, fakePredictor{label: catalog.Normal, ready: true})

	w := doRequest(router, http.MethodPost, "/api/analyze", normalBody)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Normal", body["disease"])
	assert.Equal(t, "- Normal \n", body["cause"])
	assert.Equal(t, float64(catalog.Normal), body["result_code"])
	assert.Equal(t, map[string]any{
		"WBC": 7.0, "RBC": 4.9, "HGB": 14.5, "PLT": 250.0, "NEUT": 55.0,
		"LYMPH": 32.0, "MONO": 5.0, "EO": 2.5, "BASO": 0.6,
	}, body["input_values"])

	keys := []string{}
	for _, f := range panel.Fields() {
		keys = append(keys, `"`+f+`"`)
	}
	raw := w.Body.String()
	last := -1
	for _, k := range keys {
		idx := strings.LastIndex(raw, k)
		assert.Greater(t, idx, last, "field %s out of order", k)
		last = idx
	}
}

func TestAnalyzeServerErrors(t *testing.T) {
	t.Run("predictor failure", func(t *testing.T) {
		router := newTestRouter(testConfig(), nil, fakePredictor{err: errors.New("table unreadable"), ready: true})
		w := doRequest(router, http.MethodPost, "/api/analyze", normalBody)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Server error: table unreadable", decodeBody(t, w)["error"])
	})

	t.Run("unknown label", func(t *testing.T) {
		router := newTestRouter(testConfig(), nil, fakePredictor{label: 14, ready: true})
		w := doRequest(router, http.MethodPost, "/api/analyze", normalBody)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		msg, _ := decodeBody(t, w)["error"].(string)
		assert.True(t, strings.HasPrefix(msg, "Server error: "), msg)
	})

	t.Run("timeout", func(t *testing.T) {
		cfg := testConfig()
		cfg.AnalyzeTimeout = 20 * time.Millisecond
		router := newTestRouter(cfg, nil, fakePredictor{block: true, ready: true})
		w := doRequest(router, http.MethodPost, "/api/analyze", normalBody)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Server error: context deadline exceeded", decodeBody(t, w)["error"])
	})
}

func TestAnalyzeBodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodyBytes = 32
	router := newTestRouter(cfg, nil, fakePredictor{label: catalog.Normal, ready: true})

	w := doRequest(router, http.MethodPost, "/api/analyze", normalBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAnalyzeRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.AnalyzeRateLimit = 0.001
	cfg.AnalyzeRateBurst = 1
	router := newTestRouter(cfg, nil, fakePredictor{label: catalog.Normal, ready: true})

	w := doRequest(router, http.MethodPost, "/api/analyze", normalBody)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPost, "/api/analyze", normalBody)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", decodeBody(t, w)["error"])

	w = doRequest(router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyzeWithTrainedClassifier(t *testing.T) {
	opts := classifier.DefaultOptions()
	opts.ForestSeed = 7
	logger, _ := test.NewNullLogger()
	svc, err := classifier.New(dataset.CSVSource{}, opts, logger)
	require.NoError(t, err)

	router := newTestRouter(testConfig(), nil, svc)
	w := doRequest(router, http.MethodPost, "/api/analyze", normalBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, float64(catalog.Normal), body["result_code"])
	assert.Equal(t, "Normal", body["disease"])
	assert.Equal(t, int64(1), svc.Trainings())
}
