package cds

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
)

const (
	testToken         = "test-key"
	testDataset       = "reanalysis-era5-single-levels"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		token:        testToken,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		baseURL:      baseURL,
		dataset:      testDataset,
		pollInterval: time.Millisecond,
		clock:        clockwork.NewRealClock(),
		metrics:      observability.NewMetricsForTesting(),
		logger:       observability.DiscardLogger(),
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	w.Header().Set(headerContentType, contentTypeJSON)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_SubmitWaitDownload(t *testing.T) {
	var polls atomic.Int32
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/retrieve/v1/processes/"+testDataset+"/execution", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, testToken, r.Header.Get("PRIVATE-TOKEN"))

		var body executeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "netcdf", body.Inputs["data_format"])
		assert.Equal(t, []interface{}{"1990"}, body.Inputs["year"])
		assert.Equal(t, []interface{}{"2m_temperature"}, body.Inputs["variable"])

		writeJSON(t, w, jobStatus{JobID: "job-1", Status: StatusAccepted})
	})
	mux.HandleFunc("/retrieve/v1/jobs/job-1", func(w http.ResponseWriter, _ *http.Request) {
		status := StatusRunning
		if polls.Add(1) >= 3 {
			status = StatusSuccessful
		}
		writeJSON(t, w, jobStatus{JobID: "job-1", Status: status})
	})
	mux.HandleFunc("/retrieve/v1/jobs/job-1/results", func(w http.ResponseWriter, _ *http.Request) {
		var res results
		res.Asset.Value.Href = srvURL + "/download/job-1.nc"
		writeJSON(t, w, res)
	})
	mux.HandleFunc("/download/job-1.nc", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("CDF\x01payload"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	path := filepath.Join(t.TempDir(), "era5_temperature_1990.nc")
	c := testClient(srv.URL)
	ctx := context.Background()
	jobID, err := c.Submit(ctx, Request{Variables: []string{"2m_temperature"}, Year: 1990, Area: Colombia})
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	require.NoError(t, c.Wait(ctx, jobID))
	href, err := c.ResultURL(ctx, jobID)
	require.NoError(t, err)
	n, err := c.Download(ctx, href, path)
	require.NoError(t, err)

	assert.Equal(t, int64(11), n)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "CDF\x01payload", string(data))
	_, err = os.Stat(path + ".partial")
	assert.True(t, os.IsNotExist(err))
}

func TestClient_Submit_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid key"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Submit(context.Background(), Request{Year: 1990})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, errors.Is(err, domain.ErrTransient))
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Submit_ThrottledIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Submit(context.Background(), Request{Year: 1990})
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestClient_Wait_JobFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, jobStatus{JobID: "job-2", Status: StatusFailed})
	}))
	defer srv.Close()

	err := testClient(srv.URL).Wait(context.Background(), "job-2")
	assert.ErrorIs(t, err, ErrJobFailed)
}

func TestClient_Download_BadGatewayIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "x.nc")
	_, err := testClient(srv.URL).Download(context.Background(), srv.URL+"/download", path)
	assert.ErrorIs(t, err, domain.ErrTransient)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(path + ".partial")
	assert.True(t, os.IsNotExist(statErr))
}

func TestRequest_Inputs(t *testing.T) {
	in := Request{Variables: []string{"10m_u_component_of_wind"}, Year: 2001, Months: []int{2}, Area: Colombia}.inputs()
	assert.Equal(t, []string{"02"}, in["month"])
	assert.Len(t, in["day"], 31)
	assert.Len(t, in["time"], 24)
	assert.Equal(t, []float64{13.5, -82, -4.5, -66.5}, in["area"])
}

func TestParseArea(t *testing.T) {
	a, err := ParseArea("")
	require.NoError(t, err)
	assert.Equal(t, Colombia, a)

	a, err = ParseArea("12.5, -79, 7, -72")
	require.NoError(t, err)
	assert.Equal(t, Area{North: 12.5, West: -79, South: 7, East: -72}, a)

	for _, bad := range []string{"1,2,3", "n,w,s,e", "0,-70,5,-60"} {
		_, err := ParseArea(bad)
		assert.ErrorIs(t, err, domain.ErrMalformedInput, bad)
	}
}
