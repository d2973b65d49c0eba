//go:build unit || !integration

package simclient

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/simverify/pkg/models"
)

type ClientTestSuite struct {
	suite.Suite
	mux    *http.ServeMux
	server *httptest.Server
	client *Client
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	client, err := NewClient(ClientParams{
		ExecutorURL:    s.server.URL + "/executor",
		ResultsURL:     s.server.URL + "/results",
		CatalogURL:     s.server.URL + "/catalog",
		RetryMax:       3,
		RetryWaitMin:   time.Millisecond,
		RetryWaitMax:   2 * time.Millisecond,
		RequestTimeout: 5 * time.Second,
	})
	s.Require().NoError(err)
	s.client = client
}

func (s *ClientTestSuite) TearDownTest() {
	s.server.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *ClientTestSuite) TestSubmit() {
	s.mux.HandleFunc("/executor/runs", func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Require().NoError(r.ParseMultipartForm(1 << 20))

		var meta runMetadata
		s.Require().NoError(json.Unmarshal([]byte(r.FormValue("runMetadata")), &meta))
		s.Equal("copasi", meta.Simulator)
		s.Equal("4.40", meta.SimulatorVersion)

		file, header, err := r.FormFile("file")
		s.Require().NoError(err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		s.Equal("model.omex", header.Filename)
		s.Equal("archive bytes", string(content))

		writeJSON(w, http.StatusCreated, runResponse{ID: "run-1", Status: "QUEUED"})
	})

	info, err := s.client.Submit(context.Background(), SubmitRequest{
		Filename:  "model.omex",
		Archive:   []byte("archive bytes"),
		Simulator: models.Simulator{ID: "copasi", Version: "4.40"},
	})
	s.Require().NoError(err)
	s.Equal("run-1", info.RunID)
	s.Equal(models.RunStatusQueued, info.Status)
}

func (s *ClientTestSuite) TestSubmitAcceptedWithUnrecognizedStatus() {
	s.mux.HandleFunc("/executor/runs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, runResponse{ID: "r-1", Status: "CREATED"})
	})

	info, err := s.client.Submit(context.Background(), SubmitRequest{
		Archive:   []byte("archive bytes"),
		Simulator: models.Simulator{ID: "copasi", Version: "4.40.0"},
	})
	s.Require().NoError(err)
	s.Equal("r-1", info.RunID)
	s.Equal(models.RunStatusQueued, info.Status)
}

func (s *ClientTestSuite) TestSubmitIsNotRetried() {
	var hits atomic.Int32
	s.mux.HandleFunc("/executor/runs", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := s.client.Submit(context.Background(), SubmitRequest{Archive: []byte("x")})
	s.Require().Error(err)
	s.True(IsTransient(err))
	s.Equal(int32(1), hits.Load())
}

func (s *ClientTestSuite) TestGetRunNotFoundIsNotRetried() {
	var hits atomic.Int32
	s.mux.HandleFunc("/executor/runs/missing", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	})

	_, err := s.client.GetRun(context.Background(), "missing")
	s.Require().Error(err)
	s.True(IsNotFound(err))
	s.False(IsTransient(err))
	s.Equal(int32(1), hits.Load())
}

func (s *ClientTestSuite) TestGetRunRetriesServerErrors() {
	var hits atomic.Int32
	s.mux.HandleFunc("/executor/runs/run-2", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, runResponse{ID: "run-2", Status: "SUCCEEDED", Simulator: "tellurium", SimulatorVersion: "2.2.1"})
	})

	info, err := s.client.GetRun(context.Background(), "run-2")
	s.Require().NoError(err)
	s.Equal(models.RunStatusSucceeded, info.Status)
	s.Equal("tellurium", info.Simulator)
	s.Equal(int32(3), hits.Load())
}

func (s *ClientTestSuite) TestGetRunRetriesExhausted() {
	s.mux.HandleFunc("/executor/runs/run-3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := s.client.GetRun(context.Background(), "run-3")
	s.Require().Error(err)
	s.True(IsTransient(err))
}

func (s *ClientTestSuite) TestGetRunUnrecognizedStatus() {
	s.mux.HandleFunc("/executor/runs/run-4", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, runResponse{ID: "run-4", Status: "EXPLODED"})
	})

	info, err := s.client.GetRun(context.Background(), "run-4")
	s.Require().Error(err)
	s.Equal(models.RunStatusUnrecognized, info.Status)
	s.True(IsTransient(err))
}

func (s *ClientTestSuite) TestResults() {
	s.mux.HandleFunc("/results/runs/run-5/metadata", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"datasets":[{"name":"report","shape":[2,3],"labels":["time","S1"]}]}`)
	})
	s.mux.HandleFunc("/results/runs/run-5/datasets/report", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"shape":[2,3],"values":[[0,1,2],[0.5,null,1.5]]}`)
	})

	meta, err := s.client.GetMetadata(context.Background(), "run-5")
	s.Require().NoError(err)
	s.Require().Len(meta.Datasets, 1)
	s.Equal([]int{2, 3}, meta.Datasets[0].Shape)
	s.Equal([]string{"time", "S1"}, meta.Datasets[0].Labels)

	ds, err := s.client.GetDataset(context.Background(), "run-5", "report")
	s.Require().NoError(err)
	s.Equal("report", ds.Name)
	s.Equal([]float64{0, 1, 2}, ds.Values[0])
	s.True(math.IsNaN(ds.Values[1][1]))
	s.NoError(ds.Validate())

	_, err = s.client.GetMetadata(context.Background(), "unknown")
	s.True(IsNotFound(err))
}

func (s *ClientTestSuite) TestListSimulatorVersions() {
	s.mux.HandleFunc("/catalog/simulators", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"copasi","version":"4.40","image":{"digest":"sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}}]`)
	})

	sims, err := s.client.ListSimulatorVersions(context.Background())
	s.Require().NoError(err)
	s.Require().Len(sims, 1)
	s.Equal("copasi", sims[0].ID)
	s.NoError(sims[0].Validate())
}
