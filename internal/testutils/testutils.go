// Package testutils provides shared test infrastructure: NetCDF test
// fixtures and a stub of the CDS retrieval API.
package testutils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// NetCDFBytes returns a minimal valid NetCDF classic (CDF-1) file: the
// magic number, a zero record count and three absent lists (dimensions,
// attributes, variables).
func NetCDFBytes() []byte {
	data := make([]byte, 32)
	copy(data, []byte{'C', 'D', 'F', 0x01})
	return data
}

// WriteNetCDF writes a minimal valid NetCDF file to path.
func WriteNetCDF(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, NetCDFBytes(), 0644); err != nil {
		t.Fatalf("write netcdf fixture: %v", err)
	}
}

// WriteGarbage writes a file to path that is not a valid NetCDF file.
func WriteGarbage(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("this is not a netcdf file"), 0644); err != nil {
		t.Fatalf("write garbage fixture: %v", err)
	}
}

// CDSServer is an httptest stub of the CDS retrieval API: submission,
// status polling, results lookup and asset download.
type CDSServer struct {
	Server *httptest.Server

	// Payload is the body served for every completed job.
	Payload []byte

	// FailSubmits makes the first N submissions fail with a 500.
	FailSubmits int

	// PollsUntilDone is the number of status polls a job reports
	// "running" before turning "successful".
	PollsUntilDone int

	// FailJobs makes every job finish with status "failed".
	FailJobs bool

	mu      sync.Mutex
	submits int
	jobs    map[string]int // jobID -> polls seen
	nextJob int
}

// StartCDSServer starts a stub CDS API serving payload for every job.
// The server is shut down via t.Cleanup.
func StartCDSServer(t *testing.T, payload []byte) *CDSServer {
	t.Helper()

	s := &CDSServer{
		Payload: payload,
		jobs:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/retrieve/v1/processes/", s.handleSubmit)
	mux.HandleFunc("/retrieve/v1/jobs/", s.handleJobs)
	mux.HandleFunc("/download/", s.handleDownload)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// URL returns the base URL of the stub API.
func (s *CDSServer) URL() string {
	return s.Server.URL
}

// Submits returns the number of submission requests received, including
// ones that were failed on purpose.
func (s *CDSServer) Submits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

func (s *CDSServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/execution") {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	s.submits++
	if s.submits <= s.FailSubmits {
		s.mu.Unlock()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.nextJob++
	jobID := fmt.Sprintf("job-%d", s.nextJob)
	s.jobs[jobID] = 0
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"jobID":  jobID,
		"status": "accepted",
	})
}

func (s *CDSServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/retrieve/v1/jobs/")

	if jobID, ok := strings.CutSuffix(rest, "/results"); ok {
		s.mu.Lock()
		_, exists := s.jobs[jobID]
		s.mu.Unlock()
		if !exists {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"asset": map[string]any{
				"value": map[string]any{
					"href": "/download/" + jobID,
				},
			},
		})
		return
	}

	s.mu.Lock()
	polls, exists := s.jobs[rest]
	if exists {
		s.jobs[rest] = polls + 1
	}
	s.mu.Unlock()
	if !exists {
		http.NotFound(w, r)
		return
	}

	status := "successful"
	if s.FailJobs {
		status = "failed"
	} else if polls < s.PollsUntilDone {
		status = "running"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"jobID":  rest,
		"status": status,
	})
}

func (s *CDSServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(s.Payload)
}
