package clientcmd

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQueueAppendRoundTrip(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"address":"0x2a"}`))
	}))
	defer srv.Close()

	cmd := NewQueueCommand(func() string { return srv.URL })
	cmd.SetArgs([]string{"append", "hello"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotPath != "/v1/append" {
		t.Fatalf("path: %q", gotPath)
	}
}

func TestQueueReadSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"segment not found"}`))
	}))
	defer srv.Close()

	cmd := NewQueueCommand(func() string { return srv.URL })
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	cmd.SetArgs([]string{"read", "0x500000000"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error from 404 response")
	}
}

func TestPolicyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/policies" {
			t.Errorf("path: %q", r.URL.Path)
		}
		w.Write([]byte(`{"policies":[]}`))
	}))
	defer srv.Close()

	cmd := NewPolicyCommand(func() string { return srv.URL })
	cmd.SetArgs([]string{"list"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
}
