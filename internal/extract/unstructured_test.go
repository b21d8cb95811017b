package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestUnstructuredClient_Extract(t *testing.T) {
	var gotLangs []string
	var gotFile, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotLangs = r.MultipartForm.Value["ocr_languages"]
		f, hdr, err := r.FormFile("files")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotFile, gotName = string(b), hdr.Filename
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Element{
			{Type: "Title", Text: "Scanned invoice"},
			{Type: "NarrativeText", Text: "Total due: 42", Metadata: map[string]interface{}{"page_number": 1}},
		})
	}))
	defer srv.Close()

	c := NewUnstructuredClient(srv.URL, WithTimeout(5*time.Second))
	elements, err := c.Extract(context.Background(), []byte("%PDF-fake"), "/in/scan.pdf", []string{"eng", "deu"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if gotName != "scan.pdf" || gotFile != "%PDF-fake" {
		t.Errorf("server got file %q named %q", gotFile, gotName)
	}
	if strings.Join(gotLangs, ",") != "eng,deu" {
		t.Errorf("ocr_languages = %v", gotLangs)
	}
	if JoinText(elements) != "Scanned invoice\n\nTotal due: 42" {
		t.Errorf("got %q", JoinText(elements))
	}
}

func TestUnstructuredClient_errorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "partition failed", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewUnstructuredClient(srv.URL).Extract(context.Background(), []byte("x"), "a.pdf", nil)
	if err == nil || !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "partition failed") {
		t.Errorf("expected descriptive status error, got %v", err)
	}
}

func TestUnstructuredClient_timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewUnstructuredClient(srv.URL, WithTimeout(50*time.Millisecond)).
		Extract(context.Background(), []byte("x"), "a.pdf", nil)
	if err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error, got %v", err)
	}
}

func TestUnstructuredClient_badJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()
	if _, err := NewUnstructuredClient(srv.URL).Extract(context.Background(), []byte("x"), "a.pdf", nil); err == nil {
		t.Error("expected decode error")
	}
}

func TestUnstructuredClient_tooLarge(t *testing.T) {
	c := NewUnstructuredClient("http://127.0.0.1:1", WithMaxFileSize(3))
	_, err := c.Extract(context.Background(), []byte("four"), "a.pdf", nil)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestUnstructuredClient_rateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := NewUnstructuredClient(srv.URL, WithRateLimit(0.001))
	if _, err := c.Extract(context.Background(), []byte("x"), "a.pdf", nil); err != nil {
		t.Fatalf("first request should pass the burst: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Extract(ctx, []byte("x"), "a.pdf", nil); err == nil {
		t.Error("expected rate limit wait to fail with the context")
	}
}
