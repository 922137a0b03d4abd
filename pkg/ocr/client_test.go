package ocr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_FetchSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	client := NewClient(nil)
	text, err := client.FetchText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchText() error = %v", err)
	}
	if text != "hello" {
		t.Errorf("FetchText() = %q", text)
	}
}

func TestClient_FetchOnceByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(nil)
	_, err := client.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error")
	}

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}
	if fe.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", fe.StatusCode)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(nil)
	client.SetMaxRetries(2)
	client.SetRetryDelay(time.Millisecond)

	body, err := client.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewClient(nil)
	client.SetMaxRetries(3)
	client.SetRetryDelay(time.Millisecond)

	_, err := client.Fetch(context.Background(), server.URL)
	var fe *FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 FetchError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClient_FetchOldOCR(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><text><title>Kop</title><p>Eerste alinea</p></text>`))
	}))
	defer server.Close()

	text, err := NewClient(nil).FetchOldOCR(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchOldOCR() error = %v", err)
	}
	if text != "Kop\nEerste alinea" {
		t.Errorf("FetchOldOCR() = %q", text)
	}
}

func TestOldOCRText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "leading text of each child",
			input: `<text><p>een</p><p>twee</p></text>`,
			want:  "een\ntwee",
		},
		{
			name:  "nested element ends the leading text",
			input: `<text><p>voor<b>vet</b>na</p></text>`,
			want:  "voor",
		},
		{
			name:  "empty children skipped",
			input: `<text><p></p><p>twee</p></text>`,
			want:  "twee",
		},
		{
			name:  "latin1 declared encoding",
			input: "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><text><p>caf\xe9</p></text>",
			want:  "café",
		},
		{
			name:  "root only",
			input: `<text>los</text>`,
			want:  "",
		},
		{
			name:    "empty document",
			input:   "",
			wantErr: true,
		},
		{
			name:    "malformed",
			input:   `<text><p>open</text>`,
			wantErr: true,
		},
		{
			name:    "second root",
			input:   `<text><p>a</p></text><text/>`,
			wantErr: true,
		},
		{
			name:    "trailing text",
			input:   `<text><p>a</p></text>rest`,
			wantErr: true,
		},
		{
			name:  "comment ends paragraph text",
			input: `<text><p>voor<!-- x -->na</p></text>`,
			want:  "voor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OldOCRText([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("OldOCRText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("OldOCRText() = %q, want %q", got, tt.want)
			}
		})
	}
}
