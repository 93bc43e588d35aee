package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUploadReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/documents/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "report.pdf" {
			t.Errorf("filename = %q", header.Filename)
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"id":"d1","original_name":"report.pdf","status":"pending"}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	doc, err := c.UploadReader(context.Background(), "report.pdf", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if doc.ID != "d1" || doc.Status != "pending" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error":"document with this name already exists"}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.DocumentStatus(context.Background(), "d1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "already exists") {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestAskStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/stream" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`data: {"type":"conversation_id","conversation_id":"c7"}`,
			`data: {"type":"sources","sources":[{"document_id":"d1","title":"a.txt","content":"x","ordinal":0,"score":0.9}]}`,
			`data: {"type":"token","content":"Hello"}`,
			`data: {"type":"token","content":" there"}`,
			`data: {"type":"done"}`,
		}
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n\n", l)
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	var convID string
	var sources []Source
	var answer strings.Builder
	err := c.AskStream(context.Background(), AskRequest{Question: "hi"}, StreamHandlers{
		OnConversationID: func(id string) error { convID = id; return nil },
		OnSources:        func(s []Source) error { sources = s; return nil },
		OnToken:          func(tok string) error { answer.WriteString(tok); return nil },
	})
	if err != nil {
		t.Fatalf("ask stream: %v", err)
	}
	if convID != "c7" {
		t.Errorf("conversation id = %q", convID)
	}
	if len(sources) != 1 || sources[0].Title != "a.txt" {
		t.Errorf("sources = %+v", sources)
	}
	if answer.String() != "Hello there" {
		t.Errorf("answer = %q", answer.String())
	}
}

func TestAskStream_ErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"error\",\"error\":\"model unavailable\"}\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.AskStream(context.Background(), AskRequest{Question: "hi"}, StreamHandlers{})
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("err = %v", err)
	}
}

func TestAskStream_TruncatedStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"token\",\"content\":\"partial\"}\n\n")
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.AskStream(context.Background(), AskRequest{Question: "hi"}, StreamHandlers{})
	if err == nil || !strings.Contains(err.Error(), "without done") {
		t.Errorf("err = %v", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.DeleteDocument(context.Background(), "d9"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/v1/documents/d9" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestConversationDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat/conversations/c1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"id":"c1","title":"t","messages":[{"role":"user","content":"q"},{"role":"assistant","content":"a"}]}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	detail, err := c.Conversation(context.Background(), "c1")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if detail.ID != "c1" || len(detail.Messages) != 2 || detail.Messages[1].Role != "assistant" {
		t.Errorf("detail = %+v", detail)
	}
}
