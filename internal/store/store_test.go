// Package store provides integration tests for SurrealDB operations.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/docrag/internal/models"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func newDocInput(name string) models.DocumentInput {
	id := uuid.New().String()
	return models.DocumentInput{
		ID:           id,
		Filename:     id + ".pdf",
		OriginalName: name,
		FileType:     "pdf",
		ContentHash:  "deadbeef",
	}
}

// =============================================================================
// DOCUMENT TESTS
// =============================================================================

func TestCreateAndGetDocument(t *testing.T) {
	ctx := context.Background()

	input := newDocInput("report.pdf")
	doc, err := testDB.CreateDocument(ctx, input)
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	defer testDB.DeleteDocument(ctx, input.ID)

	if doc.Status != models.StatusPending {
		t.Errorf("Expected status pending, got %q", doc.Status)
	}
	if doc.Progress != 0 {
		t.Errorf("Expected progress 0, got %d", doc.Progress)
	}
	if doc.OriginalName != "report.pdf" {
		t.Errorf("Expected original_name 'report.pdf', got %q", doc.OriginalName)
	}

	got, err := testDB.GetDocument(ctx, input.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got.Filename != input.Filename {
		t.Errorf("Expected filename %q, got %q", input.Filename, got.Filename)
	}
	if got.ContentHash != "deadbeef" {
		t.Errorf("Expected content_hash 'deadbeef', got %q", got.ContentHash)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	ctx := context.Background()

	_, err := testDB.GetDocument(ctx, "does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()

	input := newDocInput("lifecycle.pdf")
	if _, err := testDB.CreateDocument(ctx, input); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	defer testDB.DeleteDocument(ctx, input.ID)

	stages := []struct {
		status   models.DocumentStatus
		progress int
		detail   string
	}{
		{models.StatusProcessing, 10, "parsing"},
		{models.StatusProcessing, 40, "chunking"},
		{models.StatusProcessing, 85, "indexing"},
	}
	for _, stage := range stages {
		if err := testDB.UpdateDocumentProgress(ctx, input.ID, stage.status, stage.progress, stage.detail); err != nil {
			t.Fatalf("UpdateDocumentProgress(%d) failed: %v", stage.progress, err)
		}
		doc, err := testDB.GetDocument(ctx, input.ID)
		if err != nil {
			t.Fatalf("GetDocument failed: %v", err)
		}
		if doc.Progress != stage.progress || doc.StatusDetail != stage.detail {
			t.Errorf("Expected progress %d detail %q, got %d %q", stage.progress, stage.detail, doc.Progress, doc.StatusDetail)
		}
	}

	if err := testDB.SetDocumentReady(ctx, input.ID, 17); err != nil {
		t.Fatalf("SetDocumentReady failed: %v", err)
	}
	doc, err := testDB.GetDocument(ctx, input.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc.Status != models.StatusReady || doc.Progress != 100 || doc.ChunkCount != 17 {
		t.Errorf("Expected ready/100/17, got %s/%d/%d", doc.Status, doc.Progress, doc.ChunkCount)
	}
}

func TestUpdateDocumentProgress_NeverRegresses(t *testing.T) {
	ctx := context.Background()

	input := newDocInput("monotonic.pdf")
	if _, err := testDB.CreateDocument(ctx, input); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	defer testDB.DeleteDocument(ctx, input.ID)

	if err := testDB.UpdateDocumentProgress(ctx, input.ID, models.StatusProcessing, 60, "embedding"); err != nil {
		t.Fatalf("UpdateDocumentProgress failed: %v", err)
	}
	// A stale lower value must not move the bar backwards.
	if err := testDB.UpdateDocumentProgress(ctx, input.ID, models.StatusProcessing, 40, "chunking"); err != nil {
		t.Fatalf("UpdateDocumentProgress failed: %v", err)
	}

	doc, err := testDB.GetDocument(ctx, input.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc.Progress != 60 {
		t.Errorf("Expected progress to stay at 60, got %d", doc.Progress)
	}
}

func TestSetDocumentError(t *testing.T) {
	ctx := context.Background()

	input := newDocInput("failing.pdf")
	if _, err := testDB.CreateDocument(ctx, input); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	defer testDB.DeleteDocument(ctx, input.ID)

	if err := testDB.UpdateDocumentProgress(ctx, input.ID, models.StatusProcessing, 40, "chunking"); err != nil {
		t.Fatalf("UpdateDocumentProgress failed: %v", err)
	}
	if err := testDB.SetDocumentError(ctx, input.ID, "embedding service unavailable"); err != nil {
		t.Fatalf("SetDocumentError failed: %v", err)
	}

	doc, err := testDB.GetDocument(ctx, input.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if doc.Status != models.StatusError {
		t.Errorf("Expected status error, got %q", doc.Status)
	}
	if doc.ErrorMessage == nil || *doc.ErrorMessage != "embedding service unavailable" {
		t.Errorf("Expected error message, got %v", doc.ErrorMessage)
	}
	if doc.Progress != 40 {
		t.Errorf("Expected progress left at 40, got %d", doc.Progress)
	}
}

func TestFindActiveDocumentByName(t *testing.T) {
	ctx := context.Background()

	input := newDocInput("dup-check.pdf")
	if _, err := testDB.CreateDocument(ctx, input); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	defer testDB.DeleteDocument(ctx, input.ID)

	found, err := testDB.FindActiveDocumentByName(ctx, "dup-check.pdf")
	if err != nil {
		t.Fatalf("FindActiveDocumentByName failed: %v", err)
	}
	if found == nil {
		t.Fatal("Expected pending document to be found")
	}

	// A failed document under the same name no longer blocks uploads.
	if err := testDB.SetDocumentError(ctx, input.ID, "boom"); err != nil {
		t.Fatalf("SetDocumentError failed: %v", err)
	}
	found, err = testDB.FindActiveDocumentByName(ctx, "dup-check.pdf")
	if err != nil {
		t.Fatalf("FindActiveDocumentByName failed: %v", err)
	}
	if found != nil {
		t.Errorf("Expected no active document after error status, got %+v", found)
	}
}

func TestListDocuments_NewestFirst(t *testing.T) {
	ctx := context.Background()

	first := newDocInput("list-a.pdf")
	second := newDocInput("list-b.pdf")
	if _, err := testDB.CreateDocument(ctx, first); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	defer testDB.DeleteDocument(ctx, first.ID)
	time.Sleep(10 * time.Millisecond)
	if _, err := testDB.CreateDocument(ctx, second); err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	defer testDB.DeleteDocument(ctx, second.ID)

	docs, err := testDB.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	var posA, posB = -1, -1
	for i, d := range docs {
		switch d.OriginalName {
		case "list-a.pdf":
			posA = i
		case "list-b.pdf":
			posB = i
		}
	}
	if posA < 0 || posB < 0 {
		t.Fatalf("Expected both documents in list, got positions %d %d", posA, posB)
	}
	if posB > posA {
		t.Errorf("Expected newest first: list-b at %d, list-a at %d", posB, posA)
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversationWithMessages(t *testing.T) {
	ctx := context.Background()

	id := uuid.New().String()
	conv, err := testDB.CreateConversation(ctx, id, "What is in the quarterly report?")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	defer testDB.DeleteConversation(ctx, id)

	if conv.Title != "What is in the quarterly report?" {
		t.Errorf("Expected title, got %q", conv.Title)
	}

	if _, err := testDB.AppendMessage(ctx, id, models.RoleUser, "What is in the quarterly report?"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if _, err := testDB.AppendMessage(ctx, id, models.RoleAssistant, "Revenue grew 12%."); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	msgs, err := testDB.Messages(ctx, id)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
		t.Errorf("Expected user then assistant, got %s then %s", msgs[0].Role, msgs[1].Role)
	}
}

func TestRecentMessages_LimitAndOrder(t *testing.T) {
	ctx := context.Background()

	id := uuid.New().String()
	if _, err := testDB.CreateConversation(ctx, id, "long chat"); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	defer testDB.DeleteConversation(ctx, id)

	for i := 0; i < 14; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		if _, err := testDB.AppendMessage(ctx, id, role, fmt.Sprintf("message %02d", i)); err != nil {
			t.Fatalf("AppendMessage(%d) failed: %v", i, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	msgs, err := testDB.RecentMessages(ctx, id, 10)
	if err != nil {
		t.Fatalf("RecentMessages failed: %v", err)
	}
	if len(msgs) != 10 {
		t.Fatalf("Expected 10 messages, got %d", len(msgs))
	}
	// Should be the last 10, oldest of them first.
	if msgs[0].Content != "message 04" {
		t.Errorf("Expected window to start at 'message 04', got %q", msgs[0].Content)
	}
	if msgs[9].Content != "message 13" {
		t.Errorf("Expected window to end at 'message 13', got %q", msgs[9].Content)
	}
}

func TestDeleteConversation_RemovesMessages(t *testing.T) {
	ctx := context.Background()

	id := uuid.New().String()
	if _, err := testDB.CreateConversation(ctx, id, "doomed"); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	if _, err := testDB.AppendMessage(ctx, id, models.RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	if err := testDB.DeleteConversation(ctx, id); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	if _, err := testDB.GetConversation(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	msgs, err := testDB.Messages(ctx, id)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected no messages after conversation delete, got %d", len(msgs))
	}
}

func TestTouchConversation_BumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()

	id := uuid.New().String()
	conv, err := testDB.CreateConversation(ctx, id, "touched")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	defer testDB.DeleteConversation(ctx, id)

	time.Sleep(20 * time.Millisecond)
	if err := testDB.TouchConversation(ctx, id); err != nil {
		t.Fatalf("TouchConversation failed: %v", err)
	}

	after, err := testDB.GetConversation(ctx, id)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if !after.UpdatedAt.After(conv.UpdatedAt) {
		t.Errorf("Expected updated_at to advance: before=%v after=%v", conv.UpdatedAt, after.UpdatedAt)
	}
}
