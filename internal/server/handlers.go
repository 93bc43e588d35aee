package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/raphaelgruber/docrag/internal/chat"
	"github.com/raphaelgruber/docrag/internal/ingest"
	"github.com/raphaelgruber/docrag/internal/models"
	"github.com/raphaelgruber/docrag/internal/parser"
	"github.com/raphaelgruber/docrag/internal/store"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
		return
	}

	doc, err := s.ingestor.Accept(r.Context(), header.Filename, data)
	if err != nil {
		s.writeIngestError(w, err)
		return
	}
	// Accepted, not created: indexing continues in the background.
	writeJSON(w, http.StatusAccepted, documentDTO(doc))
}

func (s *Server) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrDuplicateDocument):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, parser.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, ingest.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ingest.ErrEmptyFile):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dtos := make([]DocumentDTO, 0, len(docs))
	for i := range docs {
		dtos = append(dtos, documentDTO(&docs[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, documentDTO(doc))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	err := s.ingestor.Delete(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDocumentBusy):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleChatStream answers a question as a server-sent event stream. Each
// event is one JSON object on a data line, flushed immediately so tokens
// reach the client as they are generated. Closing the connection cancels
// the request context and thereby the generation.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	emit := func(e chat.Event) error {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := s.asker.Ask(r.Context(), chat.Request{
		Question:       req.Question,
		ConversationID: req.ConversationID,
		DocumentIDs:    req.DocumentIDs,
		Attachment:     req.Attachment,
		Model:          req.Model,
		TopK:           req.TopK,
		MinScore:       req.MinScore,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
	}, emit)
	if err != nil {
		// The error event already went out through emit; nothing more to
		// send on an open SSE stream.
		s.logger.Debug("chat stream ended with error", "error", err)
	}
}

// handleDeleteAllDocuments wipes every terminal document. Documents still
// pending or processing are skipped and reported, not failed on.
func (s *Server) handleDeleteAllDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	deleted, skipped := 0, 0
	for i := range docs {
		id := models.MustRecordIDString(docs[i].ID)
		err := s.ingestor.Delete(r.Context(), id)
		switch {
		case err == nil:
			deleted++
		case errors.Is(err, store.ErrDocumentBusy):
			skipped++
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted, "skipped": skipped})
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.conversations.ListConversations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	dtos := make([]ConversationDTO, 0, len(convs))
	for i := range convs {
		dtos = append(dtos, conversationDTO(&convs[i]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	conv, err := s.conversations.GetConversation(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	msgs, err := s.conversations.Messages(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	detail := ConversationDetailDTO{
		ConversationDTO: conversationDTO(conv),
		Messages:        make([]MessageDTO, 0, len(msgs)),
	}
	for i := range msgs {
		detail.Messages = append(detail.Messages, messageDTO(&msgs[i]))
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.conversations.GetConversation(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.conversations.DeleteConversation(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAllConversations(w http.ResponseWriter, r *http.Request) {
	if err := s.conversations.DeleteAllConversations(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
