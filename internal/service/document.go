package service

import (
	"context"
	"fmt"

	"github.com/kestrelworks/crewdeck/internal/domain"
	"github.com/kestrelworks/crewdeck/internal/domain/activity"
	"github.com/kestrelworks/crewdeck/internal/domain/document"
	"github.com/kestrelworks/crewdeck/internal/port/activitylog"
	"github.com/kestrelworks/crewdeck/internal/port/database"
)

// DocumentService manages markdown artifacts.
type DocumentService struct {
	store  database.Store
	log    activitylog.Log
	events *Events
}

// NewDocumentService creates a DocumentService.
func NewDocumentService(store database.Store, log activitylog.Log, events *Events) *DocumentService {
	return &DocumentService{store: store, log: log, events: events}
}

// Create saves a document, linking it to a task when task_id is given.
func (s *DocumentService) Create(ctx context.Context, req document.CreateRequest) (*document.Document, error) {
	if req.Title == "" || req.Content == "" {
		return nil, fmt.Errorf("%w: title and content are required", domain.ErrValidation)
	}
	if req.Type == "" {
		req.Type = document.TypeNote
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown document type %q", domain.ErrValidation, req.Type)
	}
	if req.TaskID != "" {
		if _, err := s.store.GetTask(ctx, req.TaskID); err != nil {
			return nil, err
		}
	}

	doc, err := s.store.CreateDocument(ctx, req)
	if err != nil {
		return nil, err
	}

	agentID, _ := req.CreatedBy.AgentID()
	record(ctx, s.log, s.events, activity.Activity{
		Type:    activity.TypeDocumentCreated,
		AgentID: agentID,
		TaskID:  req.TaskID,
		Message: fmt.Sprintf("Document created: %s", doc.Title),
	})
	return doc, nil
}

// Get returns a document by id.
func (s *DocumentService) Get(ctx context.Context, id string) (*document.Document, error) {
	return s.store.GetDocument(ctx, id)
}

// ByTask returns the documents linked to a task.
func (s *DocumentService) ByTask(ctx context.Context, taskID string) ([]document.Document, error) {
	return s.store.ListDocumentsByTask(ctx, taskID)
}

// ByType returns documents of one type, newest first.
func (s *DocumentService) ByType(ctx context.Context, docType document.Type, limit int) ([]document.Document, error) {
	if !docType.Valid() {
		return nil, fmt.Errorf("%w: unknown document type %q", domain.ErrValidation, docType)
	}
	return s.store.ListDocumentsByType(ctx, docType, limit)
}

// Recent returns the newest documents of any type.
func (s *DocumentService) Recent(ctx context.Context, limit int) ([]document.Document, error) {
	return s.store.ListRecentDocuments(ctx, limit)
}
