package http

import (
	"net/http"

	"github.com/kestrelworks/crewdeck/internal/domain/document"
)

func (h *Handlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[document.CreateRequest](w, r)
	if !ok {
		return
	}
	doc, err := h.Documents.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "document not created")
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Documents.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handlers) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if docType := r.URL.Query().Get("type"); docType != "" {
		docs, err := h.Documents.ByType(r.Context(), document.Type(docType), queryLimit(r, 50))
		if err != nil {
			writeDomainError(w, err, "documents not listed")
			return
		}
		writeJSON(w, http.StatusOK, docs)
		return
	}
	docs, err := h.Documents.Recent(r.Context(), queryLimit(r, 50))
	if err != nil {
		writeDomainError(w, err, "documents not listed")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *Handlers) ListTaskDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Documents.ByTask(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
