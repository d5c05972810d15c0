package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/tocindex/internal/doctree"
	"github.com/dgallion1/tocindex/internal/query"
	"github.com/dgallion1/tocindex/internal/store"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.List(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, doc)
}

// handleDeleteDocument removes the stored index and, when publishing is
// configured, the published copy. A failed unpublish is reported but does
// not restore the local rows.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()
	if err := s.store.Delete(ctx, docID); err != nil {
		storeError(w, err)
		return
	}

	resp := map[string]any{"doc_id": docID, "deleted": true}
	if s.unpub != nil {
		if err := s.unpub.Unpublish(ctx, docID); err != nil {
			s.log.Warn("unpublish failed", "doc_id", docID, "error", err)
			resp["unpublish_error"] = err.Error()
		} else {
			resp["unpublished"] = true
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.store.Summary(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, sum)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.store.Report(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, rep)
}

func (s *Server) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	lines, err := s.store.Unmatched(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"unmatched": lines})
}

// handleSections lists a tree's entries. Query parameters narrow the set:
// q with optional fields, level, and a from/to page range. With q the
// response carries per-field match details.
func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	keep, err := sectionFilter(q.Get("level"), q.Get("from"), q.Get("to"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if term := q.Get("q"); term != "" {
		var names []string
		if f := q.Get("fields"); f != "" {
			names = strings.Split(f, ",")
		}
		fields, err := query.ParseFields(names)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		hits := []query.Hit{}
		for _, h := range eng.Search(term, fields) {
			if keep(h.Entry) {
				hits = append(hits, h)
			}
		}
		writeJSON(w, map[string]any{"query": term, "fields": fields, "hits": hits})
		return
	}

	sections := []*doctree.SectionEntry{}
	for _, e := range eng.Tree().Entries() {
		if keep(e) {
			sections = append(sections, e)
		}
	}
	writeJSON(w, map[string]any{"sections": sections})
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "sectionID")
	if rec, ok := eng.Record(id); ok {
		writeJSON(w, rec)
		return
	}
	e, ok := eng.ByID(id)
	if !ok {
		jsonError(w, "section not found", http.StatusNotFound)
		return
	}
	writeJSON(w, e)
}

func (s *Server) handleChildren(w http.ResponseWriter, r *http.Request) {
	s.relatives(w, r, (*query.Engine).Children, false)
}

func (s *Server) handleDescendants(w http.ResponseWriter, r *http.Request) {
	s.relatives(w, r, (*query.Engine).Descendants, false)
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	s.relatives(w, r, (*query.Engine).PathToRoot, true)
}

// relatives answers the structural lookups. Children and descendants of a
// known identifier are listed even when empty. An identifier without an entry
// is 404 unless it is a structural gap with entries below it; mustExist
// rejects gaps outright.
func (s *Server) relatives(w http.ResponseWriter, r *http.Request, fn func(*query.Engine, string) []*doctree.SectionEntry, mustExist bool) {
	eng, ok := s.engine(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "sectionID")
	_, known := eng.ByID(id)
	if !known && mustExist {
		jsonError(w, "section not found", http.StatusNotFound)
		return
	}
	out := fn(eng, id)
	if !known && len(out) == 0 {
		jsonError(w, "section not found", http.StatusNotFound)
		return
	}
	if out == nil {
		out = []*doctree.SectionEntry{}
	}
	writeJSON(w, map[string]any{"section_id": id, "sections": out})
}

// engine loads the tree selected by the tree parameter: listing (default)
// or content.
func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*query.Engine, bool) {
	docID := chi.URLParam(r, "docID")
	var (
		t   *doctree.Tree
		err error
	)
	switch r.URL.Query().Get("tree") {
	case "", "listing", "toc":
		t, err = s.store.Listing(r.Context(), docID)
	case "content", "spec":
		t, err = s.store.Content(r.Context(), docID)
	default:
		jsonError(w, "tree must be listing or content", http.StatusBadRequest)
		return nil, false
	}
	if err != nil {
		storeError(w, err)
		return nil, false
	}
	return query.New(t), true
}

func sectionFilter(level, from, to string) (func(*doctree.SectionEntry) bool, error) {
	lvl, err := queryInt(level, "level")
	if err != nil {
		return nil, err
	}
	lo, err := queryInt(from, "from")
	if err != nil {
		return nil, err
	}
	hi, err := queryInt(to, "to")
	if err != nil {
		return nil, err
	}
	return func(e *doctree.SectionEntry) bool {
		if lvl != nil && e.Level != *lvl {
			return false
		}
		if lo != nil && e.Page < *lo {
			return false
		}
		if hi != nil && e.Page > *hi {
			return false
		}
		return true
	}, nil
}

func queryInt(v, name string) (*int, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, errors.New(name + " must be an integer")
	}
	return &n, nil
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}
