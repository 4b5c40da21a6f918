package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-sequencer/internal/audit"
)

// record adds an API action to the audit trail. The subject defaults to
// the authenticated caller.
func (s *Server) record(ctx context.Context, e audit.Entry) {
	if s.audit == nil {
		return
	}
	if e.Subject == "" {
		if p, ok := principalFromContext(ctx); ok {
			e.Subject = p.Subject
		}
	}
	if e.EntityType == "" {
		e.EntityType = audit.EntitySequence
	}
	e.Source = audit.SourceAPI
	s.audit.Record(ctx, e)
}

// handleListAudit returns a page of audit entries, newest first.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeUnavailable(w, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	f := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Subject:    q.Get("subject"),
	}

	var ok bool
	if f.Limit, ok = queryInt(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if f.Offset, ok = queryInt(w, q.Get("offset"), "offset"); !ok {
		return
	}

	page, err := s.auditLog.List(r.Context(), f)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	if page.Entries == nil {
		page.Entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, page)
}

// queryInt parses an optional non-negative query parameter.
func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
