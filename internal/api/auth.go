package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-sequencer/internal/audit"
	"github.com/nerrad567/gray-logic-sequencer/internal/auth"
)

// Auth constants.
const (
	// ticketTTL is how long a WebSocket ticket is valid.
	ticketTTL = 60 * time.Second

	// defaultAccessTokenTTL applies when security.jwt.access_token_ttl is unset.
	defaultAccessTokenTTL = 15 * time.Minute
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	Role        auth.Role `json:"role"`
}

// handleLogin authenticates a configured user and returns a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	principal, err := auth.Authenticate(s.secCfg.Users, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Info("login rejected", "username", req.Username)
			s.record(r.Context(), audit.Entry{
				Action:     audit.ActionLoginFailed,
				EntityType: audit.EntitySession,
				Subject:    req.Username,
			})
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login failed", "username", req.Username, "error", err)
		writeInternalError(w, "authentication unavailable")
		return
	}

	ttl := time.Duration(s.secCfg.JWT.AccessTokenTTL) * time.Minute
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}
	token, err := auth.GenerateAccessToken(principal.Subject, principal.Role, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		writeInternalError(w, "failed to generate token")
		return
	}

	s.logger.Info("login succeeded", "username", principal.Subject, "role", principal.Role)
	s.record(r.Context(), audit.Entry{
		Action:     audit.ActionLogin,
		EntityType: audit.EntitySession,
		Subject:    principal.Subject,
		Details:    map[string]any{"role": string(principal.Role)},
	})
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
		Role:        principal.Role,
	})
}

// handleMe returns the authenticated caller and its permissions.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject":     p.Subject,
		"role":        p.Role,
		"permissions": auth.PermissionsForRole(p.Role),
	})
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context()) //nolint:errcheck // requirePermission guarantees a principal
	ticket := s.tickets.issue(p)

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
	now     func() time.Time
}

type ticketEntry struct {
	principal auth.Principal
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{
		tickets: make(map[string]ticketEntry),
		now:     time.Now,
	}
}

// issue creates a ticket for p.
func (ts *ticketStore) issue(p auth.Principal) string {
	ticket := generateTicket()

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{principal: p, expiresAt: ts.now().Add(ticketTTL)}
	ts.mu.Unlock()

	return ticket
}

// redeem consumes a ticket and returns the principal it was issued to.
func (ts *ticketStore) redeem(ticket string) (auth.Principal, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return auth.Principal{}, false
	}
	delete(ts.tickets, ticket)

	if !ts.now().Before(entry.expiresAt) {
		return auth.Principal{}, false
	}
	return entry.principal, true
}

// clean removes expired tickets.
func (ts *ticketStore) clean() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.now()
	for ticket, entry := range ts.tickets {
		if !now.Before(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

// pending returns the number of unredeemed tickets.
func (ts *ticketStore) pending() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.tickets)
}

// cleanLoop runs clean periodically until the context is cancelled.
func (ts *ticketStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ts.clean()
		}
	}
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
