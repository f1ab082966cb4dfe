package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/consultas/consultas/internal/domain/accounts"
	"github.com/consultas/consultas/internal/platform/auth"
)

func newRESTServer(t *testing.T) (*echo.Echo, *fixture, *auth.TokenService) {
	t.Helper()
	f := newFixture()
	tokens := auth.NewTokenService("test-secret", time.Hour)

	e := echo.New()
	g := e.Group("/api/v1", auth.Middleware(tokens))
	NewHandler(f.svc).RegisterRoutes(g)
	return e, f, tokens
}

func get(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestListRoomsEndpoint(t *testing.T) {
	e, f, tokens := newRESTServer(t)
	if _, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", ""); err != nil {
		t.Fatal(err)
	}
	token, _ := tokens.Issue(f.ana.ID, f.ana.Username, f.ana.Role)

	rec := get(e, "/api/v1/chat/rooms", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var previews []RoomPreview
	if err := json.Unmarshal(rec.Body.Bytes(), &previews); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(previews) != 1 {
		t.Fatalf("room count = %d, want 1", len(previews))
	}
	if previews[0].LastMessage == nil || previews[0].LastMessage.Content != "hola" {
		t.Error("last message preview missing")
	}

	rec = get(e, "/api/v1/chat/rooms", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}
}

func TestRoomMessagesEndpoint(t *testing.T) {
	e, f, tokens := newRESTServer(t)
	if _, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", ""); err != nil {
		t.Fatal(err)
	}

	ownerToken, _ := tokens.Issue(f.ana.ID, f.ana.Username, f.ana.Role)
	rec := get(e, "/api/v1/chat/rooms/ana-bruno/messages", ownerToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var msgs []WireMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 || msgs[0].User != "ana" {
		t.Errorf("history = %+v", msgs)
	}

	strangerToken, _ := tokens.Issue(uuid.New(), "stranger", accounts.RoleUser)
	rec = get(e, "/api/v1/chat/rooms/ana-bruno/messages", strangerToken)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger status = %d, want 403", rec.Code)
	}

	adminToken, _ := tokens.Issue(uuid.New(), "root", accounts.RoleAdmin)
	rec = get(e, "/api/v1/chat/rooms/ana-bruno/messages", adminToken)
	if rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}

	rec = get(e, "/api/v1/chat/rooms/ghost/messages", ownerToken)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown room status = %d, want 404", rec.Code)
	}
}
