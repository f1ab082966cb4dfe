package appointments

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/consultas/consultas/internal/domain/accounts"
	"github.com/consultas/consultas/internal/platform/auth"
)

func newTestServer(t *testing.T) (*echo.Echo, *Service, *auth.TokenService) {
	t.Helper()
	svc := NewService(newMockRepo(), testStore(t))
	tokens := auth.NewTokenService("test-secret", time.Hour)

	e := echo.New()
	g := e.Group("/api/v1", auth.Middleware(tokens))
	NewHandler(svc).RegisterRoutes(g)
	return e, svc, tokens
}

func doJSON(e *echo.Echo, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetEndpoint(t *testing.T) {
	e, _, tokens := newTestServer(t)
	token, _ := tokens.Issue(uuid.New(), "ana", accounts.RoleUser)

	rec := doJSON(e, http.MethodPost, "/api/v1/appointments",
		`{"type":"PSY","description":"first consultation"}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/appointments",
		`{"type":"XYZ"}`, token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad type status = %d, want 400", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/appointments", "", token)
	if rec.Code != http.StatusOK {
		t.Errorf("list status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/appointments", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated list status = %d, want 401", rec.Code)
	}
}

func TestDeleteEndpointAdminGuard(t *testing.T) {
	e, _, tokens := newTestServer(t)
	userToken, _ := tokens.Issue(uuid.New(), "ana", accounts.RoleUser)
	adminToken, _ := tokens.Issue(uuid.New(), "root", accounts.RoleAdmin)

	id := uuid.New()
	rec := doJSON(e, http.MethodDelete, "/api/v1/appointments/"+id.String(), "", userToken)
	if rec.Code != http.StatusForbidden {
		t.Errorf("user delete status = %d, want 403", rec.Code)
	}

	rec = doJSON(e, http.MethodDelete, "/api/v1/appointments/"+id.String(), "", adminToken)
	if rec.Code != http.StatusNotFound {
		t.Errorf("admin delete of missing appointment status = %d, want 404", rec.Code)
	}
}

func TestMultimediaUploadEndpoint(t *testing.T) {
	e, svc, tokens := newTestServer(t)

	p := Actor{ID: uuid.New(), Role: accounts.RoleUser}
	a, err := svc.Create(context.Background(), p, CreateInput{Type: TypeLegal})
	if err != nil {
		t.Fatal(err)
	}
	token, _ := tokens.Issue(p.ID, "ana", p.Role)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "evidence.pdf")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("pdf bytes"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments/"+a.ID.String()+"/multimedia", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var m Multimedia
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/appointments/"+a.ID.String()+"/multimedia/"+m.ID.String()+"/file", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "pdf bytes" {
		t.Errorf("downloaded content = %q", rec.Body.String())
	}
}
