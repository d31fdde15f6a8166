package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"receiptmaker/internal"
	"receiptmaker/internal/auth"
	"receiptmaker/internal/cache"
	"receiptmaker/internal/editor"
	"receiptmaker/internal/receipt"
	"receiptmaker/internal/render"
	"receiptmaker/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const sampleSections = `[
	{"type":"header","id":"header-1","businessDetails":"Corner Cafe\n1 Main St"},
	{"type":"items_list","id":"items_list-1","items":[{"quantity":2,"item":"Latte","price":4.5}],"totalLines":[{"title":"Subtotal","value":9}],"total":{"title":"TOTAL","price":9}},
	{"type":"custom_message","id":"custom_message-1","message":"Thank you!"},
	{"type":"barcode","id":"barcode-1","value":"123456","size":1}
]`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := internal.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testServer struct {
	engine    *gin.Engine
	templates *services.TemplateService
	userToken string
	adminTok  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := newTestDB(t)

	provider, err := auth.NewJWTProvider("test-secret")
	if err != nil {
		t.Fatalf("NewJWTProvider: %v", err)
	}
	mw := auth.NewMiddleware(provider, auth.NewAdminList([]string{"admin@example.com"}))
	userToken, _ := provider.Issue(auth.User{ID: "user-1", Email: "user@example.com"}, time.Hour)
	adminToken, _ := provider.Issue(auth.User{ID: "admin-1", Email: "admin@example.com"}, time.Hour)

	stats := services.NewStatisticsService(db, nil)
	premium := services.NewPremiumService(db)
	templates := services.NewTemplateService(db)
	userTemplates := services.NewUserTemplateService(db, stats)
	sectionTemplates := services.NewSectionTemplateService(db, nil)
	defaults := cache.NewSectionDefaults(sectionTemplates, nil, nil)
	sectionTemplates.SetCache(defaults)

	composer := render.NewComposer(nil)
	exporter := render.NewExporter(render.NewRasterizer(nil, nil), render.LocalPDF{})
	renderService := services.NewRenderService(composer, exporter, premium, stats)

	signer, err := services.NewUnsubscribeSigner("unsub-secret")
	if err != nil {
		t.Fatalf("NewUnsubscribeSigner: %v", err)
	}
	campaign := services.NewCampaignService(db, services.NewLogMailer(nil), signer, services.CampaignOptions{PublicBaseURL: "http://localhost"}, nil)

	templateHandler := NewTemplateHandler(templates, userTemplates)
	sectionHandler := NewSectionTemplateHandler(sectionTemplates, defaults)
	renderHandler := NewRenderHandler(renderService, defaults)
	campaignHandler := NewCampaignHandler(campaign)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(mw.OptionalUser())
	api.GET("/templates/:id", templateHandler.GetTemplate)
	api.GET("/templates/by-slug/:slug", templateHandler.GetTemplateBySlug)
	api.GET("/section-defaults/:type", sectionHandler.GetDefault)
	api.POST("/render/preview", renderHandler.Preview)
	api.POST("/render/export", renderHandler.Export)
	api.POST("/editor/apply", renderHandler.ApplyEdits)
	api.GET("/unsubscribe", campaignHandler.Unsubscribe)

	admin := api.Group("", mw.RequireUser(), mw.RequireAdmin())
	admin.POST("/templates", templateHandler.CreateTemplate)

	me := api.Group("/me", mw.RequireUser())
	me.GET("/templates/:id", templateHandler.GetMyTemplate)
	me.POST("/templates/from/:templateId", templateHandler.CopyTemplate)

	return &testServer{engine: r, templates: templates, userToken: userToken, adminTok: adminToken}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			if err := json.NewEncoder(&buf).Encode(b); err != nil {
				t.Fatalf("encode body: %v", err)
			}
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func documentBody(extra string) string {
	return `{"document":{"sections":` + sampleSections + `}` + extra + `}`
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("create: %w", services.ErrValidation), http.StatusBadRequest},
		{"section", &receipt.FieldError{Index: 1, Field: "items"}, http.StatusBadRequest},
		{"unknown kind", receipt.ErrUnknownKind, http.StatusBadRequest},
		{"editor", editor.ErrInvalidOperation, http.StatusBadRequest},
		{"unauthenticated", auth.ErrUnauthenticated, http.StatusUnauthorized},
		{"forbidden", services.ErrForbidden, http.StatusForbidden},
		{"not found", fmt.Errorf("get: %w", services.ErrNotFound), http.StatusNotFound},
		{"conflict", services.ErrConflict, http.StatusConflict},
		{"ai down", services.ErrAIUnavailable, http.StatusServiceUnavailable},
		{"ai unreadable", services.ErrAIUnreadable, http.StatusUnprocessableEntity},
		{"other", errors.New("dial tcp: refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := classify(tt.err)
			if got != tt.want {
				t.Fatalf("classify(%v) = %d, want %d", tt.err, got, tt.want)
			}
			if got == http.StatusInternalServerError && strings.Contains(msg, "dial") {
				t.Fatalf("internal error leaked: %q", msg)
			}
		})
	}
}

func TestTemplateAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	create := map[string]any{
		"name":     "Corner Cafe",
		"slug":     "corner-cafe",
		"sections": json.RawMessage(sampleSections),
	}

	tests := []struct {
		name  string
		token string
		body  any
		want  int
	}{
		{"anonymous", "", create, http.StatusUnauthorized},
		{"non-admin", s.userToken, create, http.StatusForbidden},
		{"admin", s.adminTok, create, http.StatusCreated},
		{"duplicate slug", s.adminTok, create, http.StatusConflict},
		{"bad slug", s.adminTok, map[string]any{"name": "X", "slug": "Bad Slug", "sections": json.RawMessage(sampleSections)}, http.StatusBadRequest},
		{"unknown section", s.adminTok, map[string]any{"name": "X", "slug": "x", "sections": json.RawMessage(`[{"type":"qr","id":"q"}]`)}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/templates", tt.token, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}

	if w := s.do(t, http.MethodGet, "/api/v1/templates/by-slug/corner-cafe", "", nil); w.Code != http.StatusOK {
		t.Fatalf("by slug status = %d", w.Code)
	}
	w := s.do(t, http.MethodGet, "/api/v1/templates/missing", "", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "not found") {
		t.Fatalf("missing template: %d %s", w.Code, w.Body.String())
	}
}

func TestCopyOnSaveRoute(t *testing.T) {
	s := newTestServer(t)
	tpl, err := s.templates.Create(context.Background(), services.TemplateInput{
		Name: "Corner Cafe", Slug: "corner-cafe", Sections: json.RawMessage(sampleSections),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if w := s.do(t, http.MethodPost, "/api/v1/me/templates/from/"+tpl.ID, "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous copy status = %d", w.Code)
	}

	w := s.do(t, http.MethodPost, "/api/v1/me/templates/from/"+tpl.ID, s.userToken, map[string]string{"name": "My cafe"})
	if w.Code != http.StatusCreated {
		t.Fatalf("copy status = %d (%s)", w.Code, w.Body.String())
	}
	var copied struct {
		ID            string `json:"id"`
		UserID        string `json:"user_id"`
		Name          string `json:"name"`
		DerivedFromID string `json:"derived_from_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &copied); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if copied.UserID != "user-1" || copied.Name != "My cafe" || copied.DerivedFromID != tpl.ID {
		t.Fatalf("unexpected copy %+v", copied)
	}

	if w := s.do(t, http.MethodGet, "/api/v1/me/templates/"+copied.ID, s.adminTok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("other user's copy status = %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/v1/me/templates/from/missing", s.userToken, nil); w.Code != http.StatusNotFound {
		t.Fatalf("copy of missing template status = %d", w.Code)
	}
}

func TestPreviewRoute(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/render/preview", "", documentBody(""))
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d (%s)", w.Code, w.Body.String())
	}
	var preview struct {
		Tree struct {
			Blocks []render.Block `json:"blocks"`
		} `json:"tree"`
		Surface struct {
			Watermark *render.Watermark `json:"watermark"`
		} `json:"surface"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(preview.Tree.Blocks) == 0 {
		t.Fatal("preview has no blocks")
	}
	if preview.Surface.Watermark == nil {
		t.Fatal("anonymous preview should carry the watermark")
	}

	w = s.do(t, http.MethodPost, "/api/v1/render/preview?format=html", "", documentBody(""))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("html preview: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Body.String(), "Corner Cafe") {
		t.Fatal("html preview is missing the header text")
	}

	bad := `{"document":{"sections":[{"type":"qr","id":"q-1"}]}}`
	if w := s.do(t, http.MethodPost, "/api/v1/render/preview", "", bad); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown section status = %d", w.Code)
	}
}

func TestExportRoute(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name        string
		query       string
		want        int
		contentType string
		fileName    string
	}{
		{"png default", "", http.StatusOK, "image/png", "corner-cafe.png"},
		{"pdf", "?format=pdf", http.StatusOK, "application/pdf", "corner-cafe.pdf"},
		{"bad format", "?format=gif", http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/render/export"+tt.query, "", documentBody(`,"template_name":"Corner Cafe"`))
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if tt.want != http.StatusOK {
				return
			}
			if got := w.Header().Get("Content-Type"); got != tt.contentType {
				t.Fatalf("content type = %q", got)
			}
			if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, tt.fileName) {
				t.Fatalf("content disposition = %q", got)
			}
			if got := w.Header().Get("X-Watermarked"); got != "true" {
				t.Fatalf("X-Watermarked = %q", got)
			}
		})
	}

	empty := `{"document":{"sections":[]}}`
	if w := s.do(t, http.MethodPost, "/api/v1/render/export", "", empty); w.Code != http.StatusBadRequest {
		t.Fatalf("empty export status = %d", w.Code)
	}
}

func TestApplyEditsRoute(t *testing.T) {
	s := newTestServer(t)

	body := `{"document":{"sections":` + sampleSections + `},"operations":[
		{"op":"remove","id":"custom_message-1"},
		{"op":"add","type":"date_time"}
	]}`
	w := s.do(t, http.MethodPost, "/api/v1/editor/apply", "", body)
	if w.Code != http.StatusOK {
		t.Fatalf("apply status = %d (%s)", w.Code, w.Body.String())
	}
	var out struct {
		Document struct {
			Sections []struct {
				Type string `json:"type"`
				ID   string `json:"id"`
			} `json:"sections"`
		} `json:"document"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n := len(out.Document.Sections); n != 4 {
		t.Fatalf("sections = %d, want 4", n)
	}
	for _, sec := range out.Document.Sections {
		if sec.ID == "custom_message-1" {
			t.Fatal("removed section is still present")
		}
	}

	bad := `{"document":{"sections":` + sampleSections + `},"operations":[{"op":"explode"}]}`
	if w := s.do(t, http.MethodPost, "/api/v1/editor/apply", "", bad); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown op status = %d", w.Code)
	}
}

func TestSectionDefaultRoute(t *testing.T) {
	s := newTestServer(t)

	for _, kind := range receipt.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			w := s.do(t, http.MethodGet, "/api/v1/section-defaults/"+string(kind), "", nil)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d (%s)", w.Code, w.Body.String())
			}
			var sec struct {
				Type string `json:"type"`
				ID   string `json:"id"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &sec); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if sec.Type != string(kind) || !strings.HasPrefix(sec.ID, string(kind)+"-") {
				t.Fatalf("unexpected default %+v", sec)
			}
		})
	}

	if w := s.do(t, http.MethodGet, "/api/v1/section-defaults/qr", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind status = %d", w.Code)
	}
}

func TestUnsubscribeRejectsTamperedToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/unsubscribe?token=not-a-token", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Link not valid") {
		t.Fatalf("unexpected page %s", w.Body.String())
	}
}
