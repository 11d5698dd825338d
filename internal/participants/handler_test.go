package participants

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRouter(t *testing.T) (*gin.Engine, *SQLiteRepository) {
	t.Helper()
	store := newSQLiteStore(t)
	h := NewHandler(store, "EVT", zap.NewNop())
	r := gin.New()
	r.GET("/participants", h.List)
	r.POST("/participants", h.Create)
	r.DELETE("/participants", h.DeleteAll)
	r.GET("/participants/:unique", h.Get)
	r.PATCH("/participants/:unique", h.Update)
	r.DELETE("/participants/:unique", h.Delete)
	return r, store
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestHandler_CreateGeneratesIdentity(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t)

	rec, env := do(t, r, http.MethodPost, "/participants", `{"name":"Siti","email":"siti@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var p models.Participant
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatal(err)
	}
	if !regexp.MustCompile(`^EVT-[A-Z]{3}$`).MatchString(p.UniqueID) {
		t.Fatalf("generated unique id %q", p.UniqueID)
	}

	rec, _ = do(t, r, http.MethodGet, "/participants/"+p.UniqueID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestHandler_CreateValidation(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing name", `{"email":"a@example.com"}`, http.StatusBadRequest},
		{"bad email", `{"name":"A","email":"not-an-email"}`, http.StatusBadRequest},
		{"delimiter in id", `{"unique_id":"A|B","name":"A","email":"a@example.com"}`, http.StatusBadRequest},
		{"bad registered_at", `{"name":"A","email":"a@example.com","registered_at":"yesterday"}`, http.StatusBadRequest},
		{"explicit id", `{"unique_id":"EVT-001","name":"A","email":"a@example.com"}`, http.StatusCreated},
		{"duplicate id", `{"unique_id":"EVT-001","name":"B","email":"b@example.com"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		rec, _ := do(t, r, http.MethodPost, "/participants", tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d (%s)", tt.name, rec.Code, tt.want, rec.Body.String())
		}
	}
}

func TestHandler_UpdateDeleteAndNotFound(t *testing.T) {
	t.Parallel()
	r, store := newTestRouter(t)
	seed(t, store, "EVT-ONE", "EVT-TWO")

	rec, env := do(t, r, http.MethodPatch, "/participants/EVT-ONE", `{"name":"Renamed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d", rec.Code)
	}
	var p models.Participant
	if err := json.Unmarshal(env.Data, &p); err != nil || p.Name != "Renamed" {
		t.Fatalf("patched participant = %+v, %v", p, err)
	}

	if rec, _ := do(t, r, http.MethodPatch, "/participants/EVT-ONE", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch status = %d", rec.Code)
	}
	if rec, env := do(t, r, http.MethodGet, "/participants/EVT-NOPE", ""); rec.Code != http.StatusNotFound || env.Code != "participant_not_found" {
		t.Fatalf("get unknown = %d %q", rec.Code, env.Code)
	}
	if rec, _ := do(t, r, http.MethodDelete, "/participants/EVT-ONE", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec, _ := do(t, r, http.MethodDelete, "/participants", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("delete all without flag status = %d", rec.Code)
	}
	if rec, _ := do(t, r, http.MethodDelete, "/participants?all=true", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete all status = %d", rec.Code)
	}

	rec, env = do(t, r, http.MethodGet, "/participants", "")
	if rec.Code != http.StatusOK || string(env.Data) != "[]" {
		t.Fatalf("list after delete all = %d %s", rec.Code, env.Data)
	}
}

func TestHandler_ListRejectsUnknownStatus(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t)

	if rec, _ := do(t, r, http.MethodGet, "/participants?status=maybe", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandler_NilLoggerAndWireNames(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	h := NewHandler(store, "EVT", nil)
	r := gin.New()
	r.POST("/participants", h.Create)
	r.DELETE("/participants", h.DeleteAll)

	rec, env := do(t, r, http.MethodPost, "/participants", `{"unique_id":"EVT-009","name":"Rina","email":"rina@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		t.Fatal(err)
	}
	if string(fields["unique_id"]) != `"EVT-009"` {
		t.Fatalf("unique_id = %s, want \"EVT-009\"", fields["unique_id"])
	}
	if _, ok := fields["unique"]; ok {
		t.Fatal("participant must not carry a separate unique field")
	}

	if rec, _ := do(t, r, http.MethodDelete, "/participants?all=true", ""); rec.Code != http.StatusOK {
		t.Fatalf("delete all status = %d", rec.Code)
	}
}
