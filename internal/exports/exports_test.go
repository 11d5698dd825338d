package exports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/i18n"
	"github.com/aura-checkin/backend/internal/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubLister struct{ ps []models.Participant }

func (s stubLister) List(_ context.Context, attendance string) ([]models.Participant, error) {
	var out []models.Participant
	for _, p := range s.ps {
		if attendance == models.AttendanceAll ||
			(attendance == models.AttendanceAttended && p.Present) ||
			(attendance == models.AttendanceNotAttended && !p.Present) {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeArchive struct {
	objects map[string][]byte
	fail    bool
}

func (a *fakeArchive) UploadExport(_ context.Context, key string, body []byte) error {
	if a.fail {
		return errors.New("s3: access denied")
	}
	a.objects[key] = body
	return nil
}

func (a *fakeArchive) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://exports.example.com/" + key + "?X-Amz-Signature=abc", nil
}

var sample = []models.Participant{
	{UniqueID: "SEM-ABC", Name: "Ana", Email: "ana@example.com", Present: true},
	{UniqueID: "SEM-XYZ", Name: "Budi", Email: "budi@example.com"},
}

func newRouter(t *testing.T, ps []models.Participant, archive Archive) *gin.Engine {
	t.Helper()
	tr, err := i18n.New("en", nil)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(stubLister{ps: ps}, archive, tr, "SEM", zap.NewNop())
	h.now = func() time.Time { return time.Date(2025, 9, 20, 8, 0, 0, 0, time.UTC) }
	r := gin.New()
	r.GET("/participants/export", h.Export)
	return r
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func readRows(t *testing.T, body []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestStripPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct{ id, prefix, want string }{
		{"SEM-ABC", "SEM", "ABC"},
		{"SEM-ABC", "SEM-", "ABC"},
		{"OTHER-ABC", "SEM", "OTHER-ABC"},
		{"ABC", "", "ABC"},
	}
	for _, tt := range tests {
		if got := StripPrefix(tt.id, tt.prefix); got != tt.want {
			t.Errorf("StripPrefix(%q, %q) = %q, want %q", tt.id, tt.prefix, got, tt.want)
		}
	}
}

func TestExport_Download(t *testing.T) {
	t.Parallel()

	rec := get(newRouter(t, sample, nil), "/participants/export?type=all")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "participants-all-20250920-080000.xlsx") {
		t.Fatalf("content-disposition = %q", cd)
	}
	rows := readRows(t, rec.Body.Bytes())
	want := [][]string{
		{"No", "Unique ID", "Name", "Email", "Status"},
		{"1", "ABC", "Ana", "ana@example.com", "Present"},
		{"2", "XYZ", "Budi", "budi@example.com", "Absent"},
	}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestExport_FiltersAndEmpty(t *testing.T) {
	t.Parallel()

	r := newRouter(t, sample, nil)
	rec := get(r, "/participants/export?type=attended")
	if rec.Code != http.StatusOK || len(readRows(t, rec.Body.Bytes())) != 2 {
		t.Fatalf("attended export = %d", rec.Code)
	}
	if rec := get(newRouter(t, sample[:1], nil), "/participants/export?type=not-attended"); rec.Code != http.StatusNotFound {
		t.Fatalf("empty export = %d, want 404", rec.Code)
	}
	if rec := get(r, "/participants/export?type=some"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad type = %d", rec.Code)
	}
	if rec := get(r, "/participants/export?destination=s3"); rec.Code != http.StatusBadRequest {
		t.Fatalf("s3 without archive = %d", rec.Code)
	}
}

func TestExport_ToS3(t *testing.T) {
	t.Parallel()

	archive := &fakeArchive{objects: map[string][]byte{}}
	rec := get(newRouter(t, sample, archive), "/participants/export?destination=s3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data struct {
			Key   string `json:"key"`
			URL   string `json:"url"`
			Count int    `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Data.Key != "exports/2025-09-20/participants-all-20250920-080000.xlsx" || env.Data.Count != 2 || !strings.Contains(env.Data.URL, env.Data.Key) {
		t.Fatalf("response = %+v", env.Data)
	}
	if len(readRows(t, archive.objects[env.Data.Key])) != 3 {
		t.Fatal("uploaded workbook has wrong row count")
	}

	archive.fail = true
	if rec := get(newRouter(t, sample, archive), "/participants/export?destination=s3"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failed upload = %d", rec.Code)
	}
}
