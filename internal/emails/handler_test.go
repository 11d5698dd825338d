package emails

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/pkg/queue"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type stubFinder struct{ ids map[string]bool }

func (s stubFinder) FindByIdentities(_ context.Context, ids []string) ([]models.Participant, error) {
	var out []models.Participant
	for _, id := range ids {
		if s.ids[id] {
			out = append(out, models.Participant{UniqueID: id})
		}
	}
	return out, nil
}

type brokenQueue struct{}

func (brokenQueue) EnqueueTicketEmails(context.Context, []string) error {
	return errors.New("redis: connection refused")
}

func send(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/emails/send", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestSend_QueuesKnownAndReportsMissing(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := queue.NewQueue(client, nil)

	r := gin.New()
	r.POST("/emails/send", NewHandler(stubFinder{ids: map[string]bool{"EVT-A": true, "EVT-B": true}}, q, nil).Send)

	rec := send(r, `{"unique_ids":["EVT-A","EVT-X","EVT-B","EVT-A"," "]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data SendResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if strings.Join(env.Data.Queued, ",") != "EVT-A,EVT-B" || strings.Join(env.Data.Missing, ",") != "EVT-X" {
		t.Fatalf("response = %+v", env.Data)
	}
	pending, _, err := q.Depth(context.Background())
	if err != nil || pending != 2 {
		t.Fatalf("pending = %d, %v", pending, err)
	}
}

func TestSend_Errors(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.POST("/emails/send", NewHandler(stubFinder{ids: map[string]bool{"EVT-A": true}}, brokenQueue{}, nil).Send)

	if rec := send(r, `{"unique_ids":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty ids status = %d", rec.Code)
	}
	if rec := send(r, `{"unique_ids":["EVT-A"]}`); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("broken queue status = %d", rec.Code)
	}
}
