package participants

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/internal/ticket"
	"github.com/aura-checkin/backend/pkg/database"
)

// newPostgresStore connects to TEST_DATABASE_URL and empties the participants table.
func newPostgresStore(t *testing.T) *PostgresRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := database.Migrate(dsn, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	repo := NewPostgresRepository(pool)
	if _, err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return repo
}

func TestPostgresRepository_IssueRedeemAndBatch(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	n, err := store.CreateBatch(ctx, []models.Participant{
		{UniqueID: "PG-AAA", Name: "A", Email: "a@example.com"},
		{UniqueID: "PG-BBB", Name: "B", Email: "b@example.com"},
	})
	if err != nil || n != 2 {
		t.Fatalf("batch = %d, %v; want 2", n, err)
	}
	if err := store.Create(ctx, &models.Participant{UniqueID: "PG-AAA", Name: "A", Email: "a@example.com"}); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateIdentity", err)
	}

	svc := ticket.NewService(store, zap.NewNop(), ticket.WithStorageRetry(3, time.Millisecond))
	tk, err := svc.Issue(ctx, "PG-AAA")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Redeem(ctx, tk.Payload); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("successes = %d, want 1", successes)
	}

	attended, err := store.List(ctx, models.AttendanceAttended)
	if err != nil || len(attended) != 1 || attended[0].UniqueID != "PG-AAA" {
		t.Fatalf("attended = %+v, %v", attended, err)
	}
	found, err := store.FindByIdentities(ctx, []string{"PG-BBB", "PG-ZZZ"})
	if err != nil || len(found) != 1 {
		t.Fatalf("find = %+v, %v", found, err)
	}
}
