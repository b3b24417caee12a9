package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisAdapter
	db      *storage.MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if _, err := storage.RunMigrations(db); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	return &testEnv{
		redis: rdb,
		mysql: db,
		cache: storage.NewRedisAdapter(rdb, 0),
		db:    storage.NewMySQLAdapter(db, 0),
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func (env *testEnv) insertProduct(t *testing.T, price int64) domain.Product {
	p := domain.Product{
		ID:    uuid.NewString(),
		Name:  "integration-" + uuid.NewString()[:8],
		Price: price,
		Image: "https://example.com/p.png",
	}
	if err := env.db.InsertProducts(context.Background(), []domain.Product{p}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	t.Cleanup(func() {
		env.mysql.ExecContext(context.Background(), `DELETE FROM products WHERE id = ?`, p.ID)
	})
	return p
}

func TestIntegration_CartFlowBothStores(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	tee := env.insertProduct(t, 100)
	hoodie := env.insertProduct(t, 50)

	stores := map[string]*service.CartService{
		"mysql": service.NewCartService(env.db, env.db, env.cache),
		"redis": service.NewCartService(env.cache, env.db, env.cache),
	}

	for name, svc := range stores {
		t.Run(name, func(t *testing.T) {
			userID := "integration-" + uuid.NewString()

			if _, err := svc.AddItem(ctx, userID, tee.ID, 2); err != nil {
				t.Fatalf("add failed: %v", err)
			}
			if _, err := svc.AddItem(ctx, userID, hoodie.ID, 1); err != nil {
				t.Fatalf("add failed: %v", err)
			}
			view, err := svc.AddItem(ctx, userID, tee.ID, 3)
			if err != nil {
				t.Fatalf("add failed: %v", err)
			}
			if len(view.Items) != 2 || view.Items[0].Qty != 5 {
				t.Errorf("expected merged tee line, got %+v", view.Items)
			}
			if view.Total != 550 {
				t.Errorf("expected total 550, got %d", view.Total)
			}

			view, err = svc.RemoveItem(ctx, userID, tee.ID)
			if err != nil {
				t.Fatalf("remove failed: %v", err)
			}
			if len(view.Items) != 1 || view.Total != 50 {
				t.Errorf("expected only hoodie left, got %+v", view)
			}

			// Price change is picked up on the next read
			env.mysql.ExecContext(ctx, `UPDATE products SET price = 70 WHERE id = ?`, hoodie.ID)
			view, err = svc.GetCart(ctx, userID)
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if view.Total != 70 {
				t.Errorf("expected repriced total 70, got %d", view.Total)
			}
			env.mysql.ExecContext(ctx, `UPDATE products SET price = 50 WHERE id = ?`, hoodie.ID)
		})
	}
}

func TestIntegration_ConcurrentAddsAreNotLost(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	tee := env.insertProduct(t, 100)

	stores := map[string]*service.CartService{
		"mysql": service.NewCartService(env.db, env.db, env.cache),
		"redis": service.NewCartService(env.cache, env.db, env.cache),
	}

	for name, svc := range stores {
		t.Run(name, func(t *testing.T) {
			userID := "integration-" + uuid.NewString()
			totalRequests := 100

			var failCount atomic.Int32
			var wg sync.WaitGroup

			for i := 0; i < totalRequests; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := svc.AddItem(ctx, userID, tee.ID, 1); err != nil {
						failCount.Add(1)
					}
				}()
			}
			wg.Wait()

			if failCount.Load() != 0 {
				t.Fatalf("expected no failures, got %d", failCount.Load())
			}

			view, err := svc.GetCart(ctx, userID)
			if err != nil {
				t.Fatalf("get failed: %v", err)
			}
			if len(view.Items) != 1 || view.Items[0].Qty != totalRequests {
				t.Errorf("expected one line with qty %d, got %+v", totalRequests, view.Items)
			}
		})
	}
}

func TestIntegration_IdempotencyPreventsDoubleAdd(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	tee := env.insertProduct(t, 100)
	svc := service.NewCartService(env.db, env.db, env.cache)

	userID := "integration-" + uuid.NewString()
	requestID := "same-request-id-" + uuid.NewString()

	// First call
	if _, err := svc.AddItemOnce(ctx, requestID, userID, tee.ID, 1); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	// Second call with same requestID
	_, err := svc.AddItemOnce(ctx, requestID, userID, tee.ID, 1)
	if !errors.Is(err, service.ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	view, _ := svc.GetCart(ctx, userID)
	if len(view.Items) != 1 || view.Items[0].Qty != 1 {
		t.Errorf("expected qty 1, got %+v", view.Items)
	}
}

func TestIntegration_DeletedProductIsFlagged(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	tee := env.insertProduct(t, 100)
	gone := env.insertProduct(t, 50)
	svc := service.NewCartService(env.db, env.db, env.cache)
	userID := "integration-" + uuid.NewString()

	svc.AddItem(ctx, userID, tee.ID, 1)
	svc.AddItem(ctx, userID, gone.ID, 2)

	env.mysql.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, gone.ID)

	view, err := svc.GetCart(ctx, userID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if view.Total != 100 {
		t.Errorf("expected total 100, got %d", view.Total)
	}
	if len(view.Items) != 2 || !view.Items[1].Unavailable || view.Items[1].Product != nil {
		t.Errorf("expected second line flagged unavailable, got %+v", view.Items)
	}
}
