package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/database"
	"storefront/internal/gateway"
	"storefront/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container, applies the embedded
// migrations and opens a connection pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	// Get connection string
	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.Nop()
	if err := database.Migrate(connStr, logger); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	pool, err := database.NewPoolFromURL(ctx, connStr, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedProducts inserts test product data into the database.
func SeedProducts(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	products := []struct {
		id       string
		title    string
		price    string
		category string
		image    *string
	}{
		{"chairA", "Oak Lounge Chair", "299.00", "Seating", strPtr("https://images.example.com/chair.jpg")},
		{"lampB", "Brass Floor Lamp", "89.00", "Lighting", strPtr("/media/lamp.jpg")},
		{"tableC", "Walnut Side Table", "149.50", "Tables", nil},
	}

	for _, p := range products {
		_, err := pool.Exec(ctx,
			"INSERT INTO products (id, title, slug, price, image_url, category_title) VALUES ($1, $2, $3, $4, $5, $6)",
			p.id, p.title, p.id+"-slug", p.price, p.image, p.category,
		)
		if err != nil {
			t.Fatalf("failed to seed product %s: %v", p.id, err)
		}
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"outbox", "reviews", "order_items", "orders", "products"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

func strPtr(s string) *string {
	return &s
}

// fakeGateway stands in for the payment provider. Sessions are unpaid until
// markPaid is called. Webhook payloads are plain JSON and unsigned.
type fakeGateway struct {
	mu       sync.Mutex
	seq      int
	requests []*model.GatewayRequest
	paid     map[string]bool
	failWith error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{paid: map[string]bool{}}
}

func (g *fakeGateway) CreateSession(_ context.Context, req *model.GatewayRequest) (*model.GatewaySession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failWith != nil {
		return nil, g.failWith
	}

	g.seq++
	id := fmt.Sprintf("cs_test_%d", g.seq)
	g.requests = append(g.requests, req)

	return &model.GatewaySession{ID: id, RedirectURL: "https://pay.example.com/" + id}, nil
}

func (g *fakeGateway) GetSession(_ context.Context, sessionRef string) (*model.PaymentOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	status := model.PaymentStatusUnpaid
	if g.paid[sessionRef] {
		status = model.PaymentStatusPaid
	}
	return &model.PaymentOutcome{SessionRef: sessionRef, Status: status}, nil
}

type fakeEvent struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	SessionRef string              `json:"sessionRef"`
	Status     model.PaymentStatus `json:"status"`
}

func (g *fakeGateway) ParseEvent(payload []byte, _ string) (*gateway.Event, error) {
	var e fakeEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, model.NewValidationError("invalid event payload")
	}
	return &gateway.Event{
		ID:      e.ID,
		Type:    e.Type,
		Outcome: &model.PaymentOutcome{SessionRef: e.SessionRef, Status: e.Status},
	}, nil
}

func (g *fakeGateway) markPaid(sessionRef string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paid[sessionRef] = true
}

func (g *fakeGateway) lastRequest() *model.GatewayRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.requests) == 0 {
		return nil
	}
	return g.requests[len(g.requests)-1]
}
