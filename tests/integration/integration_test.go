//go:build integration

// Package integration runs the API end to end: the real server wiring backed
// by a PostgreSQL container and an in-memory Redis.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/bookstore/internal/app"
	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/handler"
	"github.com/xenking/bookstore/internal/repository"
)

const (
	testSecret    = "integration-secret"
	checkoutLimit = 5
)

var (
	baseURL string
	db      *pgxpool.Pool
	// nextIP gives every browser its own rate limit bucket.
	nextIP atomic.Int32
)

// Response types are defined locally to keep the tests black-box.

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type bookResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Category  string `json:"category"`
	OnSale    bool   `json:"is_sale"`
	SalePrice string `json:"sale_price"`
}

type cartResponse struct {
	Lines []struct {
		Book      bookResponse `json:"book"`
		Quantity  int          `json:"quantity"`
		LineTotal string       `json:"line_total"`
	} `json:"lines"`
	Total string `json:"total"`
	Size  int    `json:"size"`
}

type orderResponse struct {
	ID              int64  `json:"id"`
	UserID          *int64 `json:"user_id"`
	FullName        string `json:"full_name"`
	ShippingAddress string `json:"shipping_address"`
	AmountPaid      string `json:"amount_paid"`
	Items           []struct {
		BookID   int64  `json:"book_id"`
		Quantity int    `json:"quantity"`
		Price    string `json:"price"`
	} `json:"items"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

var seedBooks = []catalog.Book{
	{ID: 1, Name: "Dune", Price: decimal.RequireFromString("19.99"), Category: "science fiction"},
	{ID: 2, Name: "Solaris", Price: decimal.RequireFromString("12.00"), Category: "science fiction"},
	{
		ID: 3, Name: "Emma", Price: decimal.RequireFromString("5.00"), Category: "fiction",
		OnSale: true, SalePrice: decimal.RequireFromString("3.50"),
	},
	{ID: 4, Name: "SPQR", Price: decimal.RequireFromString("18.20"), Category: "history"},
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("bookstore"),
		postgres.WithUsername("bookstore"),
		postgres.WithPassword("bookstore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(pg); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("postgres dsn: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		log.Fatalf("start redis: %v", err)
	}
	defer mr.Close()

	db, err = repository.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := repository.NewBookRepository(db).UpsertBooks(ctx, seedBooks); err != nil {
		log.Fatalf("seed books: %v", err)
	}

	addr, err := freeAddr()
	if err != nil {
		log.Fatalf("pick port: %v", err)
	}
	baseURL = "http://" + addr

	cfg := &app.Config{
		Addr:        addr,
		DatabaseURL: dsn,
		RedisURL:    "redis://" + mr.Addr(),
		Session:     app.SessionConfig{CookieName: "sessionid", TTL: time.Hour},
		Auth: app.AuthConfig{
			UserHeader:      "X-User-ID",
			SignatureHeader: "X-User-Signature",
			Secret:          testSecret,
		},
		RateLimit: app.RateLimitConfig{Checkout: checkoutLimit, Window: time.Hour},
		Graceful:  app.GracefulConfig{ShutdownTimeout: 5 * time.Second},
	}

	lg := zap.NewNop()
	srvCtx, stop := context.WithCancel(zctx.Base(context.Background(), lg))
	done := make(chan error, 1)
	go func() { done <- app.Run(srvCtx, lg, noopTelemetry{}, cfg) }()

	if err := waitReady(ctx, done); err != nil {
		stop()
		log.Fatalf("wait for api: %v", err)
	}
	log.Printf("API available at %s", baseURL)

	result := m.Run()

	stop()
	if err := <-done; err != nil {
		log.Printf("api server: %v", err)
	}
	return result
}

func freeAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().String(), nil
}

// waitReady polls /readyz until the server answers 200 or exits.
func waitReady(ctx context.Context, done <-chan error) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	client := &http.Client{Timeout: time.Second}
	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for readiness (last: %s): %w", lastErr, ctx.Err())
		case err := <-done:
			return fmt.Errorf("server exited: %w", err)
		case <-ticker.C:
			resp, err := client.Get(baseURL + "/readyz")
			if err != nil {
				lastErr = err.Error()
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Sprintf("status %d", resp.StatusCode)
		}
	}
}

// browser keeps a cookie jar and a client address of its own. A non-zero
// userID is sent as a signed identity header, as the gateway would.
type browser struct {
	client *http.Client
	ip     string
	userID int64
}

func newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	n := nextIP.Add(1)
	return &browser{
		client: &http.Client{Jar: jar, Timeout: 10 * time.Second},
		ip:     fmt.Sprintf("10.0.%d.%d", n/250, n%250+1),
	}
}

func (b *browser) as(userID int64) *browser {
	b.userID = userID
	return b
}

func (b *browser) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Forwarded-For", b.ip)
	if b.userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(b.userID, 10))
		req.Header.Set("X-User-Signature", handler.Sign([]byte(testSecret), b.userID))
	}

	resp, err := b.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func shipping(name string) map[string]string {
	return map[string]string{
		"shipping_full_name": name,
		"shipping_email":     "buyer@example.com",
		"shipping_address1":  "Calle Mayor 1",
		"shipping_city":      "Madrid",
		"shipping_zipcode":   "28013",
		"shipping_country":   "Spain",
	}
}
