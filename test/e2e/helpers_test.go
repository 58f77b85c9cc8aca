//go:build e2e

package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pendergraft/mintforge/internal/chains/evm/evmtest"
	"github.com/pendergraft/mintforge/internal/config"
	"github.com/pendergraft/mintforge/internal/pinning/pinningtest"
	"github.com/pendergraft/mintforge/internal/server"
	"github.com/pendergraft/mintforge/internal/storage"
	"github.com/pendergraft/mintforge/pkg/client"
)

const (
	recipient = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

	collectionArtifact = `{
		"_format": "hh-sol-artifact-1",
		"contractName": "LeMintNFTCollection",
		"abi": [],
		"bytecode": "0x6080604052348015600f57600080fd5b50",
		"deployedBytecode": "0x6080604052"
	}`
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
}

var databases atomic.Int64

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("mintforge"),
		postgres.WithUsername("mintforge"),
		postgres.WithPassword("mintforge"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return container, connString, nil
}

// newDatabase creates an empty database in the shared container so each test
// starts without recorded collections or mints.
func newDatabase(t *testing.T) string {
	t.Helper()

	db, err := sql.Open("pgx", testCtx.ConnString)
	require.NoError(t, err)
	defer db.Close()

	name := fmt.Sprintf("e2e_%d", databases.Add(1))
	_, err = db.ExecContext(context.Background(), "CREATE DATABASE "+name)
	require.NoError(t, err)

	u, err := url.Parse(testCtx.ConnString)
	require.NoError(t, err)
	u.Path = "/" + name
	return u.String()
}

// stack is a server wired to fake chain and pinning endpoints over a real
// Postgres store.
type stack struct {
	URL    string
	Client *client.Client
	Node   *evmtest.Node
	Pins   *pinningtest.Server
	Store  storage.Store
	Server *server.Server

	cfg    *config.Config
	logger *slog.Logger
}

func startStack(t *testing.T, mutate func(*config.Config)) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("E2E_VERBOSE") != "" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	node := evmtest.NewNode(t)
	pins := pinningtest.NewServer(t)
	pins.JWT = "e2e-jwt"
	key, _ := evmtest.NewKey(t)

	artifactPath := filepath.Join(t.TempDir(), "LeMintNFTCollection.json")
	require.NoError(t, os.WriteFile(artifactPath, []byte(collectionArtifact), 0o600))

	cfg := config.Defaults()
	cfg.Storage.Type = "postgres"
	cfg.Storage.Postgres.URL = newDatabase(t)
	cfg.Chain.RPCURL = node.URL()
	cfg.Chain.PrivateKey = key
	cfg.Chain.ReceiptPollMS = 10
	cfg.Chain.ReceiptPollMaxMS = 50
	cfg.Collection.ArtifactPath = artifactPath
	cfg.Pinning.APIURL = pins.APIURL()
	cfg.Pinning.GatewayURL = pins.GatewayURL()
	cfg.Pinning.JWT = "e2e-jwt"
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.New(cfg.Storage, logger)
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()), "Failed to run migrations")

	s := &stack{Node: node, Pins: pins, Store: store, cfg: cfg, logger: logger}
	s.serve(t)
	return s
}

// restart replaces the server with a new one over the same store, chain and
// pinning service, as after a process restart.
func (s *stack) restart(t *testing.T) {
	t.Helper()
	s.serve(t)
}

func (s *stack) serve(t *testing.T) {
	t.Helper()
	srv, err := server.New(context.Background(), s.cfg, s.Store, s.logger)
	require.NoError(t, err, "Failed to create server")

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	s.Server = srv
	s.URL = ts.URL
	s.Client = client.New(ts.URL, client.WithTimeout(30*time.Second))
}

func mintRequest(name string, tokenID *uint64) client.MintRequest {
	return client.MintRequest{
		RecipientAddress: recipient,
		TokenID:          tokenID,
		Metadata: &client.Metadata{
			Name:        name,
			Description: "minted by the e2e suite",
			MediaURL:    "data:image/png;base64," + pngBase64,
			Attributes:  []client.Attribute{{TraitType: "Tier", Value: "Gold"}},
		},
	}
}

func tokenID(v uint64) *uint64 { return &v }

func methods(calls []evmtest.Call) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	apiErr, ok := err.(*client.APIError)
	require.True(t, ok, "Error should be an APIError, got %T", err)
	require.Equal(t, expectedCode, apiErr.Code, "Error code mismatch: %s", apiErr.Message)
}

func ipfsCID(uri string) string {
	return strings.TrimPrefix(uri, "ipfs://")
}
