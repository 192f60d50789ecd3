package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresIntegration runs the migrations and the inserts against a real
// server. It needs docker and is enabled with EVOTING_INTEGRATION=1.
func TestPostgresIntegration(t *testing.T) {
	if os.Getenv("EVOTING_INTEGRATION") == "" {
		t.Skip("set EVOTING_INTEGRATION=1 to run against a postgres container")
	}
	c := qt.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "evoting",
				"POSTGRES_PASSWORD": "evoting",
				"POSTGRES_DB":       "evoting",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	c.Assert(err, qt.IsNil)
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	c.Assert(err, qt.IsNil)
	port, err := container.MappedPort(ctx, "5432/tcp")
	c.Assert(err, qt.IsNil)
	dsn := fmt.Sprintf("postgres://evoting:evoting@%s:%s/evoting?sslmode=disable", host, port.Port())

	pg, err := New(ctx, dsn)
	c.Assert(err, qt.IsNil)
	defer pg.Close()

	rec := testRecord()
	c.Assert(pg.InsertElection(ctx, rec), qt.IsNil)
	c.Assert(pg.InsertVoterWallets(ctx, rec.ID, rec.Voters), qt.IsNil)
	// idempotent
	c.Assert(pg.InsertElection(ctx, rec), qt.IsNil)
	c.Assert(pg.InsertVoterWallets(ctx, rec.ID, rec.Voters), qt.IsNil)

	n, err := pg.VoterCount(ctx, rec.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, int64(len(rec.Voters)))
}
