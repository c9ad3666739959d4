// Package common holds shared integration test fixtures.
package common

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container wraps a started testcontainers instance and its mapped port.
type Container struct {
	container testcontainers.Container
	host      string
	port      string
}

// Host returns the host the container is reachable on.
func (c *Container) Host() string { return c.host }

// Port returns the mapped port.
func (c *Container) Port() string { return c.port }

// Cleanup terminates the container. Call from TestMain if needed.
func (c *Container) Cleanup() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}

// shared starts one container per process for a request.
type shared struct {
	once sync.Once
	c    *Container
	err  error
}

func (s *shared) start(t *testing.T, name string, req testcontainers.ContainerRequest, port string) *Container {
	t.Helper()

	s.once.Do(func() {
		ctx := context.Background()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			s.err = fmt.Errorf("start %s container: %w", name, err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			container.Terminate(ctx)
			s.err = fmt.Errorf("get %s host: %w", name, err)
			return
		}

		mapped, err := container.MappedPort(ctx, port)
		if err != nil {
			container.Terminate(ctx)
			s.err = fmt.Errorf("get %s port: %w", name, err)
			return
		}

		s.c = &Container{container: container, host: host, port: mapped.Port()}
	})

	if s.err != nil {
		t.Fatalf("%s container failed: %v", name, s.err)
	}
	return s.c
}

var (
	surreal shared
	redis   shared
)

// SurrealDBContainer is a running SurrealDB with root/root credentials.
type SurrealDBContainer struct {
	*Container
}

// Address returns the WebSocket RPC address for SurrealDB.
func (c *SurrealDBContainer) Address() string {
	return fmt.Sprintf("ws://%s:%s/rpc", c.host, c.port)
}

// StartSurrealDB starts a shared SurrealDB container for the test run.
func StartSurrealDB(t *testing.T) *SurrealDBContainer {
	t.Helper()
	c := surreal.start(t, "SurrealDB", testcontainers.ContainerRequest{
		Image:        "surrealdb/surrealdb:v3.0.0",
		ExposedPorts: []string{"8000/tcp"},
		Cmd:          []string{"start", "--user", "root", "--pass", "root"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("8000/tcp"),
			wait.ForLog("Started web server"),
		).WithDeadline(60 * time.Second),
	}, "8000/tcp")
	return &SurrealDBContainer{Container: c}
}

// RedisContainer is a running Redis without auth.
type RedisContainer struct {
	*Container
}

// Addr returns host:port for go-redis options.
func (c *RedisContainer) Addr() string {
	return c.host + ":" + c.port
}

// StartRedis starts a shared Redis container for the test run.
func StartRedis(t *testing.T) *RedisContainer {
	t.Helper()
	c := redis.start(t, "Redis", testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		).WithDeadline(30 * time.Second),
	}, "6379/tcp")
	return &RedisContainer{Container: c}
}
