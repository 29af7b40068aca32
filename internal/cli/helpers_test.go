package cli_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rshade/tablesync/internal/cli"
	"github.com/rshade/tablesync/internal/config"
	"github.com/rshade/tablesync/internal/demo"
	"github.com/rshade/tablesync/internal/remote"
)

// setupCLITest isolates the command from the user's configuration.
func setupCLITest(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvProjectDir, t.TempDir())
	t.Setenv(config.EnvLogLevel, "error")
	for _, key := range []string{config.EnvBaseURL, config.EnvRoute, config.EnvAPIToken, config.EnvPollInterval, config.EnvCacheTTL} {
		t.Setenv(key, "")
	}
	return home
}

// startDemo serves n seeded records on the default config route.
func startDemo(t *testing.T, n int, cfg demo.ServerConfig) (*demo.Server, string) {
	t.Helper()
	if cfg.DataKey == "" {
		cfg.DataKey = remote.DefaultDataKey
	}
	srv := demo.NewServer(demo.NewStore(n), cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL
}

// syncBuffer is a bytes.Buffer safe for a command writing in another goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type result struct {
	out    string
	errOut string
	err    error
}

// execute runs the root command with args and stdin.
func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

// startCommand runs the root command in the background. The returned channel
// yields its error once it exits.
func startCommand(t *testing.T, ctx context.Context, args ...string) (*syncBuffer, <-chan error) {
	t.Helper()
	out := &syncBuffer{}
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	return out, done
}
