package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lite-site-auditor/internal/audit"
	"github.com/JakeFAU/lite-site-auditor/internal/config"
)

type fakeApp struct {
	cfg      config.Config
	audited  []string
	ran      bool
	closed   bool
	auditErr error
	runErr   error
}

func (f *fakeApp) Run(context.Context) error {
	f.ran = true
	return f.runErr
}

func (f *fakeApp) Audit(_ context.Context, rawURL string) (audit.Record, error) {
	f.audited = append(f.audited, rawURL)
	if f.auditErr != nil {
		return audit.Record{}, f.auditErr
	}
	report := audit.Assemble(nil, audit.Findings{}, audit.Probes{Robots: true}, audit.DefaultLimits())
	return audit.Record{ID: "audit-1", SeedURL: rawURL, Report: report}, nil
}

func (f *fakeApp) Close(context.Context) { f.closed = true }

func withFakeApp(t *testing.T, app *fakeApp) {
	t.Helper()
	orig := newApp
	newApp = func(_ context.Context, cfg config.Config) (App, error) {
		app.cfg = cfg
		return app, nil
	}
	t.Cleanup(func() { newApp = orig })
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestAuditCommandPrintsReport(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	stdout, stderr, err := execute(t, "audit", "--compact", "--max-pages", "3", "example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"example.com"}, app.audited)
	require.Equal(t, 3, app.cfg.Crawler.MaxPages)
	require.True(t, app.closed)
	require.Contains(t, stdout, `"robots":"present"`)
	require.Contains(t, stderr, "audit audit-1")
}

func TestAuditCommandUsesConfiguredPageCap(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	dir := t.TempDir()
	path := filepath.Join(dir, "auditor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawler:\n  max_pages: 7\n"), 0o600))

	_, _, err := execute(t, "--config", path, "audit", "example.com")
	require.NoError(t, err)
	require.Equal(t, 7, app.cfg.Crawler.MaxPages)
}

func TestAuditCommandErrors(t *testing.T) {
	app := &fakeApp{auditErr: errors.New("audit example: invalid URL")}
	withFakeApp(t, app)

	_, _, err := execute(t, "audit", "bad url")
	require.ErrorContains(t, err, "invalid URL")
	require.True(t, app.closed)

	_, _, err = execute(t, "audit")
	require.Error(t, err, "url argument is required")
}

func TestServeCommandRunsApp(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	_, _, err := execute(t, "serve")
	require.NoError(t, err)
	require.True(t, app.ran)
	require.Equal(t, 8080, app.cfg.Server.Port)

	app.runErr = errors.New("listen tcp :8080: bind: address already in use")
	_, _, err = execute(t, "serve")
	require.ErrorContains(t, err, "address already in use")
}

func TestMissingConfigFileFails(t *testing.T) {
	withFakeApp(t, &fakeApp{})

	_, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "serve")
	require.ErrorContains(t, err, "load config")
}
