package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestChatctl(t *testing.T) {
	mr := miniredis.RunT(t)
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "chatctl.db")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DB_DSN", dsn)
	t.Setenv("REDIS_ADDR", mr.Addr())

	out, err := run(t, "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "migrated")

	out, err = run(t, "seed-rbac")
	require.NoError(t, err, out)
	assert.Contains(t, out, "rbac seeded")

	out, err = run(t, "bootstrap-admin", "--email", "ops@example.com", "--password", "pw")
	require.NoError(t, err, out)
	assert.True(t, strings.HasPrefix(out, "admin created: ops@example.com"), out)

	t.Setenv("CHATCTL_ADMIN_PASSWORD", "pw2")
	out, err = run(t, "bootstrap-admin", "--email", "ops@example.com")
	require.NoError(t, err, out)
	assert.Contains(t, out, "admin updated")

	out, err = run(t, "deactivate-stale")
	require.NoError(t, err, out)
	assert.Contains(t, out, "deactivated 0 users")
}

func TestChatctl_BootstrapNeedsEmail(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DB_DSN", "sqlite:"+filepath.Join(t.TempDir(), "x.db"))

	_, err := run(t, "bootstrap-admin", "--password", "pw")
	assert.Error(t, err)
}
