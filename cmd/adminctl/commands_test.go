package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/pkg/auth"
)

func withConfig(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  driver: memory
jwt:
  secret: test-secret
  issuer: admin-api
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	withConfig(t)
	id := uuid.New()

	out, err := run(t, "token", "--name", "Ops", "--role", "super_admin", "--id", id.String())
	require.NoError(t, err)

	claims, err := auth.NewJWTService("test-secret", "admin-api", time.Hour).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, claims.Role)
	assert.Equal(t, id.String(), claims.Subject)

	_, err = run(t, "token", "--name", "Ops", "--role", "root")
	assert.Error(t, err)
}

func TestCountCommandUnknownDoctor(t *testing.T) {
	withConfig(t)
	_, err := run(t, "suspension-count", uuid.NewString())
	assert.Error(t, err)

	_, err = run(t, "suspension-count", "not-a-uuid")
	assert.Error(t, err)
}

func TestExpireAndMigrateOnMemory(t *testing.T) {
	withConfig(t)
	out, err := run(t, "expire")
	require.NoError(t, err)
	assert.Contains(t, out, "expired 0 suspensions")

	out, err = run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "memory")
}
