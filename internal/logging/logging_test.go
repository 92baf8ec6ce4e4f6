package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type credentials struct{ pass string }

func (c credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("user", "alx_user"), slog.String("password", c.pass))
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestIsSensitiveKey(t *testing.T) {
	tests := map[string]bool{
		"password":       true,
		"MYSQL_PASSWORD": true,
		"db_secret":      true,
		"api_token":      true,
		" Passphrase ":   true,
		"user":           false,
		"query":          false,
		"secrecy":        false,
	}
	for key, want := range tests {
		assert.Equal(t, want, IsSensitiveKey(key), key)
	}
}

func TestRedactingHandler_TopLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{JSON: true})

	logger.Info("connect", "user", "alx_user", "password", "hunter2")

	out := decode(t, &buf)
	assert.Equal(t, "alx_user", out["user"])
	assert.Equal(t, Redacted, out["password"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestRedactingHandler_GroupsAndValuers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{JSON: true})

	logger.Info("connect",
		slog.Group("db", slog.String("host", "localhost"), slog.String("secret", "s3cret")),
		slog.Any("creds", credentials{pass: "hunter2"}),
	)

	assert.NotContains(t, buf.String(), "s3cret")
	assert.NotContains(t, buf.String(), "hunter2")

	out := decode(t, &buf)
	db := out["db"].(map[string]any)
	assert.Equal(t, "localhost", db["host"])
	assert.Equal(t, Redacted, db["secret"])
	creds := out["creds"].(map[string]any)
	assert.Equal(t, "alx_user", creds["user"])
	assert.Equal(t, Redacted, creds["password"])
}

func TestRedactingHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{JSON: true}).With("token", "abc123").WithGroup("scope")

	logger.Info("open", "handle", "h1")

	assert.NotContains(t, buf.String(), "abc123")
	out := decode(t, &buf)
	assert.Equal(t, Redacted, out["token"])
	assert.Equal(t, "h1", out["scope"].(map[string]any)["handle"])
}

func TestNew_Levels(t *testing.T) {
	var quiet, verbose bytes.Buffer
	New(&quiet, Options{}).Debug("hidden")
	New(&verbose, Options{Verbose: true}).Debug("shown")

	assert.Empty(t, quiet.String())
	assert.Contains(t, verbose.String(), "shown")
	assert.Contains(t, verbose.String(), "level=DEBUG")
}
