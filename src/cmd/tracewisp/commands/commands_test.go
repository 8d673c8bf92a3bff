// FILE: tracewisp/src/cmd/tracewisp/commands/commands_test.go
package commands

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"tracewisp/src/internal/auth"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() (*CommandRouter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	r := newCommandRouter(&out, &errOut)
	ac := r.commands["auth"].(*AuthCommand)
	ac.params = &auth.Params{Time: 1, Memory: 1024, Threads: 1}
	ac.readPassword = func(string) (string, error) {
		return "", errors.New("no terminal in tests")
	}
	return r, &out, &errOut
}

func TestRoute(t *testing.T) {
	testCases := []struct {
		name        string
		args        []string
		wantHandled bool
		wantErr     bool
		wantOutput  string
	}{
		{name: "NoCommand", args: []string{"tracewisp"}},
		{name: "FlagsBelongToApp", args: []string{"tracewisp", "-c", "x.toml"}},
		{name: "Unknown", args: []string{"tracewisp", "frobnicate"}, wantErr: true},
		{name: "Version", args: []string{"tracewisp", "version"}, wantHandled: true, wantOutput: "commit:"},
		{name: "GeneralHelp", args: []string{"tracewisp", "--help"}, wantHandled: true, wantOutput: "Commands:"},
		{name: "CommandHelp", args: []string{"tracewisp", "auth", "-h"}, wantHandled: true, wantOutput: "Auth Command"},
		{name: "HelpForCommand", args: []string{"tracewisp", "help", "config"}, wantHandled: true, wantOutput: "Config Command"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, out, _ := newTestRouter()
			handled, err := r.Route(tc.args)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantHandled, handled)
			if tc.wantOutput != "" {
				assert.Contains(t, out.String(), tc.wantOutput)
			}
		})
	}
}

func TestHelp_ListsEveryCommand(t *testing.T) {
	r, out, _ := newTestRouter()
	require.NoError(t, r.commands["help"].Execute(nil))

	for name := range r.GetCommands() {
		assert.Contains(t, out.String(), name)
	}
}

func TestAuth_BasicHash(t *testing.T) {
	r, out, _ := newTestRouter()
	handled, err := r.Route([]string{"tracewisp", "auth", "-u", "admin", "-p", "s3cret"})
	require.NoError(t, err)
	require.True(t, handled)

	assert.Contains(t, out.String(), "[[status.auth.basic_auth.users]]")
	assert.Contains(t, out.String(), `username = "admin"`)

	m := regexp.MustCompile(`password_hash = "([^"]+)"`).FindStringSubmatch(out.String())
	require.Len(t, m, 2)
	ok, err := auth.VerifyPassword(m[1], "s3cret")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuth_PromptFailures(t *testing.T) {
	t.Run("NoTerminal", func(t *testing.T) {
		r, _, _ := newTestRouter()
		_, err := r.Route([]string{"tracewisp", "auth", "--user=admin"})
		assert.ErrorContains(t, err, "no terminal")
	})

	t.Run("Mismatch", func(t *testing.T) {
		r, _, _ := newTestRouter()
		answers := []string{"one", "two"}
		r.commands["auth"].(*AuthCommand).readPassword = func(string) (string, error) {
			a := answers[0]
			answers = answers[1:]
			return a, nil
		}
		_, err := r.Route([]string{"tracewisp", "auth", "-u", "admin"})
		assert.ErrorContains(t, err, "don't match")
	})

	t.Run("MissingUser", func(t *testing.T) {
		r, _, errOut := newTestRouter()
		_, err := r.Route([]string{"tracewisp", "auth"})
		assert.ErrorContains(t, err, "username required")
		assert.Contains(t, errOut.String(), "Usage:")
	})
}

func TestAuth_Token(t *testing.T) {
	r, out, errOut := newTestRouter()
	_, err := r.Route([]string{"tracewisp", "auth", "-k", "-l", "8"})
	require.NoError(t, err)

	assert.Contains(t, errOut.String(), "cryptographically weak")
	assert.Contains(t, out.String(), `type = "bearer"`)
	m := regexp.MustCompile(`tokens = \["([A-Za-z0-9_-]+)"\]`).FindStringSubmatch(out.String())
	require.Len(t, m, 2)
	assert.Len(t, m[1], 11, "8 bytes encode to 11 unpadded base64 characters")

	_, err = r.Route([]string{"tracewisp", "auth", "--token", "--length", "4096"})
	assert.Error(t, err)
}

func TestAuth_JWT(t *testing.T) {
	r, out, _ := newTestRouter()
	_, err := r.Route([]string{"tracewisp", "auth", "--jwt", "--key", "k3y", "--sub", "ops", "--iss", "tw", "--ttl", "1h"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	raw := lines[len(lines)-1]

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte("k3y"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "tw", claims.Issuer)

	_, err = r.Route([]string{"tracewisp", "auth", "--jwt"})
	assert.ErrorContains(t, err, "--key")
}

func TestConfig_WritesEffectiveConfig(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.toml")
	require.NoError(t, os.WriteFile(src, []byte("[router]\nbatch_capacity = 25\n"), 0o600))
	t.Setenv("TRACEWISP_CONFIG_FILE", "")

	r, out, _ := newTestRouter()
	dst := filepath.Join(dir, "out.toml")
	_, err := r.Route([]string{"tracewisp", "config", "-c", src, "-o", dst})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "batch_capacity=25")
	written, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(written), "batch_capacity = 25")
}

func TestConfig_RejectsInvalid(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(src, []byte("[router]\nmode = \"sideways\"\n"), 0o600))
	t.Setenv("TRACEWISP_CONFIG_FILE", "")

	r, _, _ := newTestRouter()
	_, err := r.Route([]string{"tracewisp", "config", "-c", src})
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestTLS_GeneratesChain(t *testing.T) {
	dir := t.TempDir()
	caCrt, caKey := filepath.Join(dir, "ca.crt"), filepath.Join(dir, "ca.key")
	srvCrt, srvKey := filepath.Join(dir, "srv.crt"), filepath.Join(dir, "srv.key")

	r, out, _ := newTestRouter()
	_, err := r.Route([]string{"tracewisp", "tls", "--ca", "--cn", "Test CA", "--cert-out", caCrt, "--key-out", caKey})
	require.NoError(t, err)

	_, err = r.Route([]string{"tracewisp", "tls", "--server", "--cn", "svc", "--hosts", "svc.local,127.0.0.1",
		"--ca-cert", caCrt, "--ca-key", caKey, "--cert-out", srvCrt, "--key-out", srvKey})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "svc.local,127.0.0.1")

	info, err := os.Stat(srvKey)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = r.Route([]string{"tracewisp", "tls", "--server", "--cn", "svc"})
	assert.ErrorContains(t, err, "--ca-cert")

	_, err = r.Route([]string{"tracewisp", "tls", "--cn", "x"})
	assert.ErrorContains(t, err, "specify certificate type")
}
