package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "6f1a7c42-3b8e-4d55-9a0f-2c1e5b7d9e13"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "abacus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func baseConfig(t *testing.T, balance string) string {
	return writeConfig(t, `
mode: decimal
costs:
  addition: 10
  square_root: 3
auth:
  secret: cli-test-secret
accounts:
  - id: `+testAccount+`
    balance: `+balance+`
`)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestOperationsCommand(t *testing.T) {
	out, err := run(t, "operations", "--config", baseConfig(t, "100"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	assert.Contains(t, lines[0], "OPERATION")
	assert.Regexp(t, `^addition\s+10\s+2$`, lines[1])
	assert.Regexp(t, `^square_root\s+3\s+1$`, lines[5])
	assert.Regexp(t, `^random_string\s+5\s+1$`, lines[6])
}

func TestExecCommand(t *testing.T) {
	out, err := run(t, "exec", "addition", "10.5", "20.3",
		"--config", baseConfig(t, "100"),
		"--account", testAccount,
		"--json",
	)
	require.NoError(t, err)

	var rec struct {
		Result       string `json:"result"`
		Cost         int64  `json:"cost"`
		BalanceAfter int64  `json:"balance_after"`
		Type         string `json:"type"`
		AccountID    string `json:"account_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "30,8", rec.Result)
	assert.Equal(t, int64(10), rec.Cost)
	assert.Equal(t, int64(90), rec.BalanceAfter)
	assert.Equal(t, "addition", rec.Type)
	assert.Equal(t, testAccount, rec.AccountID)
}

func TestExecCommandErrors(t *testing.T) {
	cfg := baseConfig(t, "5")

	_, err := run(t, "exec", "addition", "1", "2", "--config", cfg, "--account", testAccount)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient balance")
	assert.Contains(t, err.Error(), "status 402")

	_, err = run(t, "exec", "--config", cfg, "--account", testAccount, "--", "square_root", "-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")

	_, err = run(t, "exec", "addition", "1", "2", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--token or --account")
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "--config", baseConfig(t, "1"), "--account", testAccount)
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (any, error) {
		return []byte("cli-test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)
	sub, err := claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, testAccount, sub)

	// The minted token is accepted by the engine.
	out, err = run(t, "balance", "--config", baseConfig(t, "77"), "--token", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, testAccount+"\t77\n", out)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	env := map[string]string{
		"SQR_COST":      "8",
		"ABACUS_SECRET": "from-env",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := loadConfig(baseConfig(t, "1"), lookup)
	require.NoError(t, err)
	assert.Equal(t, int64(8), cfg.Costs.SquareRoot)
	assert.Equal(t, int64(10), cfg.Costs.Addition)
	assert.Equal(t, int64(1), cfg.Costs.Division)
	assert.Equal(t, "from-env", cfg.Auth.Secret)
	require.Len(t, cfg.Accounts, 1)

	env["DIV_COST"] = "0"
	_, err = loadConfig("", lookup)
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadAccount(t *testing.T) {
	path := writeConfig(t, "accounts:\n  - id: not-a-uuid\n    balance: 1\n")
	_, err := loadConfig(path, func(string) (string, bool) { return "", false })
	assert.ErrorContains(t, err, "not a uuid")
}
