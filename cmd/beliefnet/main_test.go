package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/beliefnet/pkg/beliefnet/internalerr"
)

const model = `name: informational-privacy
variables:
  - name: InfoGap
    states: [Gap_Present, Gap_Absent]
    table:
      - [0.46, 0.54]
  - name: InformationFlow
    states: [present, absent]
    table:
      - [0.42, 0.58]
  - name: InfoPriv
    states: [present, absent]
    parents: [InfoGap, InformationFlow]
    equation: 'InfoGap == "Gap_Absent" || InformationFlow == "present" ? "present" : "absent"'
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(model), 0644))
	return path
}

func TestParseEvidence(t *testing.T) {
	got, err := parseEvidence([]string{"InfoPriv=absent", " InfoGap = Gap_Present "})
	require.NoError(t, err)
	assert.Equal(t, []finding{
		{Variable: "InfoPriv", State: "absent"},
		{Variable: "InfoGap", State: "Gap_Present"},
	}, got)

	for _, bad := range []string{"InfoPriv", "=absent", "InfoPriv=", ""} {
		_, err := parseEvidence([]string{bad})
		assert.ErrorIs(t, err, internalerr.ErrInvalidInput, bad)
	}
}

func TestQueryPriors(t *testing.T) {
	out, err := run(t, "query", "--model", writeModel(t), "--var", "InfoGap,InformationFlow")
	require.NoError(t, err)
	assert.Contains(t, out, "InfoGap:\n")
	assert.Contains(t, out, "Gap_Present          0.460000")
	assert.Contains(t, out, "absent               0.580000")
	assert.NotContains(t, out, "InfoPriv")
	assert.NotContains(t, out, "P(evidence)")
}

func TestQueryWithEvidence(t *testing.T) {
	out, err := run(t, "query", "--model", writeModel(t), "--evidence", "InfoPriv=absent")
	require.NoError(t, err)
	assert.Contains(t, out, "Gap_Present          1.000000")
	assert.Contains(t, out, "P(evidence) = 0.266800")
}

func TestQueryErrors(t *testing.T) {
	_, err := run(t, "query", "--model", writeModel(t), "--evidence", "InfoPriv=maybe")
	assert.ErrorIs(t, err, internalerr.ErrUnknownState)

	_, err = run(t, "query", "--model", writeModel(t), "--evidence", "InfoPriv")
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	_, err = run(t, "query")
	assert.Error(t, err, "--model is required")

	_, err = run(t, "--log-level", "loud", "query", "--model", writeModel(t))
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestSaveShowList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nets.db")
	modelPath := writeModel(t)

	out, err := run(t, "save", "--db", db, "--model", modelPath)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.Len(t, id, 26)

	out, err = run(t, "show", "--db", db, "--id", id)
	require.NoError(t, err)
	assert.Contains(t, out, "name: informational-privacy")
	assert.Contains(t, out, "Gap_Absent")
	assert.Contains(t, out, "equation:")

	out, err = run(t, "list", "--db", db, "--name", "informational-privacy")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "3 vars")

	out, err = run(t, "list", "--db", db, "--name", "other")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = run(t, "show", "--db", db, "--id", "missing")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestQueryLogLevelFromConfig(t *testing.T) {
	prev := logrus.GetLevel()
	t.Cleanup(func() { logrus.SetLevel(prev) })

	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log_level: debug\n"), 0644))
	modelPath := writeModel(t)

	_, err := run(t, "query", "--model", modelPath, "--config", cfg, "--var", "InfoGap")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	_, err = run(t, "query", "--model", modelPath, "--config", cfg, "--var", "InfoGap", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, logrus.ErrorLevel, logrus.GetLevel(), "the flag wins over the config file")

	_, err = run(t, "query", "--model", modelPath, "--var", "InfoGap")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logrus.GetLevel(), "no config file keeps the flag default")
}
