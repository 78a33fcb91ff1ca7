package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/conneroisu/buildlens/internal/audit"
	"github.com/conneroisu/buildlens/internal/testutils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args against fresh configuration and
// flag state, returning stdout, stderr and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
	for _, c := range append(rootCmd.Commands(), rootCmd) {
		resetFlags(c)
	}

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
}

func sampleProject(t *testing.T) string {
	t.Helper()
	dir := testutils.CreateTempProject(t, map[string]int{
		"a.js": 150000,
		"b.js": 50000,
		"c.js": 100001,
	})
	return filepath.Join(dir, "dist")
}

func TestBuildCommandReportsAndAudits(t *testing.T) {
	dist := sampleProject(t)

	stdout, stderr, err := execute(t, "build", "--output-dir", dist, "--threshold", "100000")
	require.NoError(t, err)

	assert.Contains(t, stdout, "[AssetSizeAuditor] asset sizes")
	assert.Contains(t, stdout, "oversized (> 98 KB): 2")
	assert.Less(t, bytes.Index([]byte(stdout), []byte("a.js")), bytes.Index([]byte(stdout), []byte("c.js")))
	assert.Less(t, bytes.Index([]byte(stdout), []byte("c.js")), bytes.Index([]byte(stdout), []byte("b.js")))

	assert.Contains(t, stderr, "compilation started")
	assert.Contains(t, stderr, "compilation finished")
	assert.Contains(t, stderr, "output_files=3")
}

func TestBuildCommandQuiet(t *testing.T) {
	dist := sampleProject(t)

	stdout, stderr, err := execute(t, "build", "--output-dir", dist, "--quiet")
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.NotContains(t, stderr, "compilation finished")
}

func TestBuildCommandFailure(t *testing.T) {
	dist := sampleProject(t)

	stdout, stderr, err := execute(t, "build", "--output-dir", dist, "--command", "echo 'Module not found' >&2; exit 3", "--quiet")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "compilation failed")
	assert.Contains(t, stderr, "Module not found")
}

func TestAuditCommandJSON(t *testing.T) {
	dist := sampleProject(t)

	stdout, _, err := execute(t, "audit", dist, "--threshold", "102400", "--format", "json")
	require.NoError(t, err)

	var summary audit.Summary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))

	require.Len(t, summary.Assets, 3)
	assert.Equal(t, "a.js", summary.Assets[0].Name)
	assert.Equal(t, "c.js", summary.Assets[1].Name)
	assert.Equal(t, "b.js", summary.Assets[2].Name)
	assert.Equal(t, int64(300001), summary.TotalBytes)
	assert.Equal(t, 1, summary.OversizedCount)
	assert.Equal(t, int64(102400), summary.ThresholdBytes)
}

func TestAuditCommandFailOnOversized(t *testing.T) {
	dist := sampleProject(t)

	_, _, err := execute(t, "audit", dist, "--threshold", "100000", "--fail-on-oversized")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))

	_, _, err = execute(t, "audit", dist, "--threshold", "200000", "--fail-on-oversized")
	assert.NoError(t, err)
}

func TestAuditCommandRejectsUnknownFormat(t *testing.T) {
	dist := sampleProject(t)

	_, _, err := execute(t, "audit", dist, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table|json|yaml")
}

func TestAuditCommandMissingDir(t *testing.T) {
	_, _, err := execute(t, "audit", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	stdout, _, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "buildlens ")
}

func TestFormatValue(t *testing.T) {
	var f audit.Format
	v := newFormatValue(&f, audit.FormatTable, audit.FormatTable, audit.FormatJSON)

	assert.Equal(t, "table", v.String())
	assert.Equal(t, "format", v.Type())

	require.NoError(t, v.Set(" JSON "))
	assert.Equal(t, audit.FormatJSON, f)

	err := v.Set("yaml")
	require.Error(t, err)
	assert.Equal(t, audit.FormatJSON, f)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(assert.AnError))
	assert.Equal(t, 2, ExitCode(&exitError{code: 2, err: assert.AnError}))
}
