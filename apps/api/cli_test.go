package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, app *App, args ...string) (string, string, error) {
	t.Helper()
	factory := func(context.Context) (*App, error) { return app, nil }
	cmd := newRootCmd(factory)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLISeedOnlyWhenEmpty(t *testing.T) {
	app := newTestApp(t)

	out, _, err := runCLI(t, app, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 2 sample reports")
	assert.Len(t, mustLoadReports(t, app), 2)

	out, _, err = runCLI(t, app, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing seeded")
	assert.Len(t, mustLoadReports(t, app), 2)
}

func TestCLIList(t *testing.T) {
	app := newTestApp(t)

	out, _, err := runCLI(t, app, "list")
	require.NoError(t, err)
	assert.Equal(t, "No reports\n", out)

	seedTestReports(t, app)
	out, _, err = runCLI(t, app, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "r_0000001")
	assert.Contains(t, out, "Overflowing bin")
	assert.Contains(t, out, "19.0760, 72.8777")
	assert.Contains(t, out, "2 reports (Garbage: 1, Pothole: 1)")

	out, _, err = runCLI(t, app, "list", "--category", "Pothole")
	require.NoError(t, err)
	assert.NotContains(t, out, "r_0000001")
	assert.Contains(t, out, "r_0000002")
	assert.Contains(t, out, "1 reports (Pothole: 1)")
}

func TestCLIClearRequiresYes(t *testing.T) {
	app := newTestApp(t)
	seedTestReports(t, app)

	_, _, err := runCLI(t, app, "clear")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	assert.Len(t, mustLoadReports(t, app), 2)

	out, _, err := runCLI(t, app, "clear", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared all reports")
	assert.Empty(t, mustLoadReports(t, app))
}

func TestCLIExportCSVToStdout(t *testing.T) {
	app := newTestApp(t)
	seedTestReports(t, app)

	out, _, err := runCLI(t, app, "export", "--category", "Garbage")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id,category,title"))
	assert.True(t, strings.HasPrefix(lines[1], "r_0000001,Garbage,"))
}

func TestCLIExportPDFToFile(t *testing.T) {
	app := newTestApp(t)
	seedTestReports(t, app)
	outPath := filepath.Join(t.TempDir(), "reports.pdf")

	out, errOut, err := runCLI(t, app, "export", "--format", "PDF", "--out", outPath)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Wrote 2 reports to "+outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestCLIExportRejectsUnknownFormat(t *testing.T) {
	app := newTestApp(t)

	_, _, err := runCLI(t, app, "export", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Valid formats: csv, pdf")
}

func TestCLITokenVerifies(t *testing.T) {
	app := newTestApp(t)

	out, _, err := runCLI(t, app, "token", "--action", "delete", "--id", "r_0000001")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	assert.NoError(t, app.verifyConfirmationToken(token, confirmActionDelete, "r_0000001"))

	out, _, err = runCLI(t, app, "token", "--id", "r_0000001")
	require.NoError(t, err)
	assert.NoError(t, app.verifyConfirmationToken(strings.TrimSpace(out), confirmActionClear, ""))

	_, _, err = runCLI(t, app, "token", "--action", "delete")
	assert.Error(t, err)
}
