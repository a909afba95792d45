// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFilestat(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func writeSampleFile(t *testing.T, base, container, name string) string {
	t.Helper()
	dir := filepath.Join(base, container)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, name)
	_, err := runFilestat(t, "", "generate-sample", p, "--rows", "300", "--rows-per-stripe", "100")
	require.NoError(t, err)
	return p
}

func TestCollectLocalFiles(t *testing.T) {
	base := t.TempDir()
	sample := writeSampleFile(t, base, "bucket", "a.parquet")
	info, err := os.Stat(sample)
	require.NoError(t, err)

	input := strings.Join([]string{
		"# inventory",
		"file://bucket/a.parquet",
		"",
		"file://bucket/missing.parquet",
		"s3:/bad",
	}, "\n")

	out, err := runFilestat(t, input, "collect", "-", "--local-root", base, "--format", "csv", "--sort", "-w", "2")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"file_path", "file_length", "num_stripes", "raw_data_size", "error"}, rows[0])

	ok := rows[1]
	assert.Equal(t, "file://bucket/a.parquet", ok[0])
	assert.Equal(t, strconv.FormatInt(info.Size(), 10), ok[1])
	assert.Equal(t, "3", ok[2])
	assert.NotEmpty(t, ok[3])
	assert.Empty(t, ok[4])

	missing := rows[2]
	assert.Equal(t, "file://bucket/missing.parquet", missing[0])
	assert.Empty(t, missing[1])
	assert.Empty(t, missing[2])
	assert.True(t, strings.HasPrefix(missing[4], "not found: "), missing[4])

	bad := rows[3]
	assert.Equal(t, "s3:/bad", bad[0])
	assert.True(t, strings.HasPrefix(bad[4], "resolve: "), bad[4])
}

func TestCollectWritesOutputFile(t *testing.T) {
	base := t.TempDir()
	writeSampleFile(t, base, "bucket", "a.parquet")

	input := filepath.Join(t.TempDir(), "paths.txt")
	require.NoError(t, os.WriteFile(input, []byte("file://bucket/a.parquet\n"), 0o644))
	output := filepath.Join(t.TempDir(), "results.csv")

	stdout, err := runFilestat(t, "", "collect", input, "--local-root", base, "-o", output)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "file://bucket/a.parquet,"))
}

func TestCollectFatalErrors(t *testing.T) {
	_, err := runFilestat(t, "", "collect", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)

	_, err = runFilestat(t, "file://b/k\n", "collect", "-", "--workers", "0")
	assert.Error(t, err)

	_, err = runFilestat(t, "file://b/k\n", "collect", "-", "--format", "xml")
	assert.Error(t, err)
}

func TestInspectLocalFile(t *testing.T) {
	base := t.TempDir()
	sample := writeSampleFile(t, base, "bucket", "a.parquet")

	out, err := runFilestat(t, "", "inspect", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "Stripes:       3")
	assert.Contains(t, out, "Rows:          300")
	assert.Contains(t, out, "Schema:")
}

func TestInspectArrowReader(t *testing.T) {
	base := t.TempDir()
	writeSampleFile(t, base, "bucket", "a.parquet")

	out, err := runFilestat(t, "", "inspect", "file://bucket/a.parquet", "--local-root", base, "--reader", "arrow")
	require.NoError(t, err)
	assert.Contains(t, out, "Stripes:       3")
	_, schema, found := strings.Cut(out, "Schema:")
	require.True(t, found, "schema section missing:\n%s", out)
	for _, column := range []string{"id", "name", "value"} {
		assert.Contains(t, schema, column)
	}
}

func TestVersion(t *testing.T) {
	out, err := runFilestat(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "filestat dev (none)\n", out)
}
