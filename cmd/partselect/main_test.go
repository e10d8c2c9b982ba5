package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/partselect/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestParseKeyValues(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: nil},
		{name: "keys lower-cased", pairs: []string{"Package=SOT-223", "voltage = 3.3V"}, want: map[string]string{"package": "SOT-223", "voltage": "3.3V"}},
		{name: "value may contain equals", pairs: []string{"note=a=b"}, want: map[string]string{"note": "a=b"}},
		{name: "missing equals", pairs: []string{"package"}, wantErr: true},
		{name: "missing key", pairs: []string{"=3.3V"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseKeyValues(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuantities(t *testing.T) {
	got, err := parseQuantities([]string{"LD1117V33=10"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ld1117v33": 10}, got)

	_, err = parseQuantities([]string{"LD1117V33=ten"})
	assert.Error(t, err)

	_, err = parseQuantities([]string{"LD1117V33=0"})
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "partselect "))
}

func TestSelectCommand(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		out, err := run(t, "select", "3.3V", "LDO", "--top-k", "2", "--json")
		require.NoError(t, err)

		var result domain.SelectionResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, "3.3V LDO", result.Query)
		assert.NotEmpty(t, result.RecommendedParts)
		assert.LessOrEqual(t, len(result.RecommendedParts), 2)
	})

	t.Run("report output", func(t *testing.T) {
		out, err := run(t, "select", "3.3V", "LDO")
		require.NoError(t, err)
		assert.Contains(t, out, "## Selection Report")
		assert.Contains(t, out, "**Query**: 3.3V LDO")
	})

	t.Run("rejects malformed constraint", func(t *testing.T) {
		_, err := run(t, "select", "LDO", "--constraint", "package")
		assert.Error(t, err)
	})

	t.Run("rejects out of range top-k", func(t *testing.T) {
		_, err := run(t, "select", "LDO", "--top-k", "21")
		assert.Error(t, err)
	})

	t.Run("requires a query", func(t *testing.T) {
		_, err := run(t, "select")
		assert.Error(t, err)
	})
}

func TestSearchCommand(t *testing.T) {
	t.Run("table output", func(t *testing.T) {
		out, err := run(t, "search", "LDO")
		require.NoError(t, err)
		assert.Contains(t, out, "PART")
		assert.Contains(t, out, "LD1117V33")
		assert.Contains(t, out, "builtin")
	})

	t.Run("json output honours limit", func(t *testing.T) {
		out, err := run(t, "search", "--category", "analog", "--limit", "2", "--json")
		require.NoError(t, err)

		var result domain.SearchResult
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		require.Len(t, result.Results, 2)
		assert.Equal(t, "LM358", result.Results[0].PartNumber)
	})

	t.Run("requires a keyword or category", func(t *testing.T) {
		_, err := run(t, "search")
		assert.Error(t, err)
	})

	t.Run("rejects out of range limit", func(t *testing.T) {
		_, err := run(t, "search", "LDO", "--limit", "51")
		assert.Error(t, err)
	})
}

func TestKnowledgeCommand(t *testing.T) {
	t.Run("requires a configured path", func(t *testing.T) {
		_, err := run(t, "knowledge", "list")
		assert.ErrorContains(t, err, "knowledge.path not configured")
	})

	t.Run("add import list and remove", func(t *testing.T) {
		dir := t.TempDir()
		indexPath := filepath.Join(dir, "kb", "index.json")
		t.Setenv("PARTSELECT_KNOWLEDGE_PATH", indexPath)

		out, err := run(t, "knowledge", "add", "xc6206p332mr",
			"--category", "power", "--voltage", "3.3V", "--package", "SOT-23",
			"--price", "0.05", "--stock", "40000", "--alt", "AP2112K-3.3")
		require.NoError(t, err)
		assert.Contains(t, out, "Added XC6206P332MR (1 parts indexed)")

		raw, err := os.ReadFile(indexPath)
		require.NoError(t, err)
		var index map[string]struct {
			Data struct {
				Voltage      string   `json:"voltage"`
				Price        *float64 `json:"price"`
				Stock        *int     `json:"stock"`
				Alternatives []string `json:"alternatives"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &index))
		entry, ok := index["XC6206P332MR"]
		require.True(t, ok)
		assert.Equal(t, "3.3V", entry.Data.Voltage)
		require.NotNil(t, entry.Data.Price)
		assert.Equal(t, 0.05, *entry.Data.Price)
		require.NotNil(t, entry.Data.Stock)
		assert.Equal(t, 40000, *entry.Data.Stock)
		assert.Equal(t, []string{"AP2112K-3.3"}, entry.Data.Alternatives)

		importFile := filepath.Join(dir, "parts.yaml")
		require.NoError(t, os.WriteFile(importFile, []byte(`
ne5532:
  description: Low noise dual opamp
  category: analog
tl072:
  description: JFET opamp
  category: analog
`), 0644))
		out, err = run(t, "knowledge", "import", importFile)
		require.NoError(t, err)
		assert.Contains(t, out, "Imported 2 parts (3 indexed)")

		out, err = run(t, "knowledge", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "NE5532")
		assert.Contains(t, out, "TL072")

		out, err = run(t, "knowledge", "rm", "tl072")
		require.NoError(t, err)
		assert.Contains(t, out, "Removed TL072")

		_, err = run(t, "knowledge", "rm", "tl072")
		assert.ErrorContains(t, err, "not indexed")

		out, err = run(t, "knowledge", "list")
		require.NoError(t, err)
		assert.NotContains(t, out, "TL072")
		assert.Contains(t, out, "XC6206P332MR")
	})

	t.Run("rejects a malformed import file", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("PARTSELECT_KNOWLEDGE_PATH", filepath.Join(dir, "index.json"))
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("- not\n- a map\n"), 0644))

		_, err := run(t, "knowledge", "import", bad)
		assert.Error(t, err)
	})

	t.Run("rejects negative stock", func(t *testing.T) {
		_, err := run(t, "knowledge", "add", "X1", "--stock", "-1")
		assert.Error(t, err)
	})
}

func TestPricesCommand(t *testing.T) {
	out, err := run(t, "prices", "ld1117v33")
	require.NoError(t, err)
	assert.Contains(t, out, "VENDOR")
	assert.Contains(t, out, "Best: LCSC")
}

func TestBOMCommand(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		out, err := run(t, "bom", "3.3V", "LDO", "--top-k", "1", "--csv")
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "Reference,Part Number,Quantity,Manufacturer,Description,Unit Price,Total Price", lines[0])
	})

	t.Run("table", func(t *testing.T) {
		out, err := run(t, "bom", "3.3V", "LDO", "--top-k", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "REF")
		assert.Contains(t, out, "Estimated total:")
	})

	t.Run("rejects bad quantity", func(t *testing.T) {
		_, err := run(t, "bom", "LDO", "--qty", "LD1117V33=-1")
		assert.Error(t, err)
	})
}
