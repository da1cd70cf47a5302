package render

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasrohde/steptrace/pkg/config"
	"github.com/thomasrohde/steptrace/pkg/runtime"
)

func execute(t *testing.T, name, src string) *runtime.Result {
	t.Helper()
	res, _ := runtime.New().Execute(context.Background(), src, name)
	require.NotNil(t, res)
	return res
}

func TestJSON_Single(t *testing.T) {
	res := execute(t, "a.js", "let x = 5;")
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, config.FormatJSON, []*runtime.Result{res}, false))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, true, got["success"])
	assert.NotContains(t, got, "file")
	assert.Len(t, got["steps"], 3)
	assert.Contains(t, buf.String(), "Declared 'x' = 5")
}

func TestJSON_Multiple(t *testing.T) {
	results := []*runtime.Result{
		execute(t, "a.js", "let x = 1;"),
		execute(t, "b.js", "y = 1;"),
	}
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, results, true))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a.js", got[0]["file"])
	assert.Equal(t, "b.js", got[1]["file"])
	assert.Equal(t, false, got[1]["success"])
	assert.Equal(t, "Variable 'y' is not defined", got[1]["error"])
	assert.True(t, strings.Contains(buf.String(), "\n  "), "pretty output is indented")
}

func TestTable(t *testing.T) {
	res := execute(t, "a.js", "let x = 5;\nconsole.log(x);")
	var buf bytes.Buffer
	Table(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "Description")
	assert.Contains(t, out, "Declared 'x' = 5")
	assert.Contains(t, out, "console")
	assert.Contains(t, out, "L2")
	assert.Contains(t, out, "ok: 4 steps")
}

func TestTable_CallStack(t *testing.T) {
	res := execute(t, "a.js", "function f() { return 1; }\nf();")
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, config.FormatTable, []*runtime.Result{res}, false))
	assert.Contains(t, buf.String(), "Calling function 'f()'")
	assert.NotContains(t, buf.String(), "==", "single result has no file header")
}

func TestText(t *testing.T) {
	results := []*runtime.Result{
		execute(t, "a.js", "console.log('hi');"),
		execute(t, "b.js", "let u;\nu.x;"),
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, config.FormatText, results, false))
	out := buf.String()
	assert.Contains(t, out, "a.js")
	assert.Contains(t, out, "> hi")
	assert.Contains(t, out, "Program execution begins")
	assert.Contains(t, out, "failed: Cannot read properties of undefined (reading 'x')")
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "xml", nil, false)
	assert.Error(t, err)
}
