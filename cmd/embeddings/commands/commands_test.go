package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questforge/embeddings/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv("EMBEDDING_PROVIDER", "local")

	var out bytes.Buffer

	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"sync", "process", "retry", "status", "migrate"} {
		assert.Contains(t, names, want)
	}
}

func TestArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "sync needs campaign", args: []string{"sync"}, wantErr: `required flag(s) "campaign" not set`},
		{name: "sync bad type", args: []string{"sync", "--campaign", "c1", "--types", "maps"}, wantErr: "invalid content type"},
		{name: "process negative cap", args: []string{"process", "--until-empty", "--max-batches", "-1"}, wantErr: "must not be negative"},
		{name: "retry arg count", args: []string{"retry", "note"}, wantErr: "accepts 2 arg(s)"},
		{name: "retry bad type", args: []string{"retry", "map", "m1"}, wantErr: "invalid content type"},
		{name: "retry blank id", args: []string{"retry", "note", "  "}, wantErr: "content id must not be empty"},
		{name: "status arg count", args: []string{"status", "note"}, wantErr: "no arguments or <type> <id>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseContentRef(t *testing.T) {
	key, err := parseContentRef([]string{"Notes", " n1 "})
	require.NoError(t, err)
	assert.Equal(t, models.ContentKey{Type: models.ContentTypeNote, ID: "n1"}, key)

	_, err = parseContentRef([]string{"asset", ""})
	require.ErrorIs(t, err, errEmptyContentID)

	_, err = parseContentRef([]string{"scroll", "s1"})
	require.ErrorIs(t, err, models.ErrInvalidContentType)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, writeJSON(&buf, models.NewProcessResponse(3, 2, 1, false)))
	assert.Contains(t, buf.String(), "\n  ")
	assert.Contains(t, buf.String(), `"processed": 3`)
}
