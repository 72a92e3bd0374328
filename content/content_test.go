package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLesson(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

const validLesson = `{
	"name": "dieren",
	"language": "nl",
	"activities": ["wordline", "flash"],
	"records": [
		{"text": "de hond blaft", "caption": "hond", "words": ["de hond", "blaft"]},
		{"text": "de kat miauwt", "caption": "kat"}
	]
}`

func TestLoadValidLesson(t *testing.T) {
	dir := t.TempDir()
	writeLesson(t, dir, "dieren.json", validLesson)

	lib, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, lib.Lessons(), 1)

	lesson := lib.Lessons()[0]
	assert.Equal(t, "dieren", lesson.Name)
	assert.Equal(t, []string{"wordline", "flash"}, lesson.Activities)
	require.Len(t, lesson.Records, 2)
	assert.Equal(t, []string{"de hond", "blaft"}, lesson.Records[0].Tokens())
	assert.Equal(t, []string{"de", "kat", "miauwt"}, lesson.Records[1].Tokens(),
		"records without words split on whitespace")
}

func TestLoadOrdersByFileName(t *testing.T) {
	dir := t.TempDir()
	writeLesson(t, dir, "b.json", `{"name":"b","activities":["x"],"records":[{"text":"b"}]}`)
	writeLesson(t, dir, "a.json", `{"name":"a","activities":["x"],"records":[{"text":"a"}]}`)
	writeLesson(t, dir, "notes.txt", "ignored")

	lib, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, lib.Lessons(), 2)
	assert.Equal(t, "a", lib.Lessons()[0].Name)
	assert.Equal(t, "b", lib.Lessons()[1].Name)
}

func TestLoadRejectsInvalidLesson(t *testing.T) {
	cases := map[string]string{
		"missing name":     `{"activities":["x"],"records":[{"text":"a"}]}`,
		"empty activities": `{"name":"a","activities":[],"records":[{"text":"a"}]}`,
		"empty records":    `{"name":"a","activities":["x"],"records":[]}`,
		"record no text":   `{"name":"a","activities":["x"],"records":[{"caption":"a"}]}`,
		"bad language":     `{"name":"a","language":"fr","activities":["x"],"records":[{"text":"a"}]}`,
		"not json":         `{`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeLesson(t, dir, "lesson.json", body)
			_, err := Load(dir)
			require.Error(t, err)
		})
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := Load("/nonexistent/path")
	require.Error(t, err)
}

func TestPositionWalk(t *testing.T) {
	dir := t.TempDir()
	writeLesson(t, dir, "dieren.json", validLesson)
	lib, err := Load(dir)
	require.NoError(t, err)

	pos := NewPosition(lib)

	_, record, index, act, ok := pos.Current()
	require.True(t, ok)
	assert.Equal(t, "de hond blaft", record.Text)
	assert.Equal(t, 0, index)
	assert.Equal(t, "wordline", act)

	wrapped := pos.NextRecord()
	assert.False(t, wrapped)
	_, record, index, _, _ = pos.Current()
	assert.Equal(t, "de kat miauwt", record.Text)
	assert.Equal(t, 1, index)

	wrapped = pos.NextRecord()
	assert.True(t, wrapped, "advancing past the last record wraps")
	_, record, _, _, _ = pos.Current()
	assert.Equal(t, "de hond blaft", record.Text)

	pos.PrevRecord()
	_, record, _, _, _ = pos.Current()
	assert.Equal(t, "de kat miauwt", record.Text)
}

func TestPositionSelect(t *testing.T) {
	dir := t.TempDir()
	writeLesson(t, dir, "a.json", `{"name":"a","activities":["x","y"],"records":[{"text":"a"}]}`)
	writeLesson(t, dir, "b.json", `{"name":"b","activities":["z"],"records":[{"text":"b"}]}`)
	lib, err := Load(dir)
	require.NoError(t, err)

	pos := NewPosition(lib)

	assert.True(t, pos.SelectActivity("y"))
	_, _, _, act, _ := pos.Current()
	assert.Equal(t, "y", act)
	assert.False(t, pos.SelectActivity("nope"))

	assert.True(t, pos.SelectLesson(1))
	lesson, _, _, act, ok := pos.Current()
	require.True(t, ok)
	assert.Equal(t, "b", lesson.Name)
	assert.Equal(t, "z", act, "lesson switch resets the activity")

	assert.False(t, pos.SelectLesson(5))
}

func TestPositionEmptyLibrary(t *testing.T) {
	lib, err := Load(t.TempDir())
	require.NoError(t, err)

	pos := NewPosition(lib)
	_, _, _, _, ok := pos.Current()
	assert.False(t, ok)
	assert.False(t, pos.NextRecord())
}
