// Package content loads lesson files from a directory and tracks the
// current position within them. Every file is validated against a JSON
// schema before use so a malformed lesson is rejected at load time, not
// mid-activity.
package content

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/edequartel/BrailleServer/errors"
)

// Record is one content item within a lesson
type Record struct {
	// Text is the line shown for this record
	Text string `json:"text"`

	// Caption is the spoken/visible caption
	Caption string `json:"caption,omitempty"`

	// Words are the logical tokens for token-based rendering; empty means
	// Text is split on whitespace
	Words []string `json:"words,omitempty"`
}

// Tokens returns the logical tokens for the record
func (r Record) Tokens() []string {
	if len(r.Words) > 0 {
		return r.Words
	}
	return strings.Fields(r.Text)
}

// Lesson is one content file: an ordered set of records and the activities
// that run over them.
type Lesson struct {
	Name       string   `json:"name"`
	Language   string   `json:"language,omitempty"`
	Activities []string `json:"activities"`
	Records    []Record `json:"records"`
}

// lessonSchema is the wire contract for lesson files
const lessonSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["name", "activities", "records"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"language": {"type": "string", "enum": ["en", "nl"]},
		"activities": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		},
		"records": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["text"],
				"properties": {
					"text": {"type": "string", "minLength": 1},
					"caption": {"type": "string"},
					"words": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

// Library holds the loaded lessons, ordered by file name
type Library struct {
	lessons []Lesson
}

// Load reads and validates every .json lesson file in dir
func Load(dir string) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.WrapUsage(err, "Library", "Load", "read content directory")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(lessonSchema))
	if err != nil {
		return nil, errors.WrapUsage(err, "Library", "Load", "compile lesson schema")
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	lib := &Library{}
	for _, name := range names {
		lesson, err := loadLesson(filepath.Join(dir, name), schema)
		if err != nil {
			return nil, err
		}
		lib.lessons = append(lib.lessons, lesson)
	}
	return lib, nil
}

func loadLesson(path string, schema *gojsonschema.Schema) (Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lesson{}, errors.WrapUsage(err, "Library", "Load", "read lesson file")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Lesson{}, errors.WrapProtocol(err, "Library", "Load",
			fmt.Sprintf("validate %s", filepath.Base(path)))
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return Lesson{}, errors.WrapProtocol(
			fmt.Errorf("invalid lesson %s: %s", filepath.Base(path), strings.Join(details, "; ")),
			"Library", "Load", "schema validation")
	}

	var lesson Lesson
	if err := json.Unmarshal(data, &lesson); err != nil {
		return Lesson{}, errors.WrapProtocol(err, "Library", "Load",
			fmt.Sprintf("unmarshal %s", filepath.Base(path)))
	}
	return lesson, nil
}

// Lessons returns the loaded lessons in order
func (l *Library) Lessons() []Lesson {
	return l.lessons
}

// Lesson returns the lesson at index
func (l *Library) Lesson(index int) (Lesson, bool) {
	if index < 0 || index >= len(l.lessons) {
		return Lesson{}, false
	}
	return l.lessons[index], true
}

// Position tracks the current lesson, record and activity. All moves clamp
// to valid indices; an empty library has no position.
type Position struct {
	mu       sync.Mutex
	lib      *Library
	lesson   int
	record   int
	activity int
}

// NewPosition creates a position at the start of the library
func NewPosition(lib *Library) *Position {
	return &Position{lib: lib}
}

// Current returns the lesson, record, record index and activity identifier
// at the position, or false when the library is empty.
func (p *Position) Current() (Lesson, Record, int, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	lesson, ok := p.lib.Lesson(p.lesson)
	if !ok || len(lesson.Records) == 0 || len(lesson.Activities) == 0 {
		return Lesson{}, Record{}, 0, "", false
	}
	return lesson, lesson.Records[p.record], p.record, lesson.Activities[p.activity], true
}

// NextRecord advances to the next record, wrapping within the lesson.
// Returns true when the position moved past the last record (a full cycle).
func (p *Position) NextRecord() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	lesson, ok := p.lib.Lesson(p.lesson)
	if !ok || len(lesson.Records) == 0 {
		return false
	}
	p.record++
	if p.record >= len(lesson.Records) {
		p.record = 0
		return true
	}
	return false
}

// PrevRecord moves to the previous record, wrapping within the lesson
func (p *Position) PrevRecord() {
	p.mu.Lock()
	defer p.mu.Unlock()

	lesson, ok := p.lib.Lesson(p.lesson)
	if !ok || len(lesson.Records) == 0 {
		return
	}
	p.record--
	if p.record < 0 {
		p.record = len(lesson.Records) - 1
	}
}

// SelectLesson jumps to a lesson by index, resetting record and activity
func (p *Position) SelectLesson(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.lib.Lesson(index); !ok {
		return false
	}
	p.lesson = index
	p.record = 0
	p.activity = 0
	return true
}

// SelectActivity picks an activity of the current lesson by identifier
func (p *Position) SelectActivity(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	lesson, ok := p.lib.Lesson(p.lesson)
	if !ok {
		return false
	}
	for i, a := range lesson.Activities {
		if a == name {
			p.activity = i
			return true
		}
	}
	return false
}
