package holiday

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// fileEntry is one holiday in a calendar file.
type fileEntry struct {
	Date Date   `json:"date" yaml:"date"`
	Name string `json:"name" yaml:"name"`
}

// fileDoc is the on-disk layout:
//
//	weekend: [6, 7]
//	holidays:
//	  - date: 2024-12-25
//	    name: Christmas Day
type fileDoc struct {
	Weekend  []int       `json:"weekend" yaml:"weekend"`
	Holidays []fileEntry `json:"holidays" yaml:"holidays"`
}

// LoadFile reads a YAML or JSON calendar. A weekend listed in the file
// replaces the given default.
func LoadFile(path string, weekend ...time.Weekday) (*Static, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("holiday: path is required for file driver")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := decodeFile(path, b)
	if err != nil {
		return nil, fmt.Errorf("holiday: %s: %w", path, err)
	}

	if len(doc.Weekend) > 0 {
		weekend = weekend[:0:0]
		for _, n := range doc.Weekend {
			wd, err := WeekdayFromISO(n)
			if err != nil {
				return nil, fmt.Errorf("holiday: %s: %w", path, err)
			}
			weekend = append(weekend, wd)
		}
	}
	cal := NewStatic(weekend...)
	for _, e := range doc.Holidays {
		cal.Add(e.Date, e.Name)
	}
	return cal, nil
}

func decodeFile(path string, b []byte) (fileDoc, error) {
	var doc fileDoc
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		err := dec.Decode(&doc)
		return doc, err
	default:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return doc, err
		}
		return doc, nil
	}
}
