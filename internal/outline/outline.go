// Package outline holds per-document heading outlines for a collection and
// resolves ranked headings back to their pages.
package outline

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/dgallion1/sectionrank/internal/doctree"
	"github.com/dgallion1/sectionrank/internal/section"
)

// File is the on-disk outline format.
type File struct {
	Title   string  `json:"title"`
	Outline []Entry `json:"outline"`
}

// Entry is one heading in an outline file. Page is 1-based.
type Entry struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
}

// ReadFile loads an outline JSON file for docID. Entries with a level
// outside H1–H3, empty text, or a page below 1 are skipped.
func ReadFile(path, docID string) (title string, headings []section.Heading, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("decode outline %s: %w", path, err)
	}
	return f.Title, FromEntries(docID, f.Outline), nil
}

// FromEntries converts raw outline entries into headings for docID.
func FromEntries(docID string, entries []Entry) []section.Heading {
	out := make([]section.Heading, 0, len(entries))
	for _, e := range entries {
		level, ok := section.ParseLevel(e.Level)
		text := strings.TrimSpace(e.Text)
		if !ok || text == "" || e.Page < 1 {
			continue
		}
		out = append(out, section.Heading{
			DocumentID: docID,
			Level:      level,
			Text:       text,
			Page:       e.Page,
		})
	}
	return out
}

// FromDocument derives an outline from a parsed document's own headings.
// Only depths 1–3 are kept.
func FromDocument(docID string, doc *doctree.Document) []section.Heading {
	out := make([]section.Heading, 0, len(doc.Headings))
	for _, h := range doc.Headings {
		level, ok := section.LevelFromDepth(h.Depth)
		if !ok || h.Text == "" {
			continue
		}
		out = append(out, section.Heading{
			DocumentID: docID,
			Level:      level,
			Text:       h.Text,
			Page:       h.Page,
		})
	}
	return out
}

// ToFile renders headings back into the on-disk format.
func ToFile(title string, headings []section.Heading) File {
	f := File{Title: title, Outline: make([]Entry, 0, len(headings))}
	for _, h := range headings {
		f.Outline = append(f.Outline, Entry{Level: string(h.Level), Text: h.Text, Page: h.Page})
	}
	return f
}

// Store is the outline set for one collection. It is filled once while the
// collection loads and is read-only afterwards, so concurrent reads are safe.
type Store struct {
	docs     []string
	titles   map[string]string
	headings map[string][]section.Heading
	index    map[section.Key]section.Heading
}

func NewStore() *Store {
	return &Store{
		titles:   make(map[string]string),
		headings: make(map[string][]section.Heading),
		index:    make(map[section.Key]section.Heading),
	}
}

// Add registers a document's outline. Repeated (document, text) pairs keep
// their first occurrence as the lookup identity.
func (s *Store) Add(docID, title string, headings []section.Heading) {
	if _, ok := s.headings[docID]; !ok {
		s.docs = append(s.docs, docID)
	}
	s.titles[docID] = title
	s.headings[docID] = append(s.headings[docID], headings...)
	for _, h := range headings {
		if _, ok := s.index[h.Key()]; !ok {
			s.index[h.Key()] = h
		}
	}
}

// Documents returns document IDs in the order they were added.
func (s *Store) Documents() []string {
	return append([]string(nil), s.docs...)
}

func (s *Store) Title(docID string) string {
	return s.titles[docID]
}

func (s *Store) Headings(docID string) []section.Heading {
	return s.headings[docID]
}

// All returns every heading, grouped by document in add order and in outline
// order within a document.
func (s *Store) All() []section.Heading {
	var out []section.Heading
	for _, d := range s.docs {
		out = append(out, s.headings[d]...)
	}
	return out
}

// Lookup finds a heading by exact (document, text) identity.
func (s *Store) Lookup(k section.Key) (section.Heading, bool) {
	h, ok := s.index[k]
	return h, ok
}

// Len returns the total number of headings.
func (s *Store) Len() int {
	n := 0
	for _, hs := range s.headings {
		n += len(hs)
	}
	return n
}
