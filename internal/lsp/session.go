package lsp

import (
	"sync"
	"sync/atomic"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/woxQAQ/sqlcursor/internal/catalog"
	"github.com/woxQAQ/sqlcursor/internal/codeblock"
)

// Session holds the open documents and the catalog completion reads. The
// catalog is replaced wholesale and never mutated.
type Session struct {
	mu   sync.RWMutex
	docs map[string]*openDocument

	catalog atomic.Pointer[catalogState]
}

type openDocument struct {
	version protocol.Integer
	doc     *codeblock.Document
}

type catalogState struct {
	snapshot *catalog.Snapshot
	lookup   catalog.LiveLookup
}

// NewSession creates a session serving snap and lookup. Either may be nil.
func NewSession(snap *catalog.Snapshot, lookup catalog.LiveLookup) *Session {
	s := &Session{docs: make(map[string]*openDocument)}
	s.SetCatalog(snap, lookup)
	return s
}

// SetCatalog swaps the catalog used by later completions.
func (s *Session) SetCatalog(snap *catalog.Snapshot, lookup catalog.LiveLookup) {
	s.catalog.Store(&catalogState{snapshot: snap, lookup: lookup})
}

// Catalog returns the current snapshot and live lookup.
func (s *Session) Catalog() (*catalog.Snapshot, catalog.LiveLookup) {
	c := s.catalog.Load()
	return c.snapshot, c.lookup
}

// Open stores a document.
func (s *Session) Open(uri string, version protocol.Integer, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &openDocument{version: version, doc: codeblock.NewDocument(text)}
}

// Change applies content changes in order. Changes to unknown documents
// are ignored and reported as false.
func (s *Session) Change(uri string, version protocol.Integer, changes []any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	od, ok := s.docs[uri]
	if !ok {
		return false
	}
	text := od.doc.Text
	for _, change := range changes {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = c.Text
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				text = c.Text
				continue
			}
			doc := codeblock.NewDocument(text)
			start := doc.OffsetAt(fromClient(doc, c.Range.Start))
			end := doc.OffsetAt(fromClient(doc, c.Range.End))
			if end < start {
				start, end = end, start
			}
			text = text[:start] + c.Text + text[end:]
		}
	}
	s.docs[uri] = &openDocument{version: version, doc: codeblock.NewDocument(text)}
	return true
}

// Close forgets a document.
func (s *Session) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Document returns a document and its version.
func (s *Session) Document(uri string) (*codeblock.Document, protocol.Integer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	od, ok := s.docs[uri]
	if !ok {
		return nil, 0, false
	}
	return od.doc, od.version, true
}

// Current reports whether uri is still open at version.
func (s *Session) Current(uri string, version protocol.Integer) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	od, ok := s.docs[uri]
	return ok && od.version == version
}
