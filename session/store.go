package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

var ErrDocumentNotFound = errors.New("document not found")

// partial update for the out-of-channel REST edit path.
// nil fields are left untouched.
type DocumentUpdate struct {
	Title *string   `json:"title"`
	Pages *[]string `json:"pages"`
}

// DocumentStore owns the document table. All mutations are in-memory under
// the state lock; Persist rewrites the whole table to one JSON file, worst
// case on every mutating event, with the file write outside every lock.
type DocumentStore struct {
	path string

	stateLock sync.Mutex
	documents map[string]*Document

	// serializes rewrites. Snapshots are taken under this lock, so a stale
	// snapshot can never land on disk after a newer one
	persistLock sync.Mutex
}

// NewDocumentStore loads the table at path once at startup. A missing or
// unreadable file starts an empty table.
func NewDocumentStore(path string) *DocumentStore {
	store := &DocumentStore{
		path:      path,
		documents: map[string]*Document{},
	}
	store.load()
	return store
}

func (self *DocumentStore) load() {
	data, err := os.ReadFile(self.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			glog.Infof("[ds]read %s error = %s\n", self.path, err)
		}
		return
	}
	documents := map[string]*Document{}
	if err := json.Unmarshal(data, &documents); err != nil {
		glog.Infof("[ds]corrupt table %s, starting empty = %s\n", self.path, err)
		return
	}
	for id, document := range documents {
		document.Id = id
		document.Pages = normalizePages(document.Pages)
		if document.Versions == nil {
			document.Versions = []*Version{}
		}
	}
	self.documents = documents
}

// CreateDocument makes a new empty document with a generated identifier.
func (self *DocumentStore) CreateDocument() *Document {
	document := newDocument(uuid.NewString())

	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.documents[document.Id] = document
	return document.copy()
}

// EnsureDocument returns the document with the given identifier, creating a
// default empty one if absent. A channel may exist for an identifier that
// has no persisted document yet.
func (self *DocumentStore) EnsureDocument(id string) (*Document, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	document, ok := self.documents[id]
	if ok {
		return document.copy(), false
	}
	document = newDocument(id)
	self.documents[id] = document
	return document.copy(), true
}

func (self *DocumentStore) GetDocument(id string) (*Document, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	document, ok := self.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return document.copy(), nil
}

// ListDocuments returns a snapshot of all documents, newest first.
func (self *DocumentStore) ListDocuments() []*Document {
	self.stateLock.Lock()
	documents := make([]*Document, 0, len(self.documents))
	for _, document := range self.documents {
		documents = append(documents, document.copy())
	}
	self.stateLock.Unlock()

	slices.SortFunc(documents, func(a *Document, b *Document) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return documents
}

func (self *DocumentStore) UpdateDocumentMetadata(id string, update *DocumentUpdate) (*Document, error) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	document, ok := self.documents[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	if update.Title != nil {
		document.Title = *update.Title
	}
	if update.Pages != nil {
		document.Pages = normalizePages(slices.Clone(*update.Pages))
	}
	document.UpdatedAt = time.Now()
	return document.copy(), nil
}

// SetPages replaces the page set wholesale. Concurrent updates are
// last-write-wins at full page-set granularity; there is no merge.
// Returns the pages as stored.
func (self *DocumentStore) SetPages(id string, pages []string) ([]string, bool) {
	pages = normalizePages(slices.Clone(pages))

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	document, ok := self.documents[id]
	if !ok {
		return nil, false
	}
	document.Pages = pages
	document.UpdatedAt = time.Now()
	return slices.Clone(pages), true
}

// AppendVersion snapshots the current pages into a new version with the
// next sequential identifier.
func (self *DocumentStore) AppendVersion(id string, editor string, summary string) (*Version, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	document, ok := self.documents[id]
	if !ok {
		return nil, false
	}
	version := &Version{
		Id:        fmt.Sprintf("v%d", len(document.Versions)+1),
		Editor:    editor,
		Timestamp: time.Now(),
		Summary:   summary,
		Pages:     slices.Clone(document.Pages),
	}
	document.Versions = append(document.Versions, version)
	return version.copy(), true
}

// Persist rewrites the whole table. The snapshot is deep copied under the
// state lock while already holding the persist lock, so rewrites land on
// disk in snapshot order. Marshal and file I/O happen outside the state
// lock and never block channel events.
func (self *DocumentStore) Persist() error {
	self.persistLock.Lock()
	defer self.persistLock.Unlock()

	self.stateLock.Lock()
	snapshot := map[string]*Document{}
	for id, document := range self.documents {
		snapshot[id] = document.copy()
	}
	self.stateLock.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(self.path, data, 0644)
}
