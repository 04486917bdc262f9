package session

import (
	"time"

	"golang.org/x/exp/slices"
)

const DefaultDocumentTitle = "Untitled Document"

// Version is an immutable snapshot of a document's pages at save time.
// Ids are sequential ("v1", "v2", ...) per document and never reused.
type Version struct {
	Id        string    `json:"id"`
	Editor    string    `json:"editor"`
	Timestamp time.Time `json:"timestamp"`
	Summary   string    `json:"summary"`
	Pages     []string  `json:"pages"`
}

func (self *Version) copy() *Version {
	versionCopy := *self
	versionCopy.Pages = slices.Clone(self.Pages)
	return &versionCopy
}

// Document is the canonical state of one document. Pages is never empty;
// a document with no content has a single empty page. Versions is append
// only.
type Document struct {
	Id        string     `json:"id"`
	Title     string     `json:"title"`
	Pages     []string   `json:"pages"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Versions  []*Version `json:"versions"`
}

func newDocument(id string) *Document {
	now := time.Now()
	return &Document{
		Id:        id,
		Title:     DefaultDocumentTitle,
		Pages:     []string{""},
		CreatedAt: now,
		UpdatedAt: now,
		Versions:  []*Version{},
	}
}

func (self *Document) copy() *Document {
	documentCopy := *self
	documentCopy.Pages = slices.Clone(self.Pages)
	documentCopy.Versions = make([]*Version, 0, len(self.Versions))
	for _, version := range self.Versions {
		documentCopy.Versions = append(documentCopy.Versions, version.copy())
	}
	return &documentCopy
}

func normalizePages(pages []string) []string {
	if len(pages) == 0 {
		return []string{""}
	}
	return pages
}
