package reconcile

import (
	"strings"

	"github.com/stratix-platform/initiative-import/internal/model"
)

// CatalogKey identifies an initiative within a tenant: its area plus its
// case-insensitive trimmed title.
type CatalogKey struct {
	AreaID string
	Title  string
}

// KeyOf builds the catalog key for title in areaID.
func KeyOf(areaID, title string) CatalogKey {
	return CatalogKey{AreaID: areaID, Title: strings.ToLower(strings.TrimSpace(title))}
}

type indexEntry struct {
	initiative model.Initiative
	batch      bool // created by the current session
}

// CatalogIndex is the in-memory view of the catalog for one import session.
// It is seeded from one bulk read and kept current as rows are written, so
// later rows see records created by earlier ones.
type CatalogIndex struct {
	entries map[CatalogKey]*indexEntry
}

// NewCatalogIndex indexes the pre-existing initiatives. On duplicate keys
// the first record wins.
func NewCatalogIndex(initiatives []model.Initiative) *CatalogIndex {
	ix := &CatalogIndex{entries: make(map[CatalogKey]*indexEntry, len(initiatives))}
	for _, ini := range initiatives {
		key := KeyOf(ini.AreaID, ini.Title)
		if _, ok := ix.entries[key]; !ok {
			ix.entries[key] = &indexEntry{initiative: ini}
		}
	}
	return ix
}

// Lookup returns the initiative stored under key and whether it was created
// during this session.
func (ix *CatalogIndex) Lookup(key CatalogKey) (ini model.Initiative, createdInBatch, ok bool) {
	e, found := ix.entries[key]
	if !found {
		return model.Initiative{}, false, false
	}
	return e.initiative, e.batch, true
}

// Len reports the number of indexed initiatives.
func (ix *CatalogIndex) Len() int { return len(ix.entries) }

func (ix *CatalogIndex) insert(ini model.Initiative) {
	ix.entries[KeyOf(ini.AreaID, ini.Title)] = &indexEntry{initiative: ini, batch: true}
}

func (ix *CatalogIndex) replace(key CatalogKey, ini model.Initiative) {
	if e, ok := ix.entries[key]; ok {
		e.initiative = ini
	}
}
