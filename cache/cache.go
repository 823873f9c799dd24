// Package cache persists scraped conversations on disk, keyed by share
// ID. Each conversation gets its own directory holding the raw HTML,
// the metadata JSON and the rendered markdown, and a single index.json
// tracks every entry with per-file checksums.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"clshare/extract"
	"clshare/shareurl"
)

const (
	indexFile       = "index.json"
	conversationDir = "conversations"
	indexVersion    = 1

	// Canonical artifact names inside a conversation directory.
	FileHTML     = "raw.html"
	FileMetadata = "metadata.json"
	FileMarkdown = "conversation.md"
)

// FileRecord describes one persisted artifact.
type FileRecord struct {
	Size    int64     `json:"size"`
	SHA256  string    `json:"sha256"`
	SavedAt time.Time `json:"saved_at"`
}

// Entry is the index record for one cached conversation.
type Entry struct {
	ShareID   string                `json:"share_id"`
	Directory string                `json:"directory"`
	Title     string                `json:"title"`
	URL       string                `json:"url"`
	CachedAt  time.Time             `json:"cached_at"`
	Files     map[string]FileRecord `json:"files"`
}

type index struct {
	Version       int              `json:"version"`
	Conversations map[string]Entry `json:"conversations"`
	LastUpdated   time.Time        `json:"last_updated"`
}

// Manager owns one cache directory. Safe for concurrent use.
type Manager struct {
	mu   sync.Mutex
	root string
	idx  index
}

// Open loads the cache at root, creating the layout if it doesn't
// exist yet.
func Open(root string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Join(root, conversationDir), 0755); err != nil {
		return nil, err
	}

	m := &Manager{
		root: root,
		idx: index{
			Version:       indexVersion,
			Conversations: make(map[string]Entry),
		},
	}

	data, err := os.ReadFile(filepath.Join(root, indexFile))
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &m.idx); err != nil {
		return nil, fmt.Errorf("corrupt cache index: %w", err)
	}
	if m.idx.Conversations == nil {
		m.idx.Conversations = make(map[string]Entry)
	}
	return m, nil
}

// Root returns the cache's base directory.
func (m *Manager) Root() string {
	return m.root
}

// Has reports whether a conversation is cached. An index entry whose
// directory has been deleted out from under us doesn't count.
func (m *Manager) Has(shareID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.idx.Conversations[shareID]
	if !ok {
		return false
	}
	_, err := os.Stat(filepath.Join(m.root, conversationDir, e.Directory))
	return err == nil
}

// Get returns the index entry for a share ID.
func (m *Manager) Get(shareID string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.idx.Conversations[shareID]
	return e, ok
}

// Dir returns the absolute directory for a cached conversation, or ""
// when it isn't cached.
func (m *Manager) Dir(shareID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.idx.Conversations[shareID]
	if !ok {
		return ""
	}
	return filepath.Join(m.root, conversationDir, e.Directory)
}

// Store writes a conversation's artifacts and registers it in the
// index: the raw page HTML, the metadata projection, and (unless
// markdown is empty) the rendered document. An existing entry for the
// same share ID is replaced in place.
func (m *Manager) Store(conv *extract.Conversation, rawHTML, markdown string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	e, ok := m.idx.Conversations[conv.ShareID]
	if !ok {
		e = Entry{
			ShareID:   conv.ShareID,
			Directory: dirName(now, conv.Title, conv.ShareID),
			CachedAt:  now,
			Files:     make(map[string]FileRecord),
		}
	}
	e.Title = conv.Title
	e.URL = conv.URL

	dir := filepath.Join(m.root, conversationDir, e.Directory)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Entry{}, err
	}

	if err := m.saveFile(&e, dir, FileHTML, []byte(rawHTML)); err != nil {
		return Entry{}, err
	}
	meta, err := json.MarshalIndent(conv.Metadata(), "", "  ")
	if err != nil {
		return Entry{}, err
	}
	if err := m.saveFile(&e, dir, FileMetadata, meta); err != nil {
		return Entry{}, err
	}
	if markdown != "" {
		if err := m.saveFile(&e, dir, FileMarkdown, []byte(markdown)); err != nil {
			return Entry{}, err
		}
	}

	m.idx.Conversations[conv.ShareID] = e
	if err := m.writeIndex(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// saveFile writes one artifact and records its size and checksum.
// Caller holds the lock.
func (m *Manager) saveFile(e *Entry, dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return err
	}
	sum := sha256.Sum256(data)
	e.Files[name] = FileRecord{
		Size:    int64(len(data)),
		SHA256:  hex.EncodeToString(sum[:]),
		SavedAt: time.Now(),
	}
	return nil
}

// Remove deletes a cached conversation and its index entry.
func (m *Manager) Remove(shareID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.idx.Conversations[shareID]
	if !ok {
		return nil
	}
	if err := os.RemoveAll(filepath.Join(m.root, conversationDir, e.Directory)); err != nil {
		return err
	}
	delete(m.idx.Conversations, shareID)
	return m.writeIndex()
}

// List returns all entries, newest first.
func (m *Manager) List() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]Entry, 0, len(m.idx.Conversations))
	for _, e := range m.idx.Conversations {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CachedAt.Equal(entries[j].CachedAt) {
			return entries[i].ShareID < entries[j].ShareID
		}
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})
	return entries
}

// Stats summarizes the cache contents.
type Stats struct {
	Conversations int
	Files         int
	TotalBytes    int64
}

// Stats computes totals from the index without touching the disk.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s Stats
	s.Conversations = len(m.idx.Conversations)
	for _, e := range m.idx.Conversations {
		s.Files += len(e.Files)
		for _, f := range e.Files {
			s.TotalBytes += f.Size
		}
	}
	return s
}

// Cleanup reconciles the index with the disk: entries whose directory
// vanished are dropped, and directories the index doesn't know about
// are deleted. Returns how many of each were removed.
func (m *Manager) Cleanup() (staleEntries, orphanDirs int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[string]string, len(m.idx.Conversations)) // directory -> share ID
	for id, e := range m.idx.Conversations {
		known[e.Directory] = id
		if _, statErr := os.Stat(filepath.Join(m.root, conversationDir, e.Directory)); os.IsNotExist(statErr) {
			delete(m.idx.Conversations, id)
			delete(known, e.Directory)
			staleEntries++
		}
	}

	dirents, err := os.ReadDir(filepath.Join(m.root, conversationDir))
	if err != nil {
		return staleEntries, 0, err
	}
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		if _, ok := known[d.Name()]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, conversationDir, d.Name())); err != nil {
			return staleEntries, orphanDirs, err
		}
		orphanDirs++
	}

	if staleEntries > 0 || orphanDirs > 0 {
		err = m.writeIndex()
	}
	return staleEntries, orphanDirs, err
}

// writeIndex persists the index. Caller holds the lock.
func (m *Manager) writeIndex() error {
	m.idx.Version = indexVersion
	m.idx.LastUpdated = time.Now()
	data, err := json.MarshalIndent(&m.idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.root, indexFile), data, 0644)
}

const maxTitleSlug = 40

var slugStrip = regexp.MustCompile(`[^a-z0-9-]+`)
var slugDashes = regexp.MustCompile(`-{2,}`)

// dirName builds a directory name that stays readable in a file
// listing: cache date, a slug of the title, and the short share ID.
func dirName(cachedAt time.Time, title, shareID string) string {
	return fmt.Sprintf("%s_%s_%s",
		cachedAt.Format("2006-01-02"), titleSlug(title), shareurl.ShortID(shareID))
}

// titleSlug reduces a title to lowercase ASCII words joined by dashes,
// truncated on a word boundary where possible.
func titleSlug(title string) string {
	s := strings.ToLower(title)
	s = strings.ReplaceAll(s, " ", "-")
	s = slugStrip.ReplaceAllString(s, "")
	s = slugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	if len(s) > maxTitleSlug {
		s = s[:maxTitleSlug]
		if i := strings.LastIndex(s, "-"); i > 0 {
			s = s[:i]
		}
	}
	return s
}
