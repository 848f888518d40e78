package downloader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"tgforward/internal/model"
)

// MetadataStore persists one record per downloaded message keyed by
// "{source}:{msg-id}", surviving process restart so the Reassembler can
// function even when the in-memory fetcher/downloader state is lost
// mid-run (spec §3 "Lifecycle"). Grounded on media_downloader.py's
// message_metadata.json side-file.
type MetadataStore struct {
	mu      sync.Mutex
	path    string
	records map[string]model.MessageDescriptor
}

// OpenMetadataStore loads (or initializes) the side-file at
// <tempDir>/message_metadata.json.
func OpenMetadataStore(tempDir string) (*MetadataStore, error) {
	path := filepath.Join(tempDir, "message_metadata.json")
	s := &MetadataStore{path: path, records: map[string]model.MessageDescriptor{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, err
	}
	return s, nil
}

// Put records m under its (source, msg-id) key and flushes to disk.
func (s *MetadataStore) Put(m model.MessageDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[metadataKey(m.Source, m.MessageID)] = m
	return s.flushLocked()
}

// Get returns the persisted descriptor for (source, msgID), if any.
func (s *MetadataStore) Get(source model.ChannelKey, msgID int) (model.MessageDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[metadataKey(source, msgID)]
	return m, ok
}

// Delete removes the persisted descriptor for (source, msgID), if any,
// and flushes to disk.
func (s *MetadataStore) Delete(source model.ChannelKey, msgID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := metadataKey(source, msgID)
	if _, ok := s.records[key]; !ok {
		return nil
	}
	delete(s.records, key)
	return s.flushLocked()
}

// ByAlbum returns every persisted descriptor sharing albumKey.
func (s *MetadataStore) ByAlbum(albumKey string) []model.MessageDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MessageDescriptor
	for _, m := range s.records {
		if m.AlbumKey == albumKey {
			out = append(out, m)
		}
	}
	return out
}

func (s *MetadataStore) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}
