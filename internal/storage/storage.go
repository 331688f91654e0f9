package storage

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"upqueue/internal/models"
)

const fileName = "queue.json"

// Storage keeps the uploaded files of every user. Pending files form one
// queue across users, ordered by id.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	nextID   int64
	files    []models.UserFile
}

// New loads the store from dataDir. An empty dataDir keeps everything in
// memory.
func New(dataDir string) *Storage {
	store := &Storage{nextID: 1}
	if dataDir == "" {
		return store
	}

	os.MkdirAll(dataDir, os.ModePerm)
	store.filePath = filepath.Join(dataDir, fileName)

	snapshot, err := store.load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Could not load existing queue, starting fresh", "error", err)
		}
		return store
	}
	store.files = snapshot.Files
	if snapshot.NextID > store.nextID {
		store.nextID = snapshot.NextID
	}
	return store
}

func (s *Storage) load() (models.StoreSnapshot, error) {
	var data models.StoreSnapshot
	file, err := os.Open(s.filePath)
	if err != nil {
		return data, err
	}
	defer file.Close()

	err = json.NewDecoder(file).Decode(&data)
	return data, err
}

// save writes the store to disk. Callers hold mu.
func (s *Storage) save() {
	if s.filePath == "" {
		return
	}

	file, err := os.Create(s.filePath)
	if err != nil {
		slog.Error("Failed to save queue", "error", err)
		return
	}
	defer file.Close()

	snapshot := models.StoreSnapshot{NextID: s.nextID, Files: s.files}
	if err := json.NewEncoder(file).Encode(snapshot); err != nil {
		slog.Error("Failed to save queue", "error", err)
	}
}

// AddFiles appends one PENDING file per manifest entry.
func (s *Storage) AddFiles(userID string, entries []models.ManifestEntry) []models.UserFile {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	added := make([]models.UserFile, 0, len(entries))
	for _, e := range entries {
		f := models.UserFile{
			Id:       s.nextID,
			UserID:   userID,
			FileName: e.Name,
			SrcKey:   e.Key,
			SrcURL:   e.URL,
			Status:   models.StatusPending,
			AddedAt:  now,
		}
		s.nextID++
		s.files = append(s.files, f)
		added = append(added, f)
	}
	s.save()
	return added
}

// State returns the files of userID in submission order. Pending files carry
// their 1-based position in the global queue, all others -1.
func (s *Storage) State(userID string) []models.StateItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var items []models.StateItem
	position := int64(0)
	for _, f := range s.files {
		if f.Status == models.StatusPending {
			position++
		}
		if f.UserID != userID {
			continue
		}

		item := models.StateItem{
			FileName:      f.FileName,
			Status:        string(f.Status),
			QueuePosition: -1,
		}
		switch f.Status {
		case models.StatusPending:
			item.QueuePosition = position
		case models.StatusProcessed:
			item.Link = f.Link
		}
		items = append(items, item)
	}
	return items
}

func (s *Storage) Files(userID string) []models.UserFile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []models.UserFile
	for _, f := range s.files {
		if f.UserID == userID {
			files = append(files, f)
		}
	}
	return files
}

// NextPending returns the oldest pending file.
func (s *Storage) NextPending() (models.UserFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.files {
		if f.Status == models.StatusPending {
			return f, true
		}
	}
	return models.UserFile{}, false
}

func (s *Storage) MarkProcessed(id int64, link string) (models.UserFile, bool) {
	return s.update(id, func(f *models.UserFile) {
		f.Status = models.StatusProcessed
		f.Link = link
		f.Error = ""
		f.ProcessedAt = time.Now()
	})
}

func (s *Storage) MarkFailed(id int64, errMsg string) (models.UserFile, bool) {
	return s.update(id, func(f *models.UserFile) {
		f.Status = models.StatusError
		f.Error = errMsg
		f.ProcessedAt = time.Now()
	})
}

// MarkOutdated moves files processed before cutoff to OUTDATED and returns
// the users whose files changed.
func (s *Storage) MarkOutdated(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var users []string
	for i := range s.files {
		f := &s.files[i]
		if f.Status != models.StatusProcessed || !f.ProcessedAt.Before(cutoff) {
			continue
		}
		f.Status = models.StatusOutdated
		f.Link = ""
		if !seen[f.UserID] {
			seen[f.UserID] = true
			users = append(users, f.UserID)
		}
	}
	if len(users) > 0 {
		s.save()
	}
	return users
}

func (s *Storage) update(id int64, fn func(f *models.UserFile)) (models.UserFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.files {
		if s.files[i].Id == id {
			fn(&s.files[i])
			s.save()
			return s.files[i], true
		}
	}
	return models.UserFile{}, false
}
