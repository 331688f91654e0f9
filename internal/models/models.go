package models

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusError     Status = "ERROR"
	StatusOutdated  Status = "OUTDATED"
)

// Known reports whether s is one of the statuses the backend documents.
func (s Status) Known() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusError, StatusOutdated:
		return true
	}
	return false
}

// UploadSlot is one presigned destination. Index is the position of the file
// it belongs to in the submitted batch.
type UploadSlot struct {
	Index int
	URL   string
	Key   string
}

type FileUploadOutcome struct {
	Slot        UploadSlot
	FileName    string
	Succeeded   bool
	ErrorDetail string
}

type ManifestEntry struct {
	URL  string `json:"Url"`
	Key  string `json:"Key"`
	Name string `json:"Name"`
}

// QueueItem is a client-side view of one submitted file. QueuePosition is nil
// when the backend did not report a position.
type QueueItem struct {
	FileName      string
	Status        Status
	QueuePosition *int
	DownloadLink  string
}

// SlotLink is the wire form returned by getuploadurls.
type SlotLink struct {
	Url string `json:"Url"`
	Key string `json:"Key"`
}

// StateItem is the wire form returned by getstate.
type StateItem struct {
	FileName      string `json:"FileName"`
	Status        string `json:"Status"`
	QueuePosition int64  `json:"QueuePosition"`
	Link          string `json:"Link"`
}

func (s StateItem) QueueItem() QueueItem {
	item := QueueItem{
		FileName:     s.FileName,
		Status:       Status(s.Status),
		DownloadLink: s.Link,
	}
	if s.QueuePosition >= 0 && Status(s.Status) == StatusPending {
		pos := int(s.QueuePosition)
		item.QueuePosition = &pos
	}
	return item
}

// UserFile is a file record kept by the reference backend.
type UserFile struct {
	Id          int64     `json:"id"`
	UserID      string    `json:"userId"`
	FileName    string    `json:"fileName"`
	SrcKey      string    `json:"srcKey"`
	SrcURL      string    `json:"srcUrl"`
	Link        string    `json:"link"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	AddedAt     time.Time `json:"addedAt"`
	ProcessedAt time.Time `json:"processedAt"`
}

// StoreSnapshot is the on-disk format of the reference backend store.
type StoreSnapshot struct {
	NextID int64      `json:"nextId"`
	Files  []UserFile `json:"files"`
}
