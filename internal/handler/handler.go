package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"upqueue/internal/blobstore"
	"upqueue/internal/models"
	"upqueue/internal/session"
	"upqueue/internal/storage"
	"upqueue/internal/websocket"
)

const maxBlobSize = 64 << 20

// Notifier tells the connections of a user to pull their state again.
type Notifier interface {
	Notify(userID string)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func LoginHandler(sessions *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := sessions.Ensure(w, r)
		if err != nil {
			slog.Error("Login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to issue session")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"userId": userID})
	}
}

// PushHandler upgrades to the push channel. A missing or stale cookie gets a
// fresh session in the upgrade response.
func PushHandler(sessions *session.Manager, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, cookie, err := sessions.Ensure(w, r)
		if err != nil {
			slog.Error("Push session failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to issue session")
			return
		}

		header := http.Header{}
		if cookie != nil {
			header.Add("Set-Cookie", cookie.String())
		}
		hub.Serve(w, r, userID, header)
	}
}

func GetUploadURLsHandler(blobs blobstore.Allocator, maxCount int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := strconv.Atoi(r.URL.Query().Get("count"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "count must be a valid integer")
			return
		}
		if count < 1 || count > maxCount {
			writeError(w, http.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(maxCount))
			return
		}

		links, err := blobs.Presign(r.Context(), count)
		if err != nil {
			slog.Error("Presign failed", "count", count, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to allocate upload urls")
			return
		}
		writeJSON(w, http.StatusOK, links)
	}
}

func CompleteFilesUploadHandler(store *storage.Storage, hub Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := session.UserID(r.Context())

		var entries []models.ManifestEntry
		if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if len(entries) == 0 {
			writeError(w, http.StatusBadRequest, "manifest is empty")
			return
		}
		for _, e := range entries {
			if e.Key == "" {
				writeError(w, http.StatusBadRequest, "every entry needs a key")
				return
			}
		}

		added := store.AddFiles(userID, entries)
		slog.Info("Files queued", "user", userID, "count", len(added))
		hub.Notify(userID)

		writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
	}
}

// GetStateHandler answers null when the user has no files.
func GetStateHandler(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := session.UserID(r.Context())
		writeJSON(w, http.StatusOK, store.State(userID))
	}
}

func PutBlobHandler(mem *blobstore.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBlobSize))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "object too large")
			return
		}

		if err := mem.Put(key, data, r.Header.Get("Content-Type")); err != nil {
			writeError(w, http.StatusForbidden, "unknown upload key")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func GetBlobHandler(mem *blobstore.Memory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obj, err := mem.Get(chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, http.StatusNotFound, "object not found")
			return
		}
		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
		w.Write(obj.Data)
	}
}
