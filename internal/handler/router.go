package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"upqueue/internal/blobstore"
	"upqueue/internal/session"
	"upqueue/internal/storage"
	"upqueue/internal/websocket"
)

type Deps struct {
	Store          *storage.Storage
	Hub            *websocket.Hub
	Sessions       *session.Manager
	Blobs          blobstore.Allocator
	Memory         *blobstore.Memory // nil when objects live in S3
	MaxUploadCount int
	Logger         *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Post("/api/auth/login", LoginHandler(d.Sessions))
	r.Get("/api/auth/login2", PushHandler(d.Sessions, d.Hub))

	r.Route("/api/user", func(r chi.Router) {
		r.Use(d.Sessions.Require)
		r.Get("/getuploadurls", GetUploadURLsHandler(d.Blobs, d.MaxUploadCount))
		r.Post("/completefilesupload", CompleteFilesUploadHandler(d.Store, d.Hub))
		r.Get("/getstate", GetStateHandler(d.Store))
	})

	if d.Memory != nil {
		r.Put(blobstore.BlobPath+"{key}", PutBlobHandler(d.Memory))
		r.Get(blobstore.BlobPath+"{key}", GetBlobHandler(d.Memory))
	}
	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("Request",
				"method", r.Method,
				"uri", r.RequestURI,
				"status", ww.Status(),
				"size", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}
