package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/edgard/chatrelay/internal/config"
	"github.com/edgard/chatrelay/internal/rooms"
	"github.com/edgard/chatrelay/internal/router"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeFilename reduces an uploaded filename to a path-traversal-safe
// basename. It returns an empty string when nothing safe remains.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	return name
}

// UploadHandler accepts multipart file uploads, stores them, and records a
// file-kind chat message in the target room. A duplicate filename silently
// overwrites the previous upload.
func UploadHandler(logger *slog.Logger, rt *router.Router, hub *Hub, cfg config.UploadConfig) http.HandlerFunc {
	log := logger.With("component", "upload_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "No file part", http.StatusBadRequest)
			return
		}
		defer func() {
			_ = file.Close()
		}()

		filename := SanitizeFilename(header.Filename)
		if filename == "" {
			http.Error(w, "No selected file", http.StatusBadRequest)
			return
		}

		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			log.ErrorContext(r.Context(), "Failed to create upload directory", "dir", cfg.Dir, "error", err)
			http.Error(w, "Failed to store file", http.StatusInternalServerError)
			return
		}

		path := filepath.Join(cfg.Dir, filename)
		dst, err := os.Create(path)
		if err != nil {
			log.ErrorContext(r.Context(), "Failed to create upload file", "path", path, "error", err)
			http.Error(w, "Failed to store file", http.StatusInternalServerError)
			return
		}

		size, err := io.Copy(dst, file)
		closeErr := dst.Close()
		if err != nil || closeErr != nil {
			log.ErrorContext(r.Context(), "Failed to write upload", "path", path, "error", errors.Join(err, closeErr))
			_ = os.Remove(path)
			http.Error(w, "Failed to store file", http.StatusInternalServerError)
			return
		}

		mtype, err := mimetype.DetectFile(path)
		if err != nil {
			log.WarnContext(r.Context(), "Failed to detect uploaded file type", "path", path, "error", err)
		} else {
			log.InfoContext(r.Context(), "File stored", "filename", filename, "size", size, "mime_type", mtype.String())
		}

		room := r.FormValue("room")
		username := r.FormValue("username")
		if err := rt.RecordFileMessage(r.Context(), room, filename, username); err != nil {
			http.Error(w, "Failed to record upload", http.StatusInternalServerError)
			return
		}

		if room == "" {
			room = rooms.PublicRoom
		}
		hub.Emit(EventFileUploaded, fileUploadedPayload{Room: room, Filename: filename}, room)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("File uploaded successfully"))
	}
}

// FilesHandler serves previously uploaded files by name.
func FilesHandler(logger *slog.Logger, cfg config.UploadConfig) http.HandlerFunc {
	log := logger.With("component", "files_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		filename := SanitizeFilename(r.PathValue("name"))
		if filename == "" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		path := filepath.Join(cfg.Dir, filename)
		if _, err := os.Stat(path); err != nil {
			log.DebugContext(r.Context(), "Requested file not found", "filename", filename)
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		http.ServeFile(w, r, path)
	}
}
