package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"field-service-system/pkg/middleware"
	"field-service-system/pkg/response"
	"field-service-system/services/report-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Per-kind subdirectories under the media root, mirrored by the /media URL
// prefix the files are served back from.
const (
	dirPhoto = "photo"
	dirVideo = "video"
	dirAudio = "audio"
)

const maxUploadBytes = 64 << 20

func kindDir(tipo string) string {
	switch tipo {
	case models.MediaVideo:
		return dirVideo
	case models.MediaAudio:
		return dirAudio
	default:
		return dirPhoto
	}
}

func defaultMediaComment(tipo string) string {
	switch tipo {
	case models.MediaVideo:
		return "Video uploaded"
	case models.MediaAudio:
		return "Audio note uploaded"
	default:
		return "Photo uploaded"
	}
}

// mediaFileName builds the stored filename: kind, timestamp, two random
// numeric suffixes, uploader identity, original extension.
func mediaFileName(tipo, uploaderID, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%d_%d%d_%s%s",
		strings.ToLower(tipo), now.Unix(), rand.Intn(1000), rand.Intn(1000), uploaderID, ext)
}

// resolveCollision appends an incrementing counter before the extension
// until exists reports the name free.
func resolveCollision(name string, exists func(string) bool) string {
	if !exists(name) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", base, n, ext)
		if !exists(candidate) {
			return candidate
		}
	}
}

// saveMediaFile writes the upload under mediaRoot/<kind dir>/ and returns the
// public URL path. The request blocks until the file is fully written.
func (a *app) saveMediaFile(fh *multipart.FileHeader, tipo, uploaderID string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if len(ext) > 8 {
		ext = ext[:8]
	}

	dir := filepath.Join(a.mediaRoot, kindDir(tipo))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := mediaFileName(tipo, uploaderID, ext, time.Now())
	name = resolveCollision(name, func(candidate string) bool {
		_, err := os.Stat(filepath.Join(dir, candidate))
		return err == nil
	})

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	out, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", err
	}

	return "/media/" + kindDir(tipo) + "/" + name, nil
}

func (a *app) uploadMedia(w http.ResponseWriter, r *http.Request, reportID string) {
	claims, ok := middleware.ClaimsFrom(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid multipart form", err.Error())
		return
	}

	tipo := strings.ToUpper(strings.TrimSpace(r.FormValue("type")))
	if !isValidMediaTipo(tipo) {
		response.Error(w, http.StatusBadRequest, "type must be one of FOTO, VIDEO, AUDIO", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	report, ok := a.loadReport(ctx, w, reportID)
	if !ok {
		return
	}

	if !canAttachMedia(report, claims) {
		response.Error(w, http.StatusForbidden, "Technician is not assigned to this report", "")
		return
	}

	file, fh, err := r.FormFile("file")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Missing file field", err.Error())
		return
	}
	file.Close()

	url, err := a.saveMediaFile(fh, tipo, claims.UserID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to store file", err.Error())
		return
	}

	now := time.Now()
	item := models.MediaItem{
		ID:         primitive.NewObjectID(),
		ReportID:   report.ID,
		UploadedBy: claims.UserID,
		Tipo:       tipo,
		URL:        url,
		CreatedAt:  now,
	}
	if tipo == models.MediaAudio {
		item.Transcripcion = strings.TrimSpace(r.FormValue("transcripcion"))
	}

	if _, err := a.media().InsertOne(ctx, item); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to save media record", err.Error())
		return
	}

	if !parseBool(r.FormValue("skipHistory")) {
		comment := strings.TrimSpace(r.FormValue("comentario"))
		if comment == "" {
			comment = defaultMediaComment(tipo)
		}
		entry := models.HistoryEntry{
			ReportID:   report.ID,
			UserID:     claims.UserID,
			Tipo:       models.HistoryTechnicianUpdate,
			Comentario: comment,
			MediaID:    &item.ID,
			CreatedAt:  now,
		}
		if _, err := a.history().InsertOne(ctx, entry); err != nil {
			middleware.LogError(middleware.GetTraceID(r), "Failed to append media history entry", err)
		}
	}

	response.Success(w, http.StatusCreated, "Media uploaded successfully", item)
}

func (a *app) deleteMedia(w http.ResponseWriter, r *http.Request, reportID, mediaID string) {
	claims, ok := middleware.ClaimsFrom(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	reportObjID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid report ID", err.Error())
		return
	}
	mediaObjID, err := primitive.ObjectIDFromHex(mediaID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid media ID", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var item models.MediaItem
	if err := a.media().FindOne(ctx, bson.M{"_id": mediaObjID, "report_id": reportObjID}).Decode(&item); err != nil {
		if err == mongo.ErrNoDocuments {
			response.Error(w, http.StatusNotFound, "Media not found", "")
		} else {
			response.Error(w, http.StatusInternalServerError, "Failed to fetch media", err.Error())
		}
		return
	}

	if !canDeleteMedia(&item, claims.UserID, claims.IsAdmin()) {
		response.Error(w, http.StatusForbidden, "Only the uploader or an admin may delete media", "")
		return
	}

	// Best-effort unlink: a dangling file is preferred over a dangling
	// database reference.
	if path := a.mediaFilePath(item.URL); path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			middleware.LogError(middleware.GetTraceID(r), "Failed to delete media file", err)
		}
	}

	if _, err := a.media().DeleteOne(ctx, bson.M{"_id": item.ID}); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to delete media record", err.Error())
		return
	}

	// Clear references, keep the entries.
	if _, err := a.history().UpdateMany(ctx,
		bson.M{"report_id": reportObjID, "media_id": item.ID},
		bson.M{"$unset": bson.M{"media_id": ""}},
	); err != nil {
		middleware.LogError(middleware.GetTraceID(r), "Failed to clear history media references", err)
	}

	response.Success(w, http.StatusOK, "Media deleted", nil)
}

// mediaFilePath maps a stored /media/... URL back to the on-disk path.
func (a *app) mediaFilePath(url string) string {
	rel := strings.TrimPrefix(url, "/media/")
	if rel == url || strings.Contains(rel, "..") {
		return ""
	}
	return filepath.Join(a.mediaRoot, filepath.FromSlash(rel))
}

// parseBool understands common truthy strings.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
