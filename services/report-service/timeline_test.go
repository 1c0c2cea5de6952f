package main

import (
	"testing"
	"time"

	"field-service-system/services/report-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var timelineBase = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func historyAt(offset time.Duration, mediaID *primitive.ObjectID) models.HistoryEntry {
	return models.HistoryEntry{
		ID:        primitive.NewObjectID(),
		UserID:    "tech-1",
		Tipo:      models.HistoryTechnicianUpdate,
		MediaID:   mediaID,
		CreatedAt: timelineBase.Add(offset),
	}
}

func mediaAt(offset time.Duration) models.MediaItem {
	return models.MediaItem{
		ID:         primitive.NewObjectID(),
		UploadedBy: "tech-1",
		Tipo:       models.MediaFoto,
		URL:        "/media/photo/x.jpg",
		CreatedAt:  timelineBase.Add(offset),
	}
}

func TestBuildTimelineSortsAscending(t *testing.T) {
	history := []models.HistoryEntry{
		historyAt(2*time.Hour, nil),
		historyAt(0, nil),
	}
	media := []models.MediaItem{mediaAt(time.Hour)}

	items := BuildTimeline(history, media)

	require.Len(t, items, 3)
	for i := 1; i < len(items); i++ {
		assert.False(t, items[i].Timestamp.Before(items[i-1].Timestamp))
	}
	assert.Equal(t, TimelineHistory, items[0].Kind)
	assert.Equal(t, TimelineMedia, items[1].Kind)
	assert.Equal(t, TimelineHistory, items[2].Kind)
}

func TestBuildTimelineNoDuplicateMedia(t *testing.T) {
	m := mediaAt(time.Minute)
	history := []models.HistoryEntry{historyAt(time.Minute, &m.ID)}

	items := BuildTimeline(history, []models.MediaItem{m})

	require.Len(t, items, 1)
	assert.Equal(t, TimelineHistory, items[0].Kind)
	require.NotNil(t, items[0].Media)
	assert.Equal(t, m.ID, items[0].Media.ID)
}

func TestBuildTimelineUnreferencedMediaAppearsOnce(t *testing.T) {
	m := mediaAt(30 * time.Minute)
	history := []models.HistoryEntry{
		historyAt(0, nil),
		historyAt(time.Hour, nil),
	}

	items := BuildTimeline(history, []models.MediaItem{m})

	require.Len(t, items, 3)
	assert.Equal(t, TimelineMedia, items[1].Kind)
	assert.Equal(t, m.ID, items[1].Media.ID)
}

func TestBuildTimelineIdempotent(t *testing.T) {
	ref := mediaAt(10 * time.Minute)
	history := []models.HistoryEntry{
		historyAt(0, nil),
		historyAt(10*time.Minute, &ref.ID),
	}
	media := []models.MediaItem{ref, mediaAt(5 * time.Minute)}

	first := BuildTimeline(history, media)
	second := BuildTimeline(history, media)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Kind, second[i].Kind)
		assert.Equal(t, first[i].Timestamp, second[i].Timestamp)
		if first[i].History != nil {
			assert.Equal(t, first[i].History.ID, second[i].History.ID)
		}
		if first[i].Media != nil {
			assert.Equal(t, first[i].Media.ID, second[i].Media.ID)
		}
	}
}

func TestBuildTimelineTieBreakHistoryFirst(t *testing.T) {
	// Same timestamp: history entries keep their retrieval order and come
	// ahead of unreferenced media.
	h1 := historyAt(0, nil)
	h2 := historyAt(0, nil)
	m := mediaAt(0)

	items := BuildTimeline([]models.HistoryEntry{h1, h2}, []models.MediaItem{m})

	require.Len(t, items, 3)
	assert.Equal(t, h1.ID, items[0].History.ID)
	assert.Equal(t, h2.ID, items[1].History.ID)
	assert.Equal(t, TimelineMedia, items[2].Kind)
}

func TestBuildTimelineEmptyInputs(t *testing.T) {
	assert.Empty(t, BuildTimeline(nil, nil))
}

// Full walk of the report lifecycle as seen through the timeline: create,
// status change, photo upload, photo deletion.
func TestTimelineLifecycleScenario(t *testing.T) {
	reportID := primitive.NewObjectID()
	created := models.HistoryEntry{
		ID:          primitive.NewObjectID(),
		ReportID:    reportID,
		UserID:      "admin-1",
		Tipo:        models.HistoryStatusChange,
		EstadoNuevo: models.StatusPending,
		CreatedAt:   timelineBase,
	}
	statusChange := models.HistoryEntry{
		ID:             primitive.NewObjectID(),
		ReportID:       reportID,
		UserID:         "tech-1",
		Tipo:           models.HistoryStatusChange,
		EstadoAnterior: models.StatusPending,
		EstadoNuevo:    models.StatusDone,
		CreatedAt:      timelineBase.Add(time.Hour),
	}
	photo := models.MediaItem{
		ID:         primitive.NewObjectID(),
		ReportID:   reportID,
		UploadedBy: "tech-1",
		Tipo:       models.MediaFoto,
		URL:        "/media/photo/foto_1.jpg",
		CreatedAt:  timelineBase.Add(2 * time.Hour),
	}
	upload := models.HistoryEntry{
		ID:         primitive.NewObjectID(),
		ReportID:   reportID,
		UserID:     "tech-1",
		Tipo:       models.HistoryTechnicianUpdate,
		Comentario: "Photo uploaded",
		MediaID:    &photo.ID,
		CreatedAt:  timelineBase.Add(2 * time.Hour),
	}

	history := []models.HistoryEntry{created, statusChange, upload}
	items := BuildTimeline(history, []models.MediaItem{photo})

	require.Len(t, items, 3)
	assert.Equal(t, created.ID, items[0].History.ID)
	assert.Equal(t, models.StatusDone, items[1].History.EstadoNuevo)
	require.NotNil(t, items[2].Media)
	assert.Equal(t, photo.ID, items[2].Media.ID)

	// Delete the photo: media record gone, reference cleared, entry kept.
	upload.MediaID = nil
	history[2] = upload
	items = BuildTimeline(history, nil)

	require.Len(t, items, 3)
	assert.Equal(t, upload.ID, items[2].History.ID)
	assert.Nil(t, items[2].Media)
}
