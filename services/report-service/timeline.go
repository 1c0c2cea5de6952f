package main

import (
	"sort"
	"time"

	"field-service-system/services/report-service/models"
)

// Timeline item kinds.
const (
	TimelineHistory = "history"
	TimelineMedia   = "media"
)

// TimelineItem is one element of the reconciled activity view. History items
// carry their entry plus, when the entry references an upload, the resolved
// media inline. Media items represent uploads no history entry points at.
type TimelineItem struct {
	Kind      string               `json:"kind"`
	Timestamp time.Time            `json:"timestamp"`
	History   *models.HistoryEntry `json:"history,omitempty"`
	Media     *models.MediaItem    `json:"media,omitempty"`
}

// BuildTimeline merges a report's history and media into one chronologically
// ascending view without presenting any media item twice. It is a pure
// read-time computation: same inputs, same output.
//
// Ordering: timestamp ascending (the timeline reads as an incremental log,
// unlike the raw report endpoint which sorts history newest-first). Equal
// timestamps keep history entries ahead of unreferenced media, each group in
// store-retrieval order, so output is deterministic.
func BuildTimeline(history []models.HistoryEntry, media []models.MediaItem) []TimelineItem {
	byID := make(map[string]*models.MediaItem, len(media))
	for i := range media {
		byID[media[i].ID.Hex()] = &media[i]
	}

	referenced := make(map[string]bool, len(history))
	for _, h := range history {
		if h.MediaID != nil {
			referenced[h.MediaID.Hex()] = true
		}
	}

	items := make([]TimelineItem, 0, len(history)+len(media))
	for i := range history {
		h := history[i]
		item := TimelineItem{
			Kind:      TimelineHistory,
			Timestamp: h.CreatedAt,
			History:   &h,
		}
		if h.MediaID != nil {
			item.Media = byID[h.MediaID.Hex()]
		}
		items = append(items, item)
	}
	for i := range media {
		m := media[i]
		if referenced[m.ID.Hex()] {
			continue
		}
		items = append(items, TimelineItem{
			Kind:      TimelineMedia,
			Timestamp: m.CreatedAt,
			Media:     &m,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	return items
}
