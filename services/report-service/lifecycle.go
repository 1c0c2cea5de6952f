package main

import (
	"fmt"
	"time"

	"field-service-system/pkg/middleware"
	"field-service-system/services/report-service/models"
)

// ReportPatch is the decoded body of PATCH /api/reports/{id}. Nil pointers
// mean "leave unchanged".
type ReportPatch struct {
	Estado             *string                 `json:"estado"`
	DiagnosticoInicial *string                 `json:"diagnosticoInicial"`
	Causa              *string                 `json:"causa"`
	Acciones           *string                 `json:"acciones"`
	TechnicianIDs      *[]string               `json:"technicianIds"`
	Materiales         *[]models.Material      `json:"materiales"`
	Servicios          *[]models.BilledService `json:"servicios"`
	Facturacion        *string                 `json:"facturacion"`
	Valor              *float64                `json:"valor"`
	AdminComment       *string                 `json:"adminComment"`
}

// applyReportPatch mutates report according to patch and returns the history
// entries the mutation produced. The three entry kinds are independent and
// may all come out of one call. Valor set by a non-admin is silently dropped.
// Line-item lists are replaced wholesale with server-side recomputed totals.
func applyReportPatch(report *models.Report, patch ReportPatch, actor *middleware.UserClaims, now time.Time) []models.HistoryEntry {
	var entries []models.HistoryEntry

	if patch.Estado != nil && *patch.Estado != report.Estado {
		entries = append(entries, models.HistoryEntry{
			ReportID:       report.ID,
			UserID:         actor.UserID,
			Tipo:           models.HistoryStatusChange,
			EstadoAnterior: report.Estado,
			EstadoNuevo:    *patch.Estado,
			Comentario:     fmt.Sprintf("Status changed from %s to %s", report.Estado, *patch.Estado),
			CreatedAt:      now,
		})
		report.Estado = *patch.Estado
	}

	if patch.TechnicianIDs != nil {
		incoming := dedupeIDs(*patch.TechnicianIDs)
		if !sameIDSet(report.TechnicianIDs, incoming) {
			entries = append(entries, models.HistoryEntry{
				ReportID:   report.ID,
				UserID:     actor.UserID,
				Tipo:       models.HistoryTechnicianUpdate,
				Comentario: "Technician assignment updated",
				CreatedAt:  now,
			})
			report.TechnicianIDs = incoming
		}
	}

	if patch.AdminComment != nil && *patch.AdminComment != "" && actor.IsAdmin() {
		entries = append(entries, models.HistoryEntry{
			ReportID:   report.ID,
			UserID:     actor.UserID,
			Tipo:       models.HistoryAdminNote,
			Comentario: *patch.AdminComment,
			CreatedAt:  now,
		})
	}

	if patch.DiagnosticoInicial != nil {
		report.DiagnosticoInicial = *patch.DiagnosticoInicial
	}
	if patch.Causa != nil {
		report.Causa = *patch.Causa
	}
	if patch.Acciones != nil {
		report.Acciones = *patch.Acciones
	}
	if patch.Materiales != nil {
		report.Materiales = normalizeMateriales(*patch.Materiales)
	}
	if patch.Servicios != nil {
		report.Servicios = normalizeServicios(*patch.Servicios)
	}
	if patch.Facturacion != nil {
		report.Facturacion = *patch.Facturacion
	}
	if patch.Valor != nil && actor.IsAdmin() {
		report.Valor = *patch.Valor
	}

	report.UpdatedAt = now
	return entries
}

// dedupeIDs drops duplicate ids preserving first-seen order; assignment
// lists must hold distinct ids.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// sameIDSet compares technician assignments by value, ignoring order.
func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

func normalizeMateriales(items []models.Material) []models.Material {
	out := make([]models.Material, 0, len(items))
	for _, m := range items {
		m.Total = m.Cantidad * m.PrecioUnidad
		out = append(out, m)
	}
	return out
}

func normalizeServicios(items []models.BilledService) []models.BilledService {
	out := make([]models.BilledService, 0, len(items))
	for _, s := range items {
		s.Subtotal = s.Cantidad * s.Precio
		out = append(out, s)
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// canAttachMedia: technicians may only attach evidence to reports they are
// assigned to; admins are exempt.
func canAttachMedia(report *models.Report, actor *middleware.UserClaims) bool {
	if actor.IsAdmin() {
		return true
	}
	return contains(report.TechnicianIDs, actor.UserID)
}

// canDeleteMedia: uploader or admin only.
func canDeleteMedia(media *models.MediaItem, requesterID string, requesterIsAdmin bool) bool {
	return requesterIsAdmin || media.UploadedBy == requesterID
}

// canEditHistoryComment: only TECHNICIAN_UPDATE entries, only by their author.
func canEditHistoryComment(entry *models.HistoryEntry, requesterID string) bool {
	return entry.Tipo == models.HistoryTechnicianUpdate && entry.UserID == requesterID
}

func isValidEstado(s string) bool {
	return s == models.StatusPending || s == models.StatusDone
}

func isValidFacturacion(s string) bool {
	return s == models.BillingBilled || s == models.BillingNotBilled || s == models.BillingPending
}

func isValidMediaTipo(s string) bool {
	return s == models.MediaFoto || s == models.MediaVideo || s == models.MediaAudio
}
