package main

import (
	"testing"
	"time"

	"field-service-system/pkg/middleware"
	"field-service-system/services/report-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func strPtr(s string) *string { return &s }

func f64Ptr(f float64) *float64 { return &f }

func idsPtr(ids []string) *[]string { return &ids }

func adminClaims() *middleware.UserClaims {
	return &middleware.UserClaims{UserID: "admin-1", Role: middleware.RoleAdmin}
}

func technicianClaims(id string) *middleware.UserClaims {
	return &middleware.UserClaims{UserID: id, Role: middleware.RoleTechnician}
}

func pendingReport() *models.Report {
	return &models.Report{
		ID:            primitive.NewObjectID(),
		ClientID:      primitive.NewObjectID(),
		CreatedBy:     "admin-1",
		TechnicianIDs: []string{"tech-1"},
		Estado:        models.StatusPending,
		Facturacion:   models.BillingNotBilled,
		Valor:         models.ValorUnset,
	}
}

func TestPatchStatusChangeAppendsEntry(t *testing.T) {
	report := pendingReport()
	now := time.Now()

	entries := applyReportPatch(report, ReportPatch{Estado: strPtr(models.StatusDone)}, technicianClaims("tech-1"), now)

	require.Len(t, entries, 1)
	assert.Equal(t, models.HistoryStatusChange, entries[0].Tipo)
	assert.Equal(t, models.StatusPending, entries[0].EstadoAnterior)
	assert.Equal(t, models.StatusDone, entries[0].EstadoNuevo)
	assert.Equal(t, report.ID, entries[0].ReportID)
	assert.Equal(t, models.StatusDone, report.Estado)
}

func TestPatchSameStatusAppendsNothing(t *testing.T) {
	report := pendingReport()

	entries := applyReportPatch(report, ReportPatch{Estado: strPtr(models.StatusPending)}, adminClaims(), time.Now())

	assert.Empty(t, entries)
	assert.Equal(t, models.StatusPending, report.Estado)
}

func TestPatchTechnicianChangeAppendsEntry(t *testing.T) {
	report := pendingReport()

	entries := applyReportPatch(report, ReportPatch{TechnicianIDs: idsPtr([]string{"tech-1", "tech-2"})}, adminClaims(), time.Now())

	require.Len(t, entries, 1)
	assert.Equal(t, models.HistoryTechnicianUpdate, entries[0].Tipo)
	assert.Equal(t, []string{"tech-1", "tech-2"}, report.TechnicianIDs)
}

func TestPatchSameTechnicianSetAppendsNothing(t *testing.T) {
	report := pendingReport()
	report.TechnicianIDs = []string{"tech-1", "tech-2"}

	// Same set, different order and a duplicate: not a change.
	entries := applyReportPatch(report, ReportPatch{TechnicianIDs: idsPtr([]string{"tech-2", "tech-1", "tech-2"})}, adminClaims(), time.Now())

	assert.Empty(t, entries)
	assert.Equal(t, []string{"tech-1", "tech-2"}, report.TechnicianIDs)
}

func TestPatchDeduplicatesTechnicians(t *testing.T) {
	report := pendingReport()

	entries := applyReportPatch(report, ReportPatch{TechnicianIDs: idsPtr([]string{"tech-2", "tech-2", "", "tech-3"})}, adminClaims(), time.Now())

	require.Len(t, entries, 1)
	assert.Equal(t, []string{"tech-2", "tech-3"}, report.TechnicianIDs)
}

func TestPatchAdminNote(t *testing.T) {
	report := pendingReport()

	entries := applyReportPatch(report, ReportPatch{AdminComment: strPtr("needs a follow-up visit")}, adminClaims(), time.Now())

	require.Len(t, entries, 1)
	assert.Equal(t, models.HistoryAdminNote, entries[0].Tipo)
	assert.Equal(t, "needs a follow-up visit", entries[0].Comentario)
}

func TestPatchAdminNoteIgnoredForTechnician(t *testing.T) {
	report := pendingReport()

	entries := applyReportPatch(report, ReportPatch{AdminComment: strPtr("sneaky note")}, technicianClaims("tech-1"), time.Now())

	assert.Empty(t, entries)
}

func TestPatchCoOccurringChangesProduceIndependentEntries(t *testing.T) {
	report := pendingReport()

	entries := applyReportPatch(report, ReportPatch{
		Estado:        strPtr(models.StatusDone),
		TechnicianIDs: idsPtr([]string{"tech-9"}),
		AdminComment:  strPtr("closing out"),
	}, adminClaims(), time.Now())

	require.Len(t, entries, 3)
	assert.Equal(t, models.HistoryStatusChange, entries[0].Tipo)
	assert.Equal(t, models.HistoryTechnicianUpdate, entries[1].Tipo)
	assert.Equal(t, models.HistoryAdminNote, entries[2].Tipo)
}

func TestPatchValorAdminOnly(t *testing.T) {
	report := pendingReport()

	applyReportPatch(report, ReportPatch{Valor: f64Ptr(1250.50)}, technicianClaims("tech-1"), time.Now())
	assert.Equal(t, float64(models.ValorUnset), report.Valor, "valor from a non-admin is silently ignored")

	applyReportPatch(report, ReportPatch{Valor: f64Ptr(1250.50)}, adminClaims(), time.Now())
	assert.Equal(t, 1250.50, report.Valor)
}

func TestPatchRecomputesLineItemTotals(t *testing.T) {
	report := pendingReport()
	materiales := []models.Material{
		{Nombre: "Cable", Cantidad: 3, PrecioUnidad: 12.5, Total: 999},
	}
	servicios := []models.BilledService{
		{PrecioID: primitive.NewObjectID(), Nombre: "Inspection", Precio: 80, Cantidad: 2, Subtotal: 1},
	}

	applyReportPatch(report, ReportPatch{Materiales: &materiales, Servicios: &servicios}, adminClaims(), time.Now())

	require.Len(t, report.Materiales, 1)
	assert.Equal(t, 37.5, report.Materiales[0].Total)
	require.Len(t, report.Servicios, 1)
	assert.Equal(t, 160.0, report.Servicios[0].Subtotal)
}

func TestPatchUntouchedFieldsSurvive(t *testing.T) {
	report := pendingReport()
	report.DiagnosticoInicial = "compressor failure"
	report.Causa = "worn bearing"

	applyReportPatch(report, ReportPatch{Acciones: strPtr("replaced bearing")}, adminClaims(), time.Now())

	assert.Equal(t, "compressor failure", report.DiagnosticoInicial)
	assert.Equal(t, "worn bearing", report.Causa)
	assert.Equal(t, "replaced bearing", report.Acciones)
}

func TestCanAttachMedia(t *testing.T) {
	report := pendingReport()

	assert.True(t, canAttachMedia(report, technicianClaims("tech-1")))
	assert.False(t, canAttachMedia(report, technicianClaims("tech-2")))
	assert.True(t, canAttachMedia(report, adminClaims()))
}

func TestCanDeleteMedia(t *testing.T) {
	media := &models.MediaItem{UploadedBy: "tech-1"}

	assert.True(t, canDeleteMedia(media, "tech-1", false))
	assert.True(t, canDeleteMedia(media, "someone-else", true))
	assert.False(t, canDeleteMedia(media, "someone-else", false))
}

func TestCanEditHistoryComment(t *testing.T) {
	techUpdate := &models.HistoryEntry{Tipo: models.HistoryTechnicianUpdate, UserID: "tech-1"}
	statusChange := &models.HistoryEntry{Tipo: models.HistoryStatusChange, UserID: "tech-1"}
	adminNote := &models.HistoryEntry{Tipo: models.HistoryAdminNote, UserID: "admin-1"}

	assert.True(t, canEditHistoryComment(techUpdate, "tech-1"))
	assert.False(t, canEditHistoryComment(techUpdate, "tech-2"))
	assert.False(t, canEditHistoryComment(statusChange, "tech-1"))
	assert.False(t, canEditHistoryComment(adminNote, "admin-1"))
}

func TestStatusValidation(t *testing.T) {
	assert.True(t, isValidEstado(models.StatusPending))
	assert.True(t, isValidEstado(models.StatusDone))
	assert.False(t, isValidEstado("IN_PROGRESS"))

	assert.True(t, isValidFacturacion(models.BillingBilled))
	assert.True(t, isValidFacturacion(models.BillingNotBilled))
	assert.True(t, isValidFacturacion(models.BillingPending))
	assert.False(t, isValidFacturacion("PAID"))
}
