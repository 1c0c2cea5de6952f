package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"field-service-system/pkg/middleware"
	"field-service-system/pkg/response"
	"field-service-system/services/report-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// createHistoryEntry handles manual entries: admins write ADMIN_NOTE,
// technicians (assigned to the report) write TECHNICIAN_UPDATE.
func (a *app) createHistoryEntry(w http.ResponseWriter, r *http.Request, reportID string) {
	claims, ok := middleware.ClaimsFrom(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var input struct {
		Comentario string `json:"comentario"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	if input.Comentario == "" {
		response.Error(w, http.StatusBadRequest, "comentario is required", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report, ok := a.loadReport(ctx, w, reportID)
	if !ok {
		return
	}

	tipo := models.HistoryTechnicianUpdate
	if claims.IsAdmin() {
		tipo = models.HistoryAdminNote
	} else if !contains(report.TechnicianIDs, claims.UserID) {
		response.Error(w, http.StatusForbidden, "Technician is not assigned to this report", "")
		return
	}

	entry := models.HistoryEntry{
		ID:         primitive.NewObjectID(),
		ReportID:   report.ID,
		UserID:     claims.UserID,
		Tipo:       tipo,
		Comentario: input.Comentario,
		CreatedAt:  time.Now(),
	}

	if _, err := a.history().InsertOne(ctx, entry); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to save history entry", err.Error())
		return
	}

	response.Success(w, http.StatusCreated, "History entry created", entry)
}

// editHistoryComment updates the comment text of a TECHNICIAN_UPDATE entry.
// Only the author may edit; every other kind is immutable.
func (a *app) editHistoryComment(w http.ResponseWriter, r *http.Request, reportID, historyID string) {
	claims, ok := middleware.ClaimsFrom(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var input struct {
		Comentario string `json:"comentario"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	if input.Comentario == "" {
		response.Error(w, http.StatusBadRequest, "comentario is required", "")
		return
	}

	reportObjID, err := primitive.ObjectIDFromHex(reportID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid report ID", err.Error())
		return
	}
	historyObjID, err := primitive.ObjectIDFromHex(historyID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid history ID", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var entry models.HistoryEntry
	if err := a.history().FindOne(ctx, bson.M{"_id": historyObjID, "report_id": reportObjID}).Decode(&entry); err != nil {
		if err == mongo.ErrNoDocuments {
			response.Error(w, http.StatusNotFound, "History entry not found", "")
		} else {
			response.Error(w, http.StatusInternalServerError, "Failed to fetch history entry", err.Error())
		}
		return
	}

	if !canEditHistoryComment(&entry, claims.UserID) {
		response.Error(w, http.StatusForbidden, "Only the author may edit a technician update comment", "")
		return
	}

	if _, err := a.history().UpdateOne(ctx,
		bson.M{"_id": entry.ID},
		bson.M{"$set": bson.M{"comentario": input.Comentario}},
	); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to update history entry", err.Error())
		return
	}

	entry.Comentario = input.Comentario
	response.Success(w, http.StatusOK, "History entry updated", entry)
}
