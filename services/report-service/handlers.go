package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"field-service-system/pkg/middleware"
	"field-service-system/pkg/response"
	authmodels "field-service-system/services/auth-service/models"
	"field-service-system/services/report-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReportListItem is one list row with client and technician data joined in.
type ReportListItem struct {
	models.Report
	Client      *models.Client    `json:"client,omitempty"`
	Technicians []authmodels.User `json:"technicians"`
}

// ReportDetail is the full report view: joined client, creator, technicians,
// media, and history (history newest-first at this endpoint; the timeline
// endpoint sorts the other way).
type ReportDetail struct {
	models.Report
	Client      *models.Client        `json:"client,omitempty"`
	Creator     *authmodels.User      `json:"creator,omitempty"`
	Technicians []authmodels.User     `json:"technicians"`
	Media       []models.MediaItem    `json:"media"`
	History     []models.HistoryEntry `json:"history"`
}

func (a *app) reportsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listReports(w, r)
	case http.MethodPost:
		a.createReport(w, r)
	default:
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

func (a *app) createReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var input struct {
		ClientID           string   `json:"clientId"`
		TechnicianIDs      []string `json:"technicianIds"`
		DiagnosticoInicial string   `json:"diagnosticoInicial"`
		Causa              string   `json:"causa"`
		Acciones           string   `json:"acciones"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	if input.ClientID == "" {
		response.Error(w, http.StatusBadRequest, "clientId is required", "")
		return
	}

	clientID, err := primitive.ObjectIDFromHex(input.ClientID)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid client ID", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var existing models.Client
	if err := a.clients().FindOne(ctx, bson.M{"_id": clientID}).Decode(&existing); err != nil {
		if err == mongo.ErrNoDocuments {
			response.Error(w, http.StatusNotFound, "Client not found", "")
		} else {
			response.Error(w, http.StatusInternalServerError, "Failed to look up client", err.Error())
		}
		return
	}

	now := time.Now()
	report := models.Report{
		ID:                 primitive.NewObjectID(),
		ClientID:           clientID,
		CreatedBy:          claims.UserID,
		TechnicianIDs:      dedupeIDs(input.TechnicianIDs),
		DiagnosticoInicial: input.DiagnosticoInicial,
		Causa:              input.Causa,
		Acciones:           input.Acciones,
		Estado:             models.StatusPending,
		Materiales:         []models.Material{},
		Servicios:          []models.BilledService{},
		Facturacion:        models.BillingNotBilled,
		Valor:              models.ValorUnset,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if _, err := a.reports().InsertOne(ctx, report); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to save report", err.Error())
		return
	}

	// Report first, history second. Not atomic: a crash in between leaves the
	// report without its creation entry (accepted inconsistency window).
	entry := models.HistoryEntry{
		ReportID:    report.ID,
		UserID:      claims.UserID,
		Tipo:        models.HistoryStatusChange,
		EstadoNuevo: models.StatusPending,
		Comentario:  "Report created",
		CreatedAt:   now,
	}
	if _, err := a.history().InsertOne(ctx, entry); err != nil {
		middleware.LogError(middleware.GetTraceID(r), "Failed to append creation history entry", err)
	}

	a.publishReportEvent(models.ReportEvent{
		Type:          models.EventReportCreated,
		ReportID:      report.ID.Hex(),
		ClientID:      report.ClientID.Hex(),
		Estado:        report.Estado,
		TechnicianIDs: report.TechnicianIDs,
		ActorID:       claims.UserID,
		CreatedAt:     now,
	})

	response.Success(w, http.StatusCreated, "Report created successfully", report)
}

func (a *app) listReports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if v := r.URL.Query().Get("clientId"); v != "" {
		clientID, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid client ID", err.Error())
			return
		}
		filter["client_id"] = clientID
	}
	if v := r.URL.Query().Get("estado"); v != "" {
		if !isValidEstado(v) {
			response.Error(w, http.StatusBadRequest, "Invalid estado", "")
			return
		}
		filter["estado"] = v
	}
	if v := r.URL.Query().Get("technicianId"); v != "" {
		filter["technician_ids"] = v
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := a.reports().Find(ctx, filter, opts)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to fetch reports", err.Error())
		return
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to decode reports", err.Error())
		return
	}

	clientIDs := make([]primitive.ObjectID, 0, len(reports))
	userIDs := make([]string, 0)
	for _, rep := range reports {
		clientIDs = append(clientIDs, rep.ClientID)
		userIDs = append(userIDs, rep.TechnicianIDs...)
	}

	clientsByID, err := a.fetchClients(ctx, clientIDs)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to fetch clients", err.Error())
		return
	}
	usersByID := a.fetchUsers(userIDs)

	items := make([]ReportListItem, 0, len(reports))
	for _, rep := range reports {
		items = append(items, ReportListItem{
			Report:      rep,
			Client:      clientsByID[rep.ClientID.Hex()],
			Technicians: pickUsers(usersByID, rep.TechnicianIDs),
		})
	}

	response.Success(w, http.StatusOK, "Reports fetched successfully", items)
}

func (a *app) getReportByID(w http.ResponseWriter, r *http.Request, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report, ok := a.loadReport(ctx, w, id)
	if !ok {
		return
	}

	media, err := a.findReportMedia(ctx, report.ID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to fetch media", err.Error())
		return
	}

	// Newest-first here: this endpoint is the raw audit view. The narrative
	// timeline endpoint sorts oldest-first instead.
	histOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := a.history().Find(ctx, bson.M{"report_id": report.ID}, histOpts)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to fetch history", err.Error())
		return
	}
	defer cursor.Close(ctx)

	history := []models.HistoryEntry{}
	if err := cursor.All(ctx, &history); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to decode history", err.Error())
		return
	}

	clientsByID, err := a.fetchClients(ctx, []primitive.ObjectID{report.ClientID})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to fetch client", err.Error())
		return
	}
	usersByID := a.fetchUsers(append([]string{report.CreatedBy}, report.TechnicianIDs...))

	detail := ReportDetail{
		Report:      *report,
		Client:      clientsByID[report.ClientID.Hex()],
		Technicians: pickUsers(usersByID, report.TechnicianIDs),
		Media:       media,
		History:     history,
	}
	if creator, ok := usersByID[report.CreatedBy]; ok {
		detail.Creator = &creator
	}

	response.Success(w, http.StatusOK, "Report fetched successfully", detail)
}

func (a *app) updateReport(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := middleware.ClaimsFrom(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var patch ReportPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	if patch.Estado != nil && !isValidEstado(*patch.Estado) {
		response.Error(w, http.StatusBadRequest, "Invalid estado", "")
		return
	}
	if patch.Facturacion != nil && !isValidFacturacion(*patch.Facturacion) {
		response.Error(w, http.StatusBadRequest, "Invalid facturacion", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report, ok := a.loadReport(ctx, w, id)
	if !ok {
		return
	}

	if patch.Servicios != nil {
		resolved, err := a.resolveServicios(ctx, *patch.Servicios)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid servicios", err.Error())
			return
		}
		patch.Servicios = &resolved
	}

	oldEstado := report.Estado
	entries := applyReportPatch(report, patch, claims, time.Now())

	if _, err := a.reports().ReplaceOne(ctx, bson.M{"_id": report.ID}, report); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to update report", err.Error())
		return
	}

	if len(entries) > 0 {
		docs := make([]interface{}, len(entries))
		for i := range entries {
			docs[i] = entries[i]
		}
		if _, err := a.history().InsertMany(ctx, docs); err != nil {
			middleware.LogError(middleware.GetTraceID(r), "Failed to append history entries", err)
		}
	}

	for _, e := range entries {
		if e.Tipo == models.HistoryStatusChange {
			a.publishReportEvent(models.ReportEvent{
				Type:           models.EventReportStatusChanged,
				ReportID:       report.ID.Hex(),
				ClientID:       report.ClientID.Hex(),
				Estado:         report.Estado,
				EstadoAnterior: oldEstado,
				TechnicianIDs:  report.TechnicianIDs,
				ActorID:        claims.UserID,
				CreatedAt:      e.CreatedAt,
			})
		}
	}

	response.Success(w, http.StatusOK, "Report updated", report)
}

func (a *app) getReportTimeline(w http.ResponseWriter, r *http.Request, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	report, ok := a.loadReport(ctx, w, id)
	if !ok {
		return
	}

	history, err := a.findReportHistory(ctx, report.ID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to fetch history", err.Error())
		return
	}
	media, err := a.findReportMedia(ctx, report.ID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to fetch media", err.Error())
		return
	}

	response.Success(w, http.StatusOK, "Timeline fetched successfully", BuildTimeline(history, media))
}

// loadReport resolves id and writes the error response itself when the
// report cannot be loaded.
func (a *app) loadReport(ctx context.Context, w http.ResponseWriter, id string) (*models.Report, bool) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid report ID", err.Error())
		return nil, false
	}

	var report models.Report
	if err := a.reports().FindOne(ctx, bson.M{"_id": objID}).Decode(&report); err != nil {
		if err == mongo.ErrNoDocuments {
			response.Error(w, http.StatusNotFound, "Report not found", "")
		} else {
			response.Error(w, http.StatusInternalServerError, "Failed to fetch report", err.Error())
		}
		return nil, false
	}
	return &report, true
}

// findReportHistory returns all history entries for a report in insertion
// order (_id ascending). Full scan by report id; no pagination at this scale.
func (a *app) findReportHistory(ctx context.Context, reportID primitive.ObjectID) ([]models.HistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := a.history().Find(ctx, bson.M{"report_id": reportID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []models.HistoryEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// findReportMedia returns all media for a report in insertion order.
func (a *app) findReportMedia(ctx context.Context, reportID primitive.ObjectID) ([]models.MediaItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := a.media().Find(ctx, bson.M{"report_id": reportID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []models.MediaItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (a *app) fetchClients(ctx context.Context, ids []primitive.ObjectID) (map[string]*models.Client, error) {
	out := make(map[string]*models.Client, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := a.clients().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var clients []models.Client
	if err := cursor.All(ctx, &clients); err != nil {
		return nil, err
	}
	for i := range clients {
		out[clients[i].ID.Hex()] = &clients[i]
	}
	return out, nil
}

// fetchUsers looks up accounts in the auth database for joined views.
// Lookup failures degrade the join, not the request.
func (a *app) fetchUsers(ids []string) map[string]authmodels.User {
	out := make(map[string]authmodels.User)
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return out
	}

	var users []authmodels.User
	if err := a.users.Where("id IN ?", ids).Find(&users).Error; err != nil {
		middleware.LogError("", "Failed to fetch users for join", err)
		return out
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out
}

func pickUsers(byID map[string]authmodels.User, ids []string) []authmodels.User {
	out := make([]authmodels.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

// resolveServicios fills denormalized nombre/precio from the price list.
// Unknown price ids are a validation error.
func (a *app) resolveServicios(ctx context.Context, items []models.BilledService) ([]models.BilledService, error) {
	out := make([]models.BilledService, 0, len(items))
	for _, s := range items {
		var price models.PriceItem
		if err := a.prices().FindOne(ctx, bson.M{"_id": s.PrecioID}).Decode(&price); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, errPriceNotFound(s.PrecioID.Hex())
			}
			return nil, err
		}
		s.Nombre = price.Nombre
		s.Precio = price.Precio
		out = append(out, s)
	}
	return out, nil
}

type errPriceNotFound string

func (e errPriceNotFound) Error() string { return "price item not found: " + string(e) }
