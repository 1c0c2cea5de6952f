package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"field-service-system/pkg/response"
	"field-service-system/services/report-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (a *app) clientsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listClients(w, r)
	case http.MethodPost:
		a.createClient(w, r)
	default:
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

func (a *app) createClient(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Nombre    string `json:"nombre"`
		Email     string `json:"email"`
		Telefono  string `json:"telefono"`
		Direccion string `json:"direccion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	if input.Nombre == "" {
		response.Error(w, http.StatusBadRequest, "nombre is required", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now()
	client := models.Client{
		ID:        primitive.NewObjectID(),
		Nombre:    input.Nombre,
		Email:     input.Email,
		Telefono:  input.Telefono,
		Direccion: input.Direccion,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := a.clients().InsertOne(ctx, client); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to save client", err.Error())
		return
	}

	response.Success(w, http.StatusCreated, "Client created", client)
}

func (a *app) listClients(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "nombre", Value: 1}})
	cursor, err := a.clients().Find(ctx, bson.M{}, opts)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to fetch clients", err.Error())
		return
	}
	defer cursor.Close(ctx)

	clients := []models.Client{}
	if err := cursor.All(ctx, &clients); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to decode clients", err.Error())
		return
	}

	response.Success(w, http.StatusOK, "Clients fetched successfully", clients)
}

func (a *app) clientDetailHandler(w http.ResponseWriter, r *http.Request) {
	id := trimPathID(r.URL.Path, "/api/clients/")
	if id == "" {
		response.Error(w, http.StatusBadRequest, "Missing client ID", "")
		return
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid client ID", err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getClient(w, r, objID)
	case http.MethodPut:
		a.updateClient(w, r, objID)
	case http.MethodDelete:
		a.deleteClient(w, r, objID)
	default:
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

func (a *app) getClient(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var client models.Client
	if err := a.clients().FindOne(ctx, bson.M{"_id": id}).Decode(&client); err != nil {
		if err == mongo.ErrNoDocuments {
			response.Error(w, http.StatusNotFound, "Client not found", "")
		} else {
			response.Error(w, http.StatusInternalServerError, "Failed to fetch client", err.Error())
		}
		return
	}
	response.Success(w, http.StatusOK, "Client fetched successfully", client)
}

func (a *app) updateClient(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) {
	var input struct {
		Nombre    *string `json:"nombre"`
		Email     *string `json:"email"`
		Telefono  *string `json:"telefono"`
		Direccion *string `json:"direccion"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}

	set := bson.M{"updated_at": time.Now()}
	if input.Nombre != nil {
		set["nombre"] = *input.Nombre
	}
	if input.Email != nil {
		set["email"] = *input.Email
	}
	if input.Telefono != nil {
		set["telefono"] = *input.Telefono
	}
	if input.Direccion != nil {
		set["direccion"] = *input.Direccion
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := a.clients().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to update client", err.Error())
		return
	}
	if result.MatchedCount == 0 {
		response.Error(w, http.StatusNotFound, "Client not found", "")
		return
	}
	response.Success(w, http.StatusOK, "Client updated", nil)
}

func (a *app) deleteClient(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := a.clients().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to delete client", err.Error())
		return
	}
	if result.DeletedCount == 0 {
		response.Error(w, http.StatusNotFound, "Client not found", "")
		return
	}
	response.Success(w, http.StatusOK, "Client deleted", nil)
}

func (a *app) pricesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPrices(w, r)
	case http.MethodPost:
		a.createPrice(w, r)
	default:
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

func (a *app) createPrice(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Nombre string  `json:"nombre"`
		Precio float64 `json:"precio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	if input.Nombre == "" {
		response.Error(w, http.StatusBadRequest, "nombre is required", "")
		return
	}
	if input.Precio < 0 {
		response.Error(w, http.StatusBadRequest, "precio must not be negative", "")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now()
	price := models.PriceItem{
		ID:        primitive.NewObjectID(),
		Nombre:    input.Nombre,
		Precio:    input.Precio,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := a.prices().InsertOne(ctx, price); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to save price item", err.Error())
		return
	}

	response.Success(w, http.StatusCreated, "Price item created", price)
}

func (a *app) listPrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "nombre", Value: 1}})
	cursor, err := a.prices().Find(ctx, bson.M{}, opts)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to fetch prices", err.Error())
		return
	}
	defer cursor.Close(ctx)

	prices := []models.PriceItem{}
	if err := cursor.All(ctx, &prices); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to decode prices", err.Error())
		return
	}

	response.Success(w, http.StatusOK, "Prices fetched successfully", prices)
}

func (a *app) priceDetailHandler(w http.ResponseWriter, r *http.Request) {
	id := trimPathID(r.URL.Path, "/api/prices/")
	if id == "" {
		response.Error(w, http.StatusBadRequest, "Missing price ID", "")
		return
	}
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid price ID", err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getPrice(w, r, objID)
	case http.MethodPut:
		a.updatePrice(w, r, objID)
	case http.MethodDelete:
		a.deletePrice(w, r, objID)
	default:
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
}

func (a *app) getPrice(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var price models.PriceItem
	if err := a.prices().FindOne(ctx, bson.M{"_id": id}).Decode(&price); err != nil {
		if err == mongo.ErrNoDocuments {
			response.Error(w, http.StatusNotFound, "Price item not found", "")
		} else {
			response.Error(w, http.StatusInternalServerError, "Failed to fetch price item", err.Error())
		}
		return
	}
	response.Success(w, http.StatusOK, "Price item fetched successfully", price)
}

// updatePrice renames or reprices a list item. Line items on existing reports
// keep their copied nombre/precio; the copy is not re-synced on rename.
func (a *app) updatePrice(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) {
	var input struct {
		Nombre *string  `json:"nombre"`
		Precio *float64 `json:"precio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}

	set := bson.M{"updated_at": time.Now()}
	if input.Nombre != nil {
		set["nombre"] = *input.Nombre
	}
	if input.Precio != nil {
		if *input.Precio < 0 {
			response.Error(w, http.StatusBadRequest, "precio must not be negative", "")
			return
		}
		set["precio"] = *input.Precio
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := a.prices().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to update price item", err.Error())
		return
	}
	if result.MatchedCount == 0 {
		response.Error(w, http.StatusNotFound, "Price item not found", "")
		return
	}
	response.Success(w, http.StatusOK, "Price item updated", nil)
}

func (a *app) deletePrice(w http.ResponseWriter, r *http.Request, id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := a.prices().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to delete price item", err.Error())
		return
	}
	if result.DeletedCount == 0 {
		response.Error(w, http.StatusNotFound, "Price item not found", "")
		return
	}
	response.Success(w, http.StatusOK, "Price item deleted", nil)
}
