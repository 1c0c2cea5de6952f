package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report statuses. Transitions are unrestricted in value, but every change
// must leave a STATUS_CHANGE history entry behind.
const (
	StatusPending = "PENDING"
	StatusDone    = "DONE"
)

// Billing statuses, independent of the report status.
const (
	BillingBilled    = "BILLED"
	BillingNotBilled = "NOT_BILLED"
	BillingPending   = "PENDING"
)

// ValorUnset marks the admin-assigned final value as not set.
const ValorUnset = -1

// Material is one line of materials used on a visit, embedded in the report
// and replaced wholesale on update.
type Material struct {
	Nombre       string  `bson:"nombre" json:"nombre"`
	Cantidad     float64 `bson:"cantidad" json:"cantidad"`
	PrecioUnidad float64 `bson:"precio_unidad" json:"precioUnidad"`
	Total        float64 `bson:"total" json:"total"`
}

// BilledService is one billed line referencing a price-list item. Nombre and
// Precio are copied from the price list at write time and not re-synced.
type BilledService struct {
	PrecioID primitive.ObjectID `bson:"precio_id" json:"precioId"`
	Nombre   string             `bson:"nombre" json:"nombre"`
	Precio   float64            `bson:"precio" json:"precio"`
	Cantidad float64            `bson:"cantidad" json:"cantidad"`
	Subtotal float64            `bson:"subtotal" json:"subtotal"`
}

// Report is one field-service engagement.
type Report struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID           primitive.ObjectID `bson:"client_id" json:"clientId"`
	CreatedBy          string             `bson:"created_by" json:"createdBy"`
	TechnicianIDs      []string           `bson:"technician_ids" json:"technicianIds"`
	DiagnosticoInicial string             `bson:"diagnostico_inicial,omitempty" json:"diagnosticoInicial,omitempty"`
	Causa              string             `bson:"causa,omitempty" json:"causa,omitempty"`
	Acciones           string             `bson:"acciones,omitempty" json:"acciones,omitempty"`
	Estado             string             `bson:"estado" json:"estado"`
	Materiales         []Material         `bson:"materiales" json:"materiales"`
	Servicios          []BilledService    `bson:"servicios" json:"servicios"`
	Facturacion        string             `bson:"facturacion" json:"facturacion"`
	Valor              float64            `bson:"valor" json:"valor"`
	CreatedAt          time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updatedAt"`
}

// History entry kinds.
const (
	HistoryStatusChange     = "STATUS_CHANGE"
	HistoryTechnicianUpdate = "TECHNICIAN_UPDATE"
	HistoryAdminNote        = "ADMIN_NOTE"
)

// HistoryEntry is one activity record on a report. Entries are immutable
// except for the comment (TECHNICIAN_UPDATE, author only) and the media
// reference, which is cleared when the referenced media is deleted.
type HistoryEntry struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ReportID       primitive.ObjectID  `bson:"report_id" json:"reportId"`
	UserID         string              `bson:"user_id" json:"userId"`
	Tipo           string              `bson:"tipo" json:"tipo"`
	EstadoAnterior string              `bson:"estado_anterior,omitempty" json:"estadoAnterior,omitempty"`
	EstadoNuevo    string              `bson:"estado_nuevo,omitempty" json:"estadoNuevo,omitempty"`
	Comentario     string              `bson:"comentario,omitempty" json:"comentario,omitempty"`
	MediaID        *primitive.ObjectID `bson:"media_id,omitempty" json:"mediaId,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"createdAt"`
}

// Media kinds, matching the wire values of the upload form.
const (
	MediaFoto  = "FOTO"
	MediaVideo = "VIDEO"
	MediaAudio = "AUDIO"
)

// MediaItem is one uploaded evidence file.
type MediaItem struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID      primitive.ObjectID `bson:"report_id" json:"reportId"`
	UploadedBy    string             `bson:"uploaded_by" json:"uploadedBy"`
	Tipo          string             `bson:"tipo" json:"tipo"`
	URL           string             `bson:"url" json:"url"`
	Transcripcion string             `bson:"transcripcion,omitempty" json:"transcripcion,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
}

// Client is a service client; reports must reference an existing one.
type Client struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Nombre    string             `bson:"nombre" json:"nombre"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	Telefono  string             `bson:"telefono,omitempty" json:"telefono,omitempty"`
	Direccion string             `bson:"direccion,omitempty" json:"direccion,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

// PriceItem is one price-list entry billed services reference.
type PriceItem struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Nombre    string             `bson:"nombre" json:"nombre"`
	Precio    float64            `bson:"precio" json:"precio"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Report event types published to the notification queue.
const (
	EventReportCreated       = "report.created"
	EventReportStatusChanged = "report.status_changed"
)

// ReportEvent is the message published on report creation and status change.
type ReportEvent struct {
	Type           string    `json:"type"`
	ReportID       string    `json:"report_id"`
	ClientID       string    `json:"client_id"`
	Estado         string    `json:"estado"`
	EstadoAnterior string    `json:"estado_anterior,omitempty"`
	TechnicianIDs  []string  `json:"technician_ids"`
	ActorID        string    `json:"actor_id"`
	CreatedAt      time.Time `json:"created_at"`
}
