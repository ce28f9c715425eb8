package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/artpar/skybite/internal/core/auth"
	coredispatch "github.com/artpar/skybite/internal/core/dispatch"
	"github.com/artpar/skybite/internal/core/domain"
	"github.com/artpar/skybite/internal/shell/api/openapi"
	"github.com/artpar/skybite/internal/shell/api/resources"
	"github.com/artpar/skybite/internal/shell/dispatch"
	"github.com/artpar/skybite/internal/shell/orders"
	"github.com/gorilla/mux"
)

// maxQRSize caps the handoff.png size parameter.
const maxQRSize = 1024

// =============================================================================
// Order Action Handlers
// =============================================================================

// OrderHandlers serves order lifecycle actions, the hand-off QR code and
// drone dispatch.
type OrderHandlers struct {
	orders   *orders.Service
	dispatch *dispatch.Service
	logger   *slog.Logger
}

// NewOrderHandlers creates the order action handlers.
func NewOrderHandlers(o *orders.Service, d *dispatch.Service, logger *slog.Logger) *OrderHandlers {
	return &OrderHandlers{orders: o, dispatch: d, logger: logger}
}

// RegisterRoutes registers the order action routes on the /api subrouter.
func (h *OrderHandlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/orders/{id}/transitions", h.Transition).Methods("POST")
	r.HandleFunc("/v1/orders/{id}/confirm", h.action(h.orders.Confirm)).Methods("POST")
	r.HandleFunc("/v1/orders/{id}/reject", h.action(h.orders.Reject)).Methods("POST")
	r.HandleFunc("/v1/orders/{id}/cancel", h.action(h.orders.Cancel)).Methods("POST")
	r.HandleFunc("/v1/orders/{id}/complete", h.action(h.orders.Complete)).Methods("POST")
	r.HandleFunc("/v1/orders/{id}/handoff.png", h.HandoffQR).Methods("GET")
	r.HandleFunc("/v1/orders/{id}/events", h.Events).Methods("GET")
	r.HandleFunc("/v1/orders/{id}/drone-candidates", h.Candidates).Methods("GET")
	r.HandleFunc("/v1/orders/{id}/assign-drone", h.AssignDrone).Methods("POST")
	r.HandleFunc("/v1/drones/{id}/telemetry", h.Telemetry).Methods("PUT")
}

type transitionRequest struct {
	Status domain.OrderStatus `json:"status"`
}

type assignDroneRequest struct {
	DroneID string `json:"drone_id,omitempty"`
}

type assignmentResponse struct {
	Order     resources.Order        `json:"order"`
	Candidate coredispatch.Candidate `json:"candidate"`
}

func orderActions() []openapi.ActionInfo {
	actions := []openapi.ActionInfo{
		{Method: "POST", Path: "/api/v1/orders/{id}/transitions", Summary: "Move an order to another status", Tag: "Orders",
			Request: transitionRequest{}, Response: resources.Order{}},
		{Method: "GET", Path: "/api/v1/orders/{id}/handoff.png", Summary: "Hand-off QR code", Tag: "Orders",
			ContentType: "image/png", Query: []string{"size"}},
		{Method: "GET", Path: "/api/v1/orders/{id}/events", Summary: "Order event history", Tag: "Orders",
			Response: domain.OrderEvent{}},
		{Method: "GET", Path: "/api/v1/orders/{id}/drone-candidates", Summary: "Rank drones for an order", Tag: "Dispatch",
			Response: coredispatch.RankResult{}},
		{Method: "POST", Path: "/api/v1/orders/{id}/assign-drone", Summary: "Assign a drone and start shipping", Tag: "Dispatch",
			Request: assignDroneRequest{}, Response: assignmentResponse{}},
		{Method: "PUT", Path: "/api/v1/drones/{id}/telemetry", Summary: "Ingest a drone telemetry report", Tag: "Dispatch",
			Request: domain.Telemetry{}, Response: resources.Drone{}},
	}
	for _, verb := range []string{"confirm", "reject", "cancel", "complete"} {
		actions = append(actions, openapi.ActionInfo{
			Method: "POST", Path: "/api/v1/orders/{id}/" + verb, Summary: "Shortcut transition: " + verb,
			Tag: "Orders", Response: resources.Order{},
		})
	}
	return actions
}

// Transition applies a status change requested by the caller.
func (h *OrderHandlers) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Status == "" {
		writeError(w, r, h.logger, domain.NewValidationError("status", "status is required"))
		return
	}

	ctx := r.Context()
	order, err := h.orders.Transition(ctx, auth.FromContext(ctx), mux.Vars(r)["id"], req.Status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, orderDocument(order))
}

// action adapts a fixed-target transition into a handler.
func (h *OrderHandlers) action(apply func(context.Context, auth.Context, string) (*domain.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		order, err := apply(ctx, auth.FromContext(ctx), mux.Vars(r)["id"])
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeData(w, http.StatusOK, orderDocument(order))
	}
}

// HandoffQR writes the pickup QR code as PNG.
func (h *OrderHandlers) HandoffQR(w http.ResponseWriter, r *http.Request) {
	size := orders.DefaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > maxQRSize {
			writeError(w, r, h.logger, domain.NewValidationError("size", "size must be between 64 and 1024"))
			return
		}
		size = n
	}

	ctx := r.Context()
	png, err := h.orders.HandoffQR(ctx, auth.FromContext(ctx), mux.Vars(r)["id"], size)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// Events returns the order's event history, oldest first.
func (h *OrderHandlers) Events(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events, err := h.orders.Events(ctx, auth.FromContext(ctx), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if events == nil {
		events = []domain.OrderEvent{}
	}
	writeData(w, http.StatusOK, events)
}

// Candidates ranks the fleet for an order.
func (h *OrderHandlers) Candidates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.dispatch.Candidates(ctx, auth.FromContext(ctx), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

// AssignDrone attaches a drone to a confirmed order. Without drone_id the
// top-ranked candidate is used.
func (h *OrderHandlers) AssignDrone(w http.ResponseWriter, r *http.Request) {
	var req assignDroneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ctx := r.Context()
	orderID := mux.Vars(r)["id"]
	assignment, err := h.dispatch.AssignDrone(ctx, auth.FromContext(ctx), orderID, req.DroneID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, assignmentResponse{
		Order:     resources.OrderFromDomain(assignment.Order),
		Candidate: assignment.Candidate,
	})
}

// Telemetry records a drone's status, battery and position.
func (h *OrderHandlers) Telemetry(w http.ResponseWriter, r *http.Request) {
	var t domain.Telemetry
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ctx := r.Context()
	drone, err := h.dispatch.UpdateTelemetry(ctx, auth.FromContext(ctx), mux.Vars(r)["id"], t)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, resources.DroneFromDomain(drone))
}
