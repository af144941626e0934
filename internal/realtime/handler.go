// README: Websocket endpoint: upgrade, join handshake and driver location frames.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tripnow/internal/modules/driver"
	"tripnow/internal/modules/location"
	"tripnow/internal/modules/rider"
	"tripnow/internal/types"
)

const (
	EventJoin           = "join"
	EventJoined         = "joined"
	EventError          = "error"
	EventUpdateLocation = "update-location-captain"

	lookupTimeout = 5 * time.Second
)

type LocationUpdater interface {
	UpdateDriverLocation(ctx context.Context, u location.DriverLocationUpdate) error
}

type Handler struct {
	registry  *Registry
	riders    rider.Store
	drivers   driver.Store
	locations LocationUpdater
	upgrader  websocket.Upgrader
	log       logrus.FieldLogger
}

func NewHandler(registry *Registry, riders rider.Store, drivers driver.Store, locations LocationUpdater, allowedOrigins []string, log logrus.FieldLogger) *Handler {
	return &Handler{
		registry:  registry,
		riders:    riders,
		drivers:   drivers,
		locations: locations,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log.WithField("component", "realtime"),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// session is the per-connection join state. It is only touched from the
// connection's read goroutine.
type session struct {
	client *Client
	handle Handle
	role   Role
	joined bool
}

// ServeWS upgrades the request and serves the connection until it closes.
func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}

	client := newClient(conn, h.log)
	s := &session{client: client}
	go client.writePump()

	client.readPump(func(msg inbound) { h.dispatch(c.Request.Context(), s, msg) })

	if s.joined {
		h.registry.Disconnect(s.handle)
		h.log.WithFields(logrus.Fields{"account_id": s.handle.AccountID, "role": s.role}).Info("client disconnected")
	}
}

func (h *Handler) dispatch(ctx context.Context, s *session, msg inbound) {
	switch msg.Event {
	case EventJoin:
		h.join(ctx, s, msg.Data)
	case EventUpdateLocation:
		h.updateLocation(ctx, s, msg.Data)
	default:
		_ = s.client.Send(Message{Event: EventError, Data: errorPayload("unknown event")})
	}
}

type joinRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (h *Handler) join(ctx context.Context, s *session, data json.RawMessage) {
	var req joinRequest
	if err := json.Unmarshal(data, &req); err != nil || req.UserID == "" {
		_ = s.client.Send(Message{Event: EventError, Data: errorPayload("userId and role are required")})
		return
	}
	role, ok := ParseRole(req.Role)
	if !ok {
		_ = s.client.Send(Message{Event: EventError, Data: errorPayload("unknown role")})
		return
	}
	id := types.ID(req.UserID)

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	if err := h.verifyAccount(lookupCtx, id, role); err != nil {
		h.log.WithError(err).WithField("account_id", id).Info("join rejected")
		_ = s.client.Send(Message{Event: EventError, Data: errorPayload("account not found")})
		return
	}

	if s.joined {
		h.registry.Disconnect(s.handle)
	}
	s.handle = h.registry.Connect(id, role, s.client)
	s.role = role
	s.joined = true

	h.log.WithFields(logrus.Fields{"account_id": id, "role": role}).Info("client joined")
	_ = s.client.Send(Message{Event: EventJoined, Data: gin.H{"userId": id, "role": role}})
}

func (h *Handler) verifyAccount(ctx context.Context, id types.ID, role Role) error {
	switch role {
	case RoleRider:
		_, err := h.riders.Get(ctx, id)
		return err
	case RoleDriver:
		d, err := h.drivers.Get(ctx, id)
		if err != nil {
			return err
		}
		if d.Status == driver.StatusBanned {
			return errors.New("driver is banned")
		}
		return nil
	}
	return errors.New("unknown role")
}

type wireLocation struct {
	Ltd       *float64 `json:"ltd"`
	Latitude  *float64 `json:"latitude"`
	Lng       *float64 `json:"lng"`
	Longitude *float64 `json:"longitude"`
}

func (l wireLocation) point() (types.Point, bool) {
	lat, lng := l.Ltd, l.Lng
	if lat == nil {
		lat = l.Latitude
	}
	if lng == nil {
		lng = l.Longitude
	}
	if lat == nil || lng == nil {
		return types.Point{}, false
	}
	p := types.Point{Lat: *lat, Lng: *lng}
	return p, p.Valid()
}

type locationFrame struct {
	UserID   string       `json:"userId"`
	Location wireLocation `json:"location"`
}

func (h *Handler) updateLocation(ctx context.Context, s *session, data json.RawMessage) {
	var req locationFrame
	if err := json.Unmarshal(data, &req); err != nil {
		_ = s.client.Send(Message{Event: EventError, Data: errorPayload("invalid location update")})
		return
	}
	if !s.joined || s.role != RoleDriver || (req.UserID != "" && types.ID(req.UserID) != s.handle.AccountID) {
		_ = s.client.Send(Message{Event: EventError, Data: errorPayload("join as a driver first")})
		return
	}
	p, ok := req.Location.point()
	if !ok {
		_ = s.client.Send(Message{Event: EventError, Data: errorPayload("invalid location data")})
		return
	}

	err := h.locations.UpdateDriverLocation(ctx, location.DriverLocationUpdate{
		DriverID:   s.handle.AccountID,
		Position:   p,
		RecordedAt: time.Now(),
	})
	if err != nil {
		h.log.WithError(err).WithField("driver_id", s.handle.AccountID).Warn("driver location update failed")
		_ = s.client.Send(Message{Event: EventError, Data: errorPayload("location update failed")})
	}
}

func errorPayload(msg string) gin.H {
	return gin.H{"message": msg}
}
