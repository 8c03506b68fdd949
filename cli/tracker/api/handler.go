package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/broadcast"
	"github.com/daniil11ru/bustrack/cli/tracker/cache"
	"github.com/daniil11ru/bustrack/cli/tracker/directory"
	"github.com/daniil11ru/bustrack/cli/tracker/domain"
	"github.com/daniil11ru/bustrack/cli/tracker/session"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

var now = time.Now

type Handler struct {
	Resolver    *domain.ResolvePosition
	Broadcaster *broadcast.Broadcaster
	Cache       *cache.LiveLocations
	Sessions    *session.Tracker
	// Connections число открытых соединений реального времени, может быть nil
	Connections func() int
	Environment string

	startedAt time.Time
}

func NewHandler(h Handler) *Handler {
	h.startedAt = now()
	return &h
}

func (h *Handler) Health(c *gin.Context) {
	current := now()
	c.JSON(http.StatusOK, Health{
		Status:      "OK",
		Environment: h.Environment,
		Uptime:      current.Sub(h.startedAt).Seconds(),
		Timestamp:   current.UTC(),
	})
}

func (h *Handler) GetBusLocation(c *gin.Context) {
	vehicleID := types.VehicleID(c.Param("busId"))
	if vehicleID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "busId is required"})
		return
	}

	position, source, err := h.Resolver.Resolve(c.Request.Context(), vehicleID)
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "location unknown"})
		return
	}
	if err != nil {
		log.WithFields(log.Fields{"bus": vehicleID, "err": err}).Error("Ошибка чтения местоположения")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "directory unavailable"})
		return
	}

	c.JSON(http.StatusOK, BusLocation{
		BusID:     vehicleID.String(),
		Lat:       position.Latitude,
		Lng:       position.Longitude,
		Timestamp: position.ObservedAt,
		Source:    string(source),
	})
}

func (h *Handler) GetLiveStats(c *gin.Context) {
	stats := LiveStats{
		Rooms:       h.Broadcaster.Rooms(),
		Subscribers: h.Broadcaster.Subscribers(),
		Cached:      h.Cache.Len(),
		Sessions:    h.Sessions.Len(),
	}
	if h.Connections != nil {
		stats.Connections = h.Connections()
	}
	c.JSON(http.StatusOK, stats)
}
