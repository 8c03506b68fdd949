package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/auth"
	"github.com/daniil11ru/bustrack/cli/tracker/broadcast"
	"github.com/daniil11ru/bustrack/cli/tracker/domain"
	"github.com/daniil11ru/bustrack/cli/tracker/session"
	"github.com/daniil11ru/bustrack/cli/tracker/storage"
	"github.com/daniil11ru/bustrack/cli/tracker/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var now = time.Now

const defaultSendBuffer = 64

// Options зависимости и настройки сервера реального времени
type Options struct {
	Authenticator *auth.Authenticator
	Broadcaster   *broadcast.Broadcaster
	Sessions      *session.Tracker
	Resolver      *domain.ResolvePosition
	Flush         *domain.FlushPosition
	// Exporter может быть nil
	Exporter domain.Exporter

	// ReporterRoles роли, которым разрешены locationUpdate и endTrip; пустой список разрешает всем
	ReporterRoles []auth.Role
	TTL           time.Duration
	SendBuffer    int
	// AllowedOrigin адрес веб-клиента; пустая строка отключает проверку
	AllowedOrigin string
}

type Server struct {
	authenticator *auth.Authenticator
	broadcaster   *broadcast.Broadcaster
	sessions      *session.Tracker
	resolver      *domain.ResolvePosition
	flush         *domain.FlushPosition
	exporter      domain.Exporter

	reporterRoles []auth.Role
	ttl           time.Duration
	sendBuffer    int
	upgrader      websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Client
	closing bool
	wg      sync.WaitGroup
}

func New(opts Options) *Server {
	s := &Server{
		authenticator: opts.Authenticator,
		broadcaster:   opts.Broadcaster,
		sessions:      opts.Sessions,
		resolver:      opts.Resolver,
		flush:         opts.Flush,
		exporter:      opts.Exporter,
		reporterRoles: opts.ReporterRoles,
		ttl:           opts.TTL,
		sendBuffer:    opts.SendBuffer,
		clients:       make(map[string]*Client),
	}
	if s.sendBuffer <= 0 {
		s.sendBuffer = defaultSendBuffer
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(opts.AllowedOrigin),
	}
	return s
}

// checkOrigin клиенты без заголовка Origin (не браузеры) пропускаются
func checkOrigin(allowed string) func(r *http.Request) bool {
	allowed = strings.TrimRight(allowed, "/")
	return func(r *http.Request) bool {
		if allowed == "" {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Scheme+"://"+u.Host, allowed)
	}
}

// rejectionMessage текст отказа без подробностей проверки
func rejectionMessage(err error) string {
	if errors.Is(err, auth.ErrMissingCredential) {
		return auth.ErrMissingCredential.Error()
	}
	return auth.ErrInvalidCredential.Error()
}

// ServeHTTP проверяет токен до апгрейда: неавторизованное соединение не получает никакого состояния
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := s.authenticator.Authenticate(r)
	if err != nil {
		log.WithFields(log.Fields{"ip": r.RemoteAddr, "err": err}).Warn("Соединение отклонено")
		http.Error(w, rejectionMessage(err), http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	if closing {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("err", err).Error("Ошибка апгрейда соединения")
		return
	}

	ctx, cancel := context.WithCancel(auth.WithIdentity(context.Background(), identity))
	client := &Client{
		id:       uuid.NewString(),
		identity: identity,
		conn:     conn,
		server:   s,
		send:     make(chan []byte, s.sendBuffer),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	if !s.register(client) {
		cancel()
		_ = conn.Close()
		return
	}

	log.WithFields(log.Fields{
		"conn":    client.id,
		"ip":      r.RemoteAddr,
		"subject": identity.Subject,
		"role":    identity.Role,
	}).Info("Установлено соединение")

	go client.writePump()
	client.readPump()
}

func (s *Server) register(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.clients[c.id] = c
	s.wg.Add(1)
	return true
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		s.wg.Done()
	}
}

func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close закрывает все соединения; каждое проходит обычный путь обрыва
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"), time.Now().Add(writeWait))
		c.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handle(c *Client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "malformed message")
		return
	}

	logger := log.WithFields(log.Fields{"conn": c.id, "event": msg.Event})
	logger.Debug("Принято событие")

	switch msg.Event {
	case EventJoinBus:
		var ref BusRef
		if !decodeRef(c, msg, &ref) {
			return
		}
		source := s.resolver.Join(c.ctx, c, ref.BusID.VehicleID())
		logger.WithFields(log.Fields{"bus": ref.BusID, "source": source}).Debug("Подписка на транспорт")

	case EventLeaveBus:
		var ref BusRef
		if !decodeRef(c, msg, &ref) {
			return
		}
		s.broadcaster.Leave(c, ref.BusID.VehicleID())

	case EventLocationUpdate:
		s.locationUpdate(c, msg)

	case EventEndTrip:
		if !c.identity.HasRole(s.reporterRoles) {
			c.sendError(msg.Event, "not allowed to end trips")
			return
		}
		var ref BusRef
		if !decodeRef(c, msg, &ref) {
			return
		}
		flushed := s.flush.EndTrip(c.id, ref.BusID.VehicleID())
		logger.WithFields(log.Fields{"bus": ref.BusID, "flushed": flushed}).Info("Рейс завершён")

	default:
		c.sendError(msg.Event, "unknown event")
	}
}

func decodeRef(c *Client, msg Message, ref *BusRef) bool {
	if err := json.Unmarshal(msg.Data, ref); err != nil || ref.BusID == "" {
		c.sendError(msg.Event, "busId is required")
		return false
	}
	return true
}

func (s *Server) locationUpdate(c *Client, msg Message) {
	if !c.identity.HasRole(s.reporterRoles) {
		c.sendError(msg.Event, "not allowed to report location")
		return
	}

	var update LocationUpdate
	if err := json.Unmarshal(msg.Data, &update); err != nil || update.BusID == "" {
		c.sendError(msg.Event, "busId is required")
		return
	}
	if update.Lat == nil || update.Lng == nil {
		c.sendError(msg.Event, "lat and lng are required")
		return
	}

	vehicleID := update.BusID.VehicleID()
	position := types.Position{Latitude: *update.Lat, Longitude: *update.Lng, ObservedAt: now().UTC()}
	if err := position.Validate(); err != nil {
		c.sendError(msg.Event, "invalid coordinates")
		return
	}

	if previous := s.sessions.Bind(c.id, vehicleID); !previous.IsBound() {
		log.WithFields(log.Fields{"conn": c.id, "bus": vehicleID, "subject": c.identity.Subject}).Info("Соединение отчитывается за транспорт")
	} else if previous.VehicleID != vehicleID {
		log.WithFields(log.Fields{"conn": c.id, "bus": vehicleID, "previous": previous.VehicleID}).Info("Соединение сменило транспорт")
	}

	delivered := s.broadcaster.Publish(vehicleID, position)
	log.WithFields(log.Fields{"bus": vehicleID, "subscribers": delivered}).Debug("Местоположение разослано")

	if s.exporter != nil {
		if err := s.exporter.Save(storage.NewRecord(vehicleID, position, storage.KindLive)); err != nil {
			log.WithFields(log.Fields{"bus": vehicleID, "err": err}).Warn("Местоположение не экспортировано")
		}
	}
}
