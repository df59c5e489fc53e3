package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/example/sos-dispatch/internal/actors"
	"github.com/example/sos-dispatch/internal/billing"
	"github.com/example/sos-dispatch/internal/config"
	"github.com/example/sos-dispatch/internal/geo"
	"github.com/example/sos-dispatch/internal/ingest"
	"github.com/example/sos-dispatch/internal/lifecycle"
	"github.com/example/sos-dispatch/internal/matcher"
	"github.com/example/sos-dispatch/internal/models"
	"github.com/example/sos-dispatch/internal/roster"
	"github.com/example/sos-dispatch/internal/storage"
)

// actorIDHeader carries the caller identity verified by the upstream auth
// gateway. Authentication itself is not this service's concern.
const actorIDHeader = "X-Actor-ID"

type Server struct {
	Directory geo.Directory
	Actors    actors.Directory
	Matcher   *matcher.Service
	Lifecycle *lifecycle.Service
	Roster    *roster.Service
	Kafka     *ingest.KafkaProducer

	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires the dispatch core from config: Redis and Postgres when
// configured, in-memory fallbacks otherwise, so a bare `go run` still serves.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	var directory geo.Directory
	var actorDir actors.Directory
	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		directory = geo.NewRedisDirectory(rc, cfg.RedisGeoPrefix)
		actorDir = actors.NewRedisDirectory(rc)
	} else {
		directory = geo.NewIndex()
		actorDir = actors.NewMemory()
	}

	var store storage.AssignmentStore
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
		} else {
			logger.Error("postgres unavailable, falling back to memory store", "error", err)
		}
	}
	if store == nil {
		store = storage.NewMemoryStore()
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	m := &matcher.Service{
		Directory:             directory,
		Store:                 store,
		Actors:                actorDir,
		MaxSearchRadiusMeters: cfg.MaxSearchRadiusMeters,
	}
	lc := &lifecycle.Service{Directory: directory, Store: store, Actors: actorDir}
	if kp != nil {
		lc.Publisher = kp
	}
	if cfg.StripeAPIKey != "" {
		bc := billing.NewStripeClient(cfg.StripeAPIKey, cfg.BillingAmount, cfg.BillingCurrency)
		m.Biller = bc
		lc.Biller = bc
	}

	s := &Server{
		Directory: directory,
		Actors:    actorDir,
		Matcher:   m,
		Lifecycle: lc,
		Roster:    &roster.Service{Store: store, Actors: actorDir},
		Kafka:     kp,
		logger:    logger,
		mux:       mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/sos", s.handleCreateSOS).Methods("POST")
	s.mux.HandleFunc("/api/v1/locations", s.handleReportLocation).Methods("POST")
	s.mux.HandleFunc("/api/v1/assignments/driver", s.handleDriverAssignment).Methods("GET")
	s.mux.HandleFunc("/api/v1/assignments/requester", s.handleRequesterAssignment).Methods("GET")
	s.mux.HandleFunc("/api/v1/assignments/{assignment_id}/resolve", s.handleResolve).Methods("POST")
	s.mux.HandleFunc("/api/v1/hospitals/{hospital_id}/roster", s.handleRoster).Methods("GET")
	s.mux.HandleFunc("/api/v1/actors/nearest", s.handleFindNearest).Methods("GET")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/locations/{actor_id}", s.handleLocationStream)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

type coordPayload struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Phone string  `json:"phone,omitempty"`
}

func (s *Server) handleCreateSOS(w http.ResponseWriter, r *http.Request) {
	requesterID := r.Header.Get(actorIDHeader)
	if requesterID == "" {
		writeError(w, http.StatusUnauthorized, "caller identity required")
		return
	}
	var body coordPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	phone := body.Phone
	if phone == "" {
		if a, err := s.Actors.Get(r.Context(), requesterID); err == nil {
			phone = a.Phone
		}
	}
	a, err := s.Matcher.CreateAssignment(r.Context(), requesterID, phone, models.Coord{Lat: body.Lat, Lng: body.Lng})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleReportLocation(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get(actorIDHeader)
	if actorID == "" {
		writeError(w, http.StatusUnauthorized, "caller identity required")
		return
	}
	var body coordPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed body")
		return
	}
	// actor existence is enforced here at the serving layer, the core does
	// not re-check it
	actor, err := s.Actors.Get(r.Context(), actorID)
	if err != nil {
		writeError(w, http.StatusNotFound, "actor not found")
		return
	}
	if err := s.Lifecycle.ReportLocation(r.Context(), actorID, actor.Role, models.Coord{Lat: body.Lat, Lng: body.Lng}); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (s *Server) handleDriverAssignment(w http.ResponseWriter, r *http.Request) {
	driverID := r.Header.Get(actorIDHeader)
	if driverID == "" {
		writeError(w, http.StatusUnauthorized, "caller identity required")
		return
	}
	brief, ok, err := s.Lifecycle.ActiveForDriver(r.Context(), driverID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"assigned": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assigned":    true,
		"lat":         brief.RequesterLocation.Lat,
		"lng":         brief.RequesterLocation.Lng,
		"hospitalLat": brief.HospitalLocation.Lat,
		"hospitalLng": brief.HospitalLocation.Lng,
		"phone":       brief.DriverPhone,
		"requester": map[string]any{
			"name":    brief.RequesterName,
			"phone":   brief.RequesterPhone,
			"address": brief.RequesterAddress,
		},
		"assignment_id": brief.AssignmentID,
	})
}

func (s *Server) handleRequesterAssignment(w http.ResponseWriter, r *http.Request) {
	requesterID := r.Header.Get(actorIDHeader)
	if requesterID == "" {
		writeError(w, http.StatusUnauthorized, "caller identity required")
		return
	}
	a, err := s.Lifecycle.ActiveForRequester(r.Context(), requesterID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["assignment_id"]
	a, err := s.Lifecycle.Resolve(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	hospitalID := mux.Vars(r)["hospital_id"]
	entries, err := s.Roster.ListActiveForHospital(r.Context(), hospitalID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": entries})
}

func (s *Server) handleFindNearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	role, err := models.ParseRole(q.Get("role"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		writeError(w, http.StatusBadRequest, "invalid latitude or longitude")
		return
	}
	origin := models.Coord{Lat: lat, Lng: lng}
	if err := origin.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid latitude or longitude")
		return
	}
	m, err := s.Directory.Nearest(r.Context(), role, origin, s.Matcher.MaxSearchRadiusMeters)
	if errors.Is(err, geo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no nearby "+string(role)+" found")
		return
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        m.ID,
		"latitude":  m.Coord.Lat,
		"longitude": m.Coord.Lng,
	})
}

var upgrader = websocket.Upgrader{}

// handleLocationStream accepts a socket from a driver (or requester) app and
// treats every inbound frame as a location report. This is an ingest
// transport only; nothing is pushed back besides close frames.
func (s *Server) handleLocationStream(w http.ResponseWriter, r *http.Request) {
	actorID := mux.Vars(r)["actor_id"]
	actor, err := s.Actors.Get(r.Context(), actorID)
	if err != nil {
		writeError(w, http.StatusNotFound, "actor not found")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		var c models.Coord
		if err := conn.ReadJSON(&c); err != nil {
			return
		}
		if err := s.Lifecycle.ReportLocation(r.Context(), actorID, actor.Role, c); err != nil {
			_ = conn.WriteJSON(map[string]any{"error": err.Error()})
			continue
		}
	}
}

// writeDomainError maps core sentinels onto HTTP statuses. Anything
// unrecognised is a persistence-layer failure: logged, surfaced as 502, safe
// to retry whole.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, matcher.ErrNoDriverAvailable):
		writeError(w, http.StatusNotFound, "no nearby responder found")
	case errors.Is(err, matcher.ErrNoHospitalAvailable):
		writeError(w, http.StatusNotFound, "no nearby hospital found")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "assignment already resolved")
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, actors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "persistence failure, retry the request")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
