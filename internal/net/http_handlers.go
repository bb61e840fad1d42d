// Package net serves the debug HTTP surface of a running level.
package net

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	nethttp "net/http"
	"strconv"
	"time"

	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/net/ws"
	"arena-bots/server/internal/observability"
	"arena-bots/server/internal/sim"
	"arena-bots/server/internal/telemetry"
	"arena-bots/server/logging"
)

type HTTPHandlerConfig struct {
	Logger telemetry.Logger
	Loop   *sim.Loop
	// Stream serves /ws when set.
	Stream  *ws.Handler
	Metrics *telemetry.Counters
	Router  interface{ Stats() logging.RouterStats }
	// Events serves /events when set.
	Events        EventLog
	Observability observability.Config
}

// EventLog is a window of recently published events.
type EventLog interface {
	Counts() map[logging.EventType]uint64
	Select(match func(logging.Event) bool) []logging.Event
}

const defaultEventsLimit = 100

type worldInfo struct {
	Name           string       `json:"name"`
	Version        int          `json:"version"`
	Checksum       string       `json:"checksum"`
	Areas          int          `json:"areas"`
	Reachabilities int          `json:"reachabilities"`
	Clusters       int          `json:"clusters"`
	FloorClusters  int          `json:"floorClusters"`
	StairsClusters int          `json:"stairsClusters"`
	Ledges         int          `json:"ledges"`
	Walls          int          `json:"walls"`
	Junk           int          `json:"junk"`
	TacticalSpots  int          `json:"tacticalSpots"`
	NavEntities    int          `json:"navEntities"`
	Bounds         [2]geom.Vec3 `json:"bounds"`
}

type addBotRequest struct {
	ID     int        `json:"id"`
	Name   string     `json:"name"`
	Origin *geom.Vec3 `json:"origin"`
	Speed  float64    `json:"speed"`
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	loop := cfg.Loop

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status      string            `json:"status"`
			ServerTime  int64             `json:"serverTime"`
			Tick        uint64            `json:"tick"`
			Totals      sim.Totals        `json:"totals"`
			Subscribers int               `json:"subscribers"`
			Metrics     map[string]uint64 `json:"metrics,omitempty"`
			Logging     any               `json:"logging,omitempty"`
			Events      any               `json:"events,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
		}
		if loop != nil {
			payload.Tick = loop.Tick()
			loop.Do(func(e *sim.Engine) { payload.Totals = e.Totals() })
		}
		if cfg.Stream != nil {
			payload.Subscribers = cfg.Stream.Count()
		}
		if cfg.Metrics != nil {
			payload.Metrics = cfg.Metrics.Snapshot()
		}
		if cfg.Router != nil {
			payload.Logging = cfg.Router.Stats()
		}
		if cfg.Events != nil {
			payload.Events = cfg.Events.Counts()
		}
		writeJSON(w, logger, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/events", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if cfg.Events == nil {
			httpError(w, "memory sink disabled", nethttp.StatusNotFound)
			return
		}
		query := r.URL.Query()
		limit := defaultEventsLimit
		if raw := query.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				httpError(w, "invalid limit", nethttp.StatusBadRequest)
				return
			}
			limit = n
		}
		category, eventType := query.Get("category"), logging.EventType(query.Get("type"))
		events := cfg.Events.Select(func(e logging.Event) bool {
			return (category == "" || e.Category == category) && (eventType == "" || e.Type == eventType)
		})
		if len(events) > limit {
			events = events[len(events)-limit:]
		}
		writeJSON(w, logger, nethttp.StatusOK, events)
	})

	mux.HandleFunc("/aas", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		if loop == nil {
			httpError(w, "no level loaded", nethttp.StatusServiceUnavailable)
			return
		}
		var info worldInfo
		loop.Do(func(e *sim.Engine) { info = describeLevel(e) })
		writeJSON(w, logger, nethttp.StatusOK, info)
	})

	mux.HandleFunc("/bots", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if loop == nil {
			httpError(w, "no level loaded", nethttp.StatusServiceUnavailable)
			return
		}
		switch r.Method {
		case nethttp.MethodGet:
			var status []sim.BotStatus
			loop.Do(func(e *sim.Engine) { status = e.Status() })
			if status == nil {
				status = []sim.BotStatus{}
			}
			writeJSON(w, logger, nethttp.StatusOK, status)
		case nethttp.MethodPost:
			addBot(w, r, loop, logger)
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	if cfg.Stream != nil {
		mux.HandleFunc("/ws", cfg.Stream.Handle)
	}
	if observability.Register(mux, cfg.Observability) {
		logger.Printf("pprof handlers mounted at /debug/pprof/")
	}

	return mux
}

func addBot(w nethttp.ResponseWriter, r *nethttp.Request, loop *sim.Loop, logger telemetry.Logger) {
	var req addBotRequest
	if r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			httpError(w, "invalid payload", nethttp.StatusBadRequest)
			return
		}
	}
	if req.ID <= 0 {
		httpError(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	var (
		status sim.BotStatus
		err    error
	)
	loop.Do(func(e *sim.Engine) {
		spec := sim.BotSpec{ID: req.ID, Name: req.Name, Speed: req.Speed}
		if req.Origin != nil {
			spec.Origin = *req.Origin
		} else {
			origin, ok := e.SpawnPoint(e.Level().RNG("http.spawn"))
			if !ok {
				err = sim.ErrOutsideWorld
				return
			}
			spec.Origin = origin
		}
		var bot *sim.Bot
		bot, err = e.AddBot(r.Context(), spec)
		if err == nil {
			status = bot.Status()
		}
	})
	switch {
	case errors.Is(err, sim.ErrDuplicateEntity):
		httpError(w, err.Error(), nethttp.StatusConflict)
	case errors.Is(err, sim.ErrOutsideWorld):
		httpError(w, err.Error(), nethttp.StatusUnprocessableEntity)
	case err != nil:
		logger.Printf("failed to add bot %d: %v", req.ID, err)
		httpError(w, "failed to add bot", nethttp.StatusInternalServerError)
	default:
		writeJSON(w, logger, nethttp.StatusCreated, status)
	}
}

func describeLevel(e *sim.Engine) worldInfo {
	lvl := e.Level()
	world := lvl.World
	info := worldInfo{
		Name:           lvl.Name,
		Version:        world.Version(),
		Checksum:       world.Checksum(),
		Areas:          world.NumAreas(),
		Reachabilities: world.NumReachabilities(),
		Clusters:       world.NumClusters(),
		FloorClusters:  lvl.AreaData.FloorClusters,
		StairsClusters: lvl.AreaData.StairsClusters,
		Ledges:         lvl.AreaData.Ledges,
		Walls:          lvl.AreaData.Walls,
		Junk:           lvl.AreaData.Junk,
		TacticalSpots:  lvl.Spots.NumSpots(),
		NavEntities:    lvl.NavEntities.Len(),
	}
	areas := world.Areas()
	for i := 1; i < len(areas); i++ {
		if i == 1 {
			info.Bounds = [2]geom.Vec3{areas[i].Mins, areas[i].Maxs}
			continue
		}
		info.Bounds[0] = info.Bounds[0].Min(areas[i].Mins)
		info.Bounds[1] = info.Bounds[1].Max(areas[i].Maxs)
	}
	return info
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
