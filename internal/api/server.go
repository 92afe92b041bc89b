package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/terminal-bench/gridpulse/internal/engine"
	"github.com/terminal-bench/gridpulse/internal/incidents"
	"github.com/terminal-bench/gridpulse/internal/risk"
	"github.com/terminal-bench/gridpulse/internal/scenario"
	"github.com/terminal-bench/gridpulse/internal/topology"
	"github.com/terminal-bench/gridpulse/pkg/models"
)

// Monitor is the simulation loop controlled through the API.
type Monitor interface {
	Start(ctx context.Context) bool
	Stop() bool
	Running() bool
	Snapshot() *models.GridSnapshot
}

// Server exposes the engine to the dashboard over HTTP.
type Server struct {
	router  *gin.Engine
	eng     *engine.Engine
	monitor Monitor
	ws      http.HandlerFunc
	log     *zap.Logger
	baseCtx context.Context
}

// Config holds optional collaborators of the server.
type Config struct {
	// WebSocket serves /api/v1/ws when set.
	WebSocket http.HandlerFunc
	Logger    *zap.Logger
	// BaseContext parents the monitor started through the API.
	BaseContext context.Context
}

// NewServer builds the router.
func NewServer(eng *engine.Engine, monitor Monitor, cfg Config) *Server {
	s := &Server{
		router:  gin.New(),
		eng:     eng,
		monitor: monitor,
		ws:      cfg.WebSocket,
		log:     cfg.Logger,
		baseCtx: cfg.BaseContext,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.baseCtx == nil {
		s.baseCtx = context.Background()
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/topology", s.getTopology)
		v1.GET("/snapshot", s.getSnapshot)

		v1.POST("/classify", s.classify)
		v1.POST("/digital-twin", s.digitalTwin)

		soc := v1.Group("/societies/:id")
		soc.GET("/statuses", s.getStatuses)
		soc.GET("/stability", s.getSocietyStability)
		soc.GET("/demand-response", s.getDemandResponse)
		soc.GET("/demand-response/curve", s.getDemandResponseCurve)
		soc.GET("/carbon", s.getCarbon)
		soc.GET("/history", s.getHistory)
		soc.POST("/anomalies", s.injectAnomaly)

		v1.GET("/zones/:id/stability", s.getZoneStability)
		v1.GET("/cities/:id/stability", s.getCityStability)

		v1.GET("/incidents", s.listIncidents)
		v1.POST("/incidents/:id/resolve", s.resolveIncident)
		v1.GET("/anomalies", s.listAnomalies)

		v1.GET("/simulation", s.simulationState)
		v1.POST("/simulation/start", s.startSimulation)
		v1.POST("/simulation/stop", s.stopSimulation)

		if s.ws != nil {
			v1.GET("/ws", gin.WrapF(s.ws))
		}
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		c.Header("X-Correlation-ID", correlationID)
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("correlation_id", correlationID))
	}
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, risk.ErrInvalidCapacity):
		c.JSON(http.StatusBadRequest, gin.H{"error": risk.ErrInvalidCapacity.Error()})
	case errors.Is(err, risk.ErrInvalidReading):
		c.JSON(http.StatusBadRequest, gin.H{"error": risk.ErrInvalidReading.Error()})
	case errors.Is(err, scenario.ErrNonFiniteProjection):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, topology.ErrUnknownSociety),
		errors.Is(err, topology.ErrUnknownZone),
		errors.Is(err, topology.ErrUnknownCity),
		errors.Is(err, incidents.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrNoHistory):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryFloat(c *gin.Context, key string, def float64) (float64, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return 0, false
	}
	return v, true
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "simulating": s.monitor.Running()})
}

func (s *Server) getTopology(c *gin.Context) {
	tbl := s.eng.Topology()
	var zones []models.Zone
	for _, city := range tbl.Cities() {
		zones = append(zones, tbl.ZonesOf(city)...)
	}
	c.JSON(http.StatusOK, gin.H{
		"cities":    tbl.Cities(),
		"zones":     zones,
		"societies": tbl.Societies(),
	})
}

func (s *Server) latest(c *gin.Context) (*models.GridSnapshot, bool) {
	snap := s.monitor.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot published yet"})
		return nil, false
	}
	return snap, true
}

func (s *Server) getSnapshot(c *gin.Context) {
	if snap, ok := s.latest(c); ok {
		c.JSON(http.StatusOK, snap)
	}
}

func (s *Server) classify(c *gin.Context) {
	var req struct {
		Reading  models.EnergyReading `json:"reading"`
		Capacity float64              `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	res, err := s.eng.Classify(req.Reading, req.Capacity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) digitalTwin(c *gin.Context) {
	var req struct {
		EVIncreasePercent float64 `json:"ev_increase_percent"`
		TempRiseC         float64 `json:"temp_rise_c"`
		SolarPercent      float64 `json:"solar_percent"`
		Capacity          float64 `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	res, err := s.eng.DigitalTwin(req.EVIncreasePercent, req.TempRiseC, req.SolarPercent, req.Capacity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getStatuses(c *gin.Context) {
	id := c.Param("id")
	soc, err := s.eng.Topology().Society(id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	capacity, ok := queryFloat(c, "capacity", soc.TransformerCapacity)
	if !ok {
		return
	}
	statuses, err := s.eng.StatusesFor(id, capacity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (s *Server) getSocietyStability(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.eng.Topology().Society(id); err != nil {
		s.writeError(c, err)
		return
	}
	snap, ok := s.latest(c)
	if !ok {
		return
	}
	view, found := snap.Society(id)
	if !found {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "society missing from snapshot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stability": view.Stability, "summary": view.Summary})
}

func (s *Server) getZoneStability(c *gin.Context) {
	s.scopeStability(c, func(snap *models.GridSnapshot, id string) (models.GridStabilityIndex, error) {
		if _, err := s.eng.Topology().Zone(id); err != nil {
			return models.GridStabilityIndex{}, err
		}
		return snap.Zones[id], nil
	})
}

func (s *Server) getCityStability(c *gin.Context) {
	s.scopeStability(c, func(snap *models.GridSnapshot, id string) (models.GridStabilityIndex, error) {
		if _, err := s.eng.Topology().City(id); err != nil {
			return models.GridStabilityIndex{}, err
		}
		return snap.Cities[id], nil
	})
}

func (s *Server) scopeStability(c *gin.Context, pick func(*models.GridSnapshot, string) (models.GridStabilityIndex, error)) {
	snap, ok := s.latest(c)
	if !ok {
		return
	}
	gsi, err := pick(snap, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gsi)
}

func (s *Server) getDemandResponse(c *gin.Context) {
	p, ok := queryFloat(c, "participation", 30)
	if !ok {
		return
	}
	res, err := s.eng.DemandResponse(p, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getDemandResponseCurve(c *gin.Context) {
	res, err := s.eng.DemandResponseCurve(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getCarbon(c *gin.Context) {
	res, err := s.eng.CarbonMetrics(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getHistory(c *gin.Context) {
	res, err := s.eng.LoadHistory(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) injectAnomaly(c *gin.Context) {
	inc, anomaly, err := s.eng.InjectManualAnomaly(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.log.Info("manual anomaly injected", zap.String("society", inc.SocietyID), zap.String("incident", inc.ID))
	c.JSON(http.StatusCreated, gin.H{"incident": inc, "anomaly": anomaly})
}

func (s *Server) listIncidents(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.RecentIncidents(c.Query("society")))
}

func (s *Server) resolveIncident(c *gin.Context) {
	inc, err := s.eng.ResolveIncident(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inc)
}

func (s *Server) listAnomalies(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.RecentAnomalies(c.Query("society")))
}

func (s *Server) simulationState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"running": s.monitor.Running()})
}

func (s *Server) startSimulation(c *gin.Context) {
	started := s.monitor.Start(s.baseCtx)
	c.JSON(http.StatusOK, gin.H{"running": true, "changed": started})
}

func (s *Server) stopSimulation(c *gin.Context) {
	stopped := s.monitor.Stop()
	c.JSON(http.StatusOK, gin.H{"running": false, "changed": stopped})
}
