// Package api is the small admin HTTP surface alongside the matching
// core: market depth, health, a forced out-of-band snapshot, and a
// metrics passthrough. It carries no matching logic — every handler
// is a thin read of, or signal into, an *engine.Engine.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trnahnh/velocity-match/internal/engine"
	"github.com/trnahnh/velocity-match/internal/metrics"
	"github.com/trnahnh/velocity-match/internal/orderbook"
)

const (
	defaultDepthLevels = 10
	maxDepthLevels     = 1000
)

// Server wraps a gin.Engine bound to one matching engine instance.
type Server struct {
	router *gin.Engine
	eng    *engine.Engine
	log    *zap.Logger
}

// New builds the admin surface and registers its routes. Handlers run
// on gin's own goroutines; any route that needs book state reads it
// through Engine.Inspect so the read executes on the matcher goroutine
// instead of racing it.
func New(eng *engine.Engine, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, eng: eng, log: log}
	s.registerHealthRoutes()
	s.registerDepthRoutes()
	s.registerSnapshotRoutes()
	s.registerMetricsRoutes()
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerHealthRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		var restingOrders int
		var seq uint64
		_ = s.eng.Inspect(func(b *orderbook.Book) {
			restingOrders = b.RestingOrders()
			seq = b.Seq()
		})
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"resting_orders": restingOrders,
			"seq":            seq,
		})
	})
}

// DepthResponse is the JSON shape returned by /depth.
type DepthResponse struct {
	Bids []LevelJSON `json:"bids"`
	Asks []LevelJSON `json:"asks"`
}

// LevelJSON is one price level row.
type LevelJSON struct {
	Price    int64  `json:"price"`
	Quantity uint64 `json:"quantity"`
	Orders   int    `json:"orders"`
}

func (s *Server) registerDepthRoutes() {
	market := s.router.Group("/depth")
	market.GET("", func(c *gin.Context) {
		n := parseDepthLevels(c.Query("levels"))
		var bids, asks []orderbook.DepthLevel
		_ = s.eng.Inspect(func(b *orderbook.Book) {
			bids, asks = b.Depth(n)
		})
		c.JSON(http.StatusOK, DepthResponse{Bids: toLevelJSON(bids), Asks: toLevelJSON(asks)})
	})
}

// parseDepthLevels parses the ?levels= query parameter, falling back
// to defaultDepthLevels when absent or invalid and clamping to
// maxDepthLevels so a caller can't force an unbounded enumeration.
func parseDepthLevels(raw string) int {
	if raw == "" {
		return defaultDepthLevels
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultDepthLevels
	}
	if n > maxDepthLevels {
		return maxDepthLevels
	}
	return n
}

func toLevelJSON(levels []orderbook.DepthLevel) []LevelJSON {
	out := make([]LevelJSON, len(levels))
	for i, l := range levels {
		out[i] = LevelJSON{Price: l.Price, Quantity: l.Quantity, Orders: l.Orders}
	}
	return out
}

func (s *Server) registerSnapshotRoutes() {
	s.router.POST("/snapshot", func(c *gin.Context) {
		if err := s.eng.ForceSnapshot(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "snapshot taken"})
	})
}

func (s *Server) registerMetricsRoutes() {
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
}
