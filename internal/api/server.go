// Package api exposes the execution pipeline over HTTP: order operations,
// order queries and the ops endpoints (health, readiness, metrics).
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bisttrading/platform/internal/execution"
	"github.com/bisttrading/platform/internal/execution/model"
)

// Server wraps the gin router around the execution service.
type Server struct {
	service *execution.Service
	logger  *zap.Logger
	router  *gin.Engine
}

// NewServer builds the router. Ready reports readiness of downstream
// dependencies and is consulted by /readyz.
func NewServer(service *execution.Service, ready func() bool, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{service: service, logger: logger, router: gin.New()}
	s.router.Use(gin.Recovery())

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/readyz", func(c *gin.Context) {
		if ready != nil && !ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/orders", s.submitOrder)
		v1.PUT("/orders/:id", s.modifyOrder)
		v1.DELETE("/orders/:id", s.cancelOrder)
		v1.GET("/orders/:id", s.getOrder)
		v1.GET("/orders", s.listOrders)
	}
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) submitOrder(c *gin.Context) {
	var req model.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := s.service.Submit(c.Request.Context(), &req)
	if !result.Accepted {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"client_order_id": req.ClientOrderID,
			"accepted":        false,
			"reason":          result.Reason,
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"client_order_id": req.ClientOrderID,
		"accepted":        true,
	})
}

type modifyOrderRequest struct {
	NewPrice    decimal.Decimal `json:"new_price"`
	NewQuantity int64           `json:"new_quantity"`
}

func (s *Server) modifyOrder(c *gin.Context) {
	var req modifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := s.service.Modify(c.Request.Context(), c.Param("id"), req.NewPrice, req.NewQuantity)
	if !result.Accepted {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"accepted": false, "reason": result.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (s *Server) cancelOrder(c *gin.Context) {
	result := s.service.Cancel(c.Request.Context(), c.Param("id"))
	if !result.Accepted {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"accepted": false, "reason": result.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (s *Server) getOrder(c *gin.Context) {
	id := c.Param("id")
	order, ok := s.service.Order(id)
	if !ok {
		// Fall back to the venue order id index.
		order, ok = s.service.OrderByVenueID(id)
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) listOrders(c *gin.Context) {
	orders := s.service.Orders()
	c.JSON(http.StatusOK, gin.H{
		"active": len(orders),
		"orders": orders,
	})
}
