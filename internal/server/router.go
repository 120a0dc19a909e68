// Package server exposes the instance registry over HTTP.
package server

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/pivbatch/internal/metrics"
	"github.com/loykin/pivbatch/internal/registry"
)

// Router provides embeddable HTTP handlers for the instance registry.
// Endpoints:
//
//	GET    {basePath}/instances     query: alive=true|false (optional filter)
//	DELETE {basePath}/instances     query: key=<absolute instance dir>
//	POST   {basePath}/prune
//	GET    {basePath}/metrics
//	GET    {basePath}/healthz
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	reg      *registry.Manager
	basePath string
	metrics  http.Handler
}

// NewRouter constructs a new Router. A nil metricsHandler serves the default registry.
func NewRouter(reg *registry.Manager, basePath string, metricsHandler http.Handler) *Router {
	if metricsHandler == nil {
		metricsHandler = metrics.HandlerFor(prometheus.DefaultGatherer)
	}
	return &Router{reg: reg, basePath: normBase(basePath), metrics: metricsHandler}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/instances", r.handleList)
	group.DELETE("/instances", r.handleRemove)
	group.POST("/prune", r.handlePrune)
	group.GET("/metrics", gin.WrapH(r.metrics))
	group.GET("/healthz", writeOK)
	return g
}

// NewServer binds addr and serves the router in the background. Bind errors are
// returned; stop it with Shutdown.
func NewServer(addr, basePath string, reg *registry.Manager, metricsHandler http.Handler) (*http.Server, error) {
	r := NewRouter(reg, basePath, metricsHandler)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type listResp struct {
	Instances []registry.Entry `json:"instances"`
}

type pruneResp struct {
	Removed []string `json:"removed"`
}

func (r *Router) handleList(c *gin.Context) {
	entries, err := r.reg.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	switch c.Query("alive") {
	case "":
	case "true", "false":
		want := c.Query("alive") == "true"
		kept := entries[:0]
		for _, e := range entries {
			if e.Alive == want {
				kept = append(kept, e)
			}
		}
		entries = kept
	default:
		fail(c, http.StatusBadRequest, errors.New("alive must be true or false"))
		return
	}
	c.JSON(http.StatusOK, listResp{Instances: entries})
}

func (r *Router) handleRemove(c *gin.Context) {
	key := c.Query("key")
	if err := checkKey(key); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := r.reg.Remove(c.Request.Context(), key); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	writeOK(c)
}

func (r *Router) handlePrune(c *gin.Context) {
	removed, err := r.reg.Prune(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	metrics.AddPruned(len(removed))
	if removed == nil {
		removed = []string{}
	}
	c.JSON(http.StatusOK, pruneResp{Removed: removed})
}
