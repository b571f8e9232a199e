// Package server hosts a device tree over HTTP: the root description
// document, every service's SCPD, and the per-service SOAP control
// endpoints, all on one ephemeral-port listener.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/seattlerb/upnp/internal/version"
	"github.com/seattlerb/upnp/pkg/device"
)

// Server publishes one root device. Routes are computed from the tree
// at construction; the tree is frozen before serving begins, so the
// routing table and the description URLs can never diverge.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	root       *device.Device
	logger     *zap.Logger
	listener   net.Listener
	serverName string
}

// New validates the tree, builds the SOAP routers, and registers every
// route. The device tree is frozen from here on.
func New(root *device.Device, logger *zap.Logger) (*Server, error) {
	if err := root.Validate(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:        mux,
		root:       root,
		logger:     logger,
		serverName: ServerName(root),
	}
	s.httpServer.Handler = s.withUPnPHeaders(mux)

	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	root.Freeze()
	return s, nil
}

// ServerName synthesizes the SERVER product string:
// "<os> UPnP/1.0 <model>/<version>".
func ServerName(root *device.Device) string {
	return fmt.Sprintf("%s UPnP/1.0 %s/%s", runtime.GOOS, root.ModelName, version.Short())
}

// registerRoutes wires the fixed endpoints plus one SCPD, control, and
// event route per service anywhere in the tree.
func (s *Server) registerRoutes() error {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /description", s.handleDescription)
	return s.registerDevice(s.root)
}

func (s *Server) registerDevice(d *device.Device) error {
	for _, svc := range d.Services() {
		router, err := svc.Router(s.logger)
		if err != nil {
			return err
		}

		s.mux.HandleFunc("GET "+svc.SCPDURL(), func(w http.ResponseWriter, r *http.Request) {
			s.handleSCPD(w, r, svc)
		})
		s.mux.Handle("POST "+svc.ControlURL(), router)
		s.mux.HandleFunc(svc.EventSubURL(), s.handleEventSub)

		s.logger.Debug("mounted service routes",
			zap.String("service", svc.Type),
			zap.String("scpd", svc.SCPDURL()),
			zap.String("control", svc.ControlURL()),
		)
	}
	for _, child := range d.SubDevices() {
		if err := s.registerDevice(child); err != nil {
			return err
		}
	}
	return nil
}

// Start binds the listener. Port 0 requests an ephemeral port; Port()
// reports the bound one for LOCATION headers.
func (s *Server) Start(host string, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("server: listen %s:%d: %w", host, port, err)
	}
	s.listener = ln
	s.logger.Info("http host listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Serve blocks handling requests until Shutdown.
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("server: Serve before Start")
	}
	if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Handler exposes the routing table, headers included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http host")
	return s.httpServer.Shutdown(ctx)
}

// withUPnPHeaders stamps every response with the SERVER product string
// and the empty EXT header UPnP requires.
func (s *Server) withUPnPHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		w.Header().Set("Ext", "")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	doc, err := s.root.Description()
	if err != nil {
		s.logger.Error("description rendering failed", zap.Error(err))
		http.Error(w, "description unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write(doc)
}

func (s *Server) handleSCPD(w http.ResponseWriter, r *http.Request, svc *device.Service) {
	doc, err := svc.SCPD()
	if err != nil {
		s.logger.Error("scpd rendering failed",
			zap.String("service", svc.Type),
			zap.Error(err),
		)
		http.Error(w, "scpd unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml")
	w.Write(doc)
}

// handleEventSub answers the GENA endpoint. Eventing is not
// implemented; the path exists because the description advertises it.
func (s *Server) handleEventSub(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "eventing not implemented", http.StatusNotImplemented)
}
