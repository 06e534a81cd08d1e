// Package server exposes a command station over HTTP: Prometheus metrics,
// a JSON status document and the text console.
package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dccwave/core"
)

// maxConsoleBody bounds a POST /console request.
const maxConsoleBody = 256

// Config for the HTTP server.
type Config struct {
	// Host interface to listen on
	Host string
	// Port to listen on for HTTP requests
	Port int
}

// AnalogReading is one sampled pin.
type AnalogReading struct {
	Pin   core.Pin `json:"pin"`
	Value int      `json:"value"`
}

// Status is a snapshot of a command station.
type Status struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
	// FreeMemory is the watermark in bytes, -1 until first sampled
	FreeMemory int             `json:"free_memory"`
	Uptime     time.Duration   `json:"uptime_ns"`
	ISR        core.ISRStats   `json:"isr"`
	PWMActive  bool            `json:"pwm_active"`
	Analog     []AnalogReading `json:"analog"`
}

// Target is the station served over HTTP.
type Target interface {
	// Status returns a consistent snapshot of the station.
	Status() Status
	// Execute runs a console command given without its <> delimiters.
	Execute(cmd string) []string
}

// Server runs the HTTP server for a station.
type Server struct {
	Config
	log      zerolog.Logger
	target   Target
	registry *prometheus.Registry
	router   *echo.Echo
}

// New configures a new Server.
func New(cfg Config, log zerolog.Logger, target Target) *Server {
	s := &Server{
		Config:   cfg,
		log:      log.With().Str("component", "server").Logger(),
		target:   target,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(newCollector(target))

	r := echo.New()
	r.HideBanner = true
	r.HidePort = true
	r.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	r.GET("/health", s.handleHealth)
	r.GET("/status", s.handleStatus)
	r.POST("/console", s.handleConsole)
	s.router = r
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run the server until the given context is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on address %s", addr)
	}
	httpSrv := http.Server{
		Handler: s.router,
	}

	s.log.Debug().Str("address", addr).Msg("Serving HTTP")
	errc := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(lis); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return errors.Wrap(err, "failed to serve HTTP server")
		}
	}

	s.log.Info().Msg("Closing server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type statusResponse struct {
	Status
	FreeMemoryText string `json:"free_memory_text"`
	UptimeText     string `json:"uptime_text"`
}

func (s *Server) handleStatus(c echo.Context) error {
	st := s.target.Status()
	freeText := "not sampled"
	if st.FreeMemory >= 0 {
		freeText = humanize.IBytes(uint64(st.FreeMemory))
	}
	return c.JSON(http.StatusOK, statusResponse{
		Status:         st,
		FreeMemoryText: freeText,
		UptimeText:     st.Uptime.Truncate(time.Millisecond).String(),
	})
}

type consoleResponse struct {
	Command string   `json:"command"`
	Frames  []string `json:"frames"`
}

// handleConsole accepts a command with or without its <> delimiters.
func (s *Server) handleConsole(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxConsoleBody+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(body) > maxConsoleBody {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "command too long")
	}
	cmd := strings.TrimSpace(string(body))
	cmd = strings.TrimSuffix(strings.TrimPrefix(cmd, "<"), ">")
	if cmd == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty command")
	}
	frames := s.target.Execute(cmd)
	s.log.Debug().Str("command", cmd).Strs("reply", frames).Msg("Console command")
	return c.JSON(http.StatusOK, consoleResponse{Command: cmd, Frames: frames})
}
