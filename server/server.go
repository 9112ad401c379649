// Package server exposes a storage.Store over HTTP.
//
// Notes are read, replaced and deleted at /notes/{name}, listed at /notes and
// created by posting the form fields note_name and note to /write. The page
// at /UploadForm.html lets a browser do the latter. When a note is missing
// the response is 404; creating a note that exists, or using a name that
// cannot be stored, is 400; any other storage error is 500. Bodies are short
// plain text messages, except for reads and listings.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nicolagi/notestore/storage"
	log "github.com/sirupsen/logrus"
)

type Option func(*options)

type options struct {
	address     string
	store       storage.Store
	metrics     bool
	maxBodySize int64
}

func WithAddress(value string) Option {
	return func(o *options) {
		o.address = value
	}
}

func WithStore(value storage.Store) Option {
	return func(o *options) {
		o.store = value
	}
}

// WithMetrics enables request metrics, served in the Prometheus text format at
// /metrics.
func WithMetrics(value bool) Option {
	return func(o *options) {
		o.metrics = value
	}
}

// WithMaxBodySize limits the size of request bodies. Larger requests get 413.
func WithMaxBodySize(value int64) Option {
	return func(o *options) {
		o.maxBodySize = value
	}
}

type Server struct {
	opts    options
	router  *chi.Mux
	metrics *metrics
	ln      net.Listener
	srv     *http.Server
}

func New(opts ...Option) *Server {
	s := &Server{
		router: chi.NewRouter(),
	}
	s.opts.address = "localhost:3000"
	s.opts.maxBodySize = 1 << 20
	for _, o := range opts {
		o(&s.opts)
	}
	if s.opts.store == nil {
		s.opts.store = storage.NewInMemoryStore()
	}
	if s.opts.metrics {
		s.metrics = newMetrics()
	}
	s.routes()
	s.srv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(recoverer)
	s.router.Use(s.instrument)

	s.router.Get("/notes", s.handle("list", s.listNotes))
	s.router.Get("/notes/{name}", s.handle("get", s.getNote))
	s.router.Put("/notes/{name}", s.handle("replace", s.replaceNote))
	s.router.Delete("/notes/{name}", s.handle("delete", s.deleteNote))
	s.router.Post("/write", s.handle("create", s.createNote))
	s.router.Get("/UploadForm.html", s.handle("form", s.uploadForm))

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.handler())
	}
}

// Handler returns the HTTP handler serving all routes, for use without
// Listen and Serve.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Listen() (addr string, err error) {
	s.ln, err = net.Listen("tcp", s.opts.address)
	if err != nil {
		return
	}
	addr = s.ln.Addr().String()
	return
}

// Serve handles requests on the listener opened by Listen. It returns nil
// once Shutdown is called.
func (s *Server) Serve() error {
	err := s.srv.Serve(s.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests to
// complete, or for the context to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Debug("Shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}
