package netutil

import (
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/net/netutil"

	"github.com/tiglabs/baudschema/util/atomic"
	"github.com/tiglabs/baudschema/util/log"
)

type ServerConfig struct {
	Name      string
	Addr      string // ip:port
	Version   string
	ConnLimit int // 0 means unlimited
}

// Server routes requests with httprouter and serves them on a
// connection-limited listener.
type Server struct {
	cfg    *ServerConfig
	server *http.Server
	router *httprouter.Router
	closed *atomic.AtomicBool
}

func NewServer(config *ServerConfig) *Server {
	s := &Server{
		cfg:    config,
		router: httprouter.New(),
		closed: atomic.NewAtomicBool(false),
	}
	s.router.PanicHandler = s.recoverPanic
	s.server = &http.Server{Handler: s.router}

	s.Handle(http.MethodGet, "/debug/ping", PingPong)
	for _, name := range []string{"cmdline", "profile", "symbol", "trace"} {
		s.HandleHTTP(http.MethodGet, "/debug/pprof/"+name, pprofHandler(name))
	}
	s.HandleHTTP(http.MethodGet, "/debug/pprof/", http.HandlerFunc(pprof.Index))
	return s
}

func pprofHandler(name string) http.Handler {
	switch name {
	case "cmdline":
		return http.HandlerFunc(pprof.Cmdline)
	case "profile":
		return http.HandlerFunc(pprof.Profile)
	case "symbol":
		return http.HandlerFunc(pprof.Symbol)
	case "trace":
		return http.HandlerFunc(pprof.Trace)
	}
	return pprof.Handler(name)
}

type UriParams map[string]string

func (p UriParams) ByName(name string) string {
	return p[name]
}

type Handle func(http.ResponseWriter, *http.Request, UriParams)

// Handle registers handle for method and uri. Requests are logged at
// debug level with their latency.
func (s *Server) Handle(method, uri string, handle Handle) {
	s.router.Handle(method, uri, func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		start := time.Now()
		uriParams := make(UriParams, len(params))
		for _, param := range params {
			if _, ok := uriParams[param.Key]; !ok {
				uriParams[param.Key] = param.Value
			}
		}
		handle(w, r, uriParams)
		if log.IsDebugEnabled() {
			log.Debug("%s: %s %s took %v", s.cfg.Name, r.Method, r.URL.RequestURI(), time.Since(start))
		}
	})
}

// HandleHTTP mounts a plain http.Handler.
func (s *Server) HandleHTTP(method, uri string, handler http.Handler) {
	s.router.Handler(method, uri, handler)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) recoverPanic(w http.ResponseWriter, r *http.Request, v interface{}) {
	log.Error("%s: panic serving %s %s: %v", s.cfg.Name, r.Method, r.URL.RequestURI(), v)
	Error(w, fmt.Sprintf("internal error: %v", v), http.StatusInternalServerError)
}

// Close stops serving. It is safe to call before Run and more than once.
func (s *Server) Close() {
	if !s.closed.CompareAndSet(false, true) {
		return
	}
	s.server.Close()
}

func (s *Server) isClosed() bool {
	return s.closed.Get()
}

// Run listens on the configured address and serves until Close.
func (s *Server) Run() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		log.Error("%s: fail to listen on [%v]: %v", s.cfg.Name, s.cfg.Addr, err)
		return err
	}
	if s.cfg.ConnLimit > 0 {
		l = netutil.LimitListener(l, s.cfg.ConnLimit)
	}

	log.Info("%s %s listening on [%s], conn-limit[%d]", s.cfg.Name, s.cfg.Version, l.Addr(), s.cfg.ConnLimit)
	if err = s.server.Serve(l); err != nil && !s.isClosed() {
		log.Error("%s: serve failed: %v", s.cfg.Name, err)
		return err
	}
	return nil
}

func (s *Server) Name() string {
	return s.cfg.Name
}

// Error replies with a plain text message and code.
func Error(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	fmt.Fprintln(w, msg)
}

func PingPong(w http.ResponseWriter, _ *http.Request, _ UriParams) {
	w.Write([]byte("ok"))
}
