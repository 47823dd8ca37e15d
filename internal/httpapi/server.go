// Package httpapi implements C8: the REST+SSE front that exposes
// C4 (state), C5 (stream registry), C6 (negotiator), and C7 (preview
// proxy) to external clients, plus the durable-store CRUD surface for
// devices, entity types, routing, and analytics.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jordansnyder/maestra-core/internal/bus"
	"github.com/jordansnyder/maestra-core/internal/httpmw"
	"github.com/jordansnyder/maestra-core/internal/logger"
	"github.com/jordansnyder/maestra-core/internal/negotiator"
	"github.com/jordansnyder/maestra-core/internal/previewproxy"
	"github.com/jordansnyder/maestra-core/internal/stateengine"
	"github.com/jordansnyder/maestra-core/internal/store"
	"github.com/jordansnyder/maestra-core/internal/streamreg"
)

// Server wires every component's capability into one gorilla/mux router.
type Server struct {
	store      *store.Store
	engine     *stateengine.Engine
	streams    *streamreg.Registry
	negotiator *negotiator.Negotiator
	proxy      *previewproxy.Proxy
	bus        *bus.Bus
	log        logger.Logger
	serviceName string
	startedAt  time.Time

	router  *mux.Router
	handler http.Handler
}

// Deps bundles the components the HTTP front exposes.
type Deps struct {
	Store       *store.Store
	Engine      *stateengine.Engine
	Streams     *streamreg.Registry
	Negotiator  *negotiator.Negotiator
	Proxy       *previewproxy.Proxy
	Bus         *bus.Bus
	Log         logger.Logger
	ServiceName string
	CORS        httpmw.CORSConfig
}

func NewServer(d Deps) *Server {
	s := &Server{
		store:       d.Store,
		engine:      d.Engine,
		streams:     d.Streams,
		negotiator:  d.Negotiator,
		proxy:       d.Proxy,
		bus:         d.Bus,
		log:         d.Log,
		serviceName: d.ServiceName,
		startedAt:   time.Now().UTC(),
		router:      mux.NewRouter(),
	}

	s.registerHealthRoutes()
	s.registerDeviceRoutes()
	s.registerIngestRoutes()
	s.registerEntityRoutes()
	s.registerStateRoutes()
	s.registerVariableRoutes()
	s.registerStreamRoutes()
	s.registerRoutingRoutes()
	s.registerAnalyticsRoutes()

	s.handler = httpmw.CommonMiddleware(s.router, d.CORS, d.Log)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
