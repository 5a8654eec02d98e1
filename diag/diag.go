/*Package diag exposes the simulated rack's state over read-only HTTP:
per-module chain status and per-channel segment state, the same data
the front panel shows, for an operator or test harness to poll without
tapping the process's stdout.

Grounded on generichttp's handler-factory style (one function per
resource returning a plain http.HandlerFunc) and envsrv's
json.NewEncoder-to-ResponseWriter pattern, routed with
github.com/go-chi/chi for its URL-parameter extraction instead of the
teacher's own RouteTable indirection, since this package only ever
needs a handful of GET routes.
*/
package diag

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/stagesfw/firmware/app"
	"github.com/stagesfw/firmware/chain"
	"github.com/stagesfw/firmware/segment"
)

// Server is a read-only introspection HTTP server over a rack's
// modules.
type Server struct {
	router *chi.Mux
}

// New builds a Server with routes for every module in modules, indexed
// by its position in the slice.
func New(modules []*app.Module) *Server {
	s := &Server{router: chi.NewRouter()}
	s.router.Get("/modules/{id}/chain", s.handleChain(modules))
	s.router.Get("/modules/{id}/channels", s.handleChannels(modules))
	return s
}

// ServeHTTP lets Server be used directly with net/http.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func moduleFromRequest(modules []*app.Module, r *http.Request) (*app.Module, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(modules) {
		return nil, errOutOfRange
	}
	return modules[id], nil
}

var errOutOfRange = &moduleRangeError{}

type moduleRangeError struct{}

func (*moduleRangeError) Error() string { return "diag: module index out of range" }

// chainStatus is the JSON view of one module's discovery/chain state.
type chainStatus struct {
	Status   string `json:"status"`
	Index    int    `json:"index"`
	Size     int    `json:"size"`
	Advanced bool   `json:"advanced"`
	Offline  bool   `json:"offline"`
}

func (s *Server) handleChain(modules []*app.Module) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := moduleFromRequest(modules, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		cs := m.Chain()
		body := chainStatus{
			Status:   statusName(cs.Status()),
			Index:    cs.Index,
			Size:     cs.Size,
			Advanced: cs.Advanced,
			Offline:  m.Offline,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// channelView is the JSON view of one channel's mirrored segment
// state, the same fields the front panel's LED logic reads.
type channelView struct {
	Channel      int     `json:"channel"`
	Type         string  `json:"type"`
	Loop         bool    `json:"loop"`
	Bipolar      bool    `json:"bipolar"`
	InputPatched bool    `json:"input_patched"`
	Pot          float32 `json:"pot"`
	CVSlider     float32 `json:"cv_slider"`
}

func (s *Server) handleChannels(modules []*app.Module) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := moduleFromRequest(modules, r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		cs := m.Chain()
		base := cs.Index * chain.NumChannels
		views := make([]channelView, chain.NumChannels)
		for i := 0; i < chain.NumChannels; i++ {
			ch := cs.Channel(base + i)
			views[i] = channelView{
				Channel:      base + i,
				Type:         segmentTypeName(ch.Type),
				Loop:         ch.Loop,
				Bipolar:      ch.Bipolar,
				InputPatched: ch.InputPatched,
				Pot:          ch.Pot,
				CVSlider:     ch.CVSlider,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(views); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func segmentTypeName(t segment.Type) string {
	switch t {
	case segment.TypeRamp:
		return "ramp"
	case segment.TypeStep:
		return "step"
	case segment.TypeHold:
		return "hold"
	case segment.TypeTuring:
		return "turing"
	default:
		return "unknown"
	}
}

func statusName(s chain.Status) string {
	switch s {
	case chain.StatusDiscovering:
		return "discovering"
	case chain.StatusReinitializing:
		return "reinitializing"
	case chain.StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}
