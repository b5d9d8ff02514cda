// Package web serves the calculator as a JSON API and a websocket that recomputes
// on every edit.
package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/marksman/internal/config"
	"github.com/cory-johannsen/marksman/internal/game/marksman"
	"github.com/cory-johannsen/marksman/internal/game/preset"
	"github.com/cory-johannsen/marksman/internal/game/session"
	"github.com/cory-johannsen/marksman/internal/observability"
)

// Server holds the HTTP handlers. It carries no per-request state.
type Server struct {
	sessions *session.Manager
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer creates a Server whose websocket accepts the origins in cfg.AllowedOrigins.
//
// Precondition: sessions and logger must be non-nil.
func NewServer(cfg config.HTTPConfig, sessions *session.Manager, logger *zap.Logger) *Server {
	return &Server{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		logger: logger,
	}
}

// originChecker allows every origin when allowed is empty or contains "*".
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return func(req *http.Request) bool {
		if len(set) == 0 || set["*"] {
			return true
		}
		origin := req.Header.Get("Origin")
		return origin == "" || set[strings.ToLower(origin)]
	}
}

// Handler returns the routed API wrapped in request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	api.HandleFunc("/policies", s.handlePolicies).Methods(http.MethodGet)
	api.HandleFunc("/presets", s.handlePresets).Methods(http.MethodGet)
	api.HandleFunc("/presets/{id}", s.handlePreset).Methods(http.MethodGet)
	api.HandleFunc("/form", s.handleForm).Methods(http.MethodGet)
	api.HandleFunc("/sessions", s.handleSessions).Methods(http.MethodGet)
	api.HandleFunc("/resolve", s.handleResolveQuery).Methods(http.MethodGet)
	api.HandleFunc("/resolve", s.handleResolve).Methods(http.MethodPost)
	api.HandleFunc("/simulate", s.handleSimulate).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	notFound := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such endpoint")
	})
	notAllowed := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler, api.NotFoundHandler = notFound, notFound
	r.MethodNotAllowedHandler, api.MethodNotAllowedHandler = notAllowed, notAllowed
	r.Use(observability.RequestLogger(s.logger))
	return r
}

// HTTPServer builds the listener for cfg serving s.
func (s *Server) HTTPServer(cfg config.HTTPConfig) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Count()})
}

// PolicyList is the body of GET /api/policies.
type PolicyList struct {
	Policies []string `json:"policies"`
	Default  string   `json:"default"`
}

func (s *Server) handlePolicies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PolicyList{Policies: s.sessions.PolicyNames(), Default: s.sessions.DefaultPolicy().Name()})
}

func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Presets())
}

func (s *Server) handlePreset(w http.ResponseWriter, req *http.Request) {
	p, err := s.sessions.Preset(mux.Vars(req)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// FormDescription is the body of GET /api/form.
type FormDescription struct {
	Fields   []marksman.FieldSpec `json:"fields"`
	Policies []string             `json:"policies"`
	Default  string               `json:"default_policy"`
	Result   ResolveResponse      `json:"result"`
}

func (s *Server) handleForm(w http.ResponseWriter, _ *http.Request) {
	form := marksman.NewForm(s.sessions.DefaultPolicy())
	writeJSON(w, http.StatusOK, FormDescription{
		Fields:   marksman.FieldSpecs(),
		Policies: s.sessions.PolicyNames(),
		Default:  s.sessions.DefaultPolicy().Name(),
		Result:   newResolveResponse(form.Result()),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleResolve(w http.ResponseWriter, req *http.Request) {
	body, ok := decodeRequest(w, req)
	if !ok {
		return
	}
	s.resolve(w, body)
}

// handleResolveQuery reads policy, preset and field names from the query string.
func (s *Server) handleResolveQuery(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	body := ResolveRequest{
		Policy: q.Get("policy"),
		Preset: q.Get("preset"),
		Fields: make(map[string]FieldValue),
	}
	for key, values := range q {
		if key == "policy" || key == "preset" || len(values) == 0 {
			continue
		}
		body.Fields[key] = FieldValue(values[0])
	}
	s.resolve(w, body)
}

func (s *Server) resolve(w http.ResponseWriter, body ResolveRequest) {
	in, policy, err := s.input(body)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newResolveResponse(marksman.Resolve(in, policy)))
}

func (s *Server) handleSimulate(w http.ResponseWriter, req *http.Request) {
	body, ok := decodeRequest(w, req)
	if !ok {
		return
	}
	in, policy, err := s.input(body)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	sim, err := s.sessions.Simulate(req.Context(), in, policy, body.Trials)
	if err != nil {
		if req.Context().Err() == nil {
			s.logger.Debug("simulation rejected", zap.Error(err))
		}
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

// input builds the attack input of body: the preset (if any) overlaid with the fields.
func (s *Server) input(body ResolveRequest) (marksman.AttackInput, marksman.HitPolicy, error) {
	policy, err := s.sessions.Policy(body.Policy)
	if err != nil {
		return marksman.AttackInput{}, nil, err
	}
	fields, err := fieldsOf(body.Fields)
	if err != nil {
		return marksman.AttackInput{}, nil, err
	}
	if body.Preset != "" {
		p, err := s.sessions.Preset(body.Preset)
		if err != nil {
			return marksman.AttackInput{}, nil, err
		}
		base := marksman.FieldsOf(p.Input())
		for f, v := range fields {
			base[f] = v
		}
		fields = base
	}
	return marksman.ParseInput(fields, policy), policy, nil
}

func decodeRequest(w http.ResponseWriter, req *http.Request) (ResolveRequest, bool) {
	var body ResolveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return ResolveRequest{}, false
	}
	return body, true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, marksman.ErrUnknownPolicy), errors.Is(err, preset.ErrUnknownPreset):
		return http.StatusNotFound
	case errors.Is(err, marksman.ErrUnknownField), errors.Is(err, session.ErrTooManyTrials):
		return http.StatusBadRequest
	case errors.Is(err, marksman.ErrPolicyCannotRoll), errors.Is(err, marksman.ErrTooManyAttacks):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
