package http

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/c360/marinestreams/alert"
	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/security"
)

// authorize checks capability and writes the failure envelope when it is
// missing.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, capability string) (security.Principal, bool) {
	p, err := s.deps.Security.Authorize(r, capability)
	if err != nil {
		s.logger.Debug("Request not authorized", "path", r.URL.Path, "capability", capability, "error", err)
		status := errors.HTTPStatus(err)
		writeFailed(w, status, http.StatusText(status))
		return p, false
	}
	return p, true
}

// readBody reads at most cfg.MaxRequestSize bytes.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxRequestSize))
	if err != nil {
		writeFailed(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityRead); !ok {
		return
	}

	q := r.URL.Query()
	var params alert.ListParams
	if q.Has("priority") {
		p := alert.Priority(q.Get("priority"))
		params.Priority = &p
	}
	if q.Has("unack") {
		u := q.Get("unack")
		params.Unack = &u
	}
	if q.Has("top") {
		// unparsable values keep every match
		if n, err := strconv.Atoi(q.Get("top")); err == nil {
			params.Top = &n
		}
	}
	writeJSON(w, http.StatusOK, s.deps.Alerts.List(params))
}

func (s *Server) getAlert(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityRead); !ok {
		return
	}
	a, found := s.deps.Alerts.Get(chi.URLParam(r, "id"))
	if !found {
		writeFailed(w, http.StatusNotFound, msgAlertNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a.Value())
}

func (s *Server) createAlert(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validate(createAlertSchema, body); err != nil {
		s.rejectBody(w, err, "priority", msgInvalidPriority)
		return
	}

	var req struct {
		Priority   alert.Priority  `json:"priority"`
		Properties *alert.MetaData `json:"properties"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailed(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := s.deps.Alerts.Raise(req.Priority, req.Properties)
	if err != nil {
		writeFailed(w, http.StatusBadRequest, msgInvalidPriority)
		return
	}
	writeCompleted(w, a.ID())
}

func (s *Server) raiseMOB(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validate(mobSchema, body); err != nil {
		s.rejectBody(w, err, "", "")
		return
	}

	var req struct {
		Name      string `json:"name"`
		Message   string `json:"message"`
		SourceRef string `json:"sourceRef"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeFailed(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	a, err := s.deps.Alerts.MOB(alert.MetaData{Name: req.Name, Message: req.Message, SourceRef: req.SourceRef})
	if err != nil {
		writeFailed(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Warn("Man overboard raised", "alert_id", a.ID(), "source", req.SourceRef)
	writeCompleted(w, a.ID())
}

func (s *Server) ackAll(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
		return
	}
	s.deps.Alerts.AckAll()
	writeCompleted(w, "")
}

func (s *Server) silenceAll(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
		return
	}
	s.deps.Alerts.SilenceAll()
	writeCompleted(w, "")
}

func (s *Server) cleanAlerts(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
		return
	}
	s.deps.Alerts.Clean()
	writeCompleted(w, "")
}

// withAlert runs fn on the alert named by the {id} parameter. Unknown ids
// are ignored and still complete.
func (s *Server) withAlert(fn func(*alert.Alert)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
			return
		}
		id := chi.URLParam(r, "id")
		if a, found := s.deps.Alerts.Get(id); found {
			fn(a)
		}
		writeCompleted(w, id)
	}
}

func (s *Server) ackAlert(w http.ResponseWriter, r *http.Request) {
	s.withAlert((*alert.Alert).Ack)(w, r)
}

func (s *Server) unackAlert(w http.ResponseWriter, r *http.Request) {
	s.withAlert((*alert.Alert).UnAck)(w, r)
}

func (s *Server) resolveAlert(w http.ResponseWriter, r *http.Request) {
	s.withAlert((*alert.Alert).Resolve)(w, r)
}

func (s *Server) silenceAlert(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
		return
	}
	id := chi.URLParam(r, "id")
	a, found := s.deps.Alerts.Get(id)
	if !found || !a.Silence() {
		writeFailed(w, http.StatusBadRequest, msgSilenceFailed)
		return
	}
	writeCompleted(w, id)
}

func (s *Server) setProperties(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validate(propertiesSchema, body); err != nil {
		s.rejectBody(w, err, "(root)", msgNoProperties)
		return
	}

	var md alert.MetaData
	if err := json.Unmarshal(body, &md); err != nil {
		writeFailed(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if a, found := s.deps.Alerts.Get(id); found {
		if err := a.SetProperties(md); err != nil {
			writeFailed(w, http.StatusBadRequest, msgNoProperties)
			return
		}
	}
	writeCompleted(w, id)
}

func (s *Server) updatePriority(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if err := validate(updatePrioritySchema, body); err != nil {
		s.rejectBody(w, err, "value", msgInvalidPriority)
		return
	}

	var req struct {
		Value alert.Priority `json:"value"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailed(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if a, found := s.deps.Alerts.Get(id); found {
		if err := a.UpdatePriority(req.Value); err != nil {
			writeFailed(w, http.StatusBadRequest, msgInvalidPriority)
			return
		}
	}
	writeCompleted(w, id)
}

func (s *Server) deleteAlert(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, security.CapabilityAlerts); !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.deps.Alerts.Delete(id); err != nil {
		writeFailed(w, http.StatusBadRequest, msgAlertActive)
		return
	}
	writeCompleted(w, id)
}

// rejectBody writes a 400 for a failed validation. When the failure
// concerns field, message replaces the schema detail.
func (s *Server) rejectBody(w http.ResponseWriter, err error, field, message string) {
	var se schemaErrors
	switch {
	case !stderrors.As(err, &se):
		writeFailed(w, http.StatusBadRequest, "Request body is not valid JSON")
	case field != "" && se.concerns(field):
		writeFailed(w, http.StatusBadRequest, message)
	default:
		writeFailed(w, http.StatusBadRequest, se.Error())
	}
}
