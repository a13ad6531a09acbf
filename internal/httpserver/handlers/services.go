package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/httpserver/deps"
	"github.com/axondata/go-supervise/internal/logger"
)

type controlResponse struct {
	Service string `json:"service"`
	Op      string `json:"op"`
}

type listResponse struct {
	Services map[string]supervise.Record `json:"services"`
	Errors   []string                    `json:"errors,omitempty"`
}

func service(d deps.Deps, r *http.Request) (*supervise.Service, error) {
	name := chi.URLParam(r, "name")
	if err := checkName(name); err != nil {
		return nil, err
	}
	return d.Manager.Service(name)
}

// Status reads the status record of one service
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc, err := service(d, r)
		if err != nil {
			writeError(w, d, err)
			return
		}

		rec, err := svc.Status(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, d, http.StatusOK, rec)
	}
}

// Control sends the operation named in the path to one service
func Control(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, err := supervise.ParseOperation(chi.URLParam(r, "op"))
		if err != nil {
			writeError(w, d, err)
			return
		}

		svc, err := service(d, r)
		if err != nil {
			writeError(w, d, err)
			return
		}

		if err := svc.Send(r.Context(), op); err != nil {
			writeError(w, d, err)
			return
		}

		name := chi.URLParam(r, "name")
		d.Logger.Info("control command sent",
			logger.String("service", name),
			logger.String("op", op.String()),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, d, http.StatusAccepted, controlResponse{Service: name, Op: op.String()})
	}
}

// List reads every configured service. Services that could not be read
// are left out and their errors listed.
func List(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := d.Manager.Status(r.Context(), d.Services...)
		resp := listResponse{Services: records}

		var merr *supervise.MultiError
		switch {
		case err == nil:
		case errors.As(err, &merr):
			for _, e := range merr.Errors {
				resp.Errors = append(resp.Errors, e.Error())
			}
		default:
			writeError(w, d, err)
			return
		}
		writeJSON(w, d, http.StatusOK, resp)
	}
}
