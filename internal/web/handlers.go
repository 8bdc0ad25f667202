package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/inventory/internal/asset"
	"github.com/JonMunkholm/inventory/internal/logging"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string    `json:"status"`
	Records  int       `json:"records"`
	Errors   int       `json:"errors"`
	LoadedAt time.Time `json:"loaded_at"`
}

// AssetSummary is one entry of GET /api/assets.
type AssetSummary struct {
	Identity string `json:"identity"`
	Hostname string `json:"hostname"`
	Domain   string `json:"domain"`
}

// LoadError is one entry of GET /api/errors.
type LoadError struct {
	File    string `json:"file"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ReloadResponse is the body of POST /api/reload.
type ReloadResponse struct {
	Records int         `json:"records"`
	Errors  []LoadError `json:"errors"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.current()
	writeJSON(w, HealthResponse{
		Status:   "ok",
		Records:  len(snap.result.Records),
		Errors:   len(snap.result.Errors),
		LoadedAt: snap.loadedAt,
	})
}

// handleListAssets returns every loaded identity in load order.
func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	snap := s.current()

	out := make([]AssetSummary, len(snap.result.Records))
	for i, l := range snap.result.Records {
		out[i] = AssetSummary{
			Identity: l.Identity,
			Hostname: l.Record.Hostname,
			Domain:   l.Record.Domain,
		}
	}
	writeJSON(w, out)
}

// lookup finds the record named by the {identity} URL parameter.
func (s *Server) lookup(r *http.Request) (asset.Record, error) {
	identity := chi.URLParam(r, "identity")
	snap := s.current()

	i, ok := snap.index[identity]
	if !ok {
		return asset.Record{}, fmt.Errorf("%w: %s", asset.ErrRecordNotFound, identity)
	}
	return snap.result.Records[i].Record, nil
}

// handleGetAsset returns one record as JSON with absent values as null.
func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookup(r)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, rec)
}

// handleGetAssetYAML returns one record in its file encoding.
func (s *Server) handleGetAssetYAML(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookup(r)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	data, err := asset.Encode(rec)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Identity()+".yaml"))
	w.Write(data)
}

// handleListErrors returns the files that failed in the current snapshot.
func (s *Server) handleListErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, loadErrors(s.current().result))
}

// handleReload reloads the directory and reports what was loaded.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	result, err := s.Reload(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errReloadBusy) {
			status = http.StatusConflict
		}
		respondError(w, r, err, status)
		return
	}

	logging.FromContext(r.Context()).Info("reload requested",
		"records", len(result.Records),
		"errors", len(result.Errors),
	)
	writeJSON(w, ReloadResponse{
		Records: len(result.Records),
		Errors:  loadErrors(result),
	})
}

func loadErrors(result *asset.LoadResult) []LoadError {
	out := make([]LoadError, len(result.Errors))
	for i, e := range result.Errors {
		msg := asset.MapError(e)
		out[i] = LoadError{
			File:    e.File,
			Error:   e.Err.Error(),
			Message: msg.Message,
			Code:    msg.Code,
		}
	}
	return out
}
