package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/auto-dns/docker-image-watch/internal/agent"
	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/store"
)

const maxBodyBytes = 4 << 20

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, agent.ErrorResponse{Error: msg})
}

func componentID(r *http.Request) string {
	return component.FormatID("", r.PathValue("type"), r.PathValue("name"))
}

func (s *Server) listContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := s.containers.List(r.Context(), store.Filter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if containers == nil {
		containers = []domain.Container{}
	}
	writeJSON(w, http.StatusOK, containers)
}

func (s *Server) deleteContainer(w http.ResponseWriter, r *http.Request) {
	if !s.opts.ContainerDelete {
		writeError(w, http.StatusForbidden, "container deletion is disabled")
		return
	}
	id := r.PathValue("id")
	if err := s.containers.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "container "+id+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func describe[P component.Provider](providers []P) []agent.ComponentDescriptor {
	out := make([]agent.ComponentDescriptor, 0, len(providers))
	for _, p := range providers {
		out = append(out, agent.ComponentDescriptor{
			Type:          p.Type(),
			Name:          p.Name(),
			Configuration: p.MaskConfiguration(nil),
		})
	}
	return out
}

func (s *Server) listWatchers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, describe(s.registry.Watchers()))
}

func (s *Server) listTriggers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, describe(s.registry.Triggers()))
}

func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	id := componentID(r)
	watcher, ok := s.registry.Watcher(id)
	if !ok {
		writeError(w, http.StatusNotFound, "watcher "+id+" not found")
		return
	}
	reports, err := watcher.Watch(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Str("watcher", id).Msg("Remote watch failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reports == nil {
		reports = []domain.ContainerReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) watchContainer(w http.ResponseWriter, r *http.Request) {
	id := componentID(r)
	watcher, ok := s.registry.Watcher(id)
	if !ok {
		writeError(w, http.StatusNotFound, "watcher "+id+" not found")
		return
	}
	containerID := r.PathValue("id")
	container, err := s.containers.Get(r.Context(), containerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "container "+containerID+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	report, err := watcher.WatchContainer(r.Context(), container)
	if err != nil {
		s.logger.Warn().Err(err).Str("watcher", id).Str("container", containerID).Msg("Remote container watch failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) runTrigger(w http.ResponseWriter, r *http.Request) {
	var container domain.Container
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&container); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a container object")
		return
	}
	// A container handed to an agent must never be proxied back out.
	container.Agent = ""
	s.execute(w, r, func(t component.Trigger) error {
		return t.Trigger(r.Context(), container)
	})
}

func (s *Server) runTriggerBatch(w http.ResponseWriter, r *http.Request) {
	var containers []domain.Container
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&containers); err != nil || containers == nil {
		writeError(w, http.StatusBadRequest, "body must be an array of containers")
		return
	}
	for i := range containers {
		containers[i].Agent = ""
	}
	s.execute(w, r, func(t component.Trigger) error {
		return t.TriggerBatch(r.Context(), containers)
	})
}

// execute resolves the trigger named in the path and runs fn against it.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, fn func(component.Trigger) error) {
	id := componentID(r)
	trigger, ok := s.registry.Trigger(id)
	if !ok {
		writeError(w, http.StatusNotFound, "trigger "+id+" not found")
		return
	}
	if err := fn(trigger); err != nil {
		s.logger.Warn().Err(err).Str("trigger", id).Msg("Remote trigger failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}
