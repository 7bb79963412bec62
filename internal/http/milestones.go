package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"communitysite/internal/events"
	"communitysite/internal/menu"
	"communitysite/internal/metrics"
	"communitysite/internal/milestone"
	"communitysite/internal/triggers"
)

const streamHeartbeat = 25 * time.Second

type unlockRequest struct {
	ID       string `json:"id" validate:"required,max=128"`
	ImageKey string `json:"image_key" validate:"omitempty,max=64"`
	Locale   string `json:"locale" validate:"omitempty,max=16"`
}

type unlockResponse struct {
	Unlocked bool `json:"unlocked"`
}

type triggerRequest struct {
	Key    string `json:"key" validate:"omitempty,max=32"`
	Score  int    `json:"score" validate:"gte=0"`
	Locale string `json:"locale" validate:"omitempty,max=16"`
}

func (a *API) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}
	m, ok := a.Engine.Catalog().Lookup(req.ID)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown milestone")
		return
	}
	if req.ImageKey == "" {
		req.ImageKey = m.ImageKey
	}
	if req.Locale == "" {
		req.Locale = a.locale(r)
	}
	unlocked, err := a.Engine.Unlock(r.Context(), visitorFromContext(r.Context()), req.ID, req.ImageKey, req.Locale)
	if err != nil {
		a.Log.Error("unlock failed", "error", err)
		writeError(w, http.StatusInternalServerError, "UNLOCK_FAILED", "Could not unlock milestone")
		return
	}
	writeJSON(w, http.StatusOK, unlockResponse{Unlocked: unlocked})
}

func (a *API) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
			return
		}
	}
	if req.Locale == "" {
		req.Locale = a.locale(r)
	}
	session := a.Engine.Session(visitorFromContext(r.Context()))
	res, err := a.Triggers.Handle(r.Context(), session, session.Visitor(), triggers.Input{
		Trigger: chi.URLParam(r, "name"),
		Key:     req.Key,
		Score:   req.Score,
		Locale:  req.Locale,
	})
	if errors.Is(err, triggers.ErrUnknownTrigger) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown trigger")
		return
	}
	if err != nil {
		a.Log.Error("trigger failed", "error", err, "trigger", chi.URLParam(r, "name"))
		writeError(w, http.StatusInternalServerError, "UNLOCK_FAILED", "Could not unlock milestone")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleCatalogSize(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"total": a.Engine.Catalog().Len()})
}

func (a *API) handleMenu(w http.ResponseWriter, r *http.Request) {
	session := a.Engine.Peek(visitorFromContext(r.Context()))
	ids, err := session.UnlockedIDs(r.Context())
	if err != nil {
		a.Log.Error("reconcile milestones failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load milestones")
		return
	}
	writeJSON(w, http.StatusOK, a.menuView(r.Context(), session, ids, a.locale(r)))
}

func (a *API) menuView(ctx context.Context, session *milestone.Session, ids []string, locale string) menu.View {
	_, linked := session.Store().GetLinkedUserID(ctx)
	return menu.Build(a.Engine.Catalog(), ids, locale, a.I18n.Func(locale), linked)
}

type sseFrame struct {
	event string
	data  any
}

// handleStream pushes the visitor's milestone events, toast lifecycle and
// menu updates as server-sent events.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)
	visitor := visitorFromContext(ctx)
	locale := a.locale(r)
	session := a.Engine.Peek(visitor)

	ids, err := session.UnlockedIDs(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load milestones")
		return
	}

	frames := make(chan sseFrame, 32)
	send := func(f sseFrame) {
		select {
		case frames <- f:
		default:
			a.Log.Warn("stream buffer full, dropping frame", "visitor", visitor, "event", f.event)
		}
	}

	tracker := menu.NewTracker(a.Engine.Bus(), visitor, ids, func(_ string, ids []string) {
		send(sseFrame{event: "menu", data: a.menuView(context.WithoutCancel(ctx), session, ids, locale)})
	})
	defer tracker.Close()
	unsubscribe := a.Engine.Bus().Subscribe("*", func(_ context.Context, ev events.Event) {
		if ev.Visitor != visitor {
			return
		}
		send(sseFrame{event: ev.Name, data: ev.Detail})
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	if err := writeFrame(w, rc, sseFrame{event: "menu", data: a.menuView(ctx, session, ids, locale)}); err != nil {
		return
	}

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-frames:
			if err := writeFrame(w, rc, f); err != nil {
				a.Log.Debug("stream closed", "visitor", visitor, "error", err)
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, rc *http.ResponseController, f sseFrame) error {
	data, err := json.Marshal(f.data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event, data); err != nil {
		return err
	}
	return rc.Flush()
}
