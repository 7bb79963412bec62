package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"communitysite/internal/auth"
	"communitysite/internal/i18n"
	"communitysite/internal/repo"
	"communitysite/internal/service"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type entityResponse struct {
	ID string `json:"id"`
}

type tokensRequest struct {
	Tokens []string `json:"tokens" validate:"max=256,dive,len=64,hexadecimal"`
}

type tokensResponse struct {
	Tokens []string `json:"tokens"`
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}
	userID, err := a.Service.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, repo.ErrDuplicate) {
		writeError(w, http.StatusConflict, "EMAIL_TAKEN", "Email already registered")
		return
	}
	if err != nil {
		a.Log.Error("register failed", "error", err)
		writeError(w, http.StatusInternalServerError, "REGISTRATION_FAILED", "Registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{ID: userID})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	accessToken, refreshToken, err := a.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: accessToken, RefreshToken: refreshToken})
}

// handleLinkVisitor ties the current browser to the logged-in account and
// pushes what it has unlocked so far.
func (a *API) handleLinkVisitor(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	if _, err := a.Service.Account(r.Context(), userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Account not found")
			return
		}
		a.Log.Error("load account failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not load account")
		return
	}
	session := a.Engine.Peek(visitorFromContext(r.Context()))
	if err := session.Store().SetLinkedUserID(r.Context(), userID); err != nil {
		a.Log.Error("link visitor failed", "error", err)
		writeError(w, http.StatusInternalServerError, "LINK_FAILED", "Could not link visitor")
		return
	}
	tokens := session.Store().GetUnlocked(r.Context())
	if len(tokens) > 0 {
		if _, err := a.Service.SaveUserMilestones(r.Context(), userID, tokens); err != nil {
			a.Log.Warn("initial milestone sync failed", "error", err, "user_id", userID)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"linked": true, "synced": len(tokens)})
}

func (a *API) handleAccountMilestones(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	tokens, err := a.Service.UserMilestones(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list milestones")
		return
	}
	writeJSON(w, http.StatusOK, tokensResponse{Tokens: tokens})
}

func (a *API) handleSaveAccountMilestones(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing user")
		return
	}
	a.saveMilestones(w, r, userID)
}

func (a *API) handleInternalSaveMilestones(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := uuid.Parse(userID); err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	a.saveMilestones(w, r, userID)
}

func (a *API) saveMilestones(w http.ResponseWriter, r *http.Request, userID string) {
	var req tokensRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, &req) {
		return
	}
	_, err := a.Service.SaveUserMilestones(r.Context(), userID, req.Tokens)
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "Tokens must be milestone hashes")
		return
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	case err != nil:
		a.Log.Error("save milestones failed", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save milestones")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) locale(r *http.Request) string {
	explicit := r.URL.Query().Get("lang")
	if explicit == "" {
		if c, err := r.Cookie("locale"); err == nil {
			explicit = c.Value
		}
	}
	return i18n.Resolve(explicit, r.Header.Get("Accept-Language"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid payload")
		return false
	}
	return true
}

func validateRequest(w http.ResponseWriter, req any) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid payload")
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	writeFieldErrors(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid payload", fields)
	return false
}
