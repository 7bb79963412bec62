package http

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"communitysite/internal/metrics"
	"communitysite/internal/models"
	"communitysite/internal/validation"
)

type schemaResponse struct {
	Schema string            `json:"schema"`
	Locale string            `json:"locale"`
	Fields validation.Schema `json:"fields"`
}

type submitResponse struct {
	ID     string `json:"id,omitempty"`
	Stored bool   `json:"stored"`
}

func (a *API) formSchema(w http.ResponseWriter, r *http.Request) (string, string, validation.Schema, bool) {
	name := chi.URLParam(r, "schema")
	locale := a.locale(r)
	schema, err := validation.CreateValidationSchemas(a.I18n.Func(locale)).Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Unknown form")
		return "", "", nil, false
	}
	return name, locale, schema, true
}

func (a *API) handleFormSchema(w http.ResponseWriter, r *http.Request) {
	name, locale, schema, ok := a.formSchema(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{Schema: name, Locale: locale, Fields: schema})
}

// handleSubmitForm accepts JSON objects as well as url-encoded and multipart
// form posts.
func (a *API) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	name, locale, schema, ok := a.formSchema(w, r)
	if !ok {
		return
	}
	data, ok := readForm(w, r)
	if !ok {
		return
	}

	if errs := validation.ValidateForm(data, schema); len(errs) > 0 {
		metrics.FormRejections.WithLabelValues(name).Inc()
		writeFieldErrors(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", a.I18n.T(locale, "validation.form.invalid"), errs)
		return
	}

	if a.Service == nil {
		writeJSON(w, http.StatusAccepted, submitResponse{Stored: false})
		return
	}
	fields := make(map[string]string, len(schema))
	for field := range schema {
		fields[field] = data.Get(field)
	}
	id, err := a.Service.SubmitContact(r.Context(), models.ContactSubmission{
		Schema:    name,
		Locale:    locale,
		VisitorID: visitorFromContext(r.Context()),
		Fields:    fields,
	})
	if err != nil {
		a.Log.Error("store contact submission failed", "error", err, "schema", name)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store submission")
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{ID: id, Stored: true})
}

func readForm(w http.ResponseWriter, r *http.Request) (validation.FormData, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var values validation.Values
		if !decodeJSON(w, r, &values) {
			return nil, false
		}
		return values, true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "Invalid form payload")
		return nil, false
	}
	return r.PostForm, true
}
