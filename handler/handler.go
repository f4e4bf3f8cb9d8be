// Package handler provides the HTTP handlers for the mock server.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	logging "gopkg.in/op/go-logging.v1"

	"github.com/stevemurr/json-mock-server/envelope"
	"github.com/stevemurr/json-mock-server/policy"
	"github.com/stevemurr/json-mock-server/store"
)

var log = logging.MustGetLogger("jsonmock.handler")

const maxBodyBytes = 2 << 20

// In-band response messages.
const (
	msgConflict     = "data conflict"
	msgNotFound     = "data not found"
	msgFormNotFound = "form not found"
	msgDataNotFound = "dataset not found"
	msgInvalidID    = "invalid id"
)

// badRequest is a client error whose text is sent back as the message.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

// Handler holds the server dependencies and registers routes.
type Handler struct {
	db      *policy.Guard
	forms   *envelope.Repository
	dataset *envelope.Repository
	mux     *http.ServeMux
}

// New creates a Handler and wires up all routes.
func New(g *policy.Guard) *Handler {
	h := &Handler{
		db:      g,
		forms:   envelope.Forms(g),
		dataset: envelope.Dataset(g),
		mux:     http.NewServeMux(),
	}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /health", h.health)

	// --- Legacy posts endpoints (raw bodies, string ids) ---
	h.mux.HandleFunc("GET /posts", h.listPosts)
	h.mux.HandleFunc("GET /posts/{id}", h.getPost)
	h.mux.HandleFunc("POST /posts", h.createPost)
	h.mux.HandleFunc("PUT /posts", h.updatePost)
	h.mux.HandleFunc("DELETE /posts/{id}", h.deletePost)

	// --- Ad-hoc root keys and named collections ---
	for _, prefix := range []string{"/data", "/custom"} {
		h.mux.HandleFunc("POST "+prefix, h.setRaw)
		h.mux.HandleFunc("GET "+prefix+"/{name}", h.getRecords)
		h.mux.HandleFunc("POST "+prefix+"/{name}", h.insertRecord)
		h.mux.HandleFunc("PUT "+prefix+"/{name}", h.updateRecord)
		h.mux.HandleFunc("DELETE "+prefix+"/{name}", h.deleteRecords)
	}

	// --- Envelope collections ---
	h.mux.HandleFunc("GET /form", h.getEnvelopes(h.forms, msgFormNotFound))
	h.mux.HandleFunc("GET /forms", h.getEnvelopes(h.forms, msgFormNotFound))
	h.mux.HandleFunc("POST /form/{id}", h.putEnvelope(h.forms))
	h.mux.HandleFunc("DELETE /form/{id}", h.deleteEnvelope(h.forms))

	h.mux.HandleFunc("GET /dataset", h.getEnvelopes(h.dataset, msgDataNotFound))
	h.mux.HandleFunc("POST /dataset/{id}", h.putEnvelope(h.dataset))
	h.mux.HandleFunc("DELETE /dataset/{id}", h.deleteEnvelope(h.dataset))

	// --- Generic lookup of any top-level key ---
	h.mux.HandleFunc("GET /{name}", h.getRecords)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeOK writes the success envelope {code: 200, data}.
func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"code": 200, "data": data})
}

// writeFail writes the error envelope {code: 500, msg}. The transport status
// stays 200; clients read the outcome from code.
func writeFail(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]any{"code": 500, "msg": msg})
}

// fail maps a domain error onto its in-band message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, policy.ErrForbidden):
		writeFail(w, policy.ErrForbidden.Error())
	case errors.Is(err, store.ErrConflict):
		writeFail(w, msgConflict)
	case errors.Is(err, store.ErrNotFound):
		writeFail(w, msgNotFound)
	case errors.Is(err, store.ErrMissingID):
		writeFail(w, msgInvalidID)
	case errors.Is(err, store.ErrNotCollection):
		writeFail(w, err.Error())
	case errors.As(err, new(*badRequest)):
		writeFail(w, err.Error())
	default:
		log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeFail(w, err.Error())
	}
}

// readJSON decodes the request body keeping numbers as json.Number, so
// integer ids stay integers. The body must hold exactly one JSON value of at
// most maxBodyBytes.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err != nil {
			return bodyError(err)
		}
		return &badRequest{"invalid JSON: unexpected data after top-level value"}
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &badRequest{fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
	}
	return &badRequest{"invalid JSON: " + err.Error()}
}

func readObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var body map[string]any
	if err := readJSON(w, r, &body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, &badRequest{"invalid JSON: expected an object"}
	}
	return body, nil
}

func badID() error {
	return &badRequest{msgInvalidID}
}

// queryIntID returns the integer "id" query parameter. A missing or empty
// parameter yields nil; a non-integer value is a bad request.
func queryIntID(r *http.Request) (*store.ID, error) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		return nil, nil
	}
	id, err := store.ParseIntID(raw)
	if err != nil {
		return nil, badID()
	}
	return &id, nil
}

func pathIntID(r *http.Request) (int64, error) {
	id, err := store.ParseIntID(r.PathValue("id"))
	if err != nil {
		return 0, badID()
	}
	return id.Value().(int64), nil
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"service":     "JSON Mock Server",
		"readOnly":    h.db.ReadOnly(),
		"collections": h.db.Names(),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

// ---------- posts ----------
//
// Successful responses carry the record itself rather than an envelope;
// errors still use the {code, msg} envelope.

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.db.GetAll(store.Posts))
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.db.GetByID(store.Posts, store.StringID(r.PathValue("id")))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	post, err := h.db.InsertWithNewID(store.Posts, body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	id, ok := body["id"].(string)
	if !ok {
		fail(w, r, badID())
		return
	}
	post, err := h.db.Update(store.Posts, store.StringID(id), body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	id := store.StringID(r.PathValue("id"))
	removed, err := h.db.Remove(store.Posts, &id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

// ---------- root keys and named collections ----------

func (h *Handler) setRaw(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.db.SetRawMany(body); err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, body)
}

func (h *Handler) getRecords(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	id, err := queryIntID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if id == nil {
		writeOK(w, h.db.GetAll(name))
		return
	}
	rec, err := h.db.GetByID(name, *id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, rec)
}

func (h *Handler) insertRecord(w http.ResponseWriter, r *http.Request) {
	body, err := readObject(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if id, ok := store.IDOf(body["id"]); !ok || !id.IsInt() {
		fail(w, r, badID())
		return
	}
	rec, err := h.db.InsertIfAbsent(r.PathValue("name"), body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, rec)
}

func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := queryIntID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	body, err := readObject(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if id == nil {
		bid, ok := store.IDOf(body["id"])
		if !ok || !bid.IsInt() {
			fail(w, r, badID())
			return
		}
		id = &bid
	}
	rec, err := h.db.Update(r.PathValue("name"), *id, body)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, rec)
}

func (h *Handler) deleteRecords(w http.ResponseWriter, r *http.Request) {
	id, err := queryIntID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	removed, err := h.db.Remove(r.PathValue("name"), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, map[string]any{"deleted": len(removed)})
}

// ---------- envelope collections ----------

func (h *Handler) getEnvelopes(repo *envelope.Repository, notFound string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := queryIntID(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		if id == nil {
			writeOK(w, repo.List())
			return
		}
		v, err := repo.Get(id.Value().(int64))
		if envelope.IsNotFound(err) {
			writeFail(w, notFound)
			return
		}
		if err != nil {
			fail(w, r, err)
			return
		}
		writeOK(w, v)
	}
}

func (h *Handler) putEnvelope(repo *envelope.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathIntID(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		var body any
		if err := readJSON(w, r, &body); err != nil {
			fail(w, r, err)
			return
		}
		if err := repo.Put(id, body); err != nil {
			fail(w, r, err)
			return
		}
		writeOK(w, body)
	}
}

func (h *Handler) deleteEnvelope(repo *envelope.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathIntID(r)
		if err != nil {
			fail(w, r, err)
			return
		}
		if err := repo.Delete(id); err != nil {
			fail(w, r, err)
			return
		}
		writeOK(w, []any{})
	}
}
