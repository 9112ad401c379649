package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/nicolagi/notestore/storage"
	log "github.com/sirupsen/logrus"
)

const (
	contentTypeText = "text/plain; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeHTML = "text/html; charset=utf-8"

	// Form fields used by POST /write.
	formFieldName = "note_name"
	formFieldText = "note"

	maxFormMemory = 32 << 10
)

//go:embed static/UploadForm.html
var uploadFormHTML []byte

type reply struct {
	status      int
	contentType string
	body        []byte
}

func text(status int, body string) reply {
	return reply{status: status, contentType: contentTypeText, body: []byte(body)}
}

// handle adapts fn to an http.HandlerFunc. The logger passed to fn carries the
// operation and, for routes that have one, the note name.
func (s *Server) handle(op string, fn func(*http.Request, *log.Entry) reply) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.opts.maxBodySize)
		}
		logger := log.WithField("op", op)
		rep := fn(r, logger)
		if rep.contentType != "" {
			w.Header().Set("Content-Type", rep.contentType)
		}
		w.WriteHeader(rep.status)
		if rep.body != nil {
			if _, err := w.Write(rep.body); err != nil {
				logger.WithField("err", err).Error("Failed writing response")
			}
		}
	}
}

// errorReply maps storage errors to responses.
func errorReply(logger *log.Entry, err error) reply {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		logger.WithField("err", err).Debug("Not found")
		return text(http.StatusNotFound, "Not found")
	case errors.Is(err, storage.ErrExists):
		logger.WithField("err", err).Debug("Already exists")
		return text(http.StatusBadRequest, "A note with that name already exists.")
	case errors.Is(err, storage.ErrInvalidName):
		logger.WithField("err", err).Warn("Invalid name")
		return text(http.StatusBadRequest, "Invalid note name")
	case errors.As(err, &tooLarge):
		logger.WithField("err", err).Warn("Request body too large")
		return text(http.StatusRequestEntityTooLarge, "Payload too large")
	default:
		logger.WithField("err", err).Error()
		return text(http.StatusInternalServerError, "Server error")
	}
}

// noteName returns the decoded {name} route parameter. chi matches on the raw
// path when the request path has escapes that change its meaning, such as
// %2F, and hands back the segment still escaped.
func noteName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, nil
	}
	unescaped, err := url.PathUnescape(name)
	if err != nil {
		return "", storage.ErrInvalidName
	}
	return unescaped, nil
}

func (s *Server) getNote(r *http.Request, logger *log.Entry) reply {
	name, err := noteName(r)
	if err != nil {
		return errorReply(logger, err)
	}
	logger = logger.WithField("name", name)
	value, err := s.opts.store.Get(name)
	if err != nil {
		return errorReply(logger, err)
	}
	logger.Debug("Success")
	return reply{status: http.StatusOK, contentType: contentTypeText, body: value}
}

func (s *Server) replaceNote(r *http.Request, logger *log.Entry) reply {
	name, err := noteName(r)
	if err != nil {
		return errorReply(logger, err)
	}
	logger = logger.WithField("name", name)
	value, err := ioutil.ReadAll(r.Body)
	if err != nil {
		return errorReply(logger, err)
	}
	if err := s.opts.store.Replace(name, value); err != nil {
		return errorReply(logger, err)
	}
	logger.Debug("Success")
	return text(http.StatusOK, "success")
}

func (s *Server) deleteNote(r *http.Request, logger *log.Entry) reply {
	name, err := noteName(r)
	if err != nil {
		return errorReply(logger, err)
	}
	logger = logger.WithField("name", name)
	if err := s.opts.store.Delete(name); err != nil {
		return errorReply(logger, err)
	}
	logger.Debug("Success")
	return text(http.StatusOK, "deleted")
}

func (s *Server) listNotes(r *http.Request, logger *log.Entry) reply {
	notes, err := s.opts.store.List()
	if err != nil {
		return errorReply(logger, err)
	}
	if notes == nil {
		notes = []storage.Note{}
	}
	body, err := json.Marshal(notes)
	if err != nil {
		return errorReply(logger, err)
	}
	logger.WithField("count", len(notes)).Debug("Success")
	return reply{status: http.StatusOK, contentType: contentTypeJSON, body: body}
}

// createNote accepts both url-encoded and multipart forms; the upload form
// sends the latter.
func (s *Server) createNote(r *http.Request, logger *log.Entry) reply {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && err != http.ErrNotMultipart {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errorReply(logger, err)
		}
		logger.WithField("err", err).Warn("Bad form")
		return text(http.StatusBadRequest, "Bad form")
	}
	name := r.PostFormValue(formFieldName)
	logger = logger.WithField("name", name)
	if err := s.opts.store.Create(name, []byte(r.PostFormValue(formFieldText))); err != nil {
		return errorReply(logger, err)
	}
	logger.Debug("Success")
	return text(http.StatusCreated, "The note was successfully created!")
}

func (s *Server) uploadForm(*http.Request, *log.Entry) reply {
	return reply{status: http.StatusOK, contentType: contentTypeHTML, body: uploadFormHTML}
}
