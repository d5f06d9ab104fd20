package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
)

const maxBodySize = 64 * 1024

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON for endpoints where the whole body may be
// omitted. An empty body leaves dst untouched, whatever the transfer encoding.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decode(w, r, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return true
		}
		msg := "invalid JSON body"
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			msg = "request body too large"
		case errors.Is(err, io.EOF):
			msg = "request body required"
		}
		writeError(r.Context(), w, newError("invalid_request", msg, http.StatusBadRequest))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
