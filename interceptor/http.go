package interceptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// EnvelopeHandler serves Handle over HTTP: the request body is an Input
// envelope and the response body is the Output envelope.
func (i *Interceptor) EnvelopeHandler(maxBodyBytes int64) http.Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		in, err := decodeInput(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			status := http.StatusBadRequest
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSONError(w, status, err.Error())
			return
		}

		out := i.Handle(r.Context(), in)
		data, err := encode(out)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode envelope")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

// DecodeInput parses an envelope. An empty body is an empty envelope.
func DecodeInput(data []byte) (*Input, error) {
	var in Input
	if len(data) == 0 {
		return &in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return &in, nil
}

func decodeInput(r io.Reader) (*Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return DecodeInput(data)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
