package utils

import "net/http"

// StatusWriter remembers the status and the number of body bytes sent
// through it.
type StatusWriter struct {
	http.ResponseWriter
	Status  int
	Written int64
}

func NewStatusWriter(base http.ResponseWriter) *StatusWriter {
	return &StatusWriter{ResponseWriter: base}
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	if w.Status == 0 {
		w.Status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.Written += int64(n)
	return n, err
}

func (w *StatusWriter) WriteHeader(statusCode int) {
	if w.Status == 0 {
		w.Status = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Committed reports whether the status line has been sent, after which the
// response can no longer be turned into an error page.
func (w *StatusWriter) Committed() bool {
	return w.Status != 0
}
