package site

import (
	"net/http"
	"strings"
)

// ServeHTTP serves GET and HEAD requests through Serve.
func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}

	resp, err := s.Serve(r.Context(), Request{URL: r.URL.RequestURI(), Headers: headers})
	if err != nil {
		s.logger.Error("render failed", "url", r.URL.RequestURI(), "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.Status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.Body); err != nil {
		s.logger.Debug("failed to write response", "url", r.URL.RequestURI(), "error", err)
	}
}
