package server

import (
	"net/http"
)

// FileServerHandler serves the embedded client application from dir.
func FileServerHandler(dir string) http.Handler {
	return http.FileServer(http.Dir(dir))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.fileServer.ServeHTTP(w, r)
	}
}
