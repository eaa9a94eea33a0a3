// internal/preview/server.go
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"

	"github.com/user/pixledger/internal/types"
)

// Batch exposes the artifacts currently on display.
type Batch interface {
	Current() []types.Artifact
}

// Opener reads the bytes behind a live display handle.
type Opener interface {
	Open(id types.HandleID) ([]byte, error)
}

// Server serves the current batch to a browser.
type Server struct {
	batch   Batch
	handles Opener
	title   string
	mux     *http.ServeMux
}

// NewServer creates a preview Server. title labels the index page.
func NewServer(batch Batch, handles Opener, title string) *Server {
	s := &Server{
		batch:   batch,
		handles: handles,
		title:   title,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/artifacts", s.handleAPIArtifacts)
	s.mux.HandleFunc("GET /artifacts/{index}", s.handleArtifact)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler wraps the server so pages on other origins can embed the images.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	})
	return c.Handler(s)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	slog.Info("preview server started", "listen", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type artifactResponse struct {
	ID       string `json:"id"`
	Index    int    `json:"index"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}

func (s *Server) handleAPIArtifacts(w http.ResponseWriter, r *http.Request) {
	current := s.batch.Current()
	result := make([]artifactResponse, 0, len(current))
	for _, a := range current {
		result = append(result, artifactResponse{
			ID:       string(a.ID),
			Index:    a.Index,
			MimeType: a.MimeType,
			URL:      "/artifacts/" + strconv.Itoa(a.Index),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, `{"error":"invalid artifact index"}`, http.StatusBadRequest)
		return
	}

	current := s.batch.Current()
	if index < 0 || index >= len(current) {
		http.Error(w, `{"error":"artifact not found"}`, http.StatusNotFound)
		return
	}
	a := current[index]

	data, err := s.handles.Open(a.Handle.ID)
	if err != nil {
		slog.Debug("artifact handle unavailable", "index", index, "error", err)
		http.Error(w, `{"error":"artifact not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html><head><title>{{.Title}}</title>
<style>body{background:#0f0f0f;color:#ccc;font-family:sans-serif}
.grid{display:grid;grid-template-columns:repeat(3,1fr);gap:12px}
.grid img{width:100%}</style></head>
<body><h1>{{.Title}}</h1>
{{if .Artifacts}}<div class="grid">{{range .Artifacts}}
<a href="/artifacts/{{.Index}}" download="image-{{.Index}}"><img src="/artifacts/{{.Index}}" alt="image {{.Index}}"></a>{{end}}
</div>{{else}}<p>No images generated yet.</p>{{end}}
</body></html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTmpl.Execute(w, struct {
		Title     string
		Artifacts []types.Artifact
	}{s.title, s.batch.Current()})
	if err != nil {
		slog.Error("render preview index failed", "error", err)
	}
}
