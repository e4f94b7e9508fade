// Package server exposes the merge engine and the template registry over
// HTTP. Routes mirror the report service's public API: fixed management
// endpoints plus one merge endpoint per stored template.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	mergeodf "github.com/OSSII/oxool-module-mergeodf"
	"github.com/OSSII/oxool-module-mergeodf/convert"
	"github.com/OSSII/oxool-module-mergeodf/odf"
	"github.com/OSSII/oxool-module-mergeodf/registry"
	"github.com/OSSII/oxool-module-mergeodf/schema"
)

// Server handles the report service's HTTP API.
type Server struct {
	engine    *mergeodf.Engine
	store     *registry.Store
	converter *convert.Client
	logger    *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithConverter enables PDF output through the given conversion client.
func WithConverter(c *convert.Client) ServerOption {
	return func(s *Server) { s.converter = c }
}

// WithLogger sets the request/outcome logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// New creates a Server over an engine and a registry store.
func New(engine *mergeodf.Engine, store *registry.Store, opts ...ServerOption) *Server {
	s := &Server{engine: engine, store: store, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the chi router for the service.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleOK)
	r.Get("/api", s.handleAPIList)
	r.Get("/yaml", s.handleYAMLList)
	r.Get("/list", s.handleList)
	r.Post("/upload", s.handleUpload)
	r.Post("/update", s.handleUpdate)
	r.Post("/delete", s.handleDelete)
	r.Post("/download", s.handleDownload)

	r.Route("/{endpoint}", func(r chi.Router) {
		r.Options("/", s.handlePreflight)
		r.Post("/", s.handleMerge)
		r.Get("/api", s.handleDocAPI)
		r.Get("/yaml", s.handleDocYAML)
		r.Get("/json", s.handleDocSample)
		r.Get("/accessTimes", s.handleAccessTimes)
	})
	return r
}

// Swagger's in-browser tester preflights merge requests, so the merge
// endpoint answers CORS for any origin.
func corsHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
}

func (s *Server) handleOK(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	corsHeaders(w)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	repo, err := s.store.Get(endpoint)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	templatePath := s.store.TemplatePath(repo)
	if _, err := os.Stat(templatePath); err != nil {
		http.NotFound(w, r)
		return
	}

	corsHeaders(w)
	if err := s.store.Touch(endpoint); err != nil {
		s.logger.Warn("access counter update failed", "endpoint", endpoint, "error", err)
	}

	// outputPDF present with any value but the literal "false" converts,
	// including ?outputPDF and ?outputPDF=0.
	pdfValues, pdfRequested := r.URL.Query()["outputPDF"]
	toPDF := pdfRequested && pdfValues[0] != "false"

	data, err := s.decodeMergeBody(r)
	if err != nil {
		s.logMerge(r, repo, false, toPDF)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.engine.Merge(templatePath, data)
	if err != nil {
		s.logger.Error("merge failed", "endpoint", endpoint, "error", err)
		s.logMerge(r, repo, false, toPDF)
		http.Error(w, "merge failed", http.StatusInternalServerError)
		return
	}
	defer os.Remove(out)

	if !toPDF {
		s.sendFile(w, out, documentMimeType(out))
		s.logMerge(r, repo, true, toPDF)
		return
	}

	if s.converter == nil {
		s.logMerge(r, repo, false, toPDF)
		http.Error(w, "PDF output is not configured", http.StatusInternalServerError)
		return
	}
	pdf, err := s.converter.ToPDF(r.Context(), out)
	if err != nil {
		s.logger.Error("pdf conversion failed", "endpoint", endpoint, "error", err)
		s.logMerge(r, repo, false, toPDF)
		http.Error(w, "PDF conversion failed", http.StatusInternalServerError)
		return
	}
	name := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out)) + ".pdf"
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(pdf)
	s.logMerge(r, repo, true, toPDF)
}

// decodeMergeBody reads the request data object, either as a JSON body or
// as an HTML form with group[i][key] array fields.
func (s *Server) decodeMergeBody(r *http.Request) (map[string]any, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, errors.New("Json format error")
		}
		var data map[string]any
		if err := json.Unmarshal(keywordsToLower(body), &data); err != nil {
			return nil, errors.New("Json format error")
		}
		return data, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if err := r.ParseForm(); err != nil {
			return nil, errors.New("Form format error.")
		}
	}
	return foldFormArrays(r.Form), nil
}

func (s *Server) sendFile(w http.ResponseWriter, path, mimeType string) {
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "produced file unreadable", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.Header().Set("Content-Type", mimeType)
	io.Copy(w, f)
}

func documentMimeType(path string) string {
	if strings.HasSuffix(path, ".ods") {
		return odf.KindSpreadsheet.MimeType()
	}
	return odf.KindText.MimeType()
}

func (s *Server) logMerge(r *http.Request, repo registry.Repository, ok, toPDF bool) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	entry := registry.LogEntry{
		Status:   ok,
		ToPDF:    toPDF,
		SourceIP: ip,
		FileName: repo.DocName,
		FileExt:  repo.ExtName,
	}
	if err := s.store.LogMerge(entry); err != nil {
		s.logger.Warn("merge log write failed", "error", err)
	}
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	fragments := s.describeAll(func(t *schema.Template) string { return t.OpenAPI() })
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, schema.Document(r.Host, fragments))
}

func (s *Server) handleYAMLList(w http.ResponseWriter, r *http.Request) {
	fragments := s.describeAll(func(t *schema.Template) string { return t.YAML() })
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, schema.YAMLDocument(r.Host, fragments))
}

// describeAll scans every stored template, skipping the ones that fail to
// parse so one broken upload does not empty the whole listing.
func (s *Server) describeAll(emit func(*schema.Template) string) []string {
	paths, err := s.store.Templates()
	if err != nil {
		s.logger.Warn("template listing failed", "error", err)
		return nil
	}
	var fragments []string
	for _, path := range paths {
		tmpl, err := s.engine.Template(path)
		if err != nil {
			s.logger.Warn("template unparseable", "path", path, "error", err)
			continue
		}
		fragments = append(fragments, emit(tmpl))
	}
	return fragments
}

func (s *Server) docTemplate(w http.ResponseWriter, r *http.Request) (*schema.Template, bool) {
	repo, err := s.store.Get(chi.URLParam(r, "endpoint"))
	if err != nil {
		http.NotFound(w, r)
		return nil, false
	}
	tmpl, err := s.engine.Template(s.store.TemplatePath(repo))
	if err != nil {
		http.Error(w, "template unparseable", http.StatusInternalServerError)
		return nil, false
	}
	return tmpl, true
}

func (s *Server) handleDocAPI(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.docTemplate(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, schema.Document(r.Host, []string{tmpl.OpenAPI()}))
}

func (s *Server) handleDocYAML(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.docTemplate(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, schema.YAMLDocument(r.Host, []string{tmpl.YAML()}))
}

func (s *Server) handleDocSample(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.docTemplate(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, schema.SampleDocument(tmpl.Sample()))
}

func (s *Server) handleAccessTimes(w http.ResponseWriter, r *http.Request) {
	repo, err := s.store.Get(chi.URLParam(r, "endpoint"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"call_times":%d}`, repo.AccessTimes)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	listing, err := s.store.List()
	if err != nil {
		http.Error(w, "registry unavailable", http.StatusInternalServerError)
		return
	}
	type entry struct {
		DocName string `json:"docname"`
		Endpt   string `json:"endpt"`
		ExtName string `json:"extname"`
		Uptime  string `json:"uptime"`
	}
	out := make(map[string][]entry, len(listing))
	for cname, repos := range listing {
		for _, repo := range repos {
			out[cname] = append(out[cname], entry{
				DocName: repo.DocName,
				Endpt:   repo.Endpt,
				ExtName: repo.ExtName,
				Uptime:  repo.Uptime,
			})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "File not received.", http.StatusBadRequest)
		return
	}
	repo := registry.Repository{
		CName:   r.FormValue("cname"),
		Endpt:   r.FormValue("endpt"),
		DocName: r.FormValue("docname"),
		ExtName: r.FormValue("extname"),
		Uptime:  r.FormValue("uptime"),
	}
	if err := s.saveUploadedTemplate(r, repo); err != nil {
		http.Error(w, "File not received.", http.StatusBadRequest)
		return
	}
	if err := s.store.Add(repo); err != nil {
		s.logger.Error("template add failed", "endpoint", repo.Endpt, "error", err)
		http.Error(w, "registry update failed", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Upload Success.")
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "File not received.", http.StatusBadRequest)
		return
	}
	endpt := r.FormValue("endpt")
	repo, err := s.store.Get(endpt)
	if err == nil {
		// The extension may change; drop the superseded file.
		os.Remove(s.store.TemplatePath(repo))
	}
	repo.Endpt = endpt
	repo.ExtName = r.FormValue("extname")
	repo.Uptime = r.FormValue("uptime")

	if err := s.saveUploadedTemplate(r, repo); err != nil {
		http.Error(w, "File not received.", http.StatusBadRequest)
		return
	}
	if err := s.store.Update(repo); err != nil {
		s.logger.Error("template update failed", "endpoint", endpt, "error", err)
		http.Error(w, "registry update failed", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Update Success.")
}

// saveUploadedTemplate stores the first uploaded file of the request as
// the repository's template file.
func (s *Server) saveUploadedTemplate(r *http.Request, repo registry.Repository) error {
	if r.MultipartForm == nil || repo.Endpt == "" {
		return errors.New("no file field")
	}
	for _, headers := range r.MultipartForm.File {
		for _, hdr := range headers {
			src, err := hdr.Open()
			if err != nil {
				return err
			}
			defer src.Close()

			dst, err := os.Create(s.store.TemplatePath(repo))
			if err != nil {
				return err
			}
			defer dst.Close()

			_, err = io.Copy(dst, src)
			return err
		}
	}
	return errors.New("no file field")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	endpt := r.FormValue("endpt")
	if endpt == "" {
		http.Error(w, "No endpt provide.", http.StatusBadRequest)
		return
	}
	repo := registry.Repository{Endpt: endpt, ExtName: r.FormValue("extname")}
	path := s.store.TemplatePath(repo)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "The file to be deleted does not exist", http.StatusNotFound)
		return
	}
	os.Remove(path)
	if err := s.store.Delete(endpt); err != nil {
		s.logger.Error("template delete failed", "endpoint", endpt, "error", err)
		http.Error(w, "registry update failed", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "Delete success.")
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	repo, err := s.store.Get(r.FormValue("endpt"))
	if err != nil {
		http.Error(w, "No endpt provide.", http.StatusBadRequest)
		return
	}
	path := s.store.TemplatePath(repo)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "template unreadable", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", repo.DocName+"."+repo.ExtName))
	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, f)
}
