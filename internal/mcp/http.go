package mcp

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/netutil"

	"github.com/a3tai/dealerlite/internal/aamva"
	"github.com/a3tai/dealerlite/internal/descriptions"
	"github.com/a3tai/dealerlite/internal/documents"
	"github.com/a3tai/dealerlite/internal/paperwork"
)

const (
	// formOverhead is allowed on top of the payload limit for the other scan fields
	formOverhead      = 64 * 1024
	multipartMemory   = 1 << 20
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second

	emptyPayloadMessage = "Use the camera scanner, upload a decoded payload, or paste payload."
)

// scanDocument is one entry of the scan response
type scanDocument struct {
	Kind     documents.Kind `json:"kind"`
	Title    string         `json:"title"`
	FileName string         `json:"file_name"`
	Size     int64          `json:"size"`
	Filled   []string       `json:"filled"`
	Missing  []string       `json:"missing,omitempty"`
	Download string         `json:"download"`
}

type scanResponse struct {
	RequestID   string                `json:"request_id"`
	Person      aamva.Person          `json:"person"`
	Transaction documents.Transaction `json:"transaction"`
	Skipped     int                   `json:"skipped_lines"`
	Warnings    []string              `json:"warnings,omitempty"`
	Documents   []scanDocument        `json:"documents"`
}

// HTTPHandler returns the handler used in server mode
func (s *Server) HTTPHandler() (http.Handler, error) {
	guide, err := renderGuide()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(guide)
	})
	mux.HandleFunc("POST /scan", s.handleScan)
	mux.HandleFunc("GET /download/{id}/{which}", s.handleDownload)
	mux.Handle("/mcp", server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath("/mcp")))

	var handler http.Handler = mux
	if s.config.AuthEnabled() {
		handler = s.requireAuth(handler)
	}
	if s.config.IsDebug() {
		handler = logRequests(handler)
	}
	return handler, nil
}

// renderGuide converts the service guide to a standalone HTML page
func renderGuide() ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(descriptions.ServiceGuide), &body); err != nil {
		return nil, fmt.Errorf("failed to render service guide: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>DealerLite</title></head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")
	return page.Bytes(), nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxPayloadSize+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, paperwork.ErrPayloadTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	req := paperwork.GenerateRequest{
		Payload: strings.TrimSpace(r.FormValue("payload_text")),
		Transaction: documents.Transaction{
			Phone:         r.FormValue("phone"),
			Email:         r.FormValue("email"),
			VIN:           r.FormValue("vin"),
			Year:          r.FormValue("year"),
			Make:          r.FormValue("make"),
			Model:         r.FormValue("model"),
			YearMakeModel: r.FormValue("ymm"),
			Price:         r.FormValue("price"),
			SaleDate:      r.FormValue("sale_date"),
		},
	}

	result, err := s.service.Generate(r.Context(), req)
	if err != nil {
		status := scanStatus(err)
		msg := err.Error()
		if errors.Is(err, paperwork.ErrEmptyPayload) {
			msg = emptyPayloadMessage
		}
		if status == http.StatusInternalServerError {
			log.Printf("Scan failed: %v", err)
		}
		writeError(w, status, msg)
		return
	}

	resp := scanResponse{
		RequestID:   result.RequestID,
		Person:      result.Person,
		Transaction: result.Transaction,
		Skipped:     len(result.Skipped),
		Warnings:    result.Warnings,
	}
	for _, doc := range result.Documents {
		resp.Documents = append(resp.Documents, scanDocument{
			Kind:     doc.Kind,
			Title:    doc.Title,
			FileName: doc.FileName,
			Size:     doc.Size,
			Filled:   doc.Filled,
			Missing:  doc.Missing,
			Download: fmt.Sprintf("/download/%s/%s", result.RequestID, doc.Kind),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// scanStatus maps a generation error to an HTTP status
func scanStatus(err error) int {
	switch {
	case errors.Is(err, paperwork.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, paperwork.ErrEmptyPayload), errors.Is(err, paperwork.ErrInvalidDealFields):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	kind, err := documents.ParseKind(r.PathValue("which"))
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	path, err := s.service.DocumentPath(r.PathValue("id"), kind)
	switch {
	case errors.Is(err, paperwork.ErrInvalidRequestID):
		http.Error(w, "Not found", http.StatusNotFound)
		return
	case errors.Is(err, paperwork.ErrDocumentNotFound):
		http.Error(w, "File not ready", http.StatusNotFound)
		return
	case err != nil:
		log.Printf("Download failed: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "File not ready", http.StatusNotFound)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	name, _ := paperwork.OutputName(kind)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// requireAuth enforces basic auth on every route except /health
func (s *Server) requireAuth(next http.Handler) http.Handler {
	auth := s.config.Auth
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || !checkCredentials(auth.User, auth.Password, auth.PasswordHash, user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Login"`)
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func checkCredentials(wantUser, wantPass, wantHash, user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) == 1
	var passOK bool
	if wantHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(wantHash), []byte(pass)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass)) == 1
	}
	return userOK && passOK
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// runServerMode serves the HTTP surface until ctx is canceled
func (s *Server) runServerMode(ctx context.Context) error {
	handler, err := s.HTTPHandler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address(), err)
	}
	if s.config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.config.MaxConnections)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Printf("Starting DealerLite server on http://%s", ln.Addr())
	if s.config.AuthEnabled() {
		log.Printf("Basic auth enabled for user %q", s.config.Auth.User)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	}
}
