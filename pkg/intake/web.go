package intake

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mash-protocol/wifiprov-go/pkg/radio"
)

// DefaultWebListenAddr is the access point gateway on port 80.
const DefaultWebListenAddr = radio.DefaultGateway + ":80"

// maxFormBytes bounds a /connect request body.
const maxFormBytes = 4 << 10

// captivePaths are the connectivity checks phones run after joining a
// network. Redirecting them makes the phone open the setup page.
var captivePaths = []string{
	"/generate_204",
	"/gen_204",
	"/hotspot-detect.html",
	"/library/test/success.html",
	"/ncsi.txt",
	"/connecttest.txt",
	"/redirect",
	"/canonical.html",
	"/success.txt",
}

//go:embed page.html.tmpl
var defaultPage string

// PageData is the input to a PageRenderer.
type PageData struct {
	Title   string
	Message string
	Success bool
	SSID    string
}

// PageRenderer renders the credential entry page.
type PageRenderer interface {
	RenderPage(w io.Writer, data PageData) error
}

// TemplateRenderer renders pages from an html/template.
type TemplateRenderer struct {
	tmpl *template.Template
}

// NewTemplateRenderer parses text as the page template.
func NewTemplateRenderer(text string) (*TemplateRenderer, error) {
	tmpl, err := template.New("page").Parse(text)
	if err != nil {
		return nil, err
	}
	return &TemplateRenderer{tmpl: tmpl}, nil
}

// DefaultRenderer returns the built-in page renderer.
func DefaultRenderer() *TemplateRenderer {
	return &TemplateRenderer{tmpl: template.Must(template.New("page").Parse(defaultPage))}
}

// RenderPage implements PageRenderer.
func (r *TemplateRenderer) RenderPage(w io.Writer, data PageData) error {
	return r.tmpl.Execute(w, data)
}

// PortalStatus is the JSON body of GET /status.
type PortalStatus struct {
	State       string `json:"state"`
	Role        string `json:"role,omitempty"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	SSID        string `json:"ssid,omitempty"`
	Joined      string `json:"joined,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// WebConfig configures a WebFormIntake.
type WebConfig struct {
	// ListenAddr is the address to bind (default DefaultWebListenAddr).
	ListenAddr string

	// Title is the page heading (default "WiFi Setup").
	Title string

	// Renderer renders the entry page (default DefaultRenderer()).
	Renderer PageRenderer

	// Status reports provisioning status for GET /status. Optional.
	Status func() PortalStatus

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// WebFormIntake accepts credentials from an HTML form served on the access
// point. The HTTP server runs only while a window is open.
type WebFormIntake struct {
	config  WebConfig
	handler http.Handler

	mu       sync.Mutex
	win      *window
	server   *http.Server
	listener net.Listener
	served   chan struct{}
}

// NewWebFormIntake creates a web form intake.
func NewWebFormIntake(config WebConfig) *WebFormIntake {
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultWebListenAddr
	}
	if config.Title == "" {
		config.Title = "WiFi Setup"
	}
	if config.Renderer == nil {
		config.Renderer = DefaultRenderer()
	}

	w := &WebFormIntake{config: config}

	mux := http.NewServeMux()
	mux.HandleFunc("/connect", w.handleConnect)
	mux.HandleFunc("/status", w.handleStatus)
	for _, p := range captivePaths {
		mux.HandleFunc(p, w.handleCaptive)
	}
	mux.HandleFunc("/", w.handleIndex)
	w.handler = mux

	return w
}

// Source implements Intake.
func (w *WebFormIntake) Source() Source { return SourceWeb }

// Handler returns the HTTP handler. It is usable without Start; submissions
// are then refused with 503.
func (w *WebFormIntake) Handler() http.Handler { return w.handler }

// Addr returns the bound address while started, or nil.
func (w *WebFormIntake) Addr() net.Addr {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.listener == nil {
		return nil
	}
	return w.listener.Addr()
}

// Start binds the listen address and opens a window.
func (w *WebFormIntake) Start(ctx context.Context) (<-chan Result, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.win != nil && w.win.State() == WindowOpen {
		return nil, ErrAlreadyStarted
	}

	if w.server == nil {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", w.config.ListenAddr)
		if err != nil {
			return nil, fmt.Errorf("web intake listen %s: %w", w.config.ListenAddr, err)
		}
		srv := &http.Server{
			Handler:           w.handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		served := make(chan struct{})
		go func() {
			defer close(served)
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				w.debugLog("web intake server stopped", "error", err)
			}
		}()
		w.server, w.listener, w.served = srv, ln, served
		w.debugLog("web intake listening", "addr", ln.Addr().String())
	}

	w.win = newWindow()
	return w.win.results, nil
}

// Stop closes the window and shuts the HTTP server down.
func (w *WebFormIntake) Stop() error {
	w.mu.Lock()
	win, srv, served := w.win, w.server, w.served
	w.server, w.listener, w.served = nil, nil, nil
	w.mu.Unlock()

	if win != nil {
		win.shutdown()
	}
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	<-served
	return err
}

func (w *WebFormIntake) currentWindow() *window {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.win
}

func (w *WebFormIntake) handleIndex(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		w.handleCaptive(rw, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.render(rw, http.StatusOK, PageData{})
}

func (w *WebFormIntake) handleCaptive(rw http.ResponseWriter, r *http.Request) {
	http.Redirect(rw, r, "/", http.StatusFound)
}

func (w *WebFormIntake) handleConnect(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(rw, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		w.render(rw, http.StatusBadRequest, PageData{Message: "Could not read the form."})
		return
	}

	ssid := r.PostForm.Get("ssid")
	passphrase := r.PostForm.Get("passphrase")
	if passphrase == "" {
		passphrase = r.PostForm.Get("password")
	}

	c, err := NewCandidate(ssid, passphrase, SourceWeb)
	if err != nil {
		w.debugLog("web intake rejected submission", "ssid", ssid, "error", err)
		w.render(rw, http.StatusBadRequest, PageData{Message: failureMessage(err), SSID: ssid})
		return
	}

	win := w.currentWindow()
	if win == nil || !win.deliver(c) {
		w.render(rw, http.StatusServiceUnavailable, PageData{
			Message: "The device is busy trying a network. Please wait and try again.",
			SSID:    ssid,
		})
		return
	}

	w.debugLog("web intake accepted candidate", "ssid", ssid)
	w.render(rw, http.StatusOK, PageData{
		Success: true,
		SSID:    ssid,
		Message: fmt.Sprintf("Connecting to %q. This setup network will disappear; if the device cannot join, it will come back.", ssid),
	})
}

func (w *WebFormIntake) handleStatus(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var st PortalStatus
	if w.config.Status != nil {
		st = w.config.Status()
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	json.NewEncoder(rw).Encode(st)
}

func (w *WebFormIntake) render(rw http.ResponseWriter, status int, data PageData) {
	data.Title = w.config.Title
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(status)
	if err := w.config.Renderer.RenderPage(rw, data); err != nil {
		w.debugLog("web intake render failed", "error", err)
	}
}

func (w *WebFormIntake) debugLog(msg string, args ...any) {
	if w.config.Logger != nil {
		w.config.Logger.Debug(msg, args...)
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, radio.ErrSSIDEmpty):
		return "Please enter the network name."
	case errors.Is(err, radio.ErrSSIDTooLong):
		return fmt.Sprintf("The network name is longer than %d bytes.", radio.MaxSSIDBytes)
	case errors.Is(err, radio.ErrPassphraseLength):
		return fmt.Sprintf("The password must be %d to %d characters.", radio.MinPassphraseLen, radio.MaxPassphraseLen)
	case errors.Is(err, radio.ErrPassphraseEncoding):
		return "The password contains characters that cannot be used."
	default:
		return "The network name or password is not valid."
	}
}
