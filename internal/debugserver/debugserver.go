// Package debugserver exposes an instrument on the tsweb debug surface.
package debugserver

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"tailscale.com/tsweb"

	"github.com/banshee-data/benchlink/internal/db"
	"github.com/banshee-data/benchlink/internal/httputil"
	"github.com/banshee-data/benchlink/internal/monitoring"
	"github.com/banshee-data/benchlink/internal/scope"
	"github.com/banshee-data/benchlink/internal/visa"
	"github.com/banshee-data/benchlink/internal/waveform"
)

//go:embed templates/*
var templateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(templateFS, "templates/send-command.html.tmpl"))

// Options configures Attach. Link is required; Scope and DB are optional.
type Options struct {
	Instrument  string
	Link        visa.Link
	Scope       *scope.Scope
	DB          *db.DB
	Channels    []int
	MemoryDepth int
}

// AcquireResult is one channel of an /debug/acquire response.
type AcquireResult struct {
	ID       string            `json:"id,omitempty"`
	Channel  int               `json:"channel"`
	Preamble waveform.Preamble `json:"preamble"`
	Summary  waveform.Summary  `json:"summary"`
}

type server struct {
	opts Options
	// mu keeps multi-request sequences on the link from interleaving.
	mu sync.Mutex
}

// Attach registers the instrument routes on mux's /debug/ handler.
func Attach(mux *http.ServeMux, opts Options) {
	s := &server{opts: opts}
	debug := tsweb.Debugger(mux)
	if opts.Instrument != "" {
		debug.KV("Instrument", opts.Instrument)
	}

	debug.HandleFunc("send-command", "send a SCPI command to the instrument", s.handleSendCommandPage)
	debug.HandleSilentFunc("send-command-api", s.handleSendCommand)
	if opts.Scope != nil {
		debug.HandleFunc("acquire", "acquire channels from the scope (POST)", s.handleAcquire)
	}
	debug.Handle("metrics-prom", "Prometheus transfer metrics", monitoring.Handler())
}

func (s *server) handleSendCommandPage(w http.ResponseWriter, r *http.Request) {
	buf := bytes.NewBuffer(nil)
	if err := sendCommandTemplate.Execute(buf, s.opts); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	io.Copy(w, buf)
}

func (s *server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	command := strings.TrimSpace(r.FormValue("command"))
	if command == "" {
		http.Error(w, "Missing command", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.HasSuffix(command, "?") {
		reply, err := s.opts.Link.Query(command)
		if err != nil {
			monitoring.ObserveError(err)
			http.Error(w, fmt.Sprintf("Query failed: %v", err), http.StatusBadGateway)
			return
		}
		io.WriteString(w, reply)
		return
	}
	if err := s.opts.Link.Write(command); err != nil {
		monitoring.ObserveError(err)
		http.Error(w, fmt.Sprintf("Failed to write command: %v", err), http.StatusBadGateway)
		return
	}
	fmt.Fprintf(w, "Wrote command %q", command)
}

// handleAcquire runs a full-memory acquisition. Form values "channels"
// (comma separated) and "depth" override the configured ones.
func (s *server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	channels := s.opts.Channels
	if v := r.FormValue("channels"); v != "" {
		parsed, err := ParseChannels(v)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		channels = parsed
	}
	if len(channels) == 0 {
		channels = []int{1}
	}
	depth := s.opts.MemoryDepth
	if v := r.FormValue("depth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "depth must be a non-negative integer")
			return
		}
		depth = n
	}

	s.mu.Lock()
	captures, err := s.opts.Scope.Acquire(channels, depth)
	s.mu.Unlock()
	if err != nil {
		httputil.WriteError(w, "acquisition failed", err)
		return
	}

	results := make([]AcquireResult, 0, len(captures))
	for _, c := range captures {
		res := AcquireResult{
			Channel:  c.Channel,
			Preamble: c.Preamble,
			Summary:  waveform.Summarize(c.Waveform),
		}
		if s.opts.DB != nil {
			id, err := s.opts.DB.InsertCapture(s.opts.Instrument, c)
			if err != nil {
				httputil.InternalServerError(w, fmt.Sprintf("failed to store capture: %v", err))
				return
			}
			res.ID = id
		}
		results = append(results, res)
	}
	httputil.WriteJSONOK(w, results)
}

// ParseChannels parses a comma separated channel list such as "1,3" and
// validates it.
func ParseChannels(v string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(f), "CH"))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", scope.ErrInvalidChannel, f)
		}
		out = append(out, n)
	}
	if err := scope.ValidateChannels(out); err != nil {
		return nil, err
	}
	return out, nil
}
