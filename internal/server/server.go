// Package server hosts the dispatcher: NATS request/reply, the HTTP health and catalog
// pages, and the Lambda handler.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/backup-assistant/internal/config"
	"github.com/morezero/backup-assistant/pkg/capability"
	"github.com/morezero/backup-assistant/pkg/commsutil"
	"github.com/morezero/backup-assistant/pkg/db"
	"github.com/morezero/backup-assistant/pkg/dispatcher"
)

const logPrefix = "server:server"

// recentLimit is the number of journal rows shown on the operation page.
const recentLimit = 20

// journalReader is the read side of the invocation journal used by the HTTP pages.
type journalReader interface {
	ListRecentInvocations(ctx context.Context, limit int) ([]db.Invocation, error)
	CountByState(ctx context.Context) ([]db.StateCount, error)
	Ping(ctx context.Context) error
}

// Server is the long-running host for the dispatcher.
type Server struct {
	cfg        *config.Config
	disp       *dispatcher.Dispatcher
	journal    journalReader
	nc         *comms.Conn
	httpServer *http.Server
}

// HealthChecks reports the state of each dependency.
type HealthChecks struct {
	Comms    bool `json:"comms"`
	Database bool `json:"database"`
	// Journal is false when no database is configured.
	Journal bool `json:"journal"`
}

// HealthOutput is the /health body.
type HealthOutput struct {
	Status     string       `json:"status"`
	Timestamp  string       `json:"timestamp"`
	Operations int          `json:"operations"`
	Checks     HealthChecks `json:"checks"`
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetupLogging(cfg)
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting backup-assistant", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comp, err := Build(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer comp.Close()

	s := &Server{cfg: cfg, disp: comp.Dispatcher, nc: comp.Conn}
	if comp.Repo != nil {
		s.journal = comp.Repo
	}

	sub, err := comp.Conn.Subscribe(cfg.AgentSubject, s.handleMessage(ctx))
	if err != nil {
		return fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, cfg.AgentSubject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, cfg.AgentSubject))

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.routes()}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - backup-assistant is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	sub.Unsubscribe()
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.HealthCheckTimeout)
	defer shutdownCancel()
	s.httpServer.Shutdown(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// handleMessage answers one agent event per NATS request.
func (s *Server) handleMessage(ctx context.Context) comms.MsgHandler {
	return func(msg *comms.Msg) {
		data := s.serve(ctx, msg.Data)
		if err := msg.Respond(data); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond: %v", logPrefix, err))
		}
	}
}

// serve decodes one event, dispatches it under the request timeout and encodes the reply.
func (s *Server) serve(ctx context.Context, data []byte) []byte {
	var resp *dispatcher.Response
	var ev dispatcher.Event
	if err := commsutil.DecodePayload(data, &ev); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
		resp = dispatcher.FailureResponse("Failed to decode request.")
	} else {
		reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
		resp = s.disp.Dispatch(reqCtx, &ev)
	}

	out, err := commsutil.EncodePayload(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		return nil
	}
	return out
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHome())
	mux.HandleFunc("/operations/", s.handleOperationDetail())
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	return mux
}

// Health checks the transport and the journal database.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Operations: s.disp.Registry().Len(),
	}
	out.Checks.Comms = s.nc != nil && s.nc.IsConnected()
	if s.journal != nil {
		out.Checks.Journal = true
		if err := s.journal.Ping(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - database ping failed: %v", logPrefix, err))
		} else {
			out.Checks.Database = true
		}
	}

	out.Status = "healthy"
	if !out.Checks.Comms || (out.Checks.Journal && !out.Checks.Database) {
		out.Status = "unhealthy"
	}
	return out
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.Health(healthCtx)
		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(h)
	}
}

// pageStyle is shared by every HTML page: white background, black text, blue accents.
const pageStyle = `{{define "style"}}<style>
    body { margin: 0; padding: 2rem; font-family: system-ui, sans-serif; line-height: 1.5; color: #000; background: #fff; }
    h1, h2, a { color: #0066cc; }
    section { margin-bottom: 2rem; }
    table { width: 100%; max-width: 960px; margin-top: 0.5rem; border-collapse: collapse; }
    th, td { padding: 0.4rem 0.7rem; border: 1px solid #ccc; text-align: left; vertical-align: top; }
    th { color: #0066cc; background: #f0f4f8; }
    .meta { font-size: 0.9rem; color: #333; }
    .stat, .status-healthy { font-weight: bold; color: #0066cc; }
    .error, .status-unhealthy { font-weight: bold; color: #cc0000; }
  </style>{{end}}`

// homePageTemplate is the HTML for the catalog home page (white bg, black/blue text).
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Backup Assistant</title>
  {{template "style"}}
</head>
<body>
  <h1>Backup Assistant</h1>
  <p class="meta">Agent action group health, outcomes, and supported operations.</p>

  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    <p>NATS: {{if .Health.Checks.Comms}}<span class="stat">OK</span>{{else}}<span class="error">Disconnected</span>{{end}}</p>
    <p>Journal: {{if not .Health.Checks.Journal}}disabled{{else if .Health.Checks.Database}}<span class="stat">OK</span>{{else}}<span class="error">Failed</span>{{end}}</p>
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>

  <section>
    <h2>Outcomes</h2>
    {{if .StatsError}}
    <p class="error">Could not load journal statistics: {{.StatsError}}</p>
    {{else if not .Stats}}
    <p>No invocations recorded.</p>
    {{else}}
    <table>
      <thead><tr><th>State</th><th>Invocations</th></tr></thead>
      <tbody>
        {{range .Stats}}<tr><td>{{.State}}</td><td>{{.Count}}</td></tr>{{end}}
      </tbody>
    </table>
    {{end}}
  </section>

  <section>
    <h2>Operations</h2>
    <p>Total operations: <span class="stat">{{len .Operations}}</span></p>
    <table>
      <thead>
        <tr><th>Operation</th><th>Service</th><th>Kind</th><th>Description</th></tr>
      </thead>
      <tbody>
        {{range .Operations}}
        <tr>
          <td><a href="/operations/{{.Name}}">{{.Name}}</a></td>
          <td>{{.Service}}</td>
          <td>{{if .Custom}}custom{{else}}generic{{end}}</td>
          <td>{{.Description}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
  </section>
</body>
</html>
`

// operationDetailPageTemplate is the HTML for a single operation and its recent invocations.
const operationDetailPageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Operation.Name}} - Backup Assistant</title>
  {{template "style"}}
</head>
<body>
  <p><a href="/">&larr; Back to operations</a></p>
  <h1>{{.Operation.Name}}</h1>
  {{if .Operation.Description}}<p class="meta">{{.Operation.Description}}</p>{{end}}

  <section>
    <h2>Details</h2>
    <table>
      <tr><th>Service</th><td>{{.Operation.Service}}</td></tr>
      <tr><th>Kind</th><td>{{if .Operation.Custom}}custom (payload used as given){{else}}generic (payload validated){{end}}</td></tr>
      {{if .Operation.PageKey}}<tr><th>Result limit</th><td>{{.Operation.PageKey}}</td></tr>{{end}}
      {{if .Requires}}<tr><th>Requires</th><td>{{range .Requires}}{{.}}<br>{{end}}</td></tr>{{end}}
      {{if .Handled}}<tr><th>Handled errors</th><td>{{range .Handled}}{{.}}<br>{{end}}</td></tr>{{end}}
    </table>
  </section>

  <section>
    <h2>Recent invocations</h2>
    {{if .RecentError}}
    <p class="error">Could not load invocations: {{.RecentError}}</p>
    {{else if not .Recent}}
    <p>No recent invocations.</p>
    {{else}}
    <table>
      <thead><tr><th>Time</th><th>Region</th><th>Account</th><th>State</th><th>Repaired</th><th>Handled</th><th>Duration (ms)</th></tr></thead>
      <tbody>
        {{range .Recent}}
        <tr>
          <td>{{.Created.Format "2006-01-02 15:04:05"}}</td>
          <td>{{.Region}}</td>
          <td>{{.AccountID}}</td>
          <td>{{.State}}</td>
          <td>{{.Repaired}}</td>
          <td>{{.Handled}}</td>
          <td>{{.DurationMs}}</td>
        </tr>
        {{end}}
      </tbody>
    </table>
    {{end}}
  </section>
</body>
</html>
`

func parsePage(name, page string) *template.Template {
	return template.Must(template.Must(template.New(name).Parse(pageStyle)).Parse(page))
}

// homePageData is the data passed to the home page template.
type homePageData struct {
	Health     *HealthOutput
	Stats      []db.StateCount
	StatsError string
	Operations []*capability.Operation
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := parsePage("home", homePageTemplate)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homePageData{
			Health:     s.Health(ctx),
			Operations: s.disp.Registry().Operations(),
		}
		if s.journal != nil {
			stats, err := s.journal.CountByState(ctx)
			if err != nil {
				data.StatsError = err.Error()
			} else {
				data.Stats = stats
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// operationDetailData is the data passed to the operation detail page template.
type operationDetailData struct {
	Operation   *capability.Operation
	Requires    []string
	Handled     []string
	Recent      []db.Invocation
	RecentError string
}

func (s *Server) handleOperationDetail() http.HandlerFunc {
	tmpl := parsePage("operation", operationDetailPageTemplate)
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/operations/"), "/")
		if name == "" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		op, ok := s.disp.Registry().Lookup(name)
		if !ok {
			http.NotFound(w, r)
			return
		}

		data := operationDetailData{Operation: op}
		for _, req := range op.Requires {
			data.Requires = append(data.Requires, req.Message)
		}
		for _, rule := range op.Errors {
			data.Handled = append(data.Handled, rule.Code)
		}
		if s.journal != nil {
			ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
			defer cancel()
			recent, err := s.journal.ListRecentInvocations(ctx, recentLimit*5)
			if err != nil {
				data.RecentError = err.Error()
			}
			for _, inv := range recent {
				if inv.Operation == op.Name && len(data.Recent) < recentLimit {
					data.Recent = append(data.Recent, inv)
				}
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - operation template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
