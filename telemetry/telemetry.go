// Package telemetry is the structured per-iteration sink the Control loop
// reports to, plus an optional live websocket dashboard. It is the one
// package in this module allowed goroutines and channels: the core stays
// single-threaded, and this sink is explicitly external to it.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"

	"github.com/corrigan-labs/aps/task"
)

// IterationRecord is one outer Control tick. It does not carry the full
// {before, after, top-down, bottom-up, used, planned} breakdown per
// component named in the on-disk log format, because Control's observer
// boundary only sees the task's Config before/after and the tick's
// stop/success verdict; the deeper per-layer step keys live inside
// scm/icm/int2/lct and are not threaded back up. See DESIGN.md.
type IterationRecord struct {
	Iteration int    `json:"iteration"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Stop      bool   `json:"stop"`
	Success   bool   `json:"success"`
}

// StrategiesDump is the final section appended once a run ends, naming
// every learned entity by collection.
type StrategiesDump struct {
	Lct []string `json:"lct"`
	Int []string `json:"int"`
	Icm []string `json:"icm"`
	Scm []string `json:"scm"`
}

// logFile is the on-disk shape of output/<run>.json: an ordered array of
// iteration records plus a trailing strategies dump.
type logFile struct {
	Iterations []IterationRecord `json:"iterations"`
	Strategies *StrategiesDump   `json:"strategies,omitempty"`
}

// Logger accumulates iteration records for one run and optionally streams
// them to connected dashboard clients over a websocket.
type Logger struct {
	runName string

	mu      sync.Mutex
	records []IterationRecord
	before  *task.Config

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]chan IterationRecord
}

// NewLogger creates a sink for one run; its log is written to
// output/<runName>.json by Flush.
func NewLogger(runName string) *Logger {
	return &Logger{
		runName: runName,
		clients: map[*websocket.Conn]chan IterationRecord{},
	}
}

// Record implements control.IterationObserver. It is called once per outer
// iteration and never blocks on the dashboard: a full client channel drops
// the record rather than stalling the core.
func (l *Logger) Record(iteration int, t *task.Task, stop bool, success bool) {
	now := task.BuildConfig(t.Current, t.SlotTypes)

	before := ""
	if l.before != nil {
		before = l.before.Key()
	}
	rec := IterationRecord{
		Iteration: iteration,
		Before:    before,
		After:     now.Key(),
		Stop:      stop,
		Success:   success,
	}
	l.before = now

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()

	l.broadcast(rec)
}

func (l *Logger) broadcast(rec IterationRecord) {
	l.clientsMu.Lock()
	defer l.clientsMu.Unlock()
	for conn, ch := range l.clients {
		select {
		case ch <- rec:
		default:
			log.Printf("telemetry: dashboard client %v slow, dropping record %d", conn.RemoteAddr(), rec.Iteration)
		}
	}
}

// Flush writes output/<runName>.json with every recorded iteration plus the
// final strategies dump.
func (l *Logger) Flush(dump StrategiesDump) error {
	l.mu.Lock()
	records := append([]IterationRecord(nil), l.records...)
	l.mu.Unlock()

	if err := os.MkdirAll("output", 0o755); err != nil {
		return fmt.Errorf("telemetry: creating output dir: %w", err)
	}
	data, err := json.MarshalIndent(logFile{Iterations: records, Strategies: &dump}, "", "  ")
	if err != nil {
		return fmt.Errorf("telemetry: encoding log: %w", err)
	}
	path := filepath.Join("output", l.runName+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("telemetry: writing %s: %w", path, err)
	}
	return nil
}

const (
	writeWait      = 1 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 32
)

var upgrader = websocket.Upgrader{}

// Serve starts an HTTP dashboard: "/" serves a minimal status page and
// "/ws" upgrades to a websocket streaming each new IterationRecord. It
// blocks until ctx is cancelled or the server errors.
func (l *Logger) Serve(ctx context.Context, addr string) error {
	r := mux.NewRouter()
	r.HandleFunc("/", l.serveIndex).Methods(http.MethodGet)
	r.HandleFunc("/ws", l.serveWebsocket)

	srv := &http.Server{Addr: addr, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("telemetry: serve: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (l *Logger) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "<html><body><h1>aps run %s</h1><p>connect to /ws for live iteration records.</p></body></html>", l.runName)
}

func (l *Logger) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		log.Printf("telemetry: upgrade: %v", err)
		return
	}

	ch := make(chan IterationRecord, clientBuffer)
	l.clientsMu.Lock()
	l.clients[conn] = ch
	l.clientsMu.Unlock()

	defer func() {
		l.clientsMu.Lock()
		delete(l.clients, conn)
		l.clientsMu.Unlock()
		_ = conn.Close()
	}()

	l.publish(r.Context(), conn, ch)
}

// publish pumps queued records to one client until its connection closes or
// its context is cancelled, pinging on channerics' ticker to detect dead
// peers the way the teacher's dashboard does.
func (l *Logger) publish(ctx context.Context, conn *websocket.Conn, ch <-chan IterationRecord) {
	pubCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	pinger := channerics.NewTicker(pubCtx.Done(), pingPeriod)
	for {
		select {
		case <-pubCtx.Done():
			return
		case <-pinger:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		}
	}
}
