package gateway

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"signal-enginev1/internal/logger"
	"signal-enginev1/internal/markethours"
	"signal-enginev1/internal/model"
	"signal-enginev1/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// Deps carries everything the HTTP layer needs. Extra is an optional
// additional sink (cache publisher, notifier) that receives the same
// updates as the WebSocket client.
type Deps struct {
	Hub            *Hub
	Source         model.BarSource
	Sessions       session.Config
	DefaultNumBars int
	Extra          model.Broadcaster
	Symbols        []string
	Log            *slog.Logger
	Start          time.Time

	// OnSessionStart/End let the caller track active-session counts.
	OnSessionStart func()
	OnSessionEnd   func(err error)

	// Per-session hooks forwarded to every session; may be nil.
	OnEmit    func(update model.StreamUpdate)
	OnBarDrop func(symbol string)
}

// clientSink adapts one WebSocket client to the session's broadcaster port.
type clientSink struct {
	hub    *Hub
	client *Client
}

func (cs *clientSink) Emit(_ context.Context, update model.StreamUpdate) {
	cs.hub.Deliver(cs.client, update)
}

// RegisterRoutes registers the WebSocket endpoint and the REST API on mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	// WS: one streaming session per connection. Parameters are fixed at
	// connect time via query string.
	mux.HandleFunc("/ws/signal", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[gateway] ws upgrade error: %v", err)
			return
		}

		q := r.URL.Query()
		symbols := q.Get("symbols")
		if symbols == "" {
			symbols = q.Get("symbol")
		}
		numBars := 0
		if v := q.Get("num_bars"); v != "" {
			numBars, _ = strconv.Atoi(v)
		}

		id := logger.NewSessionID()
		ctx, cancel := context.WithCancel(context.Background())
		ctx = logger.WithSessionID(ctx, id)
		client := NewClient(d.Hub, conn, id, cancel)
		d.Hub.Register(client)
		client.Start()

		req, err := session.ParseRequest(symbols, q.Get("timeframe"), numBars, d.DefaultNumBars)
		if err != nil {
			SendError(client, err.Error())
			cancel()
			time.AfterFunc(time.Second, func() { conn.Close() })
			return
		}

		sink := model.Broadcaster(&clientSink{hub: d.Hub, client: client})
		if d.Extra != nil {
			sink = model.MultiBroadcaster{sink, d.Extra}
		}

		sess := session.New(id, req, d.Sessions, d.Source, sink, d.Log)
		sess.OnEmit = d.OnEmit
		sess.OnBarDrop = d.OnBarDrop
		if d.OnSessionStart != nil {
			d.OnSessionStart()
		}
		go func() {
			err := sess.Run(ctx)
			if err != nil {
				SendError(client, err.Error())
			}
			if d.OnSessionEnd != nil {
				d.OnSessionEnd(err)
			}
			cancel()
			time.AfterFunc(time.Second, func() { conn.Close() })
		}()
	})

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		now := time.Now()
		p50, p95, p99 := d.Hub.Latency.Percentiles()
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":        "ok",
			"ws_clients":    d.Hub.ClientCount(),
			"uptime_sec":    int64(time.Since(d.Start).Seconds()),
			"latency_ms":    map[string]float64{"p50": p50, "p95": p95, "p99": p99},
			"market_open":   markethours.Default.IsMarketOpen(now),
			"market_status": markethours.Default.StatusString(now),
			"ts":            now.UTC().Format(time.RFC3339Nano),
		})
	})

	mux.HandleFunc("/api/v1/symbols", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"symbols": d.Symbols})
	})

	mux.HandleFunc("/api/v1/config", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		tfs := model.Timeframes()
		labels := make([]string, len(tfs))
		for i, tf := range tfs {
			labels[i] = string(tf)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"timeframes":       labels,
			"default_num_bars": d.DefaultNumBars,
			"poll_interval_ms": d.Sessions.PollInterval.Milliseconds(),
			"indicators": map[string]int{
				"sma_period":  d.Sessions.Indicators.SMAPeriod,
				"rsi_period":  d.Sessions.Indicators.RSIPeriod,
				"macd_fast":   d.Sessions.Indicators.MACDFast,
				"macd_slow":   d.Sessions.Indicators.MACDSlow,
				"macd_signal": d.Sessions.Indicators.MACDSignal,
			},
		})
	})

	// REST: latest signal per symbol@timeframe across all sessions.
	mux.HandleFunc("/api/v1/latest", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		latest := d.Hub.LatestAll()
		out := make(map[string]json.RawMessage, len(latest))
		for k, v := range latest {
			out[k] = json.RawMessage(v)
		}
		json.NewEncoder(w).Encode(out)
	})

	// REST: replay buffered envelopes for a session channel, for clients
	// that detected a seq gap. from/to are inclusive.
	mux.HandleFunc("/api/v1/missed", func(w http.ResponseWriter, r *http.Request) {
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")

		channel := r.URL.Query().Get("channel")
		from, _ := strconv.ParseInt(r.URL.Query().Get("from"), 10, 64)
		to, _ := strconv.ParseInt(r.URL.Query().Get("to"), 10, 64)
		if channel == "" || from <= 0 || to < from {
			http.Error(w, `{"error":"channel, from and to are required"}`, http.StatusBadRequest)
			return
		}

		envelopes := d.Hub.ReplayRange(channel, from, to)
		out := make([]json.RawMessage, len(envelopes))
		for i, e := range envelopes {
			out[i] = json.RawMessage(e)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"channel":   channel,
			"envelopes": out,
		})
	})
}
