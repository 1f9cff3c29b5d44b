package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"optionsledger/src/kpi"
	"optionsledger/src/model"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

type snapshotSource interface {
	Trades(ctx context.Context) ([]model.Trade, error)
	Subscribe(fn func()) (unsubscribe func())
}

// Snapshot is the full dashboard state pushed to stream clients.
type Snapshot struct {
	Trades  []model.Trade       `json:"trades"`
	KPIs    kpi.Totals          `json:"kpis"`
	Tickers []kpi.TickerSummary `json:"tickers"`
	Error   string              `json:"error,omitempty"`
}

func buildSnapshot(ctx context.Context, src snapshotSource) Snapshot {
	trades, err := src.Trades(ctx)
	if err != nil {
		return Snapshot{Trades: []model.Trade{}, Tickers: []kpi.TickerSummary{}, Error: err.Error()}
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	return Snapshot{
		Trades:  trades,
		KPIs:    kpi.Compute(trades),
		Tickers: kpi.ByTicker(trades),
	}
}

// StreamHandler upgrades to a websocket, sends a snapshot right away and a
// fresh one after every committed change. Client messages are ignored.
func StreamHandler(src snapshotSource, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		changed := make(chan struct{}, 1)
		unsubscribe := src.Subscribe(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		send := func() error {
			snap := buildSnapshot(r.Context(), src)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteJSON(snap)
		}

		if err := send(); err != nil {
			return
		}

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-closed:
				return
			case <-changed:
				if err := send(); err != nil {
					logger.WithError(err).Debug("websocket client gone")
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}
}

// originChecker allows every origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}
