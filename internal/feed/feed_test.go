package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

func Test_ParseBookTop_CombinedStream(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@bookTicker","data":{"u":400900217,"s":"BTCUSDT","b":"29999.50","B":"0.431","a":"30000.10","A":"0.120","E":1709294400123}}`)

	top, err := parseBookTop(raw, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", top.Symbol)
	assert.Equal(t, 29999.50, top.BidPrice)
	assert.Equal(t, 0.431, top.BidQty)
	assert.Equal(t, 30000.10, top.AskPrice)
	assert.Equal(t, 0.120, top.AskQty)
	assert.Equal(t, time.UnixMilli(1709294400123).UTC(), top.UpdatedAt)
}

func Test_ParseBookTop_BareTicker(t *testing.T) {
	raw := []byte(`{"u":1,"s":"ETHBTC","b":"0.05","B":"3","a":"0.051","A":"2"}`)
	received := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	top, err := parseBookTop(raw, received)
	require.NoError(t, err)
	assert.Equal(t, "ETHBTC", top.Symbol)
	assert.Equal(t, received, top.UpdatedAt, "receipt time used when no event time present")
}

func Test_ParseBookTop_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":       `{`,
		"missing symbol": `{"u":1,"b":"1","B":"1","a":"1","A":"1"}`,
		"bad price":      `{"u":1,"s":"ETHBTC","b":"abc","B":"1","a":"1","A":"1"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseBookTop([]byte(raw), time.Now())
			assert.Error(t, err)
		})
	}
}

func Test_StreamURL(t *testing.T) {
	url := StreamURL("wss://stream.example.com", []string{"BTCUSDT", "ETHBTC"})
	assert.Equal(t, "wss://stream.example.com/stream?streams=btcusdt@bookTicker/ethbtc@bookTicker", url)
}

func Test_Client_DeliversUpdates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		msg := `{"stream":"ethbtc@bookTicker","data":{"u":2,"s":"ETHBTC","b":"0.05","B":"3","a":"0.051","A":"2","E":1709294400000}}`
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	got := make(chan domain.BookTop, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), func(top domain.BookTop) {
		select {
		case got <- top:
		default:
		}
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(ctx)
	}()

	select {
	case top := <-got:
		assert.Equal(t, "ETHBTC", top.Symbol)
		assert.Equal(t, 0.051, top.AskPrice)
	case <-time.After(5 * time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop on cancel")
	}
}
