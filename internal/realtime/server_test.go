package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-market-dashboard/internal/cache"
)

func newTestServer(t *testing.T) (*Server, *websocket.Conn) {
	t.Helper()

	srv := NewServer(NewRegistry(), cache.NewMarketCache(time.Hour), Options{
		WriteWait:  5 * time.Second,
		PongWait:   30 * time.Second,
		SendBuffer: 64,
	})
	mux := http.NewServeMux()
	srv.Register(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/realtime"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	t.Cleanup(srv.Close)

	return srv, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg ServerMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestServer_ConnectSendsStatusAndSnapshot(t *testing.T) {
	_, conn := newTestServer(t)

	first := readMessage(t, conn)
	assert.Equal(t, EvtConnectionStatus, first.Event)

	second := readMessage(t, conn)
	assert.Equal(t, EvtMarketSnapshot, second.Event)
}

func TestServer_SubscribeAckFiltersSymbols(t *testing.T) {
	_, conn := newTestServer(t)
	readMessage(t, conn) // connection:status
	readMessage(t, conn) // market:snapshot

	// 重复符号 + 白名单外符号
	require.NoError(t, conn.WriteJSON(ClientMessage{
		Event: EvtSubscribePrices,
		Data:  json.RawMessage(`{"symbols":["BTC","BTC","DOGE"]}`),
	}))

	ack := readMessage(t, conn)
	assert.Equal(t, EvtSubscribeConfirmed, ack.Event)

	data := ack.Data.(map[string]any)
	assert.Equal(t, CategoryPrices, data["type"])
	assert.Equal(t, []any{"BTC"}, data["symbols"])
	assert.Equal(t, []any{"price:BTC"}, data["topics"])
}

func TestServer_SubscribeAcceptsBareSymbolArray(t *testing.T) {
	_, conn := newTestServer(t)
	readMessage(t, conn) // connection:status
	readMessage(t, conn) // market:snapshot

	// 裸符号数组与 {"symbols":[...]} 等价
	require.NoError(t, conn.WriteJSON(ClientMessage{
		Event: EvtSubscribeFunding,
		Data:  json.RawMessage(`["ETH","DOGE"]`),
	}))

	ack := readMessage(t, conn)
	assert.Equal(t, EvtSubscribeConfirmed, ack.Event)

	data := ack.Data.(map[string]any)
	assert.Equal(t, CategoryFunding, data["type"])
	assert.Equal(t, []any{"ETH"}, data["symbols"])
	assert.Equal(t, []any{"funding:ETH"}, data["topics"])
}

func TestServer_UnsubscribeAck(t *testing.T) {
	srv, conn := newTestServer(t)
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Event: EvtSubscribeLiquidations,
	}))
	ack := readMessage(t, conn)
	require.Equal(t, EvtSubscribeConfirmed, ack.Event)
	assert.Equal(t, 1, srv.registry.SubscriptionCount())

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Event: EvtUnsubscribe,
		Data:  json.RawMessage(`{"type":"liquidations"}`),
	}))
	ack = readMessage(t, conn)
	assert.Equal(t, EvtUnsubscribeConfirmed, ack.Event)
	assert.Zero(t, srv.registry.SubscriptionCount())
}

func TestServer_PingPong(t *testing.T) {
	_, conn := newTestServer(t)
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EvtPing}))
	msg := readMessage(t, conn)
	assert.Equal(t, EvtPong, msg.Event)
}

func TestServer_DisconnectCleansRegistry(t *testing.T) {
	srv, conn := newTestServer(t)
	readMessage(t, conn)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(ClientMessage{Event: EvtSubscribeSentiment}))
	readMessage(t, conn)
	require.Equal(t, 1, srv.registry.ClientCount())

	conn.Close()

	assert.Eventually(t, func() bool {
		return srv.registry.ClientCount() == 0 && srv.registry.SubscriptionCount() == 0
	}, 2*time.Second, 20*time.Millisecond)
}
