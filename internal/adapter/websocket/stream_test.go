package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streambus/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStream(t *testing.T, b *bus.Bus, checkOrigin func(*http.Request) bool) string {
	t.Helper()
	srv := httptest.NewServer(NewStream(b, clockwork.NewRealClock(), checkOrigin))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialStream(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestStream_SendsOneFramePerMessage(t *testing.T) {
	b := bus.New(16)
	conn := dialStream(t, newTestStream(t, b, nil))
	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	b.Send(bus.SongProgress{Elapsed: 30, Duration: 180})
	b.Send(bus.Firework{})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, `{"type":"song/progress","elapsed":30,"duration":180}`, string(data))

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"firework"}`, string(data))
}

func TestStream_BusCloseSendsGoingAway(t *testing.T) {
	b := bus.New(16)
	conn := dialStream(t, newTestStream(t, b, nil))
	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	b.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestStream_ClientCloseReleasesCursor(t *testing.T) {
	b := bus.New(16)
	conn := dialStream(t, newTestStream(t, b, nil))
	require.Eventually(t, func() bool { return b.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, msg))

	assert.Eventually(t, func() bool { return b.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStream_RejectsForeignOrigin(t *testing.T) {
	b := bus.New(16)
	url := newTestStream(t, b, NewCheckOrigin(OriginPolicy{AppURL: "https://bot.example.com"}))

	header := http.Header{"Origin": []string{"https://evil.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, b.Subscribers())
}

func TestCloseCode(t *testing.T) {
	code, _ := closeCode(nil)
	assert.Equal(t, websocket.CloseGoingAway, code)

	code, _ = closeCode(&bus.LagError{Missed: 3, Next: 10})
	assert.Equal(t, websocket.CloseTryAgainLater, code)
}
