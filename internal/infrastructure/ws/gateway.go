package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/syncstream/syncstream/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Gateway owns websocket upgrades and client lifecycles. Recipient
// resolution lives with the membership manager; the gateway only moves
// frames.
type Gateway struct {
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

func NewGateway(logger *zap.SugaredLogger) *Gateway {
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin policy is enforced by the reverse proxy in deployment.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Upgrade performs the websocket handshake. responseHeader may carry a
// Set-Cookie for a freshly minted member id; headers set on w are not sent
// once the connection is hijacked.
func (g *Gateway) Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (*websocket.Conn, error) {
	return g.upgrader.Upgrade(w, r, responseHeader)
}

// Open wires a connection into a client and starts its write pump. The read
// pump is started by the caller once the session handler is ready.
func (g *Gateway) Open(conn *websocket.Conn, memberID, roomID string) *Client {
	client := NewClient(conn, memberID, roomID, g.logger)
	metrics.ClientsConnected.Inc()

	go func() {
		client.WritePump()
		metrics.ClientsConnected.Dec()
	}()

	return client
}
