package broadcast

import (
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConn mirrors the event stream onto a NATS subject.
// It is registered with a Broadcaster like any other viewer.
// NATSConn 将事件流镜像到 NATS 主题。
type NATSConn struct {
	nc      *nats.Conn
	subject string
}

// DialNATS connects to the NATS server at url.
func DialNATS(url, subject string, log *zap.SugaredLogger) (*NATSConn, error) {
	nc, err := nats.Connect(url,
		nats.Name("pktstream"),
		nats.Timeout(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Infof("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	log.Infof("📨 Connected to NATS at %s, subject %s", url, subject)
	return &NATSConn{nc: nc, subject: subject}, nil
}

func (n *NATSConn) Send(data []byte) error {
	return n.nc.Publish(n.subject, data)
}

// Close drains pending messages and closes the connection.
func (n *NATSConn) Close() error {
	return n.nc.Drain()
}
