// Package messaging provides support for connecting to nats
package messaging

import (
	"github.com/nats-io/nats.go"
	"log"
)

// Config is the required properties to connect to nats.
type Config struct {
	URL string
	// Name identifies the connection on the nats server
	Name string
}

// Connect opens a nats connection that logs disconnects, reconnects and close events to log
func Connect(log *log.Logger, cfg Config) (*nats.Conn, error) {
	return nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats disconnected, error:%v\n", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("nats reconnected to %s\n", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("nats connection closed\n")
		}),
	)
}
