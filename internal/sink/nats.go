package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes positions as JSON messages on per-target
// subjects: positions.<target>.
type NATSSink struct {
	nc          *nats.Conn
	logSubjects bool
}

func NewNATSSink(url string, logSubjects bool, m SinkMetrics) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("route-simulator"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SinkSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SinkSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SinkSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SinkSetConnected(true)
	}
	return &NATSSink{nc: nc, logSubjects: logSubjects}, nil
}

func (s *NATSSink) Close() {
	if s.nc != nil {
		s.nc.Drain()
		s.nc.Close()
	}
}

func (s *NATSSink) Deliver(_ context.Context, target string, pos Position) error {
	subject := fmt.Sprintf("positions.%s", subjectToken(target))
	b, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	if s.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	return s.nc.Publish(subject, b)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
