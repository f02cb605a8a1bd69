// Package queue publishes embedding jobs for newly ingested documents. The
// embedding collaborator consumes the subject and writes vectors into its
// own store; search works without it, just degraded to lexical-only for
// documents whose vectors have not landed yet.
package queue

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	docerr "github.com/smartdocfinder/smartdoc/internal/errors"
)

// EmbeddingJob is the message body for one document to embed.
type EmbeddingJob struct {
	DocumentID int64  `json:"document_id"`
	Content    string `json:"content"`
}

// Publisher writes embedding jobs to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect dials the NATS server. Reconnection is handled by the client with
// a bounded retry window so short broker restarts do not lose the handle.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("smartdoc"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("queue disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("queue reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.ErrCodeQueueUnavailable, "connect to queue")
	}
	return &Publisher{conn: conn, subject: subject}, nil
}

// PublishEmbeddingJob enqueues one document for embedding.
func (p *Publisher) PublishEmbeddingJob(docID int64, content string) error {
	data, err := json.Marshal(EmbeddingJob{DocumentID: docID, Content: content})
	if err != nil {
		return docerr.Wrap(err, docerr.ErrCodeInternal, "encode embedding job")
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return docerr.Wrap(err, docerr.ErrCodeQueueUnavailable, "publish embedding job")
	}
	return nil
}

// Close flushes pending messages and drops the connection.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Flush(); err != nil {
		slog.Warn("queue flush failed", slog.String("error", err.Error()))
	}
	p.conn.Close()
}
