// Package opensearch indexes launch history documents over the REST API.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/pivbatch/internal/history"
)

// doc is the flat document shape stored per event.
type doc struct {
	Timestamp   time.Time `json:"@timestamp"`
	Event       string    `json:"event"`
	Key         string    `json:"key"`
	PID         int       `json:"pid,omitempty"`
	Name        string    `json:"name,omitempty"`
	Source      string    `json:"source,omitempty"`
	Destination string    `json:"destination,omitempty"`
	FinalNum    int       `json:"final_num,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Sink POSTs one document per event to {base}/{index}/_doc.
type Sink struct {
	client   *http.Client
	baseURL  string
	index    string
	user     string
	password string
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient replaces the default client, which times out after 5s.
func WithClient(c *http.Client) Option { return func(s *Sink) { s.client = c } }

// WithBasicAuth sends credentials with every request.
func WithBasicAuth(user, password string) Option {
	return func(s *Sink) { s.user, s.password = user, password }
}

func New(baseURL, index string, opts ...Option) *Sink {
	s := &Sink{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	b, err := json.Marshal(doc{
		Timestamp:   e.OccurredAt,
		Event:       string(e.Type),
		Key:         e.Record.Key,
		PID:         e.Record.PID,
		Name:        e.Record.Name,
		Source:      e.Record.Source,
		Destination: e.Record.Destination,
		FinalNum:    e.Record.FinalNum,
		Error:       e.Record.Error,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/"+s.index+"/_doc", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.user != "" {
		req.SetBasicAuth(s.user, s.password)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("opensearch index %s: status %d: %s", s.index, resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}
