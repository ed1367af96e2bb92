package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v9"
)

// AuditIndexer stores every event as a document in an Elasticsearch index,
// using the event id as document id so retries do not duplicate entries.
type AuditIndexer struct {
	es    *elasticsearch.Client
	index string
}

type AuditConfig struct {
	URL      string
	Username string
	Password string
	Index    string
}

func NewAuditIndexer(cfg AuditConfig) (*AuditIndexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &AuditIndexer{es: client, index: cfg.Index}, nil
}

// Ping checks the cluster answers.
func (a *AuditIndexer) Ping(ctx context.Context) error {
	res, err := a.es.Info(a.es.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch info: %s", res.Status())
	}
	return nil
}

func (a *AuditIndexer) Publish(ctx context.Context, e Event) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("audit: encode event: %w", err)
	}

	res, err := a.es.Index(
		a.index,
		&buf,
		a.es.Index.WithContext(ctx),
		a.es.Index.WithDocumentID(e.ID),
	)
	if err != nil {
		return fmt.Errorf("audit: index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("audit: index event: %s: %s", res.Status(), body)
	}
	return nil
}
