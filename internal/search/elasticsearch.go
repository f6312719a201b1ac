package search

import (
	"bytes"
	"context"
	"encoding/json"

	"example.com/autoparts/backoffice/config"
	"example.com/autoparts/backoffice/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ElasticClient provides integration with Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

// IndexDeliveryNote indexes a committed delivery note with its lines
func (c *ElasticClient) IndexDeliveryNote(ctx context.Context, note *models.DeliveryNote, lines []models.OrderLine) error {
	log.Info().Str("code", note.Code).Msg("indexing delivery note")

	lineDocs := make([]map[string]interface{}, 0, len(lines))
	total := "0.00"
	for _, line := range lines {
		lineDocs = append(lineDocs, map[string]interface{}{
			"part_code":  line.PartCode,
			"quantity":   line.Quantity,
			"unit_price": line.UnitPrice.StringFixed(2),
			"subtotal":   line.Subtotal.StringFixed(2),
		})
	}
	if len(lines) > 0 {
		sum := lines[0].Subtotal
		for _, line := range lines[1:] {
			sum = sum.Add(line.Subtotal)
		}
		total = sum.StringFixed(2)
	}

	noteDoc := map[string]interface{}{
		"id":           note.ID.String(),
		"code":         note.Code,
		"client_id":    note.ClientID.String(),
		"seller_id":    note.SellerID.String(),
		"payment_type": note.PaymentType,
		"status":       note.Status,
		"created_at":   note.CreatedAt,
		"total":        total,
		"lines":        lineDocs,
	}

	docJSON, err := json.Marshal(noteDoc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal delivery note document")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: note.ID.String(),
		Body:       bytes.NewReader(docJSON),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return errors.Errorf("Elasticsearch index error: %v", e)
	}

	log.Info().Str("code", note.Code).Msg("delivery note indexed successfully")
	return nil
}

// SearchDeliveryNotes searches indexed notes by part code and/or client
func (c *ElasticClient) SearchDeliveryNotes(ctx context.Context, partCode, clientID string) ([]map[string]interface{}, error) {
	must := make([]map[string]interface{}, 0, 2)
	if partCode != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"lines.part_code": partCode},
		})
	}
	if clientID != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"client_id": clientID},
		})
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": must},
		},
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
			return nil, errors.Wrap(err, "failed to parse Elasticsearch error response")
		}
		return nil, errors.Errorf("Elasticsearch search error: %v", e)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected search result format")
	}

	hitsArray, ok := hits["hits"].([]interface{})
	if !ok {
		return nil, errors.New("unexpected hits format")
	}

	var docs []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}

		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}

		docs = append(docs, source)
	}

	return docs, nil
}
