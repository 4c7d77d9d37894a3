package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/config"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// OrderDocument is the indexed form of an order
type OrderDocument struct {
	ID           string    `json:"id"`
	OrderNumber  string    `json:"order_number"`
	Status       string    `json:"status"`
	ClientID     string    `json:"client_id,omitempty"`
	SellerID     string    `json:"seller_id,omitempty"`
	ServiceID    string    `json:"service_id,omitempty"`
	Requirements string    `json:"requirements"`
	TotalPrice   int64     `json:"total_price"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const orderMapping = `{
  "mappings": {
    "properties": {
      "id":           {"type": "keyword"},
      "order_number": {"type": "keyword"},
      "status":       {"type": "keyword"},
      "client_id":    {"type": "keyword"},
      "seller_id":    {"type": "keyword"},
      "service_id":   {"type": "keyword"},
      "requirements": {"type": "text"},
      "total_price":  {"type": "long"},
      "created_at":   {"type": "date"},
      "updated_at":   {"type": "date"}
    }
  }
}`

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

func (c *ElasticClient) indexName() string {
	return config.FormatIndex(c.config, c.config.Index)
}

// EnsureIndex creates the orders index with its mapping when it does not exist
func (c *ElasticClient) EnsureIndex(ctx context.Context) error {
	exists, err := esapi.IndicesExistsRequest{Index: []string{c.indexName()}}.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to check Elasticsearch index")
	}
	exists.Body.Close()

	if exists.StatusCode == http.StatusOK {
		return nil
	}

	res, err := esapi.IndicesCreateRequest{
		Index: c.indexName(),
		Body:  strings.NewReader(orderMapping),
	}.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to create Elasticsearch index")
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError(res, "index create")
	}

	log.Info().Str("index", c.indexName()).Msg("created orders index")
	return nil
}

// IndexOrder indexes an order in Elasticsearch
func (c *ElasticClient) IndexOrder(ctx context.Context, order *models.Order) error {
	doc := NewOrderDocument(order)

	// Marshall the document to JSON
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal order document")
	}

	// Prepare the index request
	req := esapi.IndexRequest{
		Index:      c.indexName(),
		DocumentID: doc.ID,
		Body:       bytes.NewReader(docJSON),
	}

	// Execute the request
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch index request")
	}
	defer res.Body.Close()

	// Check for errors in the response
	if res.IsError() {
		return responseError(res, "index")
	}

	log.Debug().Str("order_id", doc.ID).Msg("order indexed")
	return nil
}

// SearchOrders runs a full-text search over order numbers and requirements,
// restricted to orders where participant is client or seller
func (c *ElasticClient) SearchOrders(ctx context.Context, text string, participant uuid.UUID, limit int) ([]OrderDocument, error) {
	if limit <= 0 {
		limit = 20
	}

	query := map[string]interface{}{
		"size": limit,
		"sort": []interface{}{
			map[string]interface{}{"created_at": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  text,
							"fields": []string{"order_number^3", "requirements"},
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"bool": map[string]interface{}{
							"should": []interface{}{
								map[string]interface{}{"term": map[string]interface{}{"client_id": participant.String()}},
								map[string]interface{}{"term": map[string]interface{}{"seller_id": participant.String()}},
							},
							"minimum_should_match": 1,
						},
					},
				},
			},
		},
	}

	// Convert query to JSON
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	// Prepare the search request
	req := esapi.SearchRequest{
		Index: []string{c.indexName()},
		Body:  bytes.NewReader(queryJSON),
	}

	// Execute the request
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	// Check for errors in the response
	if res.IsError() {
		return nil, responseError(res, "search")
	}

	// Parse the response
	var result struct {
		Hits struct {
			Hits []struct {
				Source OrderDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	docs := make([]OrderDocument, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}

	return docs, nil
}

// NewOrderDocument builds the indexed form of order
func NewOrderDocument(order *models.Order) OrderDocument {
	doc := OrderDocument{
		ID:           order.ID.String(),
		OrderNumber:  order.OrderNumber,
		Status:       string(order.Status),
		Requirements: order.Requirements,
		TotalPrice:   order.TotalPrice,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
	if order.ClientID != nil {
		doc.ClientID = order.ClientID.String()
	}
	if order.SellerID != nil {
		doc.SellerID = order.SellerID.String()
	}
	if order.ServiceID != nil {
		doc.ServiceID = order.ServiceID.String()
	}
	return doc
}

func responseError(res *esapi.Response, op string) error {
	var e map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		return errors.Wrapf(err, "failed to parse Elasticsearch %s error response", op)
	}
	return errors.Errorf("Elasticsearch %s error: %s: %v", op, res.Status(), e)
}
