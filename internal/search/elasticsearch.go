package search

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backoffice/services/complaints/config"
	"example.com/backoffice/services/complaints/internal/models"
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

// IndexComplaint indexes the current state of a complaint for downstream
// analytics. The document ID is the complaint ID, so increments and
// content updates overwrite the previous revision.
func (c *ElasticClient) IndexComplaint(ctx context.Context, complaint *models.Complaint) error {
	doc := map[string]interface{}{
		"id":            complaint.ID,
		"product_id":    complaint.ProductID,
		"complainant":   complaint.Complainant,
		"content":       complaint.Content,
		"creation_date": complaint.CreationDate,
		"count":         complaint.Count,
	}
	if complaint.ComplainantCountry != nil {
		doc["complainant_country"] = *complaint.ComplainantCountry
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal complaint document")
	}

	indexName := config.FormatIndex(c.config, c.config.Index)
	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: strconv.FormatInt(complaint.ID, 10),
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

	log.Debug().Int64("complaint_id", complaint.ID).Msg("Complaint indexed")
	return nil
}
