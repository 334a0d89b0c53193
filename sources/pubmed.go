package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/giygas/protoscan/interfaces"
)

const (
	DefaultPubMedURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/esearch.fcgi"
	pubMedArticleURL = "https://pubmed.ncbi.nlm.nih.gov/%s/"
	pubMedMaxResults = 3
)

var _ interfaces.LiteratureSearch = (*PubMedClient)(nil)

// PubMedConfig identifies the caller to NCBI E-utilities
type PubMedConfig struct {
	BaseURL string
	APIKey  string
	Email   string
	Tool    string
}

// PubMedClient searches PubMed for high-level evidence on a drug and disease
type PubMedClient struct {
	http *http.Client
	cfg  PubMedConfig
}

func NewPubMedClient(client *http.Client, cfg PubMedConfig) *PubMedClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPubMedURL
	}
	return &PubMedClient{http: client, cfg: cfg}
}

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Query builds the esearch term for inn and disease restricted to RCTs,
// meta-analyses and systematic reviews
func Query(inn, disease string) string {
	return fmt.Sprintf("(%s[Title/Abstract]) AND (%s[Title/Abstract]) AND "+
		"(randomized controlled trial[Publication Type] OR meta-analysis[Publication Type] OR systematic review[Publication Type])",
		inn, disease)
}

// Search returns up to three article links. It returns nil without a request
// when inn or disease is empty.
func (c *PubMedClient) Search(ctx context.Context, inn, disease string) ([]string, error) {
	inn, disease = strings.TrimSpace(inn), strings.TrimSpace(disease)
	if inn == "" || disease == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", Query(inn, disease))
	params.Set("retmode", "json")
	params.Set("retmax", fmt.Sprint(pubMedMaxResults))
	if c.cfg.Tool != "" {
		params.Set("tool", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		params.Set("email", c.cfg.Email)
	}
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}

	body, err := get(ctx, c.http, c.cfg.BaseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}

	var resp esearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("pubmed search: failed to decode response: %w", err)
	}

	links := make([]string, 0, len(resp.Result.IDList))
	for _, pmid := range resp.Result.IDList {
		if len(links) == pubMedMaxResults {
			break
		}
		links = append(links, fmt.Sprintf(pubMedArticleURL, pmid))
	}
	return links, nil
}
