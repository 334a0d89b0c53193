package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/giygas/protoscan/interfaces"
)

const DefaultOpenFDAURL = "https://api.fda.gov/drug/drugsfda.json"

// FDA statuses
const (
	FDAApproved = "approved"
	FDANotFound = "not found"
)

var _ interfaces.RegulatoryLookup = (*OpenFDAClient)(nil)

// OpenFDAClient queries Drugs@FDA by generic name
type OpenFDAClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewOpenFDAClient(client *http.Client, baseURL, apiKey string) *OpenFDAClient {
	if baseURL == "" {
		baseURL = DefaultOpenFDAURL
	}
	return &OpenFDAClient{http: client, baseURL: baseURL, apiKey: apiKey}
}

type drugsFDAResponse struct {
	Results []struct {
		ApplicationNumber string `json:"application_number"`
	} `json:"results"`
}

// Status returns "approved" when Drugs@FDA has an application for the generic
// name and "not found" when it has none
func (c *OpenFDAClient) Status(ctx context.Context, inn string) (string, error) {
	inn = strings.TrimSpace(inn)
	if inn == "" {
		return "", nil
	}

	params := url.Values{}
	params.Set("search", fmt.Sprintf(`openfda.generic_name:"%s"`, strings.ReplaceAll(inn, `"`, "")))
	params.Set("limit", "1")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := get(ctx, c.http, c.baseURL+"?"+params.Encode())
	if err != nil {
		// openFDA answers 404 when the search matches nothing
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return FDANotFound, nil
		}
		return "", fmt.Errorf("openfda lookup: %w", err)
	}

	var resp drugsFDAResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("openfda lookup: failed to decode response: %w", err)
	}
	if len(resp.Results) == 0 {
		return FDANotFound, nil
	}
	return FDAApproved, nil
}
