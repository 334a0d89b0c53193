package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/giygas/protoscan/medicationparser"
)

// EMANotFound is the EMA status of an INN absent from the register
const EMANotFound = "not found"

const emaAuthorised = "authorised"

// emaEntry holds the fields used from one row of the EMA medicines report
type emaEntry struct {
	INN             string `json:"international_non_proprietary_name_common_name"`
	ActiveSubstance string `json:"active_substance"`
	Status          string `json:"medicine_status"`
}

// FetchEMARegister downloads the EMA medicines report and indexes it by INN
func FetchEMARegister(ctx context.Context, client *http.Client, registerURL string) (map[string]string, error) {
	body, err := get(ctx, client, registerURL)
	if err != nil {
		return nil, fmt.Errorf("ema register: %w", err)
	}
	return ParseEMARegister(body)
}

// ParseEMARegister indexes the report by folded INN, falling back to the
// active substance. The report is either a JSON array or an object with a
// "data" array. When an INN has several products an authorised one wins.
func ParseEMARegister(body []byte) (map[string]string, error) {
	var entries []emaEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		var wrapped struct {
			Data []emaEntry `json:"data"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, fmt.Errorf("ema register: failed to decode report: %w", err)
		}
		entries = wrapped.Data
	}

	register := make(map[string]string, len(entries))
	for _, e := range entries {
		name := e.INN
		if strings.TrimSpace(name) == "" {
			name = e.ActiveSubstance
		}
		key := medicationparser.Fold(name)
		status := strings.TrimSpace(e.Status)
		if key == "" || status == "" {
			continue
		}
		if current, ok := register[key]; ok && strings.EqualFold(current, emaAuthorised) {
			continue
		}
		register[key] = status
	}
	return register, nil
}
