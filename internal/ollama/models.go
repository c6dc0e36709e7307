package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ModelInfo represents information about an Ollama model
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// instruction-tuned families that follow the answering prompt well, best first
var preferredModels = []string{
	"llama3.2",
	"llama3.1",
	"qwen2.5",
	"mistral",
	"gemma2",
	"llama3",
}

// ListModels lists the models installed on the server
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Models, nil
}

// ResolveModel returns preferred when it is installed; otherwise the first
// installed model of a preferred family, or the largest installed model.
// Embedding-only models are never chosen.
func (c *Client) ResolveModel(ctx context.Context, preferred string) (string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return "", err
	}

	var candidates []ModelInfo
	for _, m := range models {
		if preferred != "" && (m.Name == preferred || m.Name == preferred+":latest") {
			return m.Name, nil
		}
		if !strings.Contains(strings.ToLower(m.Name), "embed") {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no generation models available")
	}

	for _, family := range preferredModels {
		for _, m := range candidates {
			if strings.Contains(strings.ToLower(m.Name), family) {
				return m.Name, nil
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Size > candidates[j].Size
	})
	return candidates[0].Name, nil
}
