package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"llmbridge/internal/gemini"
)

// BuildExactCacheKey builds an ExactCacheKey from the inbound generation
// request, the effective model, and the proxy version (for invalidation).
// It normalizes the request into a stable string, hashes it with SHA-256,
// and fills the ExactCacheKey struct.
func BuildExactCacheKey(
	req gemini.GenerateContentRequest,
	modelID string,
	versionID string,
) (ExactCacheKey, error) {
	modelID = strings.TrimSpace(modelID)

	body, err := json.Marshal(req)
	if err != nil {
		return ExactCacheKey{}, err
	}

	normalized := "model:" + modelID + "|body:" + string(body)

	sum := sha256.Sum256([]byte(normalized))

	return ExactCacheKey{
		ModelID:   modelID,
		VersionID: strings.TrimSpace(versionID),
		Hash:      hex.EncodeToString(sum[:]),
	}, nil
}
