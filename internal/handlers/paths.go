package handlers

import (
	"net/url"
	"strings"
)

// Path fragments that identify a Gemini generation call. Anything else is
// not ours to translate.
var generationFragments = []string{
	"generateContent",
	"/v1/models/",
	"/v1beta/",
}

// IsGenerationPath reports whether the request path is a Gemini API
// generation endpoint.
func IsGenerationPath(path string) bool {
	for _, fragment := range generationFragments {
		if strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}

// IsStreamingPath reports whether the request asks for the streaming
// variant (streamGenerateContent or alt=sse).
func IsStreamingPath(path string, query url.Values) bool {
	if strings.Contains(path, "streamGenerateContent") {
		return true
	}
	return query.Get("alt") == "sse"
}
