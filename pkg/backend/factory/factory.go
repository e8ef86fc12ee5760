package factory

import (
	"fmt"
	"time"

	"rag-chatbot-ui/pkg/backend"
	"rag-chatbot-ui/pkg/backend/langgraph"
	"rag-chatbot-ui/pkg/backend/memory"
)

func NewBackend(providerType, baseURL string, timeout time.Duration) (backend.Backend, error) {
	switch providerType {
	case "http", "langgraph":
		if baseURL == "" {
			baseURL = "http://localhost:8000" // Default
		}
		return langgraph.NewClient(baseURL, timeout), nil
	case "memory":
		return memory.NewBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend provider: %s", providerType)
	}
}
