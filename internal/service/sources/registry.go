package sources

import (
	domsvc "QuantPull/internal/domain/service"
)

// BuildRegistry maps connector ids to connectors for the fallback chain.
func BuildRegistry(connectors ...domsvc.SourceConnector) map[string]domsvc.SourceConnector {
	out := make(map[string]domsvc.SourceConnector, len(connectors))
	for _, c := range connectors {
		if c == nil {
			continue
		}
		out[c.ID()] = c
	}
	return out
}
