package matching

import "fmt"

// Stages at which a provider call can fail.
const (
	StageSearch = "search"
	StageAlbum  = "album"
)

// ProviderError wraps a backend failure with the provider and stage it came from.
type ProviderError struct {
	Provider string
	Stage    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
