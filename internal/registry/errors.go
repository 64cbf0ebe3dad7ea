package registry

import "fmt"

// ConfigurationError reports a defect in the entity schema registry or
// a lookup of an unregistered entity type. It is fatal: the engine
// never retries or skips past one.
type ConfigurationError struct {
	EntityType EntityType
	Detail     string
}

func (e *ConfigurationError) Error() string {
	if e.EntityType != "" {
		return fmt.Sprintf("registry: %s: %s", e.EntityType, e.Detail)
	}
	return fmt.Sprintf("registry: %s", e.Detail)
}
