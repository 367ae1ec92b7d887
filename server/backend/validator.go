package backend

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SupportedBackendTypes lists all backend types the dashboard can poll
var SupportedBackendTypes = map[string]bool{
	"dynamodb": true,
}

// ApplyDefaults fills in optional fields left empty in the configuration file.
func ApplyDefaults(configs []Config) {
	for i := range configs {
		if configs[i].PollIntervalSeconds == 0 {
			configs[i].PollIntervalSeconds = DefaultPollIntervalSeconds
		}
		if configs[i].ImagePrefix == "" {
			configs[i].ImagePrefix = DefaultImagePrefix
		}
	}
}

// ValidateBackends checks a list of backend configurations.
// An empty list is valid; the dashboard then serves no alerts.
func ValidateBackends(configs []Config) error {
	seenIDs := make(map[string]bool)
	seenNames := make(map[string]bool)

	for i, config := range configs {
		if err := validateRequiredFields(config); err != nil {
			return fmt.Errorf("backend configuration at position %d: %w", i+1, err)
		}

		if err := validateUUID(config.ID); err != nil {
			return fmt.Errorf("backend '%s': %w", config.Name, err)
		}

		if seenIDs[config.ID] {
			return fmt.Errorf("duplicate backend ID found: %s", config.ID)
		}
		seenIDs[config.ID] = true

		if seenNames[config.Name] {
			return fmt.Errorf("duplicate backend name found: '%s'", config.Name)
		}
		seenNames[config.Name] = true

		if !SupportedBackendTypes[config.Type] {
			return fmt.Errorf("backend '%s': unsupported type '%s' (only 'dynamodb' is currently supported)", config.Name, config.Type)
		}

		if strings.HasPrefix(config.ImagePrefix, "/") {
			return fmt.Errorf("backend '%s': image_prefix must not start with '/'", config.Name)
		}

		for _, topic := range config.NotifyTopics {
			if strings.TrimSpace(topic) == "" {
				return fmt.Errorf("backend '%s': notify_topics contains an empty topic", config.Name)
			}
		}

		if config.PollIntervalSeconds < MinPollIntervalSeconds {
			return fmt.Errorf("backend '%s': poll interval must be at least %d seconds (got %d)",
				config.Name, MinPollIntervalSeconds, config.PollIntervalSeconds)
		}
	}

	return nil
}

// validateRequiredFields checks that all required fields are present and non-empty
func validateRequiredFields(config Config) error {
	if config.ID == "" {
		return fmt.Errorf("missing required field 'id'")
	}
	if config.Name == "" {
		return fmt.Errorf("missing required field 'name'")
	}
	if config.Type == "" {
		return fmt.Errorf("missing required field 'type'")
	}
	if config.Table == "" {
		return fmt.Errorf("missing required field 'table'")
	}
	if config.Bucket == "" {
		return fmt.Errorf("missing required field 'bucket'")
	}
	return nil
}

// validateUUID checks that the ID is a valid UUID v4
func validateUUID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid UUID format for id: %w", err)
	}

	if parsed.Version() != 4 {
		return fmt.Errorf("id must be a UUID v4 (got version %d)", parsed.Version())
	}

	return nil
}

// DiffBackendConfigs compares old and new backend configurations and returns IDs to add, update, and remove.
func DiffBackendConfigs(oldConfigs, newConfigs []Config) (toAdd, toUpdate, toRemove []string) {
	oldMap := make(map[string]Config, len(oldConfigs))
	for _, cfg := range oldConfigs {
		oldMap[cfg.ID] = cfg
	}

	newIDs := make(map[string]bool, len(newConfigs))
	for _, newCfg := range newConfigs {
		newIDs[newCfg.ID] = true
		oldCfg, exists := oldMap[newCfg.ID]
		switch {
		case !exists:
			toAdd = append(toAdd, newCfg.ID)
		case !oldCfg.Equal(newCfg):
			toUpdate = append(toUpdate, newCfg.ID)
		}
	}

	for _, cfg := range oldConfigs {
		if !newIDs[cfg.ID] {
			toRemove = append(toRemove, cfg.ID)
		}
	}

	return toAdd, toUpdate, toRemove
}
