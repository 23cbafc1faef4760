package pubsub

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// TopicInfo documents a topic carried by the bus.
type TopicInfo struct {
	Name          string   `json:"name"`
	Module        string   `json:"module"`
	Description   string   `json:"description"`
	PayloadType   string   `json:"payloadType"`
	PayloadFields []string `json:"payloadFields"`
}

var topicNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(\.[a-z][a-z0-9_]*)+$`)

// Registry keeps the catalogue of known topics.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]TopicInfo
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{topics: make(map[string]TopicInfo)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry that NewEvent registers into.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// ValidateTopicName checks the dotted lowercase naming convention.
func ValidateTopicName(name string) error {
	if name == "" {
		return fmt.Errorf("topic name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("topic name too long (max 100 characters)")
	}
	if !topicNamePattern.MatchString(name) {
		return fmt.Errorf("topic name %q must be dotted lowercase, e.g. module.entity.action", name)
	}
	return nil
}

// Register adds info to the registry.
func (r *Registry) Register(info TopicInfo) error {
	if err := ValidateTopicName(info.Name); err != nil {
		return err
	}
	if info.Module == "" {
		info.Module, _, _ = strings.Cut(info.Name, ".")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.topics[info.Name]; exists {
		return fmt.Errorf("topic already registered: %s", info.Name)
	}
	r.topics[info.Name] = info
	return nil
}

// MustRegister is Register for package-level topic declarations.
func (r *Registry) MustRegister(info TopicInfo) {
	if err := r.Register(info); err != nil {
		panic(fmt.Sprintf("pubsub: %v", err))
	}
}

// Get looks up a topic by name.
func (r *Registry) Get(name string) (TopicInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.topics[name]
	return info, ok
}

// List returns every registered topic sorted by name.
func (r *Registry) List() []TopicInfo {
	r.mu.RLock()
	out := make([]TopicInfo, 0, len(r.topics))
	for _, info := range r.topics {
		out = append(out, info)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
