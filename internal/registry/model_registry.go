package registry

import (
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ThinkingSupport describes the reasoning budget a model accepts.
type ThinkingSupport struct {
	Min            int      `json:"min,omitempty"`
	Max            int      `json:"max,omitempty"`
	ZeroAllowed    bool     `json:"zero_allowed,omitempty"`
	DynamicAllowed bool     `json:"dynamic_allowed,omitempty"`
	Levels         []string `json:"levels,omitempty"`
}

// ModelInfo is the provider-neutral description of one model. Fields map onto
// the OpenAI, Claude and Gemini listing shapes; unused fields stay zero.
type ModelInfo struct {
	ID                         string           `json:"id"`
	Object                     string           `json:"object,omitempty"`
	Created                    int64            `json:"created,omitempty"`
	OwnedBy                    string           `json:"owned_by,omitempty"`
	Type                       string           `json:"type,omitempty"`
	Name                       string           `json:"name,omitempty"`
	Version                    string           `json:"version,omitempty"`
	DisplayName                string           `json:"display_name,omitempty"`
	Description                string           `json:"description,omitempty"`
	ContextLength              int              `json:"context_length,omitempty"`
	MaxCompletionTokens        int              `json:"max_completion_tokens,omitempty"`
	InputTokenLimit            int              `json:"input_token_limit,omitempty"`
	OutputTokenLimit           int              `json:"output_token_limit,omitempty"`
	SupportedGenerationMethods []string         `json:"supported_generation_methods,omitempty"`
	SupportedParameters        []string         `json:"supported_parameters,omitempty"`
	Thinking                   *ThinkingSupport `json:"thinking,omitempty"`
}

// ModelRegistration tracks which clients currently serve a model.
type ModelRegistration struct {
	Info  *ModelInfo
	Count int
	// Clients holds every client id serving this model.
	Clients map[string]bool
	// QuotaExceededClients marks clients whose upstream quota for this
	// model is exhausted; they stay registered but are not counted as
	// available.
	QuotaExceededClients map[string]bool
	// SuspendedClients maps client id to the suspension reason.
	SuspendedClients map[string]string
}

// ModelRegistry aggregates the models exposed by all registered provider
// clients. Handlers read it to answer model listings and to route requests.
type ModelRegistry struct {
	models           map[string]*ModelRegistration
	clientModels     map[string][]string
	clientModelInfos map[string]map[string]*ModelInfo
	clientProviders  map[string]string
	mutex            *sync.RWMutex
}

var globalRegistry = NewModelRegistry()

// GetGlobalRegistry returns the process-wide registry instance.
func GetGlobalRegistry() *ModelRegistry {
	return globalRegistry
}

// NewModelRegistry creates an empty registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models:           make(map[string]*ModelRegistration),
		clientModels:     make(map[string][]string),
		clientModelInfos: make(map[string]map[string]*ModelInfo),
		clientProviders:  make(map[string]string),
		mutex:            &sync.RWMutex{},
	}
}

// RegisterClient records the models a client serves, replacing any previous
// registration for the same client. Nil entries and entries without an ID are
// ignored; a client with no valid models is removed entirely.
func (r *ModelRegistry) RegisterClient(clientID, provider string, models []*ModelInfo) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	valid := make([]*ModelInfo, 0, len(models))
	for _, m := range models {
		if m == nil || m.ID == "" {
			continue
		}
		valid = append(valid, m)
	}

	r.removeClientLocked(clientID)
	if len(valid) == 0 {
		return
	}

	ids := make([]string, 0, len(valid))
	infos := make(map[string]*ModelInfo, len(valid))
	for _, m := range valid {
		clone := cloneModelInfo(m)
		if _, seen := infos[m.ID]; !seen {
			ids = append(ids, m.ID)
		}
		infos[m.ID] = clone

		reg, ok := r.models[m.ID]
		if !ok {
			reg = &ModelRegistration{
				Clients:              make(map[string]bool),
				QuotaExceededClients: make(map[string]bool),
				SuspendedClients:     make(map[string]string),
			}
			r.models[m.ID] = reg
		}
		reg.Info = clone
		if !reg.Clients[clientID] {
			reg.Clients[clientID] = true
			reg.Count++
		}
	}

	r.clientModels[clientID] = ids
	r.clientModelInfos[clientID] = infos
	r.clientProviders[clientID] = provider
	log.Debugf("registry: client %s (%s) registered %d models", clientID, provider, len(ids))
}

// UnregisterClient removes a client and drops models no other client serves.
func (r *ModelRegistry) UnregisterClient(clientID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.removeClientLocked(clientID)
}

func (r *ModelRegistry) removeClientLocked(clientID string) {
	ids, ok := r.clientModels[clientID]
	if !ok {
		return
	}
	for _, id := range ids {
		reg := r.models[id]
		if reg == nil {
			continue
		}
		if reg.Clients[clientID] {
			delete(reg.Clients, clientID)
			reg.Count--
		}
		delete(reg.QuotaExceededClients, clientID)
		delete(reg.SuspendedClients, clientID)
		if reg.Count <= 0 {
			delete(r.models, id)
		}
	}
	delete(r.clientModels, clientID)
	delete(r.clientModelInfos, clientID)
	delete(r.clientProviders, clientID)
}

// SetModelQuotaExceeded marks a client as quota-exhausted for a model.
func (r *ModelRegistry) SetModelQuotaExceeded(clientID, modelID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if reg, ok := r.models[modelID]; ok {
		reg.QuotaExceededClients[clientID] = true
	}
}

// ClearModelQuotaExceeded removes the quota marker for a client/model pair.
func (r *ModelRegistry) ClearModelQuotaExceeded(clientID, modelID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if reg, ok := r.models[modelID]; ok {
		delete(reg.QuotaExceededClients, clientID)
	}
}

// SuspendClientModel temporarily removes a client from a model's available
// set, keeping the registration so it can be resumed.
func (r *ModelRegistry) SuspendClientModel(clientID, modelID, reason string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if reg, ok := r.models[modelID]; ok {
		reg.SuspendedClients[clientID] = reason
	}
}

// ResumeClientModel lifts a suspension set by SuspendClientModel.
func (r *ModelRegistry) ResumeClientModel(clientID, modelID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if reg, ok := r.models[modelID]; ok {
		delete(reg.SuspendedClients, clientID)
	}
}

// GetModelCount returns how many clients can currently serve the model,
// excluding quota-exhausted and suspended ones.
func (r *ModelRegistry) GetModelCount(modelID string) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	reg, ok := r.models[modelID]
	if !ok {
		return 0
	}
	count := 0
	for clientID := range reg.Clients {
		if reg.QuotaExceededClients[clientID] {
			continue
		}
		if _, suspended := reg.SuspendedClients[clientID]; suspended {
			continue
		}
		count++
	}
	return count
}

// GetModelProviders lists the providers serving a model, most clients first,
// alphabetical on ties. Returns nil for unknown models.
func (r *ModelRegistry) GetModelProviders(modelID string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	reg, ok := r.models[modelID]
	if !ok {
		return nil
	}
	counts := make(map[string]int)
	for clientID := range reg.Clients {
		if provider, ok := r.clientProviders[clientID]; ok && provider != "" {
			counts[provider]++
		}
	}
	providers := make([]string, 0, len(counts))
	for provider := range counts {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool {
		if counts[providers[i]] != counts[providers[j]] {
			return counts[providers[i]] > counts[providers[j]]
		}
		return providers[i] < providers[j]
	})
	return providers
}

// ClientSupportsModel reports whether the client registered the model.
func (r *ModelRegistry) ClientSupportsModel(clientID, modelID string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	infos, ok := r.clientModelInfos[clientID]
	if !ok {
		return false
	}
	_, ok = infos[modelID]
	return ok
}

// GetModelsForClient returns copies of the models a client registered, in
// registration order.
func (r *ModelRegistry) GetModelsForClient(clientID string) []*ModelInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	ids, ok := r.clientModels[clientID]
	if !ok {
		return nil
	}
	infos := r.clientModelInfos[clientID]
	models := make([]*ModelInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := infos[id]; ok {
			models = append(models, cloneModelInfo(info))
		}
	}
	return models
}

// GetModelInfo returns a copy of the model's description, or nil when
// unknown. An optional provider narrows the lookup to clients of that
// provider.
func (r *ModelRegistry) GetModelInfo(modelID string, provider ...string) *ModelInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	want := ""
	if len(provider) > 0 {
		want = provider[0]
	}
	if want != "" {
		for clientID, infos := range r.clientModelInfos {
			if r.clientProviders[clientID] != want {
				continue
			}
			if info, ok := infos[modelID]; ok {
				return cloneModelInfo(info)
			}
		}
		return nil
	}

	reg, ok := r.models[modelID]
	if !ok {
		return nil
	}
	return cloneModelInfo(reg.Info)
}

// GetAvailableModels renders every registered model in the listing shape of
// the given protocol ("openai", "claude" or "gemini").
func (r *ModelRegistry) GetAvailableModels(format string) []map[string]any {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	models := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		info := r.models[id].Info
		if info == nil {
			continue
		}
		models = append(models, renderModelEntry(info, format))
	}
	return models
}

func renderModelEntry(info *ModelInfo, format string) map[string]any {
	object := info.Object
	if object == "" {
		object = "model"
	}

	switch format {
	case "claude":
		entry := map[string]any{
			"type":         "model",
			"id":           info.ID,
			"display_name": info.DisplayName,
			"created_at":   time.Unix(info.Created, 0).UTC().Format(time.RFC3339),
		}
		if info.Thinking != nil {
			entry["thinking"] = info.Thinking
		}
		return entry

	case "gemini":
		name := info.Name
		if name == "" {
			name = "models/" + info.ID
		}
		entry := map[string]any{
			"name":             name,
			"version":          info.Version,
			"displayName":      info.DisplayName,
			"description":      info.Description,
			"inputTokenLimit":  info.InputTokenLimit,
			"outputTokenLimit": info.OutputTokenLimit,
		}
		if len(info.SupportedGenerationMethods) > 0 {
			entry["supportedGenerationMethods"] = append([]string(nil), info.SupportedGenerationMethods...)
		}
		if info.Thinking != nil {
			entry["thinking"] = info.Thinking
		}
		return entry

	default:
		entry := map[string]any{
			"id":       info.ID,
			"object":   object,
			"created":  info.Created,
			"owned_by": info.OwnedBy,
		}
		if info.DisplayName != "" {
			entry["display_name"] = info.DisplayName
		}
		if info.ContextLength > 0 {
			entry["context_length"] = info.ContextLength
		}
		if info.MaxCompletionTokens > 0 {
			entry["max_completion_tokens"] = info.MaxCompletionTokens
		}
		if len(info.SupportedParameters) > 0 {
			entry["supported_parameters"] = append([]string(nil), info.SupportedParameters...)
		}
		if info.Thinking != nil {
			entry["thinking"] = info.Thinking
		}
		return entry
	}
}

// cloneModelInfo deep-copies a model description so callers cannot mutate
// registry state through returned pointers.
func cloneModelInfo(info *ModelInfo) *ModelInfo {
	if info == nil {
		return nil
	}
	clone := *info
	if info.SupportedGenerationMethods != nil {
		clone.SupportedGenerationMethods = append([]string(nil), info.SupportedGenerationMethods...)
	}
	if info.SupportedParameters != nil {
		clone.SupportedParameters = append([]string(nil), info.SupportedParameters...)
	}
	if info.Thinking != nil {
		thinking := *info.Thinking
		if info.Thinking.Levels != nil {
			thinking.Levels = append([]string(nil), info.Thinking.Levels...)
		}
		clone.Thinking = &thinking
	}
	return &clone
}
