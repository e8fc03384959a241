package translator

import (
	"sort"
)

// GetCompatibilityMatrix returns a map of source formats to their supported
// target formats, covering both request and response directions.
func (r *Registry) GetCompatibilityMatrix() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matrix := make(map[string]map[string]struct{})
	add := func(from, to Format) {
		if _, ok := matrix[from.String()]; !ok {
			matrix[from.String()] = make(map[string]struct{})
		}
		matrix[from.String()][to.String()] = struct{}{}
	}
	for from, targets := range r.requests {
		for to := range targets {
			add(from, to)
		}
	}
	for from, targets := range r.responses {
		for to := range targets {
			add(from, to)
		}
	}

	out := make(map[string][]string, len(matrix))
	for from, targets := range matrix {
		list := make([]string, 0, len(targets))
		for to := range targets {
			list = append(list, to)
		}
		sort.Strings(list)
		out[from] = list
	}
	return out
}

// GetSupportedFormats returns all formats that appear as either a source or a
// target of a registered translation.
func (r *Registry) GetSupportedFormats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formatSet := make(map[Format]struct{})
	for from, targets := range r.requests {
		formatSet[from] = struct{}{}
		for to := range targets {
			formatSet[to] = struct{}{}
		}
	}
	for from, targets := range r.responses {
		formatSet[from] = struct{}{}
		for to := range targets {
			formatSet[to] = struct{}{}
		}
	}

	formats := make([]Format, 0, len(formatSet))
	for f := range formatSet {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool {
		return formats[i].String() < formats[j].String()
	})
	return formats
}

// IsTranslationSupported checks if a translation path exists between two
// formats in either direction table.
func (r *Registry) IsTranslationSupported(from, to Format) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if byTarget, ok := r.requests[from]; ok {
		if _, exists := byTarget[to]; exists {
			return true
		}
	}
	if byTarget, ok := r.responses[from]; ok {
		if _, exists := byTarget[to]; exists {
			return true
		}
	}
	return false
}

// TranslationInfo contains metadata about a translation path.
type TranslationInfo struct {
	From          Format `json:"from"`
	To            Format `json:"to"`
	HasRequest    bool   `json:"has_request"`
	HasResponse   bool   `json:"has_response"`
	HasStream     bool   `json:"has_stream"`
	HasNonStream  bool   `json:"has_non_stream"`
	HasTokenCount bool   `json:"has_token_count"`
}

// GetTranslationInfo returns detailed information about a specific translation path.
func (r *Registry) GetTranslationInfo(from, to Format) *TranslationInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info := &TranslationInfo{From: from, To: to}
	if byTarget, ok := r.requests[from]; ok {
		if _, exists := byTarget[to]; exists {
			info.HasRequest = true
		}
	}
	if byTarget, ok := r.responses[from]; ok {
		if resp, exists := byTarget[to]; exists {
			info.HasResponse = true
			info.HasStream = resp.Stream != nil
			info.HasNonStream = resp.NonStream != nil
			info.HasTokenCount = resp.TokenCount != nil
		}
	}
	return info
}

// GetAllTranslations returns information about all registered translation paths.
func (r *Registry) GetAllTranslations() []TranslationInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pairs := make(map[string]*TranslationInfo)
	get := func(from, to Format) *TranslationInfo {
		key := from.String() + "->" + to.String()
		if _, exists := pairs[key]; !exists {
			pairs[key] = &TranslationInfo{From: from, To: to}
		}
		return pairs[key]
	}
	for from, targets := range r.requests {
		for to := range targets {
			get(from, to).HasRequest = true
		}
	}
	for from, targets := range r.responses {
		for to, resp := range targets {
			info := get(from, to)
			info.HasResponse = true
			info.HasStream = resp.Stream != nil
			info.HasNonStream = resp.NonStream != nil
			info.HasTokenCount = resp.TokenCount != nil
		}
	}

	result := make([]TranslationInfo, 0, len(pairs))
	for _, info := range pairs {
		result = append(result, *info)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].From.String() != result[j].From.String() {
			return result[i].From.String() < result[j].From.String()
		}
		return result[i].To.String() < result[j].To.String()
	})
	return result
}

// GetCompatibilityMatrix returns the compatibility matrix from the default registry.
func GetCompatibilityMatrix() map[string][]string {
	return defaultRegistry.GetCompatibilityMatrix()
}

// GetSupportedFormats returns all supported formats from the default registry.
func GetSupportedFormats() []Format {
	return defaultRegistry.GetSupportedFormats()
}

// IsTranslationSupported checks if a translation is supported in the default registry.
func IsTranslationSupported(from, to Format) bool {
	return defaultRegistry.IsTranslationSupported(from, to)
}

// GetTranslationInfo returns translation info from the default registry.
func GetTranslationInfo(from, to Format) *TranslationInfo {
	return defaultRegistry.GetTranslationInfo(from, to)
}

// GetAllTranslations returns all translations from the default registry.
func GetAllTranslations() []TranslationInfo {
	return defaultRegistry.GetAllTranslations()
}
