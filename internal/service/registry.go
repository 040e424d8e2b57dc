package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Info describes a registered service for listing endpoints.
type Info struct {
	Description  string         `json:"description"`
	Type         Type           `json:"type"`
	Capabilities map[string]any `json:"capabilities"`
}

// Registry holds the service pool, indexed by name and by type.
// All operations are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Service
	byType  map[Type][]Service
	ordered []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Service),
		byType: make(map[Type][]Service),
	}
}

// RegisterDefaults adds the built-in services that need no external wiring.
func (r *Registry) RegisterDefaults() {
	r.Register(NewWebSearch())
	r.Register(NewMathSolver())
	r.Register(NewSummarizer())
}

// Register adds a service to the pool, replacing any previous service with
// the same name.
func (r *Registry) Register(s Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, exists := r.byName[s.Name()]; exists {
		typed := r.byType[old.Type()]
		for i, svc := range typed {
			if svc.Name() == s.Name() {
				r.byType[old.Type()] = append(typed[:i], typed[i+1:]...)
				break
			}
		}
	} else {
		r.ordered = append(r.ordered, s.Name())
	}
	r.byName[s.Name()] = s
	r.byType[s.Type()] = append(r.byType[s.Type()], s)
}

// Get returns a service by name, or nil if not registered.
func (r *Registry) Get(name string) Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// ByType returns every service of the given type in registration order.
func (r *Registry) ByType(t Type) []Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Service(nil), r.byType[t]...)
}

// List describes every registered service.
func (r *Registry) List() map[string]Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Info, len(r.byName))
	for name, s := range r.byName {
		out[name] = Info{
			Description:  s.Description(),
			Type:         s.Type(),
			Capabilities: s.Capabilities(),
		}
	}
	return out
}

// RouteRequest dispatches to the named service, or when serviceName is
// empty auto-selects one from the query content. Unknown names and an
// empty registry produce failed responses rather than errors.
func (r *Registry) RouteRequest(ctx context.Context, req *Request, serviceName string) *Response {
	if serviceName != "" {
		s := r.Get(serviceName)
		if s == nil {
			return Failure(serviceName, fmt.Sprintf("service %q not found", serviceName))
		}
		return s.Process(ctx, req)
	}

	s := r.selectForQuery(req.Query)
	if s == nil {
		return Failure("", "no suitable service found for the query")
	}
	return s.Process(ctx, req)
}

// selectForQuery picks a service by keyword cascade: math, then web search,
// then summarization, then document retrieval, then any web search service,
// then the first registered service.
func (r *Registry) selectForQuery(query string) Service {
	q := strings.ToLower(query)

	cascade := []struct {
		t        Type
		keywords []string
	}{
		{TypeMathSolver, []string{"calculate", "solve", "equation", "math", "arithmetic", "+", "-", "*", "/", "="}},
		{TypeWebSearch, []string{"search", "find", "current", "latest", "news", "recent", "what is", "who is"}},
		{TypeTextSummarization, []string{"summarize", "summary", "analyze", "key points"}},
		{TypeDocumentRetrieval, []string{"document", "knowledge", "information", "retrieve", "find in"}},
	}
	for _, stage := range cascade {
		if containsAny(q, stage.keywords) {
			if services := r.ByType(stage.t); len(services) > 0 {
				return services[0]
			}
		}
	}

	if services := r.ByType(TypeWebSearch); len(services) > 0 {
		return services[0]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.ordered) > 0 {
		return r.byName[r.ordered[0]]
	}
	return nil
}

// ExecuteMultiple runs the request against the named services concurrently.
// Unknown names are skipped; a panicking service is reported as a failed
// response under its name.
func (r *Registry) ExecuteMultiple(ctx context.Context, req *Request, names []string) map[string]*Response {
	type target struct {
		name string
		s    Service
	}
	var targets []target
	for _, name := range names {
		if s := r.Get(name); s != nil {
			targets = append(targets, target{name, s})
		}
	}
	if len(targets) == 0 {
		return map[string]*Response{}
	}

	results := make(map[string]*Response, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, tg := range targets {
		wg.Add(1)
		go func(tg target) {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					mu.Lock()
					results[tg.name] = Failure(tg.name, fmt.Sprintf("service execution failed: %v", v))
					mu.Unlock()
				}
			}()
			resp := tg.s.Process(ctx, req)
			mu.Lock()
			results[tg.name] = resp
			mu.Unlock()
		}(tg)
	}
	wg.Wait()
	return results
}

// Recommendations scores services against the query and returns up to three
// names, best first. Services earn one point per supported-query phrase
// sharing a word with the query and two points for matching their type's
// keywords. When nothing scores, every service is a candidate.
func (r *Registry) Recommendations(query string) []string {
	q := strings.ToLower(query)

	typeKeywords := map[Type][]string{
		TypeMathSolver:        {"calculate", "solve", "equation", "math"},
		TypeWebSearch:         {"search", "find", "current", "latest"},
		TypeTextSummarization: {"summarize", "summary", "analyze"},
	}

	r.mu.RLock()
	names := append([]string(nil), r.ordered...)
	services := make([]Service, 0, len(names))
	for _, name := range names {
		services = append(services, r.byName[name])
	}
	r.mu.RUnlock()

	type scored struct {
		name  string
		score int
	}
	var all []scored
	for _, s := range services {
		score := 0
		if caps := s.Capabilities(); caps != nil {
			if phrases, ok := caps["supported_queries"].([]string); ok {
				for _, phrase := range phrases {
					for _, word := range strings.Fields(strings.ToLower(phrase)) {
						if strings.Contains(q, word) {
							score++
							break
						}
					}
				}
			}
		}
		if kws, ok := typeKeywords[s.Type()]; ok && containsAny(q, kws) {
			score += 2
		}
		all = append(all, scored{s.Name(), score})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	var recs []string
	for _, sc := range all {
		if sc.score > 0 {
			recs = append(recs, sc.name)
		}
	}
	if len(recs) == 0 {
		recs = names
	}
	if len(recs) > 3 {
		recs = recs[:3]
	}
	return recs
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
