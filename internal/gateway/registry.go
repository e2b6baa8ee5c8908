package gateway

import (
	"sort"
	"strings"
)

// EndpointResolver はサービス名からベースURLを引く。
type EndpointResolver interface {
	Resolve(service string) (baseURL string, ok bool)
}

// Registry は起動時に構築するサービスエンドポイントの表。構築後は変更しない。
// サービス名は大文字小文字を区別しない。
type Registry struct {
	endpoints map[string]string
}

var _ EndpointResolver = (*Registry)(nil)

// NewRegistry はサービス名とベースURLの対応からRegistryを生成する。引数のmapはコピーする。
func NewRegistry(endpoints map[string]string) *Registry {
	r := &Registry{endpoints: make(map[string]string, len(endpoints))}
	for name, baseURL := range endpoints {
		if baseURL == "" {
			continue
		}
		r.endpoints[strings.ToLower(name)] = baseURL
	}
	return r
}

// Resolve はサービスのベースURLを返す。
func (r *Registry) Resolve(service string) (string, bool) {
	baseURL, ok := r.endpoints[strings.ToLower(service)]
	return baseURL, ok
}

// Services は登録済みのサービス名を昇順で返す。
func (r *Registry) Services() []string {
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
