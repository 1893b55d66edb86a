package agent

import "strings"

// Router picks a strategy from keywords alone. It never calls a model.
type Router struct {
	keywords []string
}

func NewRouter(keywords []string) *Router {
	lower := make([]string, len(keywords))
	for i, k := range keywords {
		lower[i] = strings.ToLower(k)
	}
	return &Router{keywords: lower}
}

// IsPolicy reports whether the question mentions any policy keyword.
func (r *Router) IsPolicy(question string) bool {
	q := strings.ToLower(question)
	for _, k := range r.keywords {
		if k != "" && strings.Contains(q, k) {
			return true
		}
	}
	return false
}

func (r *Router) Route(question string) Strategy {
	if r.IsPolicy(question) {
		return StrategyTextOnly
	}
	return StrategyStructured
}
