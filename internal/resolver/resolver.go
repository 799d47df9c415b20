package resolver

import (
	"strings"

	"github.com/goliatone/go-httfy/pkg/domain"
)

// Extractor pulls a topic candidate from one payload field.
type Extractor struct {
	Name    string
	Extract func(domain.Payload) (string, bool)
}

// DataTopic reads the explicit data.topic field.
var DataTopic = Extractor{
	Name: "data.topic",
	Extract: func(p domain.Payload) (string, bool) {
		return nonEmpty(p.DataValue("topic"))
	},
}

// CollapseKey reads the provider grouping key.
var CollapseKey = Extractor{
	Name: "collapse_key",
	Extract: func(p domain.Payload) (string, bool) {
		return nonEmpty(p.CollapseKey)
	},
}

// RoutingField reads the routing field ("/topics/<name>") and strips the prefix.
// Values without the prefix name a sender, not a topic, and are skipped.
var RoutingField = Extractor{
	Name: "from",
	Extract: func(p domain.Payload) (string, bool) {
		from := strings.TrimSpace(p.From)
		if !strings.HasPrefix(from, domain.TopicPrefix) {
			return "", false
		}
		return nonEmpty(strings.TrimPrefix(from, domain.TopicPrefix))
	},
}

// DefaultExtractors is the precedence order used by New when none are given.
func DefaultExtractors() []Extractor {
	return []Extractor{DataTopic, CollapseKey, RoutingField}
}

// Resolver applies extractors in fixed order; the first match wins.
type Resolver struct {
	extractors []Extractor
}

// New builds a resolver. Without extractors the default precedence applies.
func New(extractors ...Extractor) *Resolver {
	if len(extractors) == 0 {
		extractors = DefaultExtractors()
	}
	filtered := make([]Extractor, 0, len(extractors))
	for _, ext := range extractors {
		if ext.Extract != nil {
			filtered = append(filtered, ext)
		}
	}
	return &Resolver{extractors: filtered}
}

// Resolve returns the topic for p, or domain.UnknownTopic.
func (r *Resolver) Resolve(p domain.Payload) string {
	topic, _ := r.ResolveWithSource(p)
	return topic
}

// ResolveWithSource also names the extractor that matched ("" for the fallback).
func (r *Resolver) ResolveWithSource(p domain.Payload) (string, string) {
	if r == nil {
		r = New()
	}
	for _, ext := range r.extractors {
		if topic, ok := ext.Extract(p); ok {
			return topic, ext.Name
		}
	}
	return domain.UnknownTopic, ""
}

func nonEmpty(v string) (string, bool) {
	v = strings.TrimSpace(v)
	return v, v != ""
}
