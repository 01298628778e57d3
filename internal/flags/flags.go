// Package flags resolves the personalization feature flags once at startup.
package flags

import (
	"os"
	"strings"
)

type Feature string

const (
	CategoryAffinity  Feature = "CATEGORY_AFFINITY"
	TopicMatching     Feature = "TOPIC_MATCHING"
	Collaborative     Feature = "COLLABORATIVE"
	Freshness         Feature = "FRESHNESS"
	Exploration       Feature = "EXPLORATION"
	APIFields         Feature = "API_FIELDS"
	ContentBlocking   Feature = "CONTENT_BLOCKING"
	EnhancedSummaries Feature = "ENHANCED_SUMMARIES"
)

const (
	envPrefix = "JOYSCROLL_"
	masterKey = envPrefix + "ENABLED"
)

var features = []Feature{
	CategoryAffinity, TopicMatching, Collaborative, Freshness,
	Exploration, APIFields, ContentBlocking, EnhancedSummaries,
}

// Set is an immutable snapshot of the flags. The zero value has everything off.
type Set struct {
	master bool
	on     map[Feature]bool
}

// FromEnv resolves flags through lookup, e.g. os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) Set {
	s := Set{on: make(map[Feature]bool, len(features))}
	s.master = truthy(lookup, masterKey)
	for _, f := range features {
		s.on[f] = truthy(lookup, envPrefix+string(f))
	}
	return s
}

// Load reads the process environment.
func Load() Set {
	return FromEnv(os.LookupEnv)
}

// New builds a set directly; used by tests and tooling.
func New(master bool, enabled ...Feature) Set {
	s := Set{master: master, on: make(map[Feature]bool, len(enabled))}
	for _, f := range enabled {
		s.on[f] = true
	}
	return s
}

// Master reports the kill switch.
func (s Set) Master() bool { return s.master }

// Enabled is false for every feature while the master switch is off.
func (s Set) Enabled(f Feature) bool {
	if !s.master {
		return false
	}
	return s.on[f]
}

// All reports raw flag values keyed by their environment names.
func (s Set) All() map[string]bool {
	out := map[string]bool{masterKey: s.master}
	for _, f := range features {
		out[envPrefix+string(f)] = s.on[f]
	}
	return out
}

func truthy(lookup func(string) (string, bool), key string) bool {
	v, ok := lookup(key)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}
