// Package config exposes the runtime-mutable configuration the core reads on
// the hot path: SLA buffers, grounding thresholds, refund windows, and
// service-area pincodes. Unlike internal/catalog's static intent/entity
// definitions, these values are expected to change on disk between restarts,
// so the store refreshes from its backing file at most once per TTL rather
// than caching for the process lifetime.
package config

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/convergeai/core/internal/configloader"
)

// TTL bounds how stale a read may be per spec §5: "no cache older than 60s".
const TTL = 60 * time.Second

// GroundingBands holds the three-way grounding-score thresholds the policy
// agent uses to decide publish / hedge / suppress.
type GroundingBands struct {
	PublishThreshold float64 `yaml:"publish_threshold"`
	HedgeThreshold   float64 `yaml:"hedge_threshold"`
}

// Band classifies a grounding score into publish, hedge, or suppress. The
// upper interval of publish is closed (exactly PublishThreshold publishes);
// the upper interval of hedge is likewise closed at HedgeThreshold.
func (g GroundingBands) Band(score float64) string {
	switch {
	case score >= g.PublishThreshold:
		return "publish"
	case score >= g.HedgeThreshold:
		return "hedge"
	default:
		return "suppress"
	}
}

// RetryLimits bounds slot-filling retries and escalation wait.
type RetryLimits struct {
	MaxEntityRetries         int `yaml:"max_entity_retries"`
	MaxEscalationWaitMinutes int `yaml:"max_escalation_wait_minutes"`
}

// ServiceArea is a known service-area pincode/city pair used by the
// location entity validator.
type ServiceArea struct {
	Pincode string `yaml:"pincode"`
	City    string `yaml:"city"`
}

// RefundRule maps a minimum hours-before-appointment threshold to a refund
// percentage; rules are evaluated most-specific (largest HoursBefore) first.
type RefundRule struct {
	HoursBefore   int `yaml:"hours_before"`
	RefundPercent int `yaml:"refund_percent"`
}

// ComplaintSLA holds the response/resolution deadlines in hours.
type ComplaintSLA struct {
	ResponseHours   int `yaml:"response_hours"`
	ResolutionHours int `yaml:"resolution_hours"`
}

// runtimeFile mirrors config/runtime.yaml.
type runtimeFile struct {
	DefaultStatusFilter  string             `yaml:"default_status_filter"`
	SLABufferHours       int                `yaml:"sla_buffer_hours"`
	MaxExpandPerHour     int                `yaml:"max_expand_per_hour"`
	EnableAutoEnrichment bool               `yaml:"enable_auto_enrichment"`
	Grounding            GroundingBands     `yaml:"grounding"`
	Retry                RetryLimits        `yaml:"retry"`
	ServiceAreas         []ServiceArea      `yaml:"service_areas"`
	RefundWindow         []RefundRule       `yaml:"refund_window"`
	ComplaintPriority    map[string]string  `yaml:"complaint_priority"`
	ComplaintSLA         ComplaintSLA       `yaml:"complaint_sla"`
	ExpectedResponseMins map[string]int     `yaml:"expected_response_minutes"`
}

// Store is the read path for runtime configuration. Safe for concurrent use.
type Store struct {
	loader *configloader.Loader
	ttl    time.Duration
	path   string

	current atomic.Pointer[runtimeFile]
}

// NewStore constructs a Store backed by loader, reading path (relative to
// the loader's base directory) with ttl between refreshes. An initial load
// happens eagerly so the first request doesn't pay a cold-read penalty.
func NewStore(loader *configloader.Loader, path string, ttl time.Duration) (*Store, error) {
	s := &Store{loader: loader, ttl: ttl, path: path}
	if err := s.refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewDefaultStore constructs a Store for config/runtime.yaml with the
// spec-mandated 60s TTL.
func NewDefaultStore(loader *configloader.Loader) (*Store, error) {
	return NewStore(loader, "runtime.yaml", TTL)
}

func (s *Store) refresh() error {
	raw, err := s.loader.LoadCachedTTL(s.path, s.ttl, func() any { return &runtimeFile{} })
	if err != nil {
		return fmt.Errorf("load runtime config %s: %w", s.path, err)
	}
	s.current.Store(raw.(*runtimeFile))
	return nil
}

// snapshot returns the most recently loaded config, reloading from the
// loader's TTL cache first so reads never exceed TTL staleness.
func (s *Store) snapshot() *runtimeFile {
	// LoadCachedTTL is itself the authority on staleness; re-invoking it is
	// cheap once within the window since it returns the cached pointer.
	if err := s.refresh(); err != nil {
		if cur := s.current.Load(); cur != nil {
			return cur
		}
	}
	return s.current.Load()
}

// DefaultStatusFilter returns the DEFAULT_STATUS_FILTER config key.
func (s *Store) DefaultStatusFilter() string { return s.snapshot().DefaultStatusFilter }

// SLABufferHours returns the SLA_BUFFER_HOURS config key: the grace period
// added to an intent's expected response time before it is classified
// at_risk rather than on_track.
func (s *Store) SLABufferHours() int { return s.snapshot().SLABufferHours }

// MaxExpandPerHour returns the MAX_EXPAND_PER_HOUR config key.
func (s *Store) MaxExpandPerHour() int { return s.snapshot().MaxExpandPerHour }

// EnableAutoEnrichment returns the ENABLE_AUTO_ENRICHMENT config key.
func (s *Store) EnableAutoEnrichment() bool { return s.snapshot().EnableAutoEnrichment }

// Grounding returns the publish/hedge/suppress thresholds.
func (s *Store) Grounding() GroundingBands { return s.snapshot().Grounding }

// Retry returns the entity-retry and escalation-wait limits.
func (s *Store) Retry() RetryLimits { return s.snapshot().Retry }

// ServiceAreas returns the known service-area pincode/city pairs.
func (s *Store) ServiceAreas() []ServiceArea { return s.snapshot().ServiceAreas }

// RefundPercent returns the refund percentage for a cancellation made
// hoursBefore the scheduled appointment, applying the most specific
// (largest HoursBefore not exceeding hoursBefore) rule.
func (s *Store) RefundPercent(hoursBefore int) int {
	rules := s.snapshot().RefundWindow
	best, bestHours := 0, -1
	for _, r := range rules {
		if hoursBefore >= r.HoursBefore && r.HoursBefore > bestHours {
			best, bestHours = r.RefundPercent, r.HoursBefore
		}
	}
	return best
}

// ComplaintPriority returns the configured priority label (HIGH/MEDIUM/LOW)
// for an issue type, defaulting to MEDIUM when unconfigured.
func (s *Store) ComplaintPriority(issueType string) string {
	if p, ok := s.snapshot().ComplaintPriority[issueType]; ok {
		return p
	}
	return "MEDIUM"
}

// ComplaintSLA returns the response/resolution deadlines in hours.
func (s *Store) ComplaintSLA() ComplaintSLA { return s.snapshot().ComplaintSLA }

// ExpectedResponseMinutes returns the expected-response-time budget for an
// intent kind, used by the priority queue's SLA risk classification.
func (s *Store) ExpectedResponseMinutes(intentKind string) int {
	m := s.snapshot().ExpectedResponseMins
	if v, ok := m[intentKind]; ok {
		return v
	}
	return m["default"]
}
