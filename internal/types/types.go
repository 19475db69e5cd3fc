package types

import (
	"time"
)

// Priority represents the urgency level attached to an incoming request.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ValidPriorities maps every accepted priority value.
var ValidPriorities = map[Priority]bool{
	PriorityLow:      true,
	PriorityMedium:   true,
	PriorityHigh:     true,
	PriorityCritical: true,
}

// TaskType identifies the kind of analysis a provider is asked to perform.
type TaskType string

const (
	TaskClassification TaskType = "classification"
	TaskSentiment      TaskType = "sentiment"
	TaskSummarization  TaskType = "summarization"
	TaskGeneration     TaskType = "generation"
)

// Request is an inbound request that needs to be routed to a service group.
type Request struct {
	ID        string            `json:"id"`
	Subject   string            `json:"subject,omitempty"`
	Text      string            `json:"text"`
	Priority  Priority          `json:"priority"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// FullText returns subject and body joined for keyword analysis.
func (r *Request) FullText() string {
	if r.Subject == "" {
		return r.Text
	}
	return r.Subject + " " + r.Text
}

// ClassifierOutput is what the upstream classifier produces for a request.
// ComplexityScore is optional; routing assumes 0.5 when absent.
type ClassifierOutput struct {
	Category        string   `json:"category"`
	Confidence      float64  `json:"confidence"`
	Sentiment       string   `json:"sentiment"`
	ComplexityScore *float64 `json:"complexity_score,omitempty"`
}

// Complexity returns the complexity score, defaulting to 0.5 when the
// classifier did not produce one.
func (c *ClassifierOutput) Complexity() float64 {
	if c == nil || c.ComplexityScore == nil {
		return 0.5
	}
	return *c.ComplexityScore
}

// Provider describes an analysis backend subject to a daily usage quota.
// Static configuration, loaded at startup.
type Provider struct {
	ID          string  `yaml:"id" json:"id"`
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	CostPerCall float64 `yaml:"cost_per_call" json:"cost_per_call"`

	// DailyLimit of 0 means unbounded.
	DailyLimit int `yaml:"daily_limit" json:"daily_limit"`

	// QualityScore in [0,1]; higher-quality providers are reserved for
	// complex or critical work when quota is contended.
	QualityScore float64 `yaml:"quality_score" json:"quality_score"`

	// TaskTypes this provider can handle.
	TaskTypes []TaskType `yaml:"task_types" json:"task_types"`

	// Specialty marks a task type this provider is tuned for, if any.
	Specialty TaskType `yaml:"specialty,omitempty" json:"specialty,omitempty"`

	// ChainRank orders the fallback chain, ascending from the
	// cheapest/unlimited option to the scarcest.
	ChainRank int `yaml:"chain_rank" json:"chain_rank"`
}

// Unlimited reports whether the provider has no daily quota.
func (p *Provider) Unlimited() bool {
	return p.DailyLimit <= 0
}

// SupportsTask reports whether the provider handles the given task type.
func (p *Provider) SupportsTask(task TaskType) bool {
	for _, t := range p.TaskTypes {
		if t == task {
			return true
		}
	}
	return false
}

// UsageStatus is a read-only view of one provider's quota state.
type UsageStatus struct {
	ProviderID  string  `json:"provider_id"`
	Used        int     `json:"used"`
	Limit       int     `json:"limit"` // 0 = unbounded
	Remaining   int     `json:"remaining"`
	Status      string  `json:"status"` // "available", "exhausted", "disabled", "unlimited"
	CostPerCall float64 `json:"cost_per_call"`
}

// ServiceGroup is an organizational unit that requests are routed to.
// Static configuration, loaded at startup.
type ServiceGroup struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	// Keywords describing the group's specialization; matched
	// case-insensitively against request text.
	Keywords []string `yaml:"keywords" json:"keywords"`

	MaxCapacity int `yaml:"max_capacity" json:"max_capacity"`

	// Priorities the group is equipped to handle.
	Priorities []Priority `yaml:"priorities" json:"priorities"`

	// Working-hour window, hours in [0,24). A window where start > end
	// wraps past midnight.
	WorkStartHour int `yaml:"work_start_hour" json:"work_start_hour"`
	WorkEndHour   int `yaml:"work_end_hour" json:"work_end_hour"`

	// EscalationThresholdHours is the resolution time beyond which work
	// should escalate; also the baseline for resolution estimates.
	EscalationThresholdHours float64 `yaml:"escalation_threshold_hours" json:"escalation_threshold_hours"`
}

// HandlesPriority reports whether the group declares support for a priority.
func (g *ServiceGroup) HandlesPriority(p Priority) bool {
	for _, gp := range g.Priorities {
		if gp == p {
			return true
		}
	}
	return false
}

// Availability status values for a capacity snapshot.
const (
	AvailabilityAvailable = "available"
	AvailabilityOffline   = "offline"
)

// CapacitySnapshot is a point-in-time read of a group's load and historical
// performance. Computed fresh per routing call; never persisted.
type CapacitySnapshot struct {
	GroupID             string  `json:"group_id"`
	CurrentWorkload     int     `json:"current_workload"`
	AvgResolutionHours  float64 `json:"avg_resolution_hours"`
	SpecializationScore float64 `json:"specialization_score"`
	AvailabilityStatus  string  `json:"availability_status"`

	// Degraded marks a snapshot built from neutral defaults because the
	// backing store could not be read.
	Degraded bool `json:"degraded,omitempty"`

	// WorkloadUnknown is set when the open-assignment count itself could
	// not be read; scoring then treats capacity headroom as neutral.
	WorkloadUnknown bool `json:"workload_unknown,omitempty"`
}
