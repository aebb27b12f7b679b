package models

import (
	dErrors "quorum/pkg/domain-errors"
)

// QuotaScope is the level at which a quota applies.
type QuotaScope string

const (
	ScopeGlobal QuotaScope = "GLOBAL"
	ScopeSpace  QuotaScope = "SPACE"
	ScopeUser   QuotaScope = "USER"
	ScopeGroup  QuotaScope = "GROUP"
)

var validQuotaScopes = map[QuotaScope]bool{
	ScopeGlobal: true,
	ScopeSpace:  true,
	ScopeUser:   true,
	ScopeGroup:  true,
}

// IsValid checks if the scope is one of the supported values.
func (s QuotaScope) IsValid() bool {
	return validQuotaScopes[s]
}

// IsScoped reports whether checks against this scope require a target id.
func (s QuotaScope) IsScoped() bool {
	return s != ScopeGlobal
}

// QuotaMetric names a bounded resource.
type QuotaMetric string

const (
	MetricMaxGroupsPerSpace    QuotaMetric = "MAX_GROUPS_PER_SPACE"
	MetricMaxTemplatesPerSpace QuotaMetric = "MAX_TEMPLATES_PER_SPACE"
	MetricMaxRolesPerSpace     QuotaMetric = "MAX_ROLES_PER_SPACE"
	MetricMaxEntitiesPerGroup  QuotaMetric = "MAX_ENTITIES_PER_GROUP"
)

// QuotaID uniquely identifies a quota row by scope + metric.
type QuotaID struct {
	Scope  QuotaScope  `json:"scope"`
	Metric QuotaMetric `json:"metric"`
}

// Validate checks the identifier names a supported scope and a metric.
func (q QuotaID) Validate() error {
	if !q.Scope.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid_quota_scope")
	}
	if q.Metric == "" {
		return dErrors.New(dErrors.CodeValidation, "invalid_quota_metric")
	}
	return nil
}

// Quota bounds a resource count. Version is the optimistic-concurrency token:
// it increments on every committed limit change, and callers updating Limit
// must present the version they last read.
type Quota struct {
	ID      QuotaID `json:"id"`
	Limit   int64   `json:"limit"`
	Version int64   `json:"version"`
}

// Allows reports whether one more unit fits under the limit given current
// usage. A negative limit means unbounded.
func (q *Quota) Allows(usage int64) bool {
	if q.Limit < 0 {
		return true
	}
	return usage < q.Limit
}
