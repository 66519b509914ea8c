package metrics

import "github.com/ServiceWeaver/weaver/metrics"

type RegionLabel struct {
	Region string
}

type KindLabel struct {
	Kind   string // relationship kind: follow, like, refreet, circle
	Region string
}

var (
	// api frontend
	RequestDurationMs = metrics.NewHistogramMap[RegionLabel](
		"ft_request_duration_ms",
		"Duration of api endpoints in milliseconds in the current region",
		metrics.NonNegativeBuckets,
	)
	// relationship services
	MembershipAdds = metrics.NewCounterMap[KindLabel](
		"ft_membership_adds",
		"The number of member-set inserts per relationship kind in the current region",
	)
	MembershipRemoves = metrics.NewCounterMap[KindLabel](
		"ft_membership_removes",
		"The number of member-set removals per relationship kind in the current region",
	)
	// freet service
	StoredFreets = metrics.NewCounterMap[RegionLabel](
		"ft_stored_freets",
		"The number of stored freets in the current region",
	)
	DeletedFreets = metrics.NewCounterMap[RegionLabel](
		"ft_deleted_freets",
		"The number of deleted freets in the current region",
	)
	// cascade service
	CascadeDurationMs = metrics.NewHistogramMap[RegionLabel](
		"ft_cascade_duration_ms",
		"Duration of cascade-delete queue trips in milliseconds in the current region",
		metrics.NonNegativeBuckets,
	)
	Inconsistencies = metrics.NewCounterMap[RegionLabel](
		"ft_inconsistencies",
		"The number of times a cascade sub-step failed in the current region",
	)
)
