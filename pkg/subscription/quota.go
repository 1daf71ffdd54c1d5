package subscription

import "time"

// Unlimited marks a quota with no ceiling.
const Unlimited = -1

// Feature is a metered capability with a per-tier quota.
type Feature string

const (
	FeatureProjects        Feature = "projects"
	FeatureStoriesPerMonth Feature = "stories_per_month"
	FeatureImagesPerMonth  Feature = "images_per_month"
	FeatureExportsPerMonth Feature = "exports_per_month"
)

// Resource is the kind of record a feature's usage is counted from.
type Resource string

const (
	ResourceProjects Resource = "projects"
	ResourceStories  Resource = "stories"
	ResourceImages   Resource = "images"
	ResourceExports  Resource = "exports"
)

// Resources lists every countable resource kind.
var Resources = []Resource{ResourceProjects, ResourceStories, ResourceImages, ResourceExports}

// Valid reports whether r is a known resource kind.
func (r Resource) Valid() bool {
	for _, known := range Resources {
		if r == known {
			return true
		}
	}
	return false
}

type featureSpec struct {
	resource Resource
	monthly  bool
	quotas   map[Tier]int
}

var features = map[Feature]featureSpec{
	FeatureProjects: {
		resource: ResourceProjects,
		quotas:   map[Tier]int{TierFree: 3, TierPro: 50, TierEnterprise: Unlimited},
	},
	FeatureStoriesPerMonth: {
		resource: ResourceStories,
		monthly:  true,
		quotas:   map[Tier]int{TierFree: 5, TierPro: 100, TierEnterprise: Unlimited},
	},
	FeatureImagesPerMonth: {
		resource: ResourceImages,
		monthly:  true,
		quotas:   map[Tier]int{TierFree: 20, TierPro: 500, TierEnterprise: Unlimited},
	},
	FeatureExportsPerMonth: {
		resource: ResourceExports,
		monthly:  true,
		quotas:   map[Tier]int{TierFree: 2, TierPro: 50, TierEnterprise: Unlimited},
	},
}

// Features lists every metered feature in a stable order.
var Features = []Feature{FeatureProjects, FeatureStoriesPerMonth, FeatureImagesPerMonth, FeatureExportsPerMonth}

// ParseFeature returns the Feature for key and whether it is known.
func ParseFeature(key string) (Feature, bool) {
	f := Feature(key)
	_, ok := features[f]
	return f, ok
}

// Monthly reports whether usage of f resets at each calendar month.
func (f Feature) Monthly() bool {
	return features[f].monthly
}

// Resource returns the resource kind whose records count towards f.
func (f Feature) Resource() Resource {
	return features[f].resource
}

// Quota returns the limit for f at tier t, or Unlimited. The second result
// is false when f is not a known feature.
func Quota(f Feature, t Tier) (int, bool) {
	spec, ok := features[f]
	if !ok {
		return 0, false
	}
	limit, ok := spec.quotas[t]
	if !ok {
		limit = spec.quotas[TierFree]
	}
	return limit, true
}

// MonthStart returns the first instant of t's calendar month in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// NextMonthStart returns the first instant of the calendar month after t's.
func NextMonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}
