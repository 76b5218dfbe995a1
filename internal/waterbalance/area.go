package waterbalance

import (
	"fmt"
	"sort"

	"lake-balance/internal/models"
)

// AreaRelation selects how a predicted volume is turned back into a surface area.
type AreaRelation string

const (
	// ObservedAreaRelation interpolates between the series' own (volume, area) pairs.
	ObservedAreaRelation AreaRelation = "observed"
	// LinearAreaRelation treats the lake as a prism of fixed mean depth.
	LinearAreaRelation AreaRelation = "linear"
)

// Valid reports whether r is a known relation.
func (r AreaRelation) Valid() bool {
	return r == ObservedAreaRelation || r == LinearAreaRelation
}

// NewAreaRelation builds the conversion named by kind.
func NewAreaRelation(kind AreaRelation, series []*models.Observation, meanDepth float64) (VolumeToArea, error) {
	switch kind {
	case ObservedAreaRelation:
		return NewObservedAreaRelation(series)
	case LinearAreaRelation:
		return NewLinearAreaRelation(meanDepth)
	default:
		return nil, fmt.Errorf("%w: unknown area relation %q", models.ErrInvalidArgument, kind)
	}
}

// NewLinearAreaRelation returns area = volume / meanDepth.
func NewLinearAreaRelation(meanDepth float64) (VolumeToArea, error) {
	if meanDepth <= 0 {
		return nil, fmt.Errorf("%w: mean depth must be positive, got %v", models.ErrInvalidArgument, meanDepth)
	}
	return func(volume float64) float64 {
		return volume / meanDepth
	}, nil
}

type volumeArea struct {
	volume float64
	area   float64
}

type areaSum struct {
	area  float64
	count int
}

// NewObservedAreaRelation interpolates linearly over the (volume, area) pairs of
// a cleaned series. Volumes outside the observed range take the nearest
// endpoint's area; repeated volumes use the mean of their areas.
func NewObservedAreaRelation(series []*models.Observation) (VolumeToArea, error) {
	sums := make(map[float64]*areaSum)
	for _, obs := range series {
		if obs == nil || obs.Volume == nil || obs.Area == nil {
			continue
		}
		s, ok := sums[*obs.Volume]
		if !ok {
			s = &areaSum{}
			sums[*obs.Volume] = s
		}
		s.area += *obs.Area
		s.count++
	}
	if len(sums) == 0 {
		return nil, fmt.Errorf("%w: no volume and area pairs to build a relation from", models.ErrInvalidArgument)
	}

	points := make([]volumeArea, 0, len(sums))
	for v, s := range sums {
		points = append(points, volumeArea{volume: v, area: s.area / float64(s.count)})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].volume < points[j].volume })

	return func(volume float64) float64 {
		return interpolate(points, volume)
	}, nil
}

func interpolate(points []volumeArea, volume float64) float64 {
	if volume <= points[0].volume {
		return points[0].area
	}
	last := points[len(points)-1]
	if volume >= last.volume {
		return last.area
	}

	// First point strictly above volume; points[j-1] is at or below it.
	j := sort.Search(len(points), func(i int) bool { return points[i].volume > volume })
	lo, hi := points[j-1], points[j]
	t := (volume - lo.volume) / (hi.volume - lo.volume)
	return lo.area + t*(hi.area-lo.area)
}
