// Anomaly kinds that the injector can write into a trajectory. The detector
// uses its own independent taxonomy of score types (see internal/detect);
// the two sets deliberately do not overlap.
package anomaly

// Kind identifies one injectable anomaly class.
type Kind string

const (
	KindEarlyReturn      Kind = "EARLY_RETURN"
	KindRouteDeviation   Kind = "ROUTE_DEVIATION"
	KindUnauthorizedStop Kind = "UNAUTHORIZED_STOP"
	KindAbnormalSpeed    Kind = "ABNORMAL_SPEED"
	KindOutOfHours       Kind = "OUT_OF_HOURS"
)

// KindContaminated is the persisted sentinel marking a mission's trajectory
// as injector-modified. It is not itself an injectable kind.
const KindContaminated = "TRAJECTORY_CONTAMINATED"

// Kinds lists all injectable kinds in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindEarlyReturn,
		KindRouteDeviation,
		KindUnauthorizedStop,
		KindAbnormalSpeed,
		KindOutOfHours,
	}
}
