package detect

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/hed1ad/goguardml/pkg/detectors/iforest"
	"gonum.org/v1/gonum/stat"

	"fieldops-sim/internal/config"
	"fieldops-sim/internal/geo"
	"fieldops-sim/internal/logging"
	"fieldops-sim/internal/mission"
	"fieldops-sim/internal/trajectory"
)

// Score types reported by the detector. These name observed statistical
// signatures, not injection causes, so the set is independent from the
// injector's anomaly kinds.
const (
	TypeIsolationForest   = "ISOLATION_FOREST_ANOMALY"
	TypeExcessiveSpeed    = "EXCESSIVE_SPEED"
	TypeRouteInefficiency = "ROUTE_INEFFICIENCY"
	TypeNightTravel       = "EXCESSIVE_NIGHT_TRAVEL"
	TypeExcessiveStops    = "EXCESSIVE_STOPS"
	TypeSpeedPattern      = "ABNORMAL_SPEED_PATTERN"
	TypeMovementPattern   = "ABNORMAL_MOVEMENT_PATTERN"
	TypeTemporalGap       = "TEMPORAL_GAP"
	TypeOutOfHours        = "OUT_OF_HOURS_MOVEMENT"
)

// Severity grades a detection for reporting.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Score is one detection finding on a trajectory.
type Score struct {
	Type           string
	Score          float64
	Confidence     float64
	Severity       Severity
	Details        map[string]any
	DetectedAt     time.Time
	AffectedPoints []int
}

// TrainingStore is the mission history the detector trains on.
type TrainingStore interface {
	MissionsSince(ctx context.Context, since time.Time, limit int) ([]mission.Mission, error)
	TrajectoryPoints(ctx context.Context, missionID int64) ([]trajectory.Point, error)
}

// ArtifactStore persists and restores fitted model state by name.
type ArtifactStore interface {
	Save(name string, data []byte) error
	Load(name string) ([]byte, error)
}

const (
	artifactModel  = "outlier_model"
	artifactScaler = "feature_scaler"
)

// outlierModel is what the detector needs from the isolation forest.
type outlierModel interface {
	Fit(data [][]float64) error
	Predict(data [][]float64) ([]float64, error)
	PredictOne(sample []float64) (float64, error)
	Threshold() float64
	Save() ([]byte, error)
	Load(data []byte) error
}

// Detector scores trajectories with four independent layers: a fitted
// isolation forest over summary features, absolute rule thresholds,
// point-pattern statistics, and temporal checks. A failure in one layer
// never suppresses the others.
type Detector struct {
	cfg       config.DetectorConfig
	store     TrainingStore
	artifacts ArtifactStore

	forest  outlierModel
	scaler  *Scaler
	trained bool

	now func() time.Time
}

// NewDetector builds a detector from configuration. Call LoadArtifacts or
// Train before Detect to enable the model layer; the other layers work
// without it.
func NewDetector(cfg config.DetectorConfig, store TrainingStore, artifacts ArtifactStore) *Detector {
	return &Detector{
		cfg:       cfg,
		store:     store,
		artifacts: artifacts,
		forest: iforest.New(
			iforest.WithTrees(cfg.Trees),
			iforest.WithSampleSize(cfg.SampleSize),
			iforest.WithContamination(cfg.Contamination),
			iforest.WithSeed(cfg.Seed),
		),
		scaler: &Scaler{},
		now:    time.Now,
	}
}

// Trained reports whether the model layer is usable.
func (d *Detector) Trained() bool {
	return d.trained
}

// LoadArtifacts restores a previously fitted model and scaler. Missing or
// unreadable artifacts are not an error; the detector simply starts
// untrained.
func (d *Detector) LoadArtifacts(ctx context.Context) {
	log := logging.FromContext(ctx)

	modelData, err := d.artifacts.Load(artifactModel)
	if err != nil {
		log.Info("no stored outlier model, model layer disabled until training", "err", err)
		return
	}
	scalerData, err := d.artifacts.Load(artifactScaler)
	if err != nil {
		log.Info("no stored feature scaler, model layer disabled until training", "err", err)
		return
	}
	if err := d.forest.Load(modelData); err != nil {
		log.Warn("stored outlier model unreadable", "err", err)
		return
	}
	if err := d.scaler.Load(scalerData); err != nil {
		log.Warn("stored feature scaler unreadable", "err", err)
		return
	}
	d.trained = true
	log.Info("detection model restored from artifacts")
}

// Train fits the scaler and isolation forest on recent mission history and
// persists the artifacts. It returns false without error when there is not
// enough history to train on.
func (d *Detector) Train(ctx context.Context) (bool, error) {
	log := logging.FromContext(ctx)

	since := d.now().AddDate(0, 0, -d.cfg.TrainingWindowDays)
	missions, err := d.store.MissionsSince(ctx, since, d.cfg.TrainingLimit)
	if err != nil {
		return false, fmt.Errorf("loading training missions: %w", err)
	}

	var rows [][]float64
	var labels []int
	for _, m := range missions {
		points, err := d.store.TrajectoryPoints(ctx, m.ID)
		if err != nil {
			log.Warn("skipping mission in training set", "mission_id", m.ID, "err", err)
			continue
		}
		if len(points) < 5 {
			continue
		}
		feats, err := Extract(points)
		if err != nil {
			continue
		}
		rows = append(rows, feats.Vector())
		labels = append(labels, ruleLabel(feats))
	}

	if len(rows) == 0 {
		log.Warn("no usable trajectories in training window, keeping previous model",
			"window_days", d.cfg.TrainingWindowDays)
		return false, nil
	}

	if err := d.scaler.Fit(rows); err != nil {
		return false, fmt.Errorf("fitting scaler: %w", err)
	}
	scaled := d.scaler.TransformAll(rows)

	if err := d.forest.Fit(scaled); err != nil {
		return false, fmt.Errorf("fitting isolation forest: %w", err)
	}
	d.trained = true

	d.evaluate(ctx, scaled, labels)

	modelData, err := d.forest.Save()
	if err != nil {
		return true, fmt.Errorf("serializing model: %w", err)
	}
	if err := d.artifacts.Save(artifactModel, modelData); err != nil {
		return true, fmt.Errorf("persisting model: %w", err)
	}
	scalerData, err := d.scaler.Save()
	if err != nil {
		return true, fmt.Errorf("serializing scaler: %w", err)
	}
	if err := d.artifacts.Save(artifactScaler, scalerData); err != nil {
		return true, fmt.Errorf("persisting scaler: %w", err)
	}

	log.Info("detection model trained", "samples", len(rows), "threshold", d.forest.Threshold())
	return true, nil
}

// evaluate scores a deterministic held-out split against the rule labels
// and logs the agreement. Skipped when history contains only one class.
func (d *Detector) evaluate(ctx context.Context, rows [][]float64, labels []int) {
	log := logging.FromContext(ctx)

	positives := 0
	for _, l := range labels {
		positives += l
	}
	if positives == 0 || positives == len(labels) || len(rows) < 5 {
		return
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(42))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	holdout := len(idx) / 5
	if holdout == 0 {
		holdout = 1
	}

	threshold := d.forest.Threshold()
	correct := 0
	for _, i := range idx[:holdout] {
		score, err := d.forest.PredictOne(rows[i])
		if err != nil {
			return
		}
		predicted := 0
		if score >= threshold {
			predicted = 1
		}
		if predicted == labels[i] {
			correct++
		}
	}
	log.Info("held-out agreement with rule labels",
		"accuracy", float64(correct)/float64(holdout), "holdout", holdout)
}

// ruleLabel marks a trajectory anomalous when at least two independent
// statistics are out of range.
func ruleLabel(f Features) int {
	hits := 0
	if f.SpeedVariance > 500 {
		hits++
	}
	if f.PathEfficiency < 0.3 {
		hits++
	}
	if f.NightRatio > 0.5 {
		hits++
	}
	if f.SpeedViolations > 10 {
		hits++
	}
	if f.StopCount > 0.3*float64(f.PointCount) {
		hits++
	}
	if hits >= 2 {
		return 1
	}
	return 0
}

// Detect runs all layers over one trajectory and returns every finding.
func (d *Detector) Detect(ctx context.Context, points []trajectory.Point) []Score {
	if len(points) == 0 {
		return nil
	}
	log := logging.FromContext(ctx)

	feats, err := Extract(points)
	if err != nil {
		log.Warn("feature extraction failed", "err", err)
		return nil
	}

	var scores []Score
	scores = append(scores, d.runLayer(ctx, "model", func() []Score { return d.modelLayer(feats) })...)
	scores = append(scores, d.runLayer(ctx, "rules", func() []Score { return d.ruleLayer(feats) })...)
	scores = append(scores, d.runLayer(ctx, "pattern", func() []Score { return d.patternLayer(points) })...)
	scores = append(scores, d.runLayer(ctx, "temporal", func() []Score { return d.temporalLayer(points) })...)
	return scores
}

// runLayer isolates one layer so a panic in it cannot take down the rest
// of the detection pass.
func (d *Detector) runLayer(ctx context.Context, name string, fn func() []Score) (scores []Score) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Error("detection layer panicked", "layer", name, "panic", r)
			scores = nil
		}
	}()
	return fn()
}

func (d *Detector) modelLayer(f Features) []Score {
	if !d.trained || !d.scaler.Fitted() {
		return nil
	}
	x := d.scaler.Transform(f.Vector())
	score, err := d.forest.PredictOne(x)
	if err != nil {
		return nil
	}
	threshold := d.forest.Threshold()
	if score < threshold {
		return nil
	}
	margin := score - threshold
	severity := SeverityMedium
	if margin > 0.5 {
		severity = SeverityHigh
	}
	return []Score{{
		Type:       TypeIsolationForest,
		Score:      score,
		Confidence: math.Min(0.5+margin, 1),
		Severity:   severity,
		Details: map[string]any{
			"threshold": threshold,
			"margin":    margin,
		},
		DetectedAt: d.now(),
	}}
}

func (d *Detector) ruleLayer(f Features) []Score {
	var scores []Score

	if f.MaxSpeed > 150 {
		severity := SeverityHigh
		if f.MaxSpeed > 180 {
			severity = SeverityCritical
		}
		scores = append(scores, Score{
			Type:       TypeExcessiveSpeed,
			Score:      math.Min(f.MaxSpeed/200, 1),
			Confidence: 0.9,
			Severity:   severity,
			Details:    map[string]any{"max_speed_kmh": f.MaxSpeed},
			DetectedAt: d.now(),
		})
	}

	if f.PathEfficiency < 0.3 && f.TotalDistanceKM > 0 {
		severity := SeverityMedium
		if f.PathEfficiency <= 0.1 {
			severity = SeverityHigh
		}
		scores = append(scores, Score{
			Type:       TypeRouteInefficiency,
			Score:      1 - f.PathEfficiency,
			Confidence: 0.8,
			Severity:   severity,
			Details:    map[string]any{"path_efficiency": f.PathEfficiency},
			DetectedAt: d.now(),
		})
	}

	if f.NightRatio > 0.6 {
		scores = append(scores, Score{
			Type:       TypeNightTravel,
			Score:      f.NightRatio,
			Confidence: 0.7,
			Severity:   SeverityMedium,
			Details:    map[string]any{"night_ratio": f.NightRatio},
			DetectedAt: d.now(),
		})
	}

	if f.PointCount > 0 {
		stopRatio := f.StopCount / float64(f.PointCount)
		if stopRatio > 0.4 {
			scores = append(scores, Score{
				Type:       TypeExcessiveStops,
				Score:      stopRatio,
				Confidence: 0.8,
				Severity:   SeverityMedium,
				Details:    map[string]any{"stop_ratio": stopRatio, "stop_count": f.StopCount},
				DetectedAt: d.now(),
			})
		}
	}

	return scores
}

func (d *Detector) patternLayer(points []trajectory.Point) []Score {
	if len(points) < 5 {
		return nil
	}
	var scores []Score

	changes := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		changes = append(changes, math.Abs(points[i].SpeedKmh-points[i-1].SpeedKmh))
	}
	mean := stat.Mean(changes, nil)
	std := math.Sqrt(popVariance(changes))
	if std > 0 {
		abnormal := 0
		for _, c := range changes {
			if c > mean+2*std {
				abnormal++
			}
		}
		frac := float64(abnormal) / float64(len(changes))
		if frac > 0.7 {
			scores = append(scores, Score{
				Type:       TypeSpeedPattern,
				Score:      frac,
				Confidence: 0.75,
				Severity:   SeverityMedium,
				Details:    map[string]any{"abnormal_fraction": frac},
				DetectedAt: d.now(),
			})
		}
	}

	distances := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		distances = append(distances, geoDistance(points[i-1], points[i]))
	}
	distMean := stat.Mean(distances, nil)
	if distMean > 0 {
		variability := math.Sqrt(popVariance(distances)) / distMean
		if variability > 0.6 {
			scores = append(scores, Score{
				Type:       TypeMovementPattern,
				Score:      math.Min(variability, 1),
				Confidence: 0.7,
				Severity:   SeverityMedium,
				Details:    map[string]any{"distance_variability": variability},
				DetectedAt: d.now(),
			})
		}
	}

	return scores
}

func (d *Detector) temporalLayer(points []trajectory.Point) []Score {
	if len(points) < 2 {
		return nil
	}
	var scores []Score

	intervals := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		intervals = append(intervals, points[i].Timestamp.Sub(points[i-1].Timestamp).Seconds())
	}
	mean := stat.Mean(intervals, nil)
	std := math.Sqrt(popVariance(intervals))
	for i, iv := range intervals {
		if iv > mean+3*std && iv > 3600 {
			severity := SeverityMedium
			if iv > 7200 {
				severity = SeverityHigh
			}
			scores = append(scores, Score{
				Type:           TypeTemporalGap,
				Score:          math.Min(iv/7200, 1),
				Confidence:     0.8,
				Severity:       severity,
				Details:        map[string]any{"gap_seconds": iv},
				DetectedAt:     d.now(),
				AffectedPoints: []int{i, i + 1},
			})
		}
	}

	night := 0
	for _, p := range points {
		h := p.Timestamp.Hour()
		if h < 6 || h > 22 {
			night++
		}
	}
	frac := float64(night) / float64(len(points))
	if frac > 0.7 {
		scores = append(scores, Score{
			Type:       TypeOutOfHours,
			Score:      frac,
			Confidence: 0.9,
			Severity:   SeverityMedium,
			Details:    map[string]any{"night_fraction": frac},
			DetectedAt: d.now(),
		})
	}

	return scores
}

func geoDistance(a, b trajectory.Point) float64 {
	return geo.DistanceKM(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}
