package pathing

import (
	"errors"
	"fmt"

	"github.com/arl/gogeo/f32/d3"
	"go.uber.org/zap"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/config"
	"github.com/arl/navmove/navmesh"
)

// Errors returned by Service.FindPath. Behavioral kinds per spec.md §7.
var (
	// ErrTargetUnreachable covers both "endpoint not projectable onto the
	// navmesh" and "planner found no connecting path" — both surface as the
	// same caller-facing outcome (spec.md §4.C Failure modes).
	ErrTargetUnreachable = errors.New("pathing: target unreachable")
	// ErrPathUntraversable means the planner found a path but it fails
	// climb/slope validation and auto-fix is disabled or also failed.
	ErrPathUntraversable = errors.New("pathing: path fails validation and cannot be fixed")
)

// Result is a successful PathfindingService.FindPath outcome.
type Result struct {
	Waypoints   []d3.Vec3
	TotalLength float32
}

// Service encapsulates the navmesh planner with validation and best-effort
// auto-fix (spec.md §4.C). AgentConfig is the single source of truth for
// climb/slope limits; a Configuration whose MaxPathSegmentClimb/SlopeDeg
// disagree only produces a logged warning, never a behavior change.
type Service struct {
	Query  *navmesh.NavQuery
	Mesh   *navmesh.NavMesh
	Filter navmesh.QueryFilter
	Config config.Configuration
	Log    *zap.SugaredLogger

	warnedDrift bool
}

// New returns a Service backed by query/mesh, using the config's search
// extents and validation switches.
func New(query *navmesh.NavQuery, mesh *navmesh.NavMesh, filter navmesh.QueryFilter, cfg config.Configuration, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{Query: query, Mesh: mesh, Filter: filter, Config: cfg, Log: log}
}

// defaultExtents returns the search box used to project start/end points
// onto the navmesh, from the Configuration's pathfinding extents.
func (s *Service) defaultExtents() d3.Vec3 {
	h := s.Config.PathfindingSearchExtentsHorizontal
	v := s.Config.PathfindingSearchExtentsVertical
	return d3.NewVec3XYZ(h, v, h)
}

// FindPath projects start and end onto the navmesh, plans between them, and
// validates/auto-fixes the result against agentCfg's climb/slope limits —
// the single source of truth (spec.md §3 Invariants). If agentCfg's limits
// differ from the Configuration's MaxPathSegmentClimb/SlopeDeg, a
// ConfigDrift warning is logged once and agentCfg wins.
func (s *Service) FindPath(start, end d3.Vec3, agentCfg agent.Config) (Result, error) {
	s.checkConfigDrift(agentCfg)

	extents := s.defaultExtents()
	startPos, ok := s.Query.FindNearestValidPosition(start, extents)
	if !ok {
		return Result{}, fmt.Errorf("%w: start position not projectable", ErrTargetUnreachable)
	}
	endPos, ok := s.Query.FindNearestValidPosition(end, extents)
	if !ok {
		return Result{}, fmt.Errorf("%w: target position not projectable", ErrTargetUnreachable)
	}

	startRef, startPt, ok := s.Mesh.FindNearestPoly(startPos, extents, s.Filter)
	if !ok {
		return Result{}, fmt.Errorf("%w: start polygon not found", ErrTargetUnreachable)
	}
	endRef, endPt, ok := s.Mesh.FindNearestPoly(endPos, extents, s.Filter)
	if !ok {
		return Result{}, fmt.Errorf("%w: end polygon not found", ErrTargetUnreachable)
	}

	polyPath, reached := s.Mesh.FindPath(startRef, endRef, startPt, endPt, s.Filter)
	if !reached {
		return Result{}, fmt.Errorf("%w: no connecting path", ErrTargetUnreachable)
	}

	waypoints := s.Mesh.FindStraightPath(polyPath, startPt, endPt)

	if s.Config.EnablePathValidation {
		result := Validate(waypoints, agentCfg.MaxClimb, agentCfg.MaxSlopeDeg)
		if !result.Valid {
			if !s.Config.EnablePathAutoFix {
				return Result{}, fmt.Errorf("%w: segment %d", ErrPathUntraversable, result.ViolatingSegment)
			}
			fixed, ok := TryFix(waypoints, agentCfg.MaxClimb, agentCfg.MaxSlopeDeg, func(p d3.Vec3) (d3.Vec3, bool) {
				return s.Query.FindNearestValidPosition(p, extents)
			})
			if !ok {
				return Result{}, fmt.Errorf("%w: auto-fix failed at segment %d", ErrPathUntraversable, result.ViolatingSegment)
			}
			waypoints = fixed
		}
	}

	total := pathLength(waypoints)
	return Result{Waypoints: waypoints, TotalLength: total}, nil
}

// IsValid delegates to the underlying NavQuery.
func (s *Service) IsValid(p d3.Vec3) bool {
	return s.Query.IsValid(p, s.defaultExtents())
}

func (s *Service) checkConfigDrift(agentCfg agent.Config) {
	if s.warnedDrift {
		return
	}
	if agentCfg.MaxClimb != s.Config.MaxPathSegmentClimb || agentCfg.MaxSlopeDeg != s.Config.MaxPathSegmentSlopeDeg {
		s.Log.Warnw("agent config drift: AgentConfig overrides PathfindingConfiguration limits",
			"agentMaxClimb", agentCfg.MaxClimb, "configMaxClimb", s.Config.MaxPathSegmentClimb,
			"agentMaxSlopeDeg", agentCfg.MaxSlopeDeg, "configMaxSlopeDeg", s.Config.MaxPathSegmentSlopeDeg)
		s.warnedDrift = true
	}
}

func pathLength(waypoints []d3.Vec3) float32 {
	var total float32
	for i := 0; i < len(waypoints)-1; i++ {
		total += waypoints[i].Dist(waypoints[i+1])
	}
	return total
}
