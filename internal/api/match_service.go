package api

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/territory-controller/internal/controller"
	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/model"
)

// MatchService answers queries from the controller's latest snapshot. It
// never touches controller state directly.
type MatchService struct {
	source controller.SnapshotSource
	log    logging.Logger
}

// NewMatchService builds a MatchService over source.
func NewMatchService(source controller.SnapshotSource, log logging.Logger) *MatchService {
	if log == nil {
		log = logging.Noop()
	}
	return &MatchService{source: source, log: log}
}

func (s *MatchService) snapshot() (*controller.Snapshot, error) {
	if s.source == nil {
		return nil, ErrNotReady
	}
	snap := s.source.Snapshot()
	if snap == nil {
		return nil, ErrNotReady
	}
	return snap, nil
}

func (s *MatchService) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

// GetOwnership returns {"arena", "match_time", "owners", "locked"}.
func (s *MatchService) GetOwnership(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, ToStatusError(err)
	}
	owners := make(map[string]interface{}, len(snap.Stations))
	locked := make([]interface{}, 0)
	for _, station := range snap.Stations {
		owners[string(station)] = int(snap.Claimant(station))
		if snap.IsLocked(station) {
			locked = append(locked, string(station))
		}
	}
	res, err := structpb.NewStruct(map[string]interface{}{
		"arena":      snap.Arena,
		"match_time": snap.MatchTime.Seconds(),
		"owners":     owners,
		"locked":     locked,
	})
	if err != nil {
		return nil, ToStatusError(err)
	}
	s.logger(ctx).Debug(ctx, "served ownership", logging.Int("stations", len(owners)))
	return res, nil
}

// GetStation returns {"station", "owner", "owner_name", "locked",
// "lock_count", "attached"} for one station.
func (s *MatchService) GetStation(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, ToStatusError(err)
	}
	code, err := model.ParseStationCode(req.GetValue())
	if err != nil {
		return nil, ToStatusError(err)
	}
	if !snap.HasStation(code) {
		return nil, ToStatusError(fmt.Errorf("%w: %s", ErrUnknownStation, code))
	}

	owner := snap.Claimant(code)
	attached := false
	for _, st := range snap.Attached[owner] {
		if st == code {
			attached = true
			break
		}
	}
	res, err := structpb.NewStruct(map[string]interface{}{
		"station":    string(code),
		"owner":      int(owner),
		"owner_name": owner.String(),
		"locked":     snap.IsLocked(code),
		"lock_count": snap.LockCounts[code],
		"attached":   attached,
	})
	if err != nil {
		return nil, ToStatusError(err)
	}
	return res, nil
}

// GetClaimLog returns the claim history as a list of
// {"station", "claimant", "time"} structs.
func (s *MatchService) GetClaimLog(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, ToStatusError(err)
	}
	items := make([]interface{}, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		items = append(items, map[string]interface{}{
			"station":  string(e.Station),
			"claimant": int(e.Claimant),
			"time":     e.Time.Seconds(),
		})
	}
	res, err := structpb.NewList(items)
	if err != nil {
		return nil, ToStatusError(err)
	}
	s.logger(ctx).Debug(ctx, "served claim log", logging.Int("entries", len(items)))
	return res, nil
}

// GetAttached returns the sorted stations attached to a claimant's root.
func (s *MatchService) GetAttached(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.ListValue, error) {
	snap, err := s.snapshot()
	if err != nil {
		return nil, ToStatusError(err)
	}
	id := req.GetValue()
	if id < -128 || id > 127 || !snap.HasClaimant(model.Claimant(id)) {
		return nil, ToStatusError(fmt.Errorf("%w: %d", ErrUnknownClaimant, id))
	}
	stations := snap.Attached[model.Claimant(id)]
	items := make([]interface{}, 0, len(stations))
	for _, station := range stations {
		items = append(items, string(station))
	}
	res, err := structpb.NewList(items)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return res, nil
}
