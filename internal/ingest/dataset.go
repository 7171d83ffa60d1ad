package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/signalsfoundry/tracecheck/internal/logging"
	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

const (
	RoutesFile    = "routes.txt"
	SlotTableFile = "slot_table.txt"
)

// ErrMissingData is returned when a data directory lacks a required file.
var ErrMissingData = errors.New("data directory incomplete")

// Dataset is everything loaded from one trace directory.
type Dataset struct {
	Dir      string
	Log      *kb.EventLog
	Schedule *kb.SlotSchedule
	Routes   *model.RouteGraph
}

// LoadDataDir reads the routing table, slot table and every *.log file in
// dir.
func LoadDataDir(ctx context.Context, dir string, log logging.Logger) (*Dataset, error) {
	if log == nil {
		log = logging.Noop()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingData, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrMissingData, dir)
	}
	for _, name := range []string{RoutesFile, SlotTableFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, fmt.Errorf("%w: %s missing from %s", ErrMissingData, name, dir)
		}
	}

	routes, err := ReadRoutes(filepath.Join(dir, RoutesFile))
	if err != nil {
		return nil, err
	}
	schedule, err := ReadSlotTable(filepath.Join(dir, SlotTableFile))
	if err != nil {
		return nil, err
	}
	events, err := ReadLogFolder(ctx, dir, log)
	if err != nil {
		return nil, err
	}
	eventLog, err := kb.NewEventLog(events)
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "loaded trace directory",
		logging.String("dir", dir),
		logging.Int("events", eventLog.Len()),
		logging.Int("scheduled_nodes", len(schedule.Nodes())),
		logging.Int("route_nodes", len(routes.Nodes())),
	)
	return &Dataset{Dir: dir, Log: eventLog, Schedule: schedule, Routes: routes}, nil
}
