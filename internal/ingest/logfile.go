// Package ingest reads AirTight trace directories: event log files, the
// slot table and the routing table.
package ingest

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/signalsfoundry/tracecheck/internal/logging"
	"github.com/signalsfoundry/tracecheck/model"
)

var (
	ErrMalformedLine   = errors.New("malformed log line")
	ErrMalformedPacket = errors.New("malformed packet")
)

// EventID derives the stable id of a log entry from its time and value.
func EventID(t float64, value string) string {
	sum := sha1.Sum([]byte(FormatTime(t) + "|" + value))
	return hex.EncodeToString(sum[:])
}

// FormatTime renders a trace time in its shortest exact form.
func FormatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// ParseLine parses "<time> <KIND> ..." into an event. Node events carry
// "<node> <slot> <hex>", observations "<short_address> <hex>".
func ParseLine(line string) (model.Event, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return model.Event{}, fmt.Errorf("%w: expected time and event kind", ErrMalformedLine)
	}
	t, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: time %q: %v", ErrMalformedLine, fields[0], err)
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return model.Event{}, fmt.Errorf("%w: time %q is not finite", ErrMalformedLine, fields[0])
	}
	kind, err := model.ParseEventKind(fields[1])
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}
	value := strings.Join(fields[1:], " ")
	ev := model.Event{
		ID:     EventID(t, value),
		Time:   t,
		Kind:   kind,
		NodeID: model.NoNode,
		SlotID: model.NoSlot,
	}

	rest := fields[2:]
	if kind == model.EventObservation {
		if len(rest) != 2 {
			return model.Event{}, fmt.Errorf("%w: %s needs <short_address> <packet>, got %d fields", ErrMalformedLine, kind, len(rest))
		}
		ev.ShortAddress, ev.RawPayload = rest[0], rest[1]
	} else {
		if len(rest) != 3 {
			return model.Event{}, fmt.Errorf("%w: %s needs <node> <slot> <packet>, got %d fields", ErrMalformedLine, kind, len(rest))
		}
		node, err := parseNodeID(rest[0])
		if err != nil {
			return model.Event{}, fmt.Errorf("%w: node id %q: %v", ErrMalformedLine, rest[0], err)
		}
		slot, err := strconv.Atoi(rest[1])
		if err != nil {
			return model.Event{}, fmt.Errorf("%w: slot id %q", ErrMalformedLine, rest[1])
		}
		if slot < 0 {
			slot = model.NoSlot
		}
		ev.NodeID, ev.SlotID, ev.RawPayload = node, slot, rest[2]
	}

	ev.Packet, err = DecodePacket(ev.RawPayload)
	if err != nil {
		return model.Event{}, err
	}
	return ev, nil
}

// ReadLog parses every entry of r. Blank lines and lines starting with '#'
// are skipped. name labels errors.
func ReadLog(r io.Reader, name string) ([]model.Event, error) {
	var out []model.Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
		}
		out = append(out, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// ReadLogFile parses a single log file.
func ReadLogFile(path string) ([]model.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLog(f, path)
}

// ReadLogFolder parses every *.log file in dir in lexical order. Repeated
// entries (same time and value) are kept once.
func ReadLogFolder(ctx context.Context, dir string, log logging.Logger) ([]model.Event, error) {
	if log == nil {
		log = logging.Noop()
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	seen := make(map[string]struct{})
	var out []model.Event
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		events, err := ReadLogFile(path)
		if err != nil {
			return nil, err
		}
		dupes := 0
		for _, ev := range events {
			if _, ok := seen[ev.ID]; ok {
				dupes++
				continue
			}
			seen[ev.ID] = struct{}{}
			out = append(out, ev)
		}
		log.Debug(ctx, "read log file",
			logging.String("path", path),
			logging.Int("events", len(events)),
			logging.Int("duplicates", dupes),
		)
	}
	return out, nil
}
