package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/signalsfoundry/tracecheck/kb"
	"github.com/signalsfoundry/tracecheck/model"
)

// ErrNotSlotTable is returned for input that does not start with SLOT_TABLE.
var ErrNotSlotTable = errors.New("not a slot table")

const slotTableKeyword = "SLOT_TABLE"

// ParseSlotTable reads a C-style slot table initialiser:
//
//	SLOT_TABLE = { {{TRANSMIT, LISTEN}}, {{LISTEN, IDLE}} };
//
// Commas at depth one advance the node index; depth three lists one node's
// actions. Everything after ';' is ignored.
func ParseSlotTable(r io.Reader) (map[model.NodeID][]model.SlotAction, error) {
	var b strings.Builder
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		b.WriteString(strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	data := b.String()
	if !strings.HasPrefix(data, slotTableKeyword) {
		return nil, ErrNotSlotTable
	}
	data = data[len(slotTableKeyword):]

	var (
		out     = make(map[model.NodeID][]model.SlotAction)
		depth   int
		node    model.NodeID
		actions []model.SlotAction
		word    strings.Builder
	)
	flush := func() error {
		a, err := model.ParseSlotAction(word.String())
		word.Reset()
		if err != nil {
			return fmt.Errorf("node %d slot %d: %w", node, len(actions), err)
		}
		actions = append(actions, a)
		return nil
	}

loop:
	for _, c := range data {
		switch {
		case c == '{':
			depth++
		case c == '}':
			if depth == 3 {
				if err := flush(); err != nil {
					return nil, err
				}
				out[node] = actions
				actions = nil
			}
			depth--
		case c == ',' && depth == 1:
			node++
		case c == ',' && depth == 3:
			if err := flush(); err != nil {
				return nil, err
			}
		case c == ';':
			break loop
		case depth == 3 && c >= 'A' && c <= 'Z':
			word.WriteRune(c)
		}
	}
	return out, nil
}

// ReadSlotTable parses the slot table at path into a schedule.
func ReadSlotTable(path string) (*kb.SlotSchedule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	table, err := ParseSlotTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return kb.NewSlotSchedule(table), nil
}
