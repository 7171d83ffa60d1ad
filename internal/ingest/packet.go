package ingest

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"fortio.org/safecast"

	"github.com/signalsfoundry/tracecheck/model"
)

// headerLen is the number of fixed header bytes before the payload.
const headerLen = 9

// DecodePacket parses the hex dump of an AirTight frame: nine header bytes
// followed by the payload.
func DecodePacket(raw string) (model.Packet, error) {
	if len(raw)%2 != 0 {
		return model.Packet{}, fmt.Errorf("%w: odd hex length %d", ErrMalformedPacket, len(raw))
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return model.Packet{}, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	if len(b) < headerLen {
		return model.Packet{}, fmt.Errorf("%w: too short (%d bytes)", ErrMalformedPacket, len(b))
	}
	return model.Packet{
		Priority:       b[0],
		Criticality:    b[1],
		FlowID:         b[2],
		Source:         b[3],
		Destination:    b[4],
		HopSource:      b[5],
		HopDestination: b[6],
		CValue:         b[7],
		SequenceNumber: b[8],
		Data:           b[headerLen:],
	}, nil
}

// parseNodeID reads a node id. Frames address nodes with a single byte, so
// ids outside [0, 255] cannot appear on the air.
func parseNodeID(s string) (model.NodeID, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return model.NoNode, err
	}
	id, err := safecast.Conv[uint8](v)
	if err != nil {
		return model.NoNode, err
	}
	return model.NodeID(id), nil
}
