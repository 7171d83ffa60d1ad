package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/signalsfoundry/tracecheck/model"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type packetJSON struct {
	Priority       uint8  `json:"priority"`
	Criticality    uint8  `json:"criticality"`
	FlowID         uint8  `json:"flow_id"`
	Source         uint8  `json:"source"`
	Destination    uint8  `json:"destination"`
	HopSource      uint8  `json:"hop_source"`
	HopDestination uint8  `json:"hop_destination"`
	CValue         uint8  `json:"c_value"`
	SequenceNumber uint8  `json:"sequence_number"`
	Data           string `json:"data"`
}

// eventJSON is the log entry shape the viewer consumes. Node and slot are
// null for events that carry none.
type eventJSON struct {
	ID            string          `json:"id"`
	Time          float64         `json:"time"`
	Event         model.EventKind `json:"event"`
	NodeID        *int            `json:"node_id"`
	SlotID        *int            `json:"slot_id"`
	ShortAddress  string          `json:"short_address,omitempty"`
	PacketData    packetJSON      `json:"packet_data"`
	RawPacketData string          `json:"raw_packet_data"`
}

func toEventJSON(ev *model.Event) eventJSON {
	out := eventJSON{
		ID:            ev.ID,
		Time:          ev.Time,
		Event:         ev.Kind,
		ShortAddress:  ev.ShortAddress,
		RawPacketData: ev.RawPayload,
		PacketData: packetJSON{
			Priority:       ev.Packet.Priority,
			Criticality:    ev.Packet.Criticality,
			FlowID:         ev.Packet.FlowID,
			Source:         ev.Packet.Source,
			Destination:    ev.Packet.Destination,
			HopSource:      ev.Packet.HopSource,
			HopDestination: ev.Packet.HopDestination,
			CValue:         ev.Packet.CValue,
			SequenceNumber: ev.Packet.SequenceNumber,
			Data:           hex.EncodeToString(ev.Packet.Data),
		},
	}
	if ev.HasNode() {
		node := int(ev.NodeID)
		out.NodeID = &node
	}
	if ev.HasSlot() {
		slot := ev.SlotID
		out.SlotID = &slot
	}
	return out
}
