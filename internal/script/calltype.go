package script

import "strings"

// Call directions a script can be written for.
const (
	CallTypeInbound  = "inbound"
	CallTypeOutbound = "outbound"
)

var inboundIndicators = []string{
	"inbound", "incoming", "caller", "thank you for calling",
	"how can i help", "how may i help", "you've reached", "receives a call",
}

var outboundIndicators = []string{
	"outbound", "outgoing", "cold call", "calling you", "reaching out",
	"following up", "i'm calling", "this is a call from", "campaign",
}

// DetectCallType classifies a parsed script as inbound or outbound. An
// explicit call_type metadata key always wins; otherwise indicator phrases in
// the script body are counted, ties going to outbound since most scripted
// campaigns dial out.
func DetectCallType(doc *Document, raw string) string {
	if v, ok := doc.Metadata["call_type"]; ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case CallTypeInbound:
			return CallTypeInbound
		case CallTypeOutbound:
			return CallTypeOutbound
		}
	}

	lower := strings.ToLower(raw)
	inbound, outbound := 0, 0
	for _, ind := range inboundIndicators {
		if strings.Contains(lower, ind) {
			inbound++
		}
	}
	for _, ind := range outboundIndicators {
		if strings.Contains(lower, ind) {
			outbound++
		}
	}
	if inbound > outbound {
		return CallTypeInbound
	}
	return CallTypeOutbound
}
