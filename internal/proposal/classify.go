package proposal

import "strings"

// Kind is the rendering variant of a message body.
type Kind string

const (
	KindPlain    Kind = "plain"
	KindProposal Kind = "proposal"
	KindAccepted Kind = "accepted"
	KindDeclined Kind = "declined"
)

const (
	AcceptedMarker = "✅ Meeting Accepted!"
	DeclinedMarker = "❌ Sorry"

	// DeclineText is the body sent when a recipient declines a proposal.
	DeclineText = "❌ Sorry, I can't make it at that time. Can we find another time that works?"
)

// Classification is the result of inspecting one message body.
type Classification struct {
	Kind     Kind
	Proposal *Proposal
}

// Classify decides how a message body renders. It looks only at text, so a
// proposal keeps its original status no matter what was said after it.
func Classify(text string) Classification {
	if p, ok := Decode(text); ok {
		return Classification{Kind: KindProposal, Proposal: &p}
	}
	if strings.Contains(text, AcceptedMarker) {
		return Classification{Kind: KindAccepted}
	}
	if strings.Contains(text, DeclinedMarker) {
		return Classification{Kind: KindDeclined}
	}
	return Classification{Kind: KindPlain}
}

// AcceptanceText is the body sent when a recipient accepts p.
func AcceptanceText(p Proposal) string {
	return AcceptedMarker + "\n" +
		"📍 " + p.Location + "\n" +
		"📆 " + LongDate(p.Date) + "\n" +
		"⏰ " + p.Time + "\n" +
		"See you there!"
}
