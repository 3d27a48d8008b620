// Package proposal embeds structured meeting proposals in free-text chat messages
// and classifies message bodies for rendering.
package proposal

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/skillswap-api/pkg/apperrors"
)

// Status describes the lifecycle state written into a proposal payload.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

const (
	// DateLayout is the wire layout of Proposal.Date.
	DateLayout     = "2006-01-02"
	longDateLayout = "Monday, January 2, 2006"

	payloadType = "meeting_proposal"
	tagPrefix   = "[MEETING_PROPOSAL:"
)

// Proposal is a meeting suggestion carried inside a message body.
type Proposal struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Location string `json:"location"`
	Note     string `json:"note"`
	Status   Status `json:"status"`
}

type payload struct {
	Type string `json:"type"`
	Proposal
}

// The tag grammar stops at the first closing bracket. Encode escapes every
// bracket inside the payload so its own output always survives this match.
var tagPattern = regexp.MustCompile(`\[MEETING_PROPOSAL:(.*?)\]`)

const payloadSchema = `{
	"type": "object",
	"required": ["date", "time", "location"],
	"properties": {
		"type": {"const": "meeting_proposal"},
		"date": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"time": {"type": "string", "minLength": 1},
		"location": {"type": "string", "minLength": 1},
		"note": {"type": "string"},
		"status": {"enum": ["pending", "accepted", "declined"]}
	}
}`

var schema = jsonschema.MustCompileString("meeting_proposal.json", payloadSchema)

// Encode renders p as a readable multi-line summary followed by a single-line
// machine readable tag. When locations is non-empty the proposal location must
// be one of them.
func Encode(p Proposal, locations []string) (string, error) {
	p.Date = strings.TrimSpace(p.Date)
	p.Time = strings.TrimSpace(p.Time)
	p.Location = strings.TrimSpace(p.Location)
	p.Note = strings.TrimSpace(p.Note)
	if p.Status == "" {
		p.Status = StatusPending
	}

	if p.Date == "" || p.Time == "" || p.Location == "" {
		return "", apperrors.Validation("date, time and location are required")
	}
	day, err := time.Parse(DateLayout, p.Date)
	if err != nil {
		return "", apperrors.Validation("date must use YYYY-MM-DD")
	}
	switch p.Status {
	case StatusPending, StatusAccepted, StatusDeclined:
	default:
		return "", apperrors.Validation("unknown proposal status")
	}
	if len(locations) > 0 && !contains(locations, p.Location) {
		return "", apperrors.Validation("location is not one of the offered meeting spots")
	}

	raw, err := json.Marshal(payload{Type: payloadType, Proposal: p})
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to encode proposal", err)
	}
	escaped := strings.ReplaceAll(string(raw), "]", `\u005d`)

	var b strings.Builder
	b.WriteString("📅 Meeting Proposal\n")
	b.WriteString("📍 " + p.Location + "\n")
	b.WriteString("📆 " + day.Format(longDateLayout) + "\n")
	b.WriteString("⏰ " + p.Time)
	if p.Note != "" {
		b.WriteString("\n💬 " + p.Note)
	}
	b.WriteString("\n" + tagPrefix + escaped + "]")

	return b.String(), nil
}

// Decode extracts the proposal embedded in text. It never fails: any body
// without a well-formed tag reports ok=false and renders as a plain message.
// When several tags are present the last one wins, since Encode always
// places the tag after the user supplied note.
func Decode(text string) (Proposal, bool) {
	matches := tagPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Proposal{}, false
	}
	raw := matches[len(matches)-1][1]

	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Proposal{}, false
	}
	if err := schema.Validate(doc); err != nil {
		return Proposal{}, false
	}

	var decoded payload
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return Proposal{}, false
	}
	return decoded.Proposal, true
}

// LongDate formats a YYYY-MM-DD date the way message summaries show it.
// Unparseable input is returned unchanged.
func LongDate(date string) string {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return date
	}
	return day.Format(longDateLayout)
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
