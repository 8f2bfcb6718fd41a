package homework

import (
	"github.com/tidwall/gjson"
)

type Status string

const (
	StatusApproved  Status = "approved"
	StatusReviewing Status = "reviewing"
	StatusRejected  Status = "rejected"
)

// Statuses lists every status the review API may report.
var Statuses = []Status{StatusApproved, StatusReviewing, StatusRejected}

// Known reports whether s is one of Statuses.
func (s Status) Known() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Record is the typed view of one homework entry.
type Record struct {
	Name   string
	Status Status
}

// Response is the validated API payload.
//
// Homeworks are kept as parsed JSON values: only the newest one is
// inspected, and its shape is checked by Extract.
type Response struct {
	Homeworks      []gjson.Result
	CurrentDate    int64
	HasCurrentDate bool
}

type OutcomeKind int

const (
	NoUpdate OutcomeKind = iota
	NoStatusChange
	StatusMessage
)

func (k OutcomeKind) String() string {
	switch k {
	case NoUpdate:
		return "no_update"
	case NoStatusChange:
		return "no_status_change"
	case StatusMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Outcome is the result of one extraction. Message is set only for StatusMessage.
type Outcome struct {
	Kind    OutcomeKind
	Record  Record
	Message string
}

// Validate checks that body is an object with both "homeworks" and
// "current_date", and that "homeworks" is an array.
func Validate(body []byte) (Response, error) {
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return Response{}, schemaError("response is not a JSON object")
	}

	hw := root.Get("homeworks")
	cd := root.Get("current_date")
	if !hw.Exists() || !cd.Exists() {
		return Response{}, schemaError(`response must contain "homeworks" and "current_date"`)
	}
	if !hw.IsArray() {
		return Response{}, schemaError(`"homeworks" is not a list`)
	}

	resp := Response{Homeworks: hw.Array()}
	if cd.Type == gjson.Number && float64(cd.Int()) == cd.Num {
		resp.CurrentDate = cd.Int()
		resp.HasCurrentDate = true
	}
	return resp, nil
}

// Extract inspects the newest homework (the API returns them newest-first)
// and renders the status-change message for it.
func Extract(homeworks []gjson.Result, msgs Messages) (Outcome, error) {
	if len(homeworks) == 0 {
		return Outcome{Kind: NoUpdate}, nil
	}

	first := homeworks[0]
	if !first.IsObject() {
		return Outcome{}, schemaError("homework entry is not an object")
	}
	name := first.Get("homework_name")
	if !name.Exists() || name.Type == gjson.Null {
		return Outcome{}, schemaError(`homework entry has no "homework_name"`)
	}
	rec := Record{Name: name.String()}

	status := first.Get("status")
	if !status.Exists() || status.Type == gjson.Null {
		return Outcome{Kind: NoStatusChange, Record: rec}, nil
	}
	rec.Status = Status(status.String())

	verdict, ok := msgs.Verdicts[rec.Status]
	if !ok || !rec.Status.Known() {
		return Outcome{}, &Error{Kind: KindUnknownStatus, Op: "extract", Value: string(rec.Status)}
	}
	return Outcome{
		Kind:    StatusMessage,
		Record:  rec,
		Message: msgs.StatusChanged(rec.Name, verdict),
	}, nil
}
