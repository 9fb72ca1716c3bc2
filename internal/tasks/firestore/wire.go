package firestore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	fs "google.golang.org/api/firestore/v1"

	"github.com/pdxmph/todo-tui/internal/tasks"
)

// Document field names
const (
	fieldTitle     = "title"
	fieldDueDate   = "dueDate"
	fieldIsDone    = "isDone"
	fieldCreatedAt = "createdAt"
)

// wireValue is the JSON shape of a Firestore Value. Going through JSON keeps
// the decoding independent of how the generated client types each member.
type wireValue struct {
	StringValue    *string  `json:"stringValue,omitempty"`
	IntegerValue   *string  `json:"integerValue,omitempty"`
	DoubleValue    *float64 `json:"doubleValue,omitempty"`
	BooleanValue   *bool    `json:"booleanValue,omitempty"`
	TimestampValue *string  `json:"timestampValue,omitempty"`
}

func (w wireValue) int64() (int64, bool) {
	switch {
	case w.IntegerValue != nil:
		n, err := strconv.ParseInt(*w.IntegerValue, 10, 64)
		return n, err == nil
	case w.DoubleValue != nil:
		return int64(*w.DoubleValue), true
	}
	return 0, false
}

// dueDate keeps the stored shape: numbers are epoch millis, strings and
// timestamps are legacy text for the date parser.
func (w wireValue) dueDate() tasks.RawDueDate {
	switch {
	case w.IntegerValue != nil || w.DoubleValue != nil:
		n, _ := w.int64()
		return tasks.Epoch(n)
	case w.StringValue != nil:
		return tasks.LegacyString(*w.StringValue)
	case w.TimestampValue != nil:
		return tasks.LegacyString(*w.TimestampValue)
	}
	return tasks.RawDueDate{}
}

// decodeDocument converts a Firestore document to the store-neutral form
func decodeDocument(doc *fs.Document) (tasks.Document, error) {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return tasks.Document{}, fmt.Errorf("encoding fields of %s: %w", doc.Name, err)
	}
	var fields map[string]wireValue
	if err := json.Unmarshal(raw, &fields); err != nil {
		return tasks.Document{}, fmt.Errorf("decoding fields of %s: %w", doc.Name, err)
	}

	out := tasks.Document{ID: documentID(doc.Name)}
	if v, ok := fields[fieldTitle]; ok && v.StringValue != nil {
		out.Title = *v.StringValue
	}
	if v, ok := fields[fieldDueDate]; ok {
		out.DueDate = v.dueDate()
	}
	if v, ok := fields[fieldIsDone]; ok && v.BooleanValue != nil {
		out.IsDone = *v.BooleanValue
	}
	if v, ok := fields[fieldCreatedAt]; ok {
		out.CreatedAt, _ = v.int64()
	}
	return out, nil
}

// documentID is the last segment of a document resource name
func documentID(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func stringValue(s string) wireValue {
	return wireValue{StringValue: &s}
}

func integerValue(n int64) wireValue {
	s := strconv.FormatInt(n, 10)
	return wireValue{IntegerValue: &s}
}

func booleanValue(b bool) wireValue {
	return wireValue{BooleanValue: &b}
}

// encodeFields builds the Firestore field map. Zero values are forced onto
// the wire so false and 0 are stored rather than dropped.
func encodeFields(fields map[string]wireValue) (map[string]fs.Value, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}
	var out map[string]fs.Value
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding fields: %w", err)
	}
	for name, v := range out {
		w := fields[name]
		switch {
		case w.StringValue != nil:
			v.ForceSendFields = append(v.ForceSendFields, "StringValue")
		case w.IntegerValue != nil:
			v.ForceSendFields = append(v.ForceSendFields, "IntegerValue")
		case w.BooleanValue != nil:
			v.ForceSendFields = append(v.ForceSendFields, "BooleanValue")
		}
		out[name] = v
	}
	return out, nil
}

func createFields(f tasks.Fields) (map[string]fs.Value, error) {
	return encodeFields(map[string]wireValue{
		fieldTitle:     stringValue(f.Title),
		fieldDueDate:   integerValue(f.DueDate),
		fieldIsDone:    booleanValue(f.IsDone),
		fieldCreatedAt: integerValue(f.CreatedAt),
	})
}

// patchFields returns the fields to send and the update mask naming them
func patchFields(p tasks.Patch) (map[string]fs.Value, []string, error) {
	fields := make(map[string]wireValue)
	var mask []string
	if p.Title != nil {
		fields[fieldTitle] = stringValue(*p.Title)
		mask = append(mask, fieldTitle)
	}
	if p.DueDate != nil {
		fields[fieldDueDate] = integerValue(*p.DueDate)
		mask = append(mask, fieldDueDate)
	}
	if p.IsDone != nil {
		fields[fieldIsDone] = booleanValue(*p.IsDone)
		mask = append(mask, fieldIsDone)
	}
	encoded, err := encodeFields(fields)
	if err != nil {
		return nil, nil, err
	}
	return encoded, mask, nil
}
