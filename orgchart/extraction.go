package orgchart

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/xeipuuv/gojsonschema"
)

// ExtractionFileName is the per-company raw extraction file produced by the extractor.
const ExtractionFileName = "entities_llm_v2.json"

var (
	// ErrNoExtractions is returned when a company has no extraction file.
	ErrNoExtractions = errors.New("extractions not found")
	// ErrMalformedExtractions is returned when the extraction file cannot be decoded.
	ErrMalformedExtractions = errors.New("malformed extractions")
)

// ExtractionSchema identifies which raw record layout a mention arrived in.
type ExtractionSchema int

const (
	// SchemaEntityName records carry entity_name / entity_type.
	SchemaEntityName ExtractionSchema = iota + 1
	// SchemaValueType records carry value / type.
	SchemaValueType
)

func (s ExtractionSchema) String() string {
	switch s {
	case SchemaEntityName:
		return "entity_name"
	case SchemaValueType:
		return "value"
	default:
		return "unknown"
	}
}

// ExtractionSet is the decoded content of one extraction file.
type ExtractionSet struct {
	Company  string
	BatchID  string
	Mentions []RawMention

	// Rejected counts records that failed validation and were skipped.
	Rejected      int
	RejectReasons []string

	// Schemas counts how many mentions arrived in each record layout.
	Schemas map[ExtractionSchema]int
}

const maxRejectReasons = 20

// recordSchema is applied to every element of the entities array. Ids and speaker ids are
// allowed to be numbers since older extractor runs emitted them that way.
const recordSchema = `{
  "type": "object",
  "properties": {
    "entity_name":  {"type": ["string", "null"]},
    "entity_type":  {"type": ["string", "null"]},
    "value":        {"type": ["string", "null"]},
    "type":         {"type": ["string", "null"]},
    "raw_quote":    {"type": ["string", "null"]},
    "speaker_id":   {"type": ["string", "number", "null"]},
    "call_date":    {"type": ["string", "null"]},
    "call_id":      {"type": ["string", "number", "null"]},
    "call_ids":     {"type": ["array", "null"], "items": {"type": ["string", "number"]}},
    "confidence":   {"type": ["string", "null"]},
    "leader":       {"type": ["string", "null"]},
    "leader_title": {"type": ["string", "null"]},
    "team_size":    {"type": ["string", "number", "null"]}
  },
  "anyOf": [
    {"required": ["entity_name"]},
    {"required": ["value"]}
  ]
}`

var compiledRecordSchema = mustCompileSchema(recordSchema)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile extraction record schema: %v", err))
	}
	return schema
}

// ExtractionPath returns the extraction file location for a company under dir.
func ExtractionPath(dir, company string) string {
	return filepath.Join(dir, CompanySlug(company), ExtractionFileName)
}

// CompanySlug is the lowercase, path-safe form of a company name used for directories,
// store keys and report ids.
func CompanySlug(company string) string {
	s := strings.ToLower(strings.TrimSpace(company))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._-")
	return strings.TrimLeft(out, ".")
}

// LoadExtractions opens and decodes the extraction file at path.
func LoadExtractions(ctx context.Context, path string) (ExtractionSet, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ExtractionSet{}, fmt.Errorf("%w: %s", ErrNoExtractions, path)
		}
		return ExtractionSet{}, fmt.Errorf("open extractions: %w", err)
	}
	defer f.Close()

	set, err := DecodeExtractions(ctx, f)
	if err != nil {
		return ExtractionSet{}, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// DecodeExtractions streams an extraction document. The document is either an object with an
// "entities" array (plus optional "company" / "batch_id") or a bare array of records.
// Individual records that fail validation are counted and skipped; a document that is not
// valid JSON of either shape is an error wrapping ErrMalformedExtractions.
func DecodeExtractions(ctx context.Context, r io.Reader) (ExtractionSet, error) {
	if ctx == nil {
		return ExtractionSet{}, errors.New("DecodeExtractions: ctx is nil")
	}
	dec := json.NewDecoder(bufio.NewReaderSize(r, 1<<20))
	dec.UseNumber()

	set := ExtractionSet{Schemas: make(map[ExtractionSchema]int)}

	tok, err := dec.Token()
	if err != nil {
		return ExtractionSet{}, fmt.Errorf("%w: read first token: %v", ErrMalformedExtractions, err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return ExtractionSet{}, fmt.Errorf("%w: expected JSON object or array, got %T", ErrMalformedExtractions, tok)
	}

	switch delim {
	case '[':
		if err := decodeRecords(ctx, dec, &set); err != nil {
			return ExtractionSet{}, err
		}
		if err := expectDelim(dec, ']'); err != nil {
			return ExtractionSet{}, err
		}
	case '{':
		foundEntities := false
		for dec.More() {
			if err := ctx.Err(); err != nil {
				return ExtractionSet{}, err
			}
			keyTok, err := dec.Token()
			if err != nil {
				return ExtractionSet{}, fmt.Errorf("%w: read key: %v", ErrMalformedExtractions, err)
			}
			key, _ := keyTok.(string)

			switch key {
			case "entities":
				valTok, err := dec.Token()
				if err != nil {
					return ExtractionSet{}, fmt.Errorf("%w: read entities: %v", ErrMalformedExtractions, err)
				}
				if d, ok := valTok.(json.Delim); !ok || d != '[' {
					return ExtractionSet{}, fmt.Errorf("%w: entities is not an array", ErrMalformedExtractions)
				}
				foundEntities = true
				if err := decodeRecords(ctx, dec, &set); err != nil {
					return ExtractionSet{}, err
				}
				if err := expectDelim(dec, ']'); err != nil {
					return ExtractionSet{}, err
				}
			case "company", "account":
				var v flexString
				if err := dec.Decode(&v); err != nil {
					return ExtractionSet{}, fmt.Errorf("%w: decode %s: %v", ErrMalformedExtractions, key, err)
				}
				if set.Company == "" {
					set.Company = string(v)
				}
			case "batch_id":
				var v flexString
				if err := dec.Decode(&v); err != nil {
					return ExtractionSet{}, fmt.Errorf("%w: decode batch_id: %v", ErrMalformedExtractions, err)
				}
				set.BatchID = string(v)
			default:
				valTok, err := dec.Token()
				if err != nil {
					return ExtractionSet{}, fmt.Errorf("%w: read value for %q: %v", ErrMalformedExtractions, key, err)
				}
				if err := skipValue(dec, valTok); err != nil {
					return ExtractionSet{}, fmt.Errorf("%w: skip %q: %v", ErrMalformedExtractions, key, err)
				}
			}
		}
		if err := expectDelim(dec, '}'); err != nil {
			return ExtractionSet{}, err
		}
		if !foundEntities {
			return ExtractionSet{}, fmt.Errorf("%w: no entities array", ErrMalformedExtractions)
		}
	default:
		return ExtractionSet{}, fmt.Errorf("%w: unsupported top-level delimiter %q", ErrMalformedExtractions, delim)
	}
	return set, nil
}

func decodeRecords(ctx context.Context, dec *json.Decoder, set *ExtractionSet) error {
	index := 0
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: decode record %d: %v", ErrMalformedExtractions, index, err)
		}
		mention, schema, err := parseRecord(raw)
		if err != nil {
			set.Rejected++
			if len(set.RejectReasons) < maxRejectReasons {
				set.RejectReasons = append(set.RejectReasons, fmt.Sprintf("record %d: %v", index, err))
			}
		} else {
			set.Mentions = append(set.Mentions, mention)
			set.Schemas[schema]++
		}
		index++
	}
	return nil
}

func parseRecord(raw json.RawMessage) (RawMention, ExtractionSchema, error) {
	result, err := compiledRecordSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return RawMention{}, 0, err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return RawMention{}, 0, errors.New(strings.Join(msgs, "; "))
	}

	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return RawMention{}, 0, err
	}
	return rec.toMention()
}

// rawRecord is the union of both extractor layouts. toMention resolves it once; nothing past
// this point sees the variance.
type rawRecord struct {
	EntityName  *string      `json:"entity_name"`
	EntityType  *string      `json:"entity_type"`
	Value       *string      `json:"value"`
	Type        *string      `json:"type"`
	RawQuote    *string      `json:"raw_quote"`
	SpeakerID   flexString   `json:"speaker_id"`
	CallDate    *string      `json:"call_date"`
	CallID      flexString   `json:"call_id"`
	CallIDs     []flexString `json:"call_ids"`
	Confidence  *string      `json:"confidence"`
	Leader      *string      `json:"leader"`
	LeaderTitle *string      `json:"leader_title"`
	TeamSize    flexString   `json:"team_size"`
}

func (r rawRecord) schema() ExtractionSchema {
	if r.EntityName != nil {
		return SchemaEntityName
	}
	return SchemaValueType
}

func (r rawRecord) toMention() (RawMention, ExtractionSchema, error) {
	schema := r.schema()
	m := RawMention{
		RawQuote:    deref(r.RawQuote),
		SpeakerID:   string(r.SpeakerID),
		CallDate:    deref(r.CallDate),
		CallID:      string(r.CallID),
		Confidence:  strings.ToLower(strings.TrimSpace(deref(r.Confidence))),
		Leader:      strings.TrimSpace(deref(r.Leader)),
		LeaderTitle: strings.TrimSpace(deref(r.LeaderTitle)),
		TeamSize:    string(r.TeamSize),
	}
	switch schema {
	case SchemaEntityName:
		m.EntityName = strings.TrimSpace(deref(r.EntityName))
		m.EntityType = deref(r.EntityType)
	case SchemaValueType:
		m.EntityName = strings.TrimSpace(deref(r.Value))
		m.EntityType = deref(r.Type)
	}
	m.EntityType = strings.ToLower(strings.TrimSpace(m.EntityType))
	if m.Confidence == "" {
		m.Confidence = ConfidenceMedium
	}
	for _, id := range r.CallIDs {
		if id != "" {
			m.CallIDs = append(m.CallIDs, string(id))
		}
	}
	if m.CallID == "" && len(m.CallIDs) > 0 {
		m.CallID = m.CallIDs[0]
	}
	return m, schema, nil
}

// flexString accepts a JSON string, number, or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*f = ""
		return nil
	}
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(v))
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return fmt.Errorf("flexString: unsupported value %s", s)
	}
	*f = flexString(s)
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: read closing %q: %v", ErrMalformedExtractions, want, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected closing %q, got %v", ErrMalformedExtractions, want, tok)
	}
	return nil
}

func skipValue(dec *json.Decoder, first json.Token) error {
	d, ok := first.(json.Delim)
	if !ok {
		return nil
	}
	switch d {
	case '{', '[':
	default:
		return fmt.Errorf("skipValue: unexpected delimiter %q", d)
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if dd, ok := tok.(json.Delim); ok {
			switch dd {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
