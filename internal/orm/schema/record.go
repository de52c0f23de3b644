package schema

import (
	"fmt"
	"math"

	"go.uber.org/multierr"

	cerrors "github.com/connectome/emschema/internal/compiler/errors"
)

// Record is one in-memory annotation keyed by field name
type Record map[string]interface{}

// Load validates a record against the schema and returns the loaded copy.
// Missing optional fields take their default. Every field failure is
// collected before returning. After a successful load the schema's PostLoad
// hook runs on the result.
func (s *SchemaDef) Load(record Record) (Record, error) {
	out, err := s.load(record, "")
	if err != nil {
		return nil, cerrors.NewInvalidRecord(s.Name, err)
	}
	if s.PostLoad != nil {
		return s.PostLoad(out)
	}
	return out, nil
}

func (s *SchemaDef) load(record Record, path string) (Record, error) {
	out := make(Record, len(record))
	for k, v := range record {
		out[k] = v
	}

	var errs error
	for _, f := range s.fields {
		name := f.Name
		if path != "" {
			name = path + "." + f.Name
		}

		v, present := record[f.Name]
		if !present || v == nil {
			if f.Default != nil {
				out[f.Name] = f.Default
			} else if f.Required {
				errs = multierr.Append(errs, fmt.Errorf("%s: missing required field", name))
			}
			continue
		}

		if f.IsNested() {
			sub, ok := asRecord(v)
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s: expected object, got %T", name, v))
				continue
			}
			loaded, err := f.Nested.load(sub, name)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			out[f.Name] = loaded
			continue
		}

		if err := checkValue(f.Type, v); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

func asRecord(v interface{}) (Record, bool) {
	switch m := v.(type) {
	case Record:
		return m, true
	case map[string]interface{}:
		return Record(m), true
	default:
		return nil, false
	}
}

func checkValue(t FieldType, v interface{}) error {
	switch t {
	case TypeInteger, TypeNumeric, TypeReferenceID:
		if !isIntegral(v) {
			return fmt.Errorf("expected integer, got %T", v)
		}
	case TypeFloat:
		if _, ok := toFloat(v); !ok {
			return fmt.Errorf("expected number, got %T", v)
		}
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
	case TypeGeometryPoint:
		return checkPoint(v)
	default:
		return fmt.Errorf("unsupported field type %s", t)
	}
	return nil
}

func checkPoint(v interface{}) error {
	var coords []interface{}
	switch p := v.(type) {
	case []float64:
		for _, c := range p {
			coords = append(coords, c)
		}
	case []int:
		for _, c := range p {
			coords = append(coords, c)
		}
	case []interface{}:
		coords = p
	default:
		return fmt.Errorf("expected point, got %T", v)
	}
	if len(coords) != 3 {
		return fmt.Errorf("expected 3 coordinates, got %d", len(coords))
	}
	for _, c := range coords {
		if _, ok := toFloat(c); !ok {
			return fmt.Errorf("coordinate %v is not a number", c)
		}
	}
	return nil
}

func isIntegral(v interface{}) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == math.Trunc(n)
	case float32:
		return float64(n) == math.Trunc(float64(n))
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
