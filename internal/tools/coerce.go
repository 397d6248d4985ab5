package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ArgumentError reports arguments that do not fit the declared schema.
type ArgumentError struct {
	Param  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument %q: %s", e.Param, e.Reason)
}

// Args holds arguments after coercion. Values are string, int64, float64 or bool
// according to the declared parameter type.
type Args map[string]any

func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Int(name string) int {
	v, _ := a[name].(int64)
	return int(v)
}

func (a Args) Float(name string) float64 {
	v, _ := a[name].(float64)
	return v
}

func (a Args) Bool(name string) bool {
	v, _ := a[name].(bool)
	return v
}

// coerceArgs converts raw model arguments to the declared types. Unknown
// arguments are dropped; missing optional ones take their default.
func coerceArgs(params []Param, raw map[string]any) (Args, error) {
	args := make(Args, len(params))
	for _, p := range params {
		v, ok := raw[p.Name]
		if ok && v != nil && !isBlank(v) {
			c, err := coerce(p, v)
			if err != nil {
				return nil, err
			}
			args[p.Name] = c
			continue
		}
		if p.Required {
			return nil, &ArgumentError{Param: p.Name, Reason: "is required"}
		}
		if p.Default != nil {
			c, err := coerce(p, p.Default)
			if err != nil {
				return nil, err
			}
			args[p.Name] = c
		}
	}
	return args, nil
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func coerce(p Param, v any) (any, error) {
	switch p.Type {
	case TypeString:
		s, err := toString(v)
		if err != nil {
			return nil, &ArgumentError{Param: p.Name, Reason: err.Error()}
		}
		if len(p.Enum) > 0 {
			for _, allowed := range p.Enum {
				if enumKey(allowed) == enumKey(s) {
					return allowed, nil
				}
			}
			return nil, &ArgumentError{Param: p.Name, Reason: fmt.Sprintf("must be one of %s", strings.Join(p.Enum, ", "))}
		}
		return s, nil
	case TypeInteger:
		n, err := toInt(v)
		if err != nil {
			return nil, &ArgumentError{Param: p.Name, Reason: err.Error()}
		}
		return n, nil
	case TypeNumber:
		f, err := toFloat(v)
		if err != nil {
			return nil, &ArgumentError{Param: p.Name, Reason: err.Error()}
		}
		return f, nil
	case TypeBoolean:
		b, err := toBool(v)
		if err != nil {
			return nil, &ArgumentError{Param: p.Name, Reason: err.Error()}
		}
		return b, nil
	default:
		return nil, &ArgumentError{Param: p.Name, Reason: fmt.Sprintf("unsupported type %q", p.Type)}
	}
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float32:
		return integral(float64(x))
	case float64:
		return integral(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", x.String())
		}
		return integral(f)
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", x)
		}
		return integral(f)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func integral(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("integer %v out of range", f)
	}
	return int64(f), nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", x.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", x)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected finite number, got %v", f)
	}
	return f, nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "1", "on":
			return true, nil
		case "false", "no", "n", "0", "off":
			return false, nil
		}
		return false, fmt.Errorf("expected boolean, got %q", x)
	default:
		f, err := toFloat(v)
		if err != nil || (f != 0 && f != 1) {
			return false, fmt.Errorf("expected boolean, got %v", v)
		}
		return f == 1, nil
	}
}

// enumKey compares enum values ignoring case and punctuation.
func enumKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
