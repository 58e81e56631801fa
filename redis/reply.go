package redis

import "github.com/hmartiro/redox/redis/wire"

// ReplyShape selects which decoder a Command's reply is run through. It is
// fixed at Command construction and never changes — see DESIGN.md for why
// this is a closed enum rather than a generic/any-typed reply.
type ReplyShape int

const (
	// ShapeRaw passes any non-error raw value through unexamined.
	ShapeRaw ReplyShape = iota
	// ShapeString decodes a string or status reply into a length-preserving
	// []byte copy, safe for embedded NULs.
	ShapeString
	// ShapeCString decodes like ShapeString but documents that the result
	// is not NUL-terminated-safe, matching the C client's char* shape.
	ShapeCString
	// ShapeInt decodes an integer reply, truncated to 32 bits.
	ShapeInt
	// ShapeLong decodes an integer reply at full 64-bit width.
	ShapeLong
	// ShapeNil accepts only a nil reply.
	ShapeNil
	// ShapeVectorStrings decodes an array of strings, preserving order.
	ShapeVectorStrings
	// ShapeSetStrings decodes an array of strings into a deduplicated set.
	ShapeSetStrings
	// ShapeHashSetStrings decodes an array of strings into an unordered set.
	ShapeHashSetStrings
)

func (s ReplyShape) String() string {
	switch s {
	case ShapeRaw:
		return "Raw"
	case ShapeString:
		return "String"
	case ShapeCString:
		return "CString"
	case ShapeInt:
		return "Int"
	case ShapeLong:
		return "Long"
	case ShapeNil:
		return "Nil"
	case ShapeVectorStrings:
		return "VectorStrings"
	case ShapeSetStrings:
		return "SetStrings"
	case ShapeHashSetStrings:
		return "HashSetStrings"
	default:
		return "Unknown"
	}
}

// decode converts a raw wire reply into the shape-appropriate Go value,
// per the table in spec.md §4.1. It never panics: every branch returns a
// terminal ReplyStatus instead of raising.
func decode(shape ReplyShape, raw interface{}) (value interface{}, status ReplyStatus, replyErr error) {
	if e, ok := raw.(wire.Error); ok {
		return nil, ErrorReply, Error(e)
	}

	if raw == nil {
		if shape == ShapeNil || shape == ShapeRaw {
			return nil, Ok, nil
		}
		return nil, NilReply, nil
	}

	switch shape {
	case ShapeRaw:
		return raw, Ok, nil

	case ShapeNil:
		return nil, WrongType, nil

	case ShapeString, ShapeCString:
		switch v := raw.(type) {
		case []byte:
			cp := make([]byte, len(v))
			copy(cp, v)
			return cp, Ok, nil
		case string:
			return []byte(v), Ok, nil
		default:
			return nil, WrongType, nil
		}

	case ShapeInt:
		n, ok := raw.(int64)
		if !ok {
			return nil, WrongType, nil
		}
		return int32(n), Ok, nil

	case ShapeLong:
		n, ok := raw.(int64)
		if !ok {
			return nil, WrongType, nil
		}
		return n, Ok, nil

	case ShapeVectorStrings:
		arr, ok := raw.([]interface{})
		if !ok {
			return nil, WrongType, nil
		}
		out := make([]string, len(arr))
		for i, el := range arr {
			s, ok := asString(el)
			if !ok {
				return nil, WrongType, nil
			}
			out[i] = s
		}
		return out, Ok, nil

	case ShapeSetStrings, ShapeHashSetStrings:
		arr, ok := raw.([]interface{})
		if !ok {
			return nil, WrongType, nil
		}
		out := make(map[string]struct{}, len(arr))
		for _, el := range arr {
			s, ok := asString(el)
			if !ok {
				return nil, WrongType, nil
			}
			out[s] = struct{}{}
		}
		return out, Ok, nil

	default:
		return nil, WrongType, nil
	}
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case []byte:
		return string(s), true
	case string:
		return s, true
	default:
		return "", false
	}
}
