package strand

import (
	"strconv"
)

// StringValue is a request value read from the path, query or form,
// together with the error of reading it.
type StringValue struct {
	val string
	err error
}

// String returns the raw value.
func (s StringValue) String() (string, error) {
	return s.val, s.err
}

// StringOr returns the value or def when it could not be read.
func (s StringValue) StringOr(def string) string {
	if s.err != nil {
		return def
	}
	return s.val
}

func (s StringValue) AsInt64() (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return strconv.ParseInt(s.val, 10, 64)
}

func (s StringValue) AsUint64() (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return strconv.ParseUint(s.val, 10, 64)
}

func (s StringValue) AsFloat64() (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return strconv.ParseFloat(s.val, 64)
}

func (s StringValue) AsBool() (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return strconv.ParseBool(s.val)
}

// Err is the error of reading the value, if any.
func (s StringValue) Err() error {
	return s.err
}
