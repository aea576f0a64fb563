package database

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/elliotchance/phpserialize"
)

// WordPress stores list-valued meta (customer_email, earned coupons) as PHP
// serialized arrays. Only flat lists of strings are handled here.

// each element needs at least `i:0;s:0:"";`
const minElementLen = 11

var arrayHeader = regexp.MustCompile(`^a:(\d+):\{`)

var errMalformedArray = errors.New("php unserialize: malformed array")

func serializeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := phpserialize.Marshal(values, nil)
	if err != nil {
		return "", fmt.Errorf("php serialize: %w", err)
	}
	return string(b), nil
}

func unserializeStrings(s string) (out []string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "a:") {
		// plain scalar meta
		return []string{s}, nil
	}

	m := arrayHeader.FindStringSubmatch(s)
	if m == nil {
		return nil, errMalformedArray
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > len(s)/minElementLen {
		return nil, fmt.Errorf("%w: declared length %s", errMalformedArray, m[1])
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", errMalformedArray, r)
		}
	}()
	arr, err := phpserialize.UnmarshalAssociativeArray([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("php unserialize: %w", err)
	}
	if len(arr) != n {
		return nil, fmt.Errorf("%w: %d elements, %d declared", errMalformedArray, len(arr), n)
	}

	keys := make([]any, 0, len(arr))
	for k := range arr {
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	out = make([]string, 0, len(keys))
	for _, k := range keys {
		v, ok := arr[k].(string)
		if !ok {
			return nil, fmt.Errorf("%w: element %v is %T", errMalformedArray, k, arr[k])
		}
		out = append(out, v)
	}
	return out, nil
}

// keyLess orders integer keys numerically ahead of string keys.
func keyLess(a, b any) bool {
	ai, aInt := intKey(a)
	bi, bInt := intKey(b)
	switch {
	case aInt && bInt:
		return ai < bi
	case aInt != bInt:
		return aInt
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func intKey(k any) (int64, bool) {
	switch v := k.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
