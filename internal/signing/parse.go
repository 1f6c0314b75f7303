package signing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned when a boundary payload cannot be coerced into
// assignments.
var ErrMalformed = errors.New("malformed assignment payload")

// ParseAssignments decodes a loosely typed participant list as returned by
// the document service. It accepts a bare array or an object carrying the
// array under "signerSteps", "assignments" or "participants". Field spellings
// and shapes vary between endpoints: user ids may be nested under "user",
// numbers may arrive as strings, and the permission may be a string, an
// object with a name, or a list of role names.
func ParseAssignments(data []byte) ([]Assignment, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	var items []json.RawMessage
	if data[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		var found bool
		for _, key := range []string{"signerSteps", "assignments", "participants"} {
			raw, ok := envelope[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(raw, &items); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
			}
			found = true
			break
		}
		if !found {
			return nil, fmt.Errorf("%w: no assignment list", ErrMalformed)
		}
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	out := make([]Assignment, 0, len(items))
	for i, raw := range items {
		a, err := parseAssignment(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMalformed, i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func parseAssignment(raw json.RawMessage) (Assignment, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Assignment{}, err
	}

	// A bare "id" names the user only on flat rows; next to a nested user
	// object it is the row's own id.
	var a Assignment
	var nested map[string]json.RawMessage
	if user, ok := fields["user"]; ok && !isNull(user) {
		if err := json.Unmarshal(user, &nested); err != nil {
			nested = nil
		}
	}
	a.UserID = firstString(fields, "userId", "user_id")
	if nested != nil {
		if a.UserID == "" {
			a.UserID = firstString(nested, "id", "userId", "_id")
		}
		a.Username = firstString(nested, "username", "name")
		a.Email = firstString(nested, "email")
	} else if a.UserID == "" {
		a.UserID = firstString(fields, "id")
	}
	if a.UserID == "" {
		return Assignment{}, errors.New("missing userId")
	}
	if v := firstString(fields, "username", "name"); v != "" {
		a.Username = v
	}
	if v := firstString(fields, "email"); v != "" {
		a.Email = v
	}

	step, err := looseInt(fields["step"])
	if err != nil {
		return Assignment{}, fmt.Errorf("step: %w", err)
	}
	a.Step = step
	if a.Parallel, err = looseBool(fields["parallel"]); err != nil {
		return Assignment{}, fmt.Errorf("parallel: %w", err)
	}
	if a.HasSigned, err = looseBool(fields["hasSigned"]); err != nil {
		return Assignment{}, fmt.Errorf("hasSigned: %w", err)
	}
	if a.SignedAt, err = looseTime(fields["signedAt"]); err != nil {
		return Assignment{}, fmt.Errorf("signedAt: %w", err)
	}

	perm, err := loosePermission(firstRaw(fields, "permission", "role", "roles"))
	if err != nil {
		return Assignment{}, fmt.Errorf("permission: %w", err)
	}
	a.Permission = perm
	if !a.Signs() {
		a.Step = 0
		a.Parallel = false
	}
	return a, nil
}

func firstRaw(fields map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := fields[k]; ok && !isNull(v) {
			return v
		}
	}
	return nil
}

func firstString(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

func looseInt(raw json.RawMessage) (int, error) {
	if isNull(raw) {
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return wholeNumber(n.String())
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("unsupported value %s", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return wholeNumber(s)
}

// wholeNumber accepts integers and integral floats such as "2.0" that fit
// in 32 bits.
func wholeNumber(s string) (int, error) {
	if i, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unsupported value %q", s)
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("not a whole number: %q", s)
	}
	return int(f), nil
}

func looseBool(raw json.RawMessage) (bool, error) {
	if isNull(raw) {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "", "false", "0", "no":
			return false, nil
		case "true", "1", "yes":
			return true, nil
		}
		return false, fmt.Errorf("unsupported value %q", s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String() != "0", nil
	}
	return false, fmt.Errorf("unsupported value %s", raw)
}

func looseTime(raw json.RawMessage) (*time.Time, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("unsupported value %s", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// loosePermission accepts "view_and_sign", {"name":"view"},
// {"permission":"sign"} or ["view","sign"]. A list grants signing when any
// entry does. A missing permission defaults to view_and_sign, the tier the
// signer-steps endpoint reports.
func loosePermission(raw json.RawMessage) (Permission, error) {
	if isNull(raw) {
		return PermissionViewAndSign, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		p, ok := ParsePermission(s)
		if !ok {
			return "", fmt.Errorf("unknown permission %q", s)
		}
		return p, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		name := firstString(obj, "name", "permission", "value", "role")
		p, ok := ParsePermission(name)
		if !ok {
			return "", fmt.Errorf("unknown permission %q", name)
		}
		return p, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		best := Permission("")
		for _, item := range list {
			p, err := loosePermission(item)
			if err != nil {
				return "", err
			}
			if p == PermissionViewAndSign || best == "" {
				best = p
			}
		}
		if best == "" {
			return "", errors.New("empty permission list")
		}
		return best, nil
	}
	return "", fmt.Errorf("unsupported value %s", raw)
}
