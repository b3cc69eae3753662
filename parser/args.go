package parser

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
)

type placeholder struct {
	Placeholder bool `json:"_placeholder"`
	Num         int  `json:"num"`
}

// Marshal renders args as a JSON array. []byte and Buffer values found at the
// top level or inside slices and maps are replaced by placeholders and
// returned as attachments.
func Marshal(args ...interface{}) (json.RawMessage, [][]byte, error) {
	var attachments [][]byte
	items := make([]interface{}, len(args))
	for i, arg := range args {
		items[i] = detach(reflect.ValueOf(arg), &attachments)
	}

	data, err := json.Marshal(items)
	if err != nil {
		return nil, nil, err
	}
	return data, attachments, nil
}

func detach(v reflect.Value, attachments *[][]byte) interface{} {
	if !v.IsValid() {
		return nil
	}

	switch b := v.Interface().(type) {
	case []byte:
		return attach(b, attachments)
	case Buffer:
		return attach(b.Data, attachments)
	case *Buffer:
		if b == nil {
			return nil
		}
		return attach(b.Data, attachments)
	case json.Marshaler:
		return b
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Interface {
			return detach(v.Elem(), attachments)
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		ret := make([]interface{}, v.Len())
		for i := range ret {
			ret[i] = detach(v.Index(i), attachments)
		}
		return ret
	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String {
			break
		}
		ret := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			ret[iter.Key().String()] = detach(iter.Value(), attachments)
		}
		return ret
	}

	return v.Interface()
}

func attach(data []byte, attachments *[][]byte) placeholder {
	*attachments = append(*attachments, data)
	return placeholder{Placeholder: true, Num: len(*attachments) - 1}
}

func placeholderNum(m map[string]interface{}) (int, bool) {
	if flag, _ := m["_placeholder"].(bool); !flag {
		return 0, false
	}
	switch num := m["num"].(type) {
	case float64:
		if num == float64(int(num)) {
			return int(num), true
		}
	case json.Number:
		if n, err := num.Int64(); err == nil {
			return int(n), true
		}
	}
	return -1, true
}

// Placeholder returns the attachment index raw refers to.
func Placeholder(raw json.RawMessage) (int, bool) {
	if firstByte(raw) != '{' {
		return 0, false
	}
	var p placeholder
	if err := json.Unmarshal(raw, &p); err != nil || !p.Placeholder {
		return 0, false
	}
	return p.Num, true
}

// Split returns the elements of a JSON array payload.
func Split(data json.RawMessage) ([]json.RawMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}
	return items, nil
}

// EventName returns the first element of an event payload.
func EventName(data json.RawMessage) (string, error) {
	items, err := Split(data)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", ErrNoEventName
	}
	var name string
	if err := json.Unmarshal(items[0], &name); err != nil {
		return "", ErrNoEventName
	}
	return name, nil
}

// Hydrate replaces the placeholders in raw with base64 strings of the
// attachments they refer to.
func Hydrate(raw json.RawMessage, attachments [][]byte) (json.RawMessage, error) {
	if len(attachments) == 0 || !bytes.Contains(raw, []byte("_placeholder")) {
		return raw, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var root interface{}
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, err)
	}

	var err error
	var walk func(v interface{}) interface{}
	walk = func(v interface{}) interface{} {
		switch v := v.(type) {
		case []interface{}:
			for i := range v {
				v[i] = walk(v[i])
			}
		case map[string]interface{}:
			if n, ok := placeholderNum(v); ok {
				if n < 0 || n >= len(attachments) {
					err = fmt.Errorf("%w: placeholder %d of %d", ErrAttachmentMismatch, n, len(attachments))
					return nil
				}
				return base64.StdEncoding.EncodeToString(attachments[n])
			}
			for k := range v {
				v[k] = walk(v[k])
			}
		}
		return v
	}
	root = walk(root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(root)
}

// Unmarshal decodes one payload element into v. A placeholder element
// decodes into *[]byte, *Buffer or *interface{} as the attachment itself;
// placeholders nested deeper arrive as base64 strings.
func Unmarshal(raw json.RawMessage, attachments [][]byte, v interface{}) error {
	if n, ok := Placeholder(raw); ok {
		if n < 0 || n >= len(attachments) {
			return fmt.Errorf("%w: placeholder %d of %d", ErrAttachmentMismatch, n, len(attachments))
		}
		switch ptr := v.(type) {
		case *[]byte:
			*ptr = attachments[n]
			return nil
		case *Buffer:
			ptr.Data = attachments[n]
			return nil
		case *interface{}:
			*ptr = attachments[n]
			return nil
		}
	}

	hydrated, err := Hydrate(raw, attachments)
	if err != nil {
		return err
	}
	return json.Unmarshal(hydrated, v)
}

// UnmarshalArgs decodes items into fresh values of types. Missing items leave
// zero values.
func UnmarshalArgs(items []json.RawMessage, attachments [][]byte, types []reflect.Type) ([]reflect.Value, error) {
	ret := make([]reflect.Value, len(types))
	for i, typ := range types {
		ptr := reflect.New(typ)
		if i < len(items) {
			if err := Unmarshal(items[i], attachments, ptr.Interface()); err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
		}
		ret[i] = ptr.Elem()
	}
	return ret, nil
}
