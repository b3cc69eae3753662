package socketio

import (
	"fmt"
	"reflect"
)

var (
	connType  = reflect.TypeOf((*Conn)(nil)).Elem()
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// funcHandler calls a user function with decoded arguments. Event handlers
// may take a Conn first; ack callbacks may take an error first, which gets
// the reason the ack failed.
type funcHandler struct {
	f        reflect.Value
	argTypes []reflect.Type

	withConn  bool
	withError bool
}

func newEventFunc(f interface{}) (*funcHandler, error) {
	return newFunc(f, connType)
}

func newAckFunc(f interface{}) (*funcHandler, error) {
	return newFunc(f, errorType)
}

func newFunc(f interface{}, lead reflect.Type) (*funcHandler, error) {
	fv := reflect.ValueOf(f)
	if fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("handler should be a func, got %T", f)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, fmt.Errorf("handler %s should not be variadic", ft)
	}

	h := &funcHandler{f: fv}
	start := 0
	if ft.NumIn() > 0 && ft.In(0) == lead {
		start = 1
		h.withConn = lead == connType
		h.withError = lead == errorType
	}
	h.argTypes = make([]reflect.Type, 0, ft.NumIn()-start)
	for i := start; i < ft.NumIn(); i++ {
		h.argTypes = append(h.argTypes, ft.In(i))
	}
	return h, nil
}

// Call calls the handler. A trailing non-nil error result is returned as
// err and a panic is turned into an error.
func (h *funcHandler) Call(c Conn, cause error, args []reflect.Value) (ret []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			ret = nil
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	in := make([]reflect.Value, 0, len(args)+1)
	switch {
	case h.withConn:
		if c == nil {
			in = append(in, reflect.Zero(connType))
		} else {
			in = append(in, reflect.ValueOf(c))
		}
	case h.withError:
		if cause == nil {
			in = append(in, reflect.Zero(errorType))
		} else {
			in = append(in, reflect.ValueOf(cause))
		}
	}
	in = append(in, args...)

	ret = h.f.Call(in)
	if len(ret) == 0 {
		return nil, nil
	}

	last := ret[len(ret)-1]
	if last.Type() == errorType {
		ret = ret[:len(ret)-1]
		if !last.IsNil() {
			return ret, last.Interface().(error)
		}
	}
	return ret, nil
}

func valuesToInterfaces(values []reflect.Value) []interface{} {
	ret := make([]interface{}, len(values))
	for i, v := range values {
		ret[i] = v.Interface()
	}
	return ret
}
