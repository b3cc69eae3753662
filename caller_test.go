package socketio

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventFunc(t *testing.T) {
	tests := []struct {
		name string
		f    interface{}
		args []reflect.Value

		withConn bool
		ret      []interface{}
		err      string
	}{
		{"NoArgs", func() {}, nil, false, []interface{}{}, ""},
		{"Conn", func(c Conn, s string) string { return c.ID() + s }, []reflect.Value{reflect.ValueOf("!")}, true, []interface{}{"id!"}, ""},
		{"Values", func(a int, b string) (int, string) { return a + 1, b + b }, []reflect.Value{reflect.ValueOf(1), reflect.ValueOf("x")}, false, []interface{}{2, "xx"}, ""},
		{"NilError", func(a int) (int, error) { return a, nil }, []reflect.Value{reflect.ValueOf(3)}, false, []interface{}{3}, ""},
		{"Error", func() (int, error) { return 0, errors.New("failed") }, nil, false, nil, "failed"},
		{"Panic", func() { panic("boom") }, nil, false, nil, "handler panic: boom"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			should := assert.New(t)
			must := require.New(t)

			h, err := newEventFunc(test.f)
			must.NoError(err)
			should.Equal(test.withConn, h.withConn)

			ret, err := h.Call(&socket{id: "id"}, nil, test.args)
			if test.err != "" {
				must.EqualError(err, test.err)
				return
			}
			must.NoError(err)
			if len(test.ret) == 0 {
				should.Empty(ret)
				return
			}
			should.Equal(test.ret, valuesToInterfaces(ret))
		})
	}
}

func TestAckFunc(t *testing.T) {
	should := assert.New(t)
	must := require.New(t)

	var gotErr error
	var gotArg string
	h, err := newAckFunc(func(err error, s string) {
		gotErr, gotArg = err, s
	})
	must.NoError(err)
	should.True(h.withError)
	should.Equal([]reflect.Type{reflect.TypeOf("")}, h.argTypes)

	_, err = h.Call(nil, errors.New("timeout"), []reflect.Value{reflect.ValueOf("")})
	must.NoError(err)
	should.EqualError(gotErr, "timeout")

	_, err = h.Call(nil, nil, []reflect.Value{reflect.ValueOf("ok")})
	must.NoError(err)
	should.NoError(gotErr)
	should.Equal("ok", gotArg)

	_, err = newAckFunc("not a func")
	should.Error(err)
	_, err = newEventFunc(func(...int) {})
	should.Error(err)
}
