package socketio

import (
	"time"

	"github.com/ioduplex/go-socket.io/engineio"
)

// Options is options to create a server. Engine options go to the
// underlying engine.io server.
type Options struct {
	*engineio.Options

	// ConnectTimeout closes connections which join no namespace in time.
	ConnectTimeout time.Duration
	// AckTimeout is the default wait for acks.
	AckTimeout       time.Duration
	AckSweepInterval time.Duration
}

func (o *Options) engineOptions() *engineio.Options {
	if o == nil {
		return nil
	}
	return o.Options
}

func (o *Options) getConnectTimeout() time.Duration {
	if o != nil && o.ConnectTimeout != 0 {
		return o.ConnectTimeout
	}
	return 45 * time.Second
}

func (o *Options) getAckTimeout() time.Duration {
	if o != nil && o.AckTimeout != 0 {
		return o.AckTimeout
	}
	return 5 * time.Second
}

func (o *Options) getAckSweepInterval() time.Duration {
	if o != nil && o.AckSweepInterval != 0 {
		return o.AckSweepInterval
	}
	return 100 * time.Millisecond
}
