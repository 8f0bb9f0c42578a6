package replication

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/keel-engine/keel/internal/core/hash"
	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/serialize"
	"github.com/keel-engine/keel/internal/core/variant"
)

// TypeClient identifies the replication client subsystem.
var TypeClient = object.NewTypeInfo("ReplicationClient", nil)

// frameQueueSize bounds received frames awaiting Pump. The reader
// blocks when it fills, pushing backpressure into the transport.
const frameQueueSize = 256

// Client mirrors server objects into a local context. A reader
// goroutine queues incoming frames; Pump, called once per frame on the
// main goroutine, applies them to local instances created through the
// context's registered factories.
type Client struct {
	object.BaseObject

	transport Transport
	conn      Conn

	frames chan []byte
	lost   chan struct{}

	objects map[uint32]Replicated

	runCtx  context.Context
	runStop context.CancelFunc
	group   errgroup.Group

	mu        sync.Mutex
	connected bool
	closed    bool

	lostReported bool
}

// NewClient creates a replication client over the given transport.
func NewClient(ctx *object.Context, transport Transport) *Client {
	c := &Client{
		transport: transport,
		frames:    make(chan []byte, frameQueueSize),
		lost:      make(chan struct{}),
		objects:   make(map[uint32]Replicated),
	}
	c.Init(ctx, TypeClient, c)
	c.runCtx, c.runStop = context.WithCancel(context.Background())
	return c
}

// Connect dials the server and performs the hello handshake. The
// context governs the dial.
func (c *Client) Connect(ctx context.Context, addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.connected {
		return ErrAlreadyRunning
	}
	conn, err := c.transport.Dial(ctx, addr)
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, EncodeFrame(MsgHello, 0, []byte{protocolVersion})); err != nil {
		_ = conn.Close()
		return err
	}
	c.conn = conn
	c.connected = true
	c.group.Go(c.readLoop)
	c.log().Info("replication: connected", log.String("addr", addr))
	return nil
}

// Pump applies queued frames and returns how many were processed. Main
// goroutine only.
func (c *Client) Pump() int {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0
	}
	processed := 0
	for {
		select {
		case frame := <-c.frames:
			c.apply(frame)
			processed++
		default:
			c.checkLost()
			return processed
		}
	}
}

// Connected reports whether the connection is up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Object returns the mirrored instance for a network id, or nil.
func (c *Client) Object(netID uint32) Replicated {
	return c.objects[netID]
}

// ObjectCount reports how many mirrored instances exist.
func (c *Client) ObjectCount() int { return len(c.objects) }

// Each calls fn for every mirrored instance. Main goroutine only; fn
// must not create or remove mirrored objects.
func (c *Client) Each(fn func(netID uint32, obj Replicated)) {
	for id, obj := range c.objects {
		fn(id, obj)
	}
}

// Close drops the connection and releases every mirrored object.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	c.runStop()
	if conn != nil {
		_ = conn.Close()
	}
	err := c.group.Wait()

	for id, obj := range c.objects {
		delete(c.objects, id)
		obj.ReleaseRef()
	}
	return err
}

func (c *Client) readLoop() error {
	for {
		frame, err := c.conn.Receive(c.runCtx)
		if err != nil {
			if c.runCtx.Err() == nil {
				close(c.lost)
			}
			return nil
		}
		select {
		case c.frames <- frame:
		case <-c.runCtx.Done():
			return nil
		}
	}
}

// checkLost reports a dropped connection exactly once, after the frame
// queue has drained.
func (c *Client) checkLost() {
	if c.lostReported {
		return
	}
	select {
	case <-c.lost:
	default:
		return
	}
	c.lostReported = true
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.log().Warn("replication: connection lost")
	c.SendEvent(EventConnectionLost, nil)
}

func (c *Client) apply(frame []byte) {
	t, netID, payload, err := DecodeFrame(frame)
	if err != nil {
		c.log().Warn("replication: dropping malformed frame", log.Error(err))
		return
	}
	switch t {
	case MsgObjectCreate:
		c.applyCreate(netID, payload)
	case MsgObjectDelta:
		c.applyDelta(netID, payload, false)
	case MsgObjectLatest:
		c.applyDelta(netID, payload, true)
	case MsgObjectRemove:
		c.applyRemove(netID)
	default:
		c.log().Warn("replication: unexpected message", log.Int("type", int(t)))
	}
}

func (c *Client) applyCreate(netID uint32, payload []byte) {
	if len(payload) < 4 {
		c.log().Warn("replication: create frame too short", log.Uint32("net_id", netID))
		return
	}
	typeHash := hash.StringHash(binary.LittleEndian.Uint32(payload[:4]))
	if existing, ok := c.objects[netID]; ok {
		// A duplicate create resets the instance in place.
		if existing.TypeInfo().Type() == typeHash {
			c.readUpdate(existing, netID, payload[4:], false)
			return
		}
		c.applyRemove(netID)
	}
	obj := c.Context().CreateObject(typeHash)
	if obj == nil {
		c.log().Warn("replication: no factory for replicated type",
			log.String("type", typeHash.String()), log.Uint32("net_id", netID))
		return
	}
	rep, ok := obj.(Replicated)
	if !ok {
		c.log().Warn("replication: created type is not replicable",
			log.String("type", obj.TypeInfo().Name()))
		obj.ReleaseRef()
		return
	}
	c.objects[netID] = rep
	c.readUpdate(rep, netID, payload[4:], false)

	data := c.Context().EventDataMap()
	data[ParamNetID] = variant.New(int64(netID))
	data[ParamObject] = variant.New(rep)
	c.SendEvent(EventNetObjectCreated, data)
}

func (c *Client) applyDelta(netID uint32, payload []byte, latest bool) {
	obj, ok := c.objects[netID]
	if !ok {
		c.log().Warn("replication: update for unknown object", log.Uint32("net_id", netID))
		return
	}
	c.readUpdate(obj, netID, payload, latest)
}

func (c *Client) readUpdate(obj Replicated, netID uint32, payload []byte, latest bool) {
	r := serialize.NewReader(bytes.NewReader(payload))
	var err error
	if latest {
		_, err = obj.ReadLatestDataUpdate(r)
	} else {
		_, err = obj.ReadDeltaUpdate(r)
	}
	if err != nil {
		c.log().Warn("replication: bad update payload", log.Uint32("net_id", netID), log.Error(err))
	}
}

func (c *Client) applyRemove(netID uint32) {
	obj, ok := c.objects[netID]
	if !ok {
		return
	}
	delete(c.objects, netID)

	data := c.Context().EventDataMap()
	data[ParamNetID] = variant.New(int64(netID))
	data[ParamObject] = variant.New(obj)
	c.SendEvent(EventNetObjectRemoved, data)
	obj.ReleaseRef()
}

func (c *Client) log() log.Log { return c.Context().Log() }
