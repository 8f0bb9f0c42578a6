package replication

import (
	"context"
	"encoding/binary"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/keel-engine/keel/internal/core/object"
	"github.com/keel-engine/keel/internal/core/observability/log"
	"github.com/keel-engine/keel/internal/core/serialize"
	"github.com/keel-engine/keel/internal/core/variant"
	"github.com/keel-engine/keel/pkg/concurrent"
)

// TypeServer identifies the replication server subsystem.
var TypeServer = object.NewTypeInfo("ReplicationServer", nil)

const (
	// sendQueueSize bounds per-session outgoing frames; slow clients
	// drop frames rather than stall the tick.
	sendQueueSize = 256
	// handshakeTimeout bounds how long a fresh connection may take to
	// present its hello.
	handshakeTimeout = 5 * time.Second
)

// session is one admitted client connection. The struct is owned by the
// main goroutine; the out channel feeds the session's writer goroutine.
type session struct {
	id   string
	conn Conn
	out  chan []byte
}

// Server broadcasts the network attributes of registered objects to
// every connected client. Start spawns the socket goroutines; all maps
// and all Object access stay on the main goroutine, which drives the
// server by calling Tick once per frame.
type Server struct {
	object.BaseObject

	transport Transport
	listener  Listener

	joins  chan *session
	leaves chan *session

	sessions map[string]*session
	objects  map[uint32]*netState
	byObject map[Replicated]uint32
	order    []*netState
	nextID   uint32

	runCtx  context.Context
	runStop context.CancelFunc
	group   errgroup.Group

	mu      sync.Mutex
	running bool
	closed  bool
}

// NewServer creates a replication server over the given transport.
func NewServer(ctx *object.Context, transport Transport) *Server {
	s := &Server{
		transport: transport,
		joins:     make(chan *session, 16),
		leaves:    make(chan *session, 16),
		sessions:  make(map[string]*session),
		objects:   make(map[uint32]*netState),
		byObject:  make(map[Replicated]uint32),
		nextID:    1,
	}
	s.Init(ctx, TypeServer, s)
	s.runCtx, s.runStop = context.WithCancel(context.Background())
	return s
}

// Start binds the listener and begins accepting connections. The
// context governs only the bind itself.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.running {
		return ErrAlreadyRunning
	}
	ln, err := s.transport.Listen(ctx, addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.running = true
	s.group.Go(s.acceptLoop)
	s.log().Info("replication: listening", log.String("addr", ln.Addr()))
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr()
}

// Register makes obj visible to clients and returns its network id.
// The object is retained until Unregister or Stop. Registering the same
// object twice returns the existing id.
func (s *Server) Register(obj Replicated) uint32 {
	if id, ok := s.byObject[obj]; ok {
		return id
	}
	id := s.nextID
	s.nextID++
	obj.AddRef()
	st := newNetState(obj, id)
	s.objects[id] = st
	s.byObject[obj] = id
	s.order = append(s.order, st)
	if len(s.sessions) > 0 {
		if frame, err := encodeCreate(st); err != nil {
			s.log().Warn("replication: create snapshot failed", log.Uint32("net_id", id), log.Error(err))
		} else {
			s.broadcast(frame)
		}
	}
	return id
}

// Unregister retires a replicated object, telling clients to drop it.
func (s *Server) Unregister(netID uint32) {
	st, ok := s.objects[netID]
	if !ok {
		return
	}
	delete(s.objects, netID)
	delete(s.byObject, st.obj)
	for i, o := range s.order {
		if o == st {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.broadcast(EncodeFrame(MsgObjectRemove, netID, nil))
	st.obj.ReleaseRef()
}

// Object returns the registered object for a network id, or nil.
func (s *Server) Object(netID uint32) Replicated {
	if st, ok := s.objects[netID]; ok {
		return st.obj
	}
	return nil
}

// SessionCount reports how many clients are admitted.
func (s *Server) SessionCount() int { return len(s.sessions) }

// Tick admits and drops connections, scans registered objects for
// changes and broadcasts the resulting updates. Main goroutine only.
func (s *Server) Tick() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}
	s.admitJoins()
	s.dropLeaves()
	if len(s.order) == 0 || len(s.sessions) == 0 {
		return
	}
	concurrent.ForEachLimit(s.order, runtime.NumCPU(), func(st *netState) {
		if err := st.encodeTick(); err != nil {
			s.log().Warn("replication: encode failed", log.Uint32("net_id", st.netID), log.Error(err))
		}
	})
	for _, st := range s.order {
		if st.pendingDelta != nil {
			s.broadcast(st.pendingDelta)
			st.pendingDelta = nil
		}
		if st.pendingLatest != nil {
			s.broadcast(st.pendingLatest)
			st.pendingLatest = nil
		}
	}
}

// Stop closes the listener and every session and waits for the socket
// goroutines to exit, releasing registered objects. The server cannot
// be restarted afterwards.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.running = false
	ln := s.listener
	s.mu.Unlock()

	s.runStop()
	if ln != nil {
		_ = ln.Close()
	}
	for _, sess := range s.sessions {
		_ = sess.conn.Close()
	}

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	for _, sess := range s.sessions {
		delete(s.sessions, sess.id)
	}
	for id, st := range s.objects {
		delete(s.objects, id)
		delete(s.byObject, st.obj)
		st.obj.ReleaseRef()
	}
	s.order = nil
	return err
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.listener.Accept(s.runCtx)
		if err != nil {
			if s.runCtx.Err() != nil {
				return nil
			}
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.log().Warn("replication: accept failed", log.Error(err))
			}
			return nil
		}
		c := conn
		s.group.Go(func() error { return s.handshake(c) })
	}
}

// handshake reads and validates the client hello, then hands the
// connection to Tick for admission.
func (s *Server) handshake(conn Conn) error {
	ctx, cancel := context.WithTimeout(s.runCtx, handshakeTimeout)
	defer cancel()
	frame, err := conn.Receive(ctx)
	if err != nil {
		_ = conn.Close()
		return nil
	}
	t, _, payload, err := DecodeFrame(frame)
	if err != nil || t != MsgHello || len(payload) < 1 {
		s.log().Warn("replication: bad hello", log.String("peer", conn.RemoteAddr()))
		_ = conn.Close()
		return nil
	}
	if payload[0] != protocolVersion {
		s.log().Warn("replication: protocol version mismatch",
			log.String("peer", conn.RemoteAddr()),
			log.Int("client_version", int(payload[0])),
			log.Int("server_version", protocolVersion))
		_ = conn.Close()
		return nil
	}
	sess := &session{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, sendQueueSize),
	}
	select {
	case s.joins <- sess:
	case <-s.runCtx.Done():
		_ = conn.Close()
	}
	return nil
}

func (s *Server) admitJoins() {
	for {
		select {
		case sess := <-s.joins:
			s.sessions[sess.id] = sess
			s.group.Go(func() error { return s.runWriter(sess) })
			s.group.Go(func() error { return s.runReader(sess) })
			s.log().Info("replication: client connected",
				log.String("session", sess.id), log.String("peer", sess.conn.RemoteAddr()))
			data := s.Context().EventDataMap()
			data[ParamSession] = variant.New(sess.id)
			data[ParamAddress] = variant.New(sess.conn.RemoteAddr())
			s.SendEvent(EventClientConnected, data)
			s.sendSnapshot(sess)
		default:
			return
		}
	}
}

func (s *Server) dropLeaves() {
	for {
		select {
		case sess := <-s.leaves:
			if _, ok := s.sessions[sess.id]; !ok {
				continue
			}
			delete(s.sessions, sess.id)
			_ = sess.conn.Close()
			s.log().Info("replication: client disconnected", log.String("session", sess.id))
			data := s.Context().EventDataMap()
			data[ParamSession] = variant.New(sess.id)
			data[ParamAddress] = variant.New(sess.conn.RemoteAddr())
			s.SendEvent(EventClientDisconnected, data)
		default:
			return
		}
	}
}

// sendSnapshot queues a create message for every registered object on
// one fresh session.
func (s *Server) sendSnapshot(sess *session) {
	for _, st := range s.order {
		frame, err := encodeCreate(st)
		if err != nil {
			s.log().Warn("replication: create snapshot failed", log.Uint32("net_id", st.netID), log.Error(err))
			continue
		}
		s.enqueue(sess, frame)
	}
}

func (s *Server) broadcast(frame []byte) {
	for _, sess := range s.sessions {
		s.enqueue(sess, frame)
	}
}

func (s *Server) enqueue(sess *session, frame []byte) {
	select {
	case sess.out <- frame:
	default:
		s.log().Warn("replication: send queue full, dropping frame", log.String("session", sess.id))
	}
}

func (s *Server) runWriter(sess *session) error {
	for {
		select {
		case <-s.runCtx.Done():
			return nil
		case frame := <-sess.out:
			if err := sess.conn.Send(s.runCtx, frame); err != nil {
				s.requestLeave(sess)
				return nil
			}
		}
	}
}

// runReader exists to notice disconnects; admitted clients have nothing
// to say after the handshake.
func (s *Server) runReader(sess *session) error {
	for {
		if _, err := sess.conn.Receive(s.runCtx); err != nil {
			s.requestLeave(sess)
			return nil
		}
	}
}

func (s *Server) requestLeave(sess *session) {
	select {
	case s.leaves <- sess:
	case <-s.runCtx.Done():
	}
}

func (s *Server) log() log.Log { return s.Context().Log() }

// encodeCreate builds the announcement frame for one object: its type
// hash followed by an initial delta against the class defaults.
func encodeCreate(st *netState) ([]byte, error) {
	buf := payloadPool.Get()
	buf.Reset()
	defer payloadPool.Put(buf)
	var typeHash [4]byte
	binary.LittleEndian.PutUint32(typeHash[:], st.obj.TypeInfo().Type().Value())
	buf.Write(typeHash[:])
	if err := st.obj.WriteInitialDeltaUpdate(serialize.NewWriter(buf)); err != nil {
		return nil, err
	}
	payload := make([]byte, buf.Len())
	copy(payload, buf.Bytes())
	return EncodeFrame(MsgObjectCreate, st.netID, payload), nil
}

// encodeTick prepares the session-independent frames for one tick.
// Safe to run concurrently across distinct states.
func (s *netState) encodeTick() error {
	s.pendingDelta, s.pendingLatest = nil, nil
	if bits, dirty := s.scanDirty(); dirty {
		payload, err := encodePayload(func(w *serialize.Writer) error {
			return s.obj.WriteDeltaUpdate(w, bits)
		})
		if err != nil {
			return err
		}
		s.pendingDelta = EncodeFrame(MsgObjectDelta, s.netID, payload)
	}
	if s.hasLatest {
		payload, err := encodePayload(func(w *serialize.Writer) error {
			return s.obj.WriteLatestDataUpdate(w)
		})
		if err != nil {
			return err
		}
		s.pendingLatest = EncodeFrame(MsgObjectLatest, s.netID, payload)
	}
	return nil
}

func encodePayload(fn func(w *serialize.Writer) error) ([]byte, error) {
	buf := payloadPool.Get()
	buf.Reset()
	defer payloadPool.Put(buf)
	if err := fn(serialize.NewWriter(buf)); err != nil {
		return nil, err
	}
	payload := make([]byte, buf.Len())
	copy(payload, buf.Bytes())
	return payload, nil
}
