package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/room4-2/interactive-avatar/messages"
	"github.com/room4-2/interactive-avatar/metrics"
)

var errNoMicrophone = errors.New("no microphone available")

const micShutdownTimeout = 2 * time.Second

// View renders client state. Calls come from the event loop goroutine.
type View interface {
	SetStatus(text string, connected bool)
	SetSession(id string)
	AppendMessage(role Role, text string)
	ShowLoading(text string)
	HideLoading()
	// ShowVideo plays url and clears any error
	ShowVideo(url string)
	// ShowError shows text and clears any video
	ShowError(text string)
	SetRecording(on bool)
}

// Microphone is a scoped capture device
type Microphone interface {
	Start() error
	// Stop releases the device and returns the recording
	Stop() ([]byte, error)
}

// Options configures a Controller
type Options struct {
	URL    string
	Policy Policy
	Now    func() time.Time
}

// envelope tags events from a connection with its generation so frames
// from a replaced connection are dropped
type envelope struct {
	gen   uint64
	conn  Conn
	event Event
}

// Controller runs the state machine on a single goroutine
type Controller struct {
	opts      Options
	transport Transport
	view      View
	mic       Microphone
	logger    zerolog.Logger

	events chan envelope
	done   chan struct{}

	// owned by the loop goroutine
	conn    Conn
	gen     uint64
	timer   *time.Timer
	micDone chan struct{} // closed when the last queued mic operation finishes

	// owned by whichever mic operation is running; operations never overlap
	micOpen bool

	mu   sync.RWMutex
	snap Snapshot
}

// NewController wires a controller. mic may be nil when recording is not
// available.
func NewController(opts Options, transport Transport, view View, mic Microphone, logger zerolog.Logger) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		opts:      opts,
		transport: transport,
		view:      view,
		mic:       mic,
		logger:    logger.With().Str("component", "client").Logger(),
		events:    make(chan envelope, 64),
		done:      make(chan struct{}),
		snap:      NewSnapshot(opts.Policy),
	}
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Connect requests a connection attempt
func (c *Controller) Connect() { c.post(envelope{event: Connect{At: c.opts.Now()}}) }

// StartRecording acquires the microphone
func (c *Controller) StartRecording() { c.post(envelope{event: RecordStart{At: c.opts.Now()}}) }

// StopRecording releases the microphone and sends what was captured
func (c *Controller) StopRecording() { c.post(envelope{event: RecordStop{At: c.opts.Now()}}) }

// SendAudio sends a recorded clip as one binary frame
func (c *Controller) SendAudio(data []byte) {
	c.post(envelope{event: AudioCaptured{At: c.opts.Now(), Data: data}})
}

// SendText sends typed input. Blank text is dropped.
func (c *Controller) SendText(text string) {
	c.post(envelope{event: TextSubmitted{At: c.opts.Now(), Text: text}})
}

// HandleMessage feeds one raw server frame into the state machine.
// Malformed frames are ignored.
func (c *Controller) HandleMessage(data []byte) {
	c.deliver(0, data)
}

func (c *Controller) deliver(gen uint64, data []byte) {
	msg, err := messages.DecodeServerMessage(data)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Ignoring malformed server frame")
		return
	}
	c.post(envelope{gen: gen, event: ServerEvent{At: c.opts.Now(), Message: msg}})
}

func (c *Controller) post(env envelope) {
	select {
	case c.events <- env:
	case <-c.done:
		if env.conn != nil {
			env.conn.Close()
		}
	}
}

// Run connects and processes events until ctx is cancelled
func (c *Controller) Run(ctx context.Context) error {
	defer c.shutdown()

	c.step(ctx, envelope{event: Connect{At: c.opts.Now()}})
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-c.events:
			c.step(ctx, env)
		}
	}
}

func (c *Controller) step(ctx context.Context, env envelope) {
	if env.gen != 0 && env.gen != c.gen {
		if env.conn != nil {
			env.conn.Close()
		}
		return
	}
	if env.conn != nil {
		c.conn = env.conn
	}

	c.mu.Lock()
	prev := c.snap.State
	next, effects := Transition(c.snap, env.event)
	c.snap = next
	c.mu.Unlock()

	if next.State != prev {
		c.logger.Debug().Stringer("from", prev).Stringer("to", next.State).Msg("State change")
	}
	if _, ok := env.event.(Closed); ok {
		c.dropConn()
	}

	for _, effect := range effects {
		c.apply(ctx, effect)
	}
}

func (c *Controller) apply(ctx context.Context, effect Effect) {
	switch e := effect.(type) {
	case Dial:
		c.dial(ctx)
	case ScheduleReconnect:
		metrics.Reconnects.Inc()
		c.logger.Info().Dur("delay", e.Delay).Msg("🔄 Reconnecting")
		if c.timer != nil {
			c.timer.Stop()
		}
		c.timer = time.AfterFunc(e.Delay, c.Connect)
	case SendBinary:
		c.write(func(conn Conn) error { return conn.WriteBinary(e.Data) })
	case SendJSON:
		c.write(func(conn Conn) error { return conn.WriteJSON(e.Message) })
	case AcquireMic:
		c.acquireMic()
	case ReleaseMic:
		c.releaseMic(e.Keep)
	case SetStatus:
		c.view.SetStatus(e.Text, e.Connected)
	case SetSession:
		c.view.SetSession(e.ID)
	case AppendMessage:
		c.view.AppendMessage(e.Role, e.Text)
	case SystemMessage:
		c.view.AppendMessage(RoleSystem, e.Text)
	case ShowLoading:
		c.view.ShowLoading(e.Text)
	case HideLoading:
		c.view.HideLoading()
	case ShowVideo:
		c.view.ShowVideo(e.URL)
	case ShowError:
		c.view.ShowError(e.Text)
	case SetRecording:
		c.view.SetRecording(e.On)
	}
}

func (c *Controller) dial(ctx context.Context) {
	c.gen++
	gen := c.gen
	url := c.opts.URL

	go func() {
		conn, err := c.transport.Dial(ctx, url)
		if err != nil {
			c.logger.Warn().Err(err).Msg("❌ Connection failed")
			c.post(envelope{gen: gen, event: Closed{At: c.opts.Now(), Err: err}})
			return
		}
		c.logger.Info().Str("url", url).Msg("✅ Connected")
		c.post(envelope{gen: gen, conn: conn, event: Opened{At: c.opts.Now()}})
		c.readLoop(gen, conn)
	}()
}

func (c *Controller) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.post(envelope{gen: gen, event: Closed{At: c.opts.Now(), Err: err}})
			return
		}
		c.deliver(gen, data)
	}
}

// write sends on the current connection. A failed write is treated as a
// dropped connection.
func (c *Controller) write(send func(Conn) error) {
	if c.conn == nil {
		c.logger.Warn().Msg("Dropping frame, no connection")
		return
	}
	if err := send(c.conn); err != nil {
		c.logger.Warn().Err(err).Msg("Write failed")
		env := envelope{gen: c.gen, event: Closed{At: c.opts.Now(), Err: err}}
		go c.post(env)
	}
}

func (c *Controller) dropConn() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	// Invalidate anything still in flight from the old connection
	c.gen++
}

// micOp queues fn behind every earlier mic operation, so a Stop never
// overtakes the Start it belongs to.
func (c *Controller) micOp(fn func()) chan struct{} {
	prev := c.micDone
	done := make(chan struct{})
	c.micDone = done
	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		fn()
	}()
	return done
}

func (c *Controller) acquireMic() {
	if c.mic == nil {
		go c.post(envelope{event: MicFailed{At: c.opts.Now(), Err: errNoMicrophone}})
		return
	}
	c.micOp(func() {
		if err := c.mic.Start(); err != nil {
			c.post(envelope{event: MicFailed{At: c.opts.Now(), Err: err}})
			return
		}
		c.micOpen = true
	})
}

func (c *Controller) releaseMic(keep bool) {
	if c.mic == nil {
		return
	}
	c.micOp(func() {
		// Start already reported its failure
		if !c.micOpen {
			return
		}
		c.micOpen = false
		data, err := c.mic.Stop()
		if err != nil {
			c.post(envelope{event: MicFailed{At: c.opts.Now(), Err: err}})
			return
		}
		if keep {
			c.post(envelope{event: AudioCaptured{At: c.opts.Now(), Data: data}})
		}
	})
}

func (c *Controller) shutdown() {
	close(c.done)
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.mic == nil {
		return
	}
	// Release a device that is still open, after any queued operation
	done := c.micOp(func() {
		if c.micOpen {
			c.micOpen = false
			_, _ = c.mic.Stop()
		}
	})
	select {
	case <-done:
	case <-time.After(micShutdownTimeout):
		c.logger.Warn().Msg("Timed out releasing microphone")
	}
}
