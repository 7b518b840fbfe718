package proto

import (
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/proglyk/ser2mms-gw/internal/serialport"
)

// errAddressMismatch and errBadCRC are frame-validation failures:
// drop silently, do not reply (spec §7.2).
var (
	errAddressMismatch = errors.New("proto: address mismatch")
	errBadCRC          = errors.New("proto: bad crc")
)

type rxState int

const (
	rxInit rxState = iota
	rxIdle
	rxActive
)

type txState int

const (
	txInit txState = iota
	txIdle
	txActive
)

// TranspConfig parameterizes the RTU framing layer: the bus address
// this endpoint answers to, the CRC ordering, and line-turnaround
// timing (spec §4.5).
type TranspConfig struct {
	ID         byte
	CRC        CRCVariant
	DEWait     time.Duration // default 2ms
	RxCapacity int           // default 256
}

func (c TranspConfig) withDefaults() TranspConfig {
	if c.DEWait <= 0 {
		c.DEWait = 2 * time.Millisecond
	}
	if c.RxCapacity <= 0 {
		c.RxCapacity = 256
	}
	return c
}

// Transp owns the serial link, the RX/TX state machines, the
// CRC/address validation gate, and drives Ser to decode/encode
// frames. poll() is the single pump (spec §4.5.4).
type Transp struct {
	cfg  TranspConfig
	id   atomic.Uint32 // bus address; Gateway.SetID may run concurrently with the worker
	link serialport.Link
	ser  *Ser
	role Role

	rx      rxState
	rxBuf   []byte
	rxScratch []byte
	expectedSlaveTotal int
	expectedPollTotal  int

	tx    txState
	txBuf []byte
	txPos int

	outstanding bool

	Recv *Event
	Tick *Event

	drops uint64
	log   *zap.Logger
}

// SetLogger attaches a logger used for Warn-level frame-drop
// diagnostics. Nil disables logging.
func (t *Transp) SetLogger(l *zap.Logger) {
	t.log = l
}

// NewTransp constructs a Transp bound to link and ser. expectedSlave
// and expectedPoll are the total on-wire frame sizes (address + body +
// CRC) Transp uses to decide when a frame is complete.
func NewTransp(role Role, cfg TranspConfig, link serialport.Link, ser *Ser, threaded bool, expectedSlaveTotal, expectedPollTotal int) *Transp {
	cfg = cfg.withDefaults()
	t := &Transp{
		cfg:                cfg,
		link:               link,
		ser:                ser,
		role:               role,
		rx:                 rxInit,
		rxScratch:          make([]byte, 64),
		expectedSlaveTotal: expectedSlaveTotal,
		expectedPollTotal:  expectedPollTotal,
		Recv:               NewEvent(threaded),
		Tick:               NewEvent(threaded),
	}
	t.id.Store(uint32(cfg.ID))
	return t
}

// SetID updates the bus address this endpoint answers to.
func (t *Transp) SetID(id byte) {
	t.id.Store(uint32(id))
}

// Start moves the RX state machine from Init to Idle, enabling
// reception. Matches the Init→Idle transition of spec §4.5.1.
func (t *Transp) Start() {
	t.rx = rxIdle
	t.tx = txIdle
}

func (t *Transp) expectedTotal() int {
	if t.role == RoleSlave {
		return t.expectedSlaveTotal
	}
	return t.expectedPollTotal
}

// Poll is the single pump: drain RX, act on a completed frame, and in
// POLL role start the next request when a tick is pending and none is
// outstanding. It must return promptly even when there is no work
// (spec §4.5.4, P7).
func (t *Transp) Poll() error {
	if err := t.pumpRx(); err != nil {
		return err
	}

	if tag, ok := t.Recv.TryGet(); ok && tag == TagReceived {
		if err := t.handleCompleteFrame(); err != nil {
			t.drops++
			if t.log != nil {
				t.log.Warn("frame dropped", zap.Error(err))
			}
		}
	}

	if err := t.pumpTx(); err != nil {
		return err
	}

	if t.role == RolePoll && !t.outstanding {
		if tag, ok := t.Tick.TryGet(); ok && tag == TagSent {
			if err := t.beginRequest(); err != nil {
				t.drops++
			}
		}
	}

	return nil
}

// Drops reports how many frames were dropped for validation failures
// since construction (the optional counter spec §7 allows).
func (t *Transp) Drops() uint64 { return t.drops }

func (t *Transp) pumpRx() error {
	n, err := t.link.RxDrain(t.rxScratch)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	if t.rx == rxIdle {
		t.rxBuf = t.rxBuf[:0]
		t.rx = rxActive
	}

	want := t.expectedTotal()
	for _, b := range t.rxScratch[:n] {
		if len(t.rxBuf) >= t.cfg.RxCapacity {
			// Overflow: drop the partial frame and recover on the next one.
			t.rxBuf = t.rxBuf[:0]
			t.rx = rxIdle
			continue
		}
		t.rxBuf = append(t.rxBuf, b)
	}

	if t.rx == rxActive && len(t.rxBuf) >= want {
		t.rx = rxIdle
		t.Recv.Post(TagReceived)
	}
	return nil
}

// handleCompleteFrame runs the validation pipeline of spec §4.5.3 and,
// on success in SLAVE role, immediately enqueues a reply.
func (t *Transp) handleCompleteFrame() error {
	frame := t.rxBuf
	if len(frame) < 3 {
		return ErrSizeMismatch
	}
	if frame[0] != byte(t.id.Load()) {
		return errAddressMismatch
	}
	if !VerifyCRC(frame, t.cfg.CRC) {
		return errBadCRC
	}

	body := frame[1 : len(frame)-2]

	if err := t.ser.Decode(body); err != nil {
		return err
	}

	if t.role == RoleSlave {
		reply, err := t.ser.EncodeReply()
		if err != nil {
			return err
		}
		return t.sendFrame(reply)
	}

	t.outstanding = false
	return nil
}

func (t *Transp) beginRequest() error {
	body, err := t.ser.EncodeRequest()
	if err != nil {
		return err
	}
	t.outstanding = true
	return t.sendFrame(body)
}

// sendFrame appends the address and CRC, raises DE, and arms the TX
// state machine to drain it (spec §4.5.1/§4.5.2).
func (t *Transp) sendFrame(body []byte) error {
	frame := make([]byte, 0, 1+len(body)+2)
	frame = append(frame, byte(t.id.Load()))
	frame = append(frame, body...)
	frame = AppendCRC(frame, t.cfg.CRC)

	t.txBuf = frame
	t.txPos = 0
	t.tx = txActive
	return t.link.SetDE(true)
}

// pumpTx drains one byte of the pending TX frame per call, matching
// the original's interrupt-driven one-byte-per-entry transmitter.
// When the buffer is fully drained it waits DEWait and drives DE low.
func (t *Transp) pumpTx() error {
	if t.tx != txActive {
		return nil
	}
	if t.txPos < len(t.txBuf) {
		n, err := t.link.TxWrite(t.txBuf[t.txPos : t.txPos+1])
		if err != nil {
			// Port write incomplete: fatal for this frame only (spec §7.4).
			t.tx = txIdle
			t.link.SetDE(false)
			return err
		}
		t.txPos += n
	}
	if t.txPos >= len(t.txBuf) {
		time.Sleep(t.cfg.DEWait)
		if err := t.link.SetDE(false); err != nil {
			return err
		}
		t.tx = txIdle
	}
	return nil
}
