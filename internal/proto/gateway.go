package proto

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/proglyk/ser2mms-gw/internal/serialport"
)

// GatewayConfig is the construction-time configuration for a
// Gateway: role, bus address, CRC ordering, schedule shape, and the
// scheduling model (spec §4.6/§5).
type GatewayConfig struct {
	Role     Role
	ID       byte
	CRC      CRCVariant
	Ser      SerConfig
	DEWait   time.Duration
	Threaded bool
}

// Gateway is the thin, stateful facade spec §4.6 describes: it wires
// Transp and Ser, owns an optional worker goroutine, and exposes the
// small lifecycle/setter surface callers need. Construction order is
// codec config → Ser → Transp, strictly, and destruction reverses it;
// a failure partway through rolls back whatever was already opened.
type Gateway struct {
	cfg  GatewayConfig
	ser  *Ser
	tr   *Transp
	link serialport.Link

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Gateway over link using api as the payload
// callback table. If Transp construction fails after Ser has been
// built, no cleanup is needed since Ser owns no external resource;
// if link itself fails to open that is the caller's responsibility
// (link is handed in already open, matching "contract only" port
// design, spec §6.3).
func New(cfg GatewayConfig, api PayloadApi, link serialport.Link, log *zap.Logger) (*Gateway, error) {
	ser := NewSer(cfg.Role, cfg.Ser, api)

	slaveTotal := 1 + expectedSlaveBodyLen(cfg.Ser) + 2
	pollTotal := 1 + (2 + cfg.Ser.AnswLenMax*2) + 2

	tcfg := TranspConfig{
		ID:     cfg.ID,
		CRC:    cfg.CRC,
		DEWait: cfg.DEWait,
	}
	tr := NewTransp(cfg.Role, tcfg, link, ser, cfg.Threaded, slaveTotal, pollTotal)
	if log != nil {
		tr.SetLogger(log)
	}

	g := &Gateway{cfg: cfg, ser: ser, tr: tr, link: link}
	return g, nil
}

// Run enables reception and, in threaded mode, starts the worker
// goroutine that calls Poll in a loop until ctx is cancelled or
// Destroy is called. In cooperative mode Run only enables RX; the
// caller must invoke Poll itself.
func (g *Gateway) Run(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return fmt.Errorf("proto: gateway already running")
	}
	g.running = true
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.mu.Unlock()

	g.tr.Start()

	if !g.cfg.Threaded {
		return nil
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			default:
			}
			if err := g.tr.Poll(); err != nil {
				// Frame-level errors are non-fatal to the worker; the
				// master is expected to re-poll (spec §7).
				continue
			}
		}
	}()
	return nil
}

// Poll runs one pump iteration; used by the cooperative scheduling
// model's host loop. Safe to call at any rate.
func (g *Gateway) Poll() error {
	return g.tr.Poll()
}

// Destroy stops the worker (if any) and joins it. The Gateway must
// not be used afterward.
func (g *Gateway) Destroy() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.running = false
	cancel := g.cancel
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	g.wg.Wait()
	g.link.Close()
}

// SetCmd sets the command word used for the POLL role's next
// outgoing request.
func (g *Gateway) SetCmd(cmd Cmd) {
	g.ser.SetCmd(cmd)
}

// SetID updates this endpoint's bus address.
func (g *Gateway) SetID(id byte) {
	g.tr.SetID(id)
}

// TestTick externally drives one transmit event, the signal-handler
// entry point the original exposed for forcing a schedule advance
// outside the normal tick source.
func (g *Gateway) TestTick() {
	g.tr.Tick.Post(TagSent)
}

// Drops reports dropped-frame count for diagnostics.
func (g *Gateway) Drops() uint64 {
	return g.tr.Drops()
}

// Cursor reports the current (ds,page) schedule position.
func (g *Gateway) Cursor() (ds, page int) {
	return g.ser.Cursor()
}
