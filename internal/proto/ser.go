package proto

import (
	"errors"
	"fmt"
)

// Role fixes which half of the protocol engine a Ser/Gateway plays.
type Role int

const (
	RoleSlave Role = iota
	RolePoll
)

// Cmd is the decoded command word. The wire carries it as two bytes;
// only the LSB is meaningful (spec §3).
type Cmd int

const (
	CmdParameters Cmd = iota
	CmdTimeSet
)

func cmdFromWord(word uint16) Cmd {
	if word&1 != 0 {
		return CmdTimeSet
	}
	return CmdParameters
}

// Errors returned by Decode/Encode. All are frame-validation failures
// per spec §7: the caller drops the frame and replies to nothing.
var (
	ErrSizeMismatch  = errors.New("proto: size mismatch")
	ErrBadSelector   = errors.New("proto: selector out of range")
	ErrAnswLenExceed = errors.New("proto: answer length exceeds buffer")
)

// SerConfig is the subset of GatewayConfig's schedule fields Ser
// needs. Defaults match spec §3/§6.1.
type SerConfig struct {
	Reduced    bool
	PageSize   int // default 3
	NumSubs    int // default 11
	AnswLenMax int // default 3
	DSMin      int // default 1
	DSMax      int // default 6
	PageMax    int // default 3
}

func (c SerConfig) withDefaults() SerConfig {
	if c.PageSize == 0 {
		c.PageSize = 3
	}
	if c.NumSubs == 0 {
		c.NumSubs = 11
	}
	if c.AnswLenMax == 0 {
		c.AnswLenMax = 3
	}
	if c.DSMin == 0 {
		c.DSMin = 1
	}
	if c.DSMax == 0 {
		c.DSMax = 6
	}
	if c.PageMax == 0 {
		c.PageMax = 3
	}
	return c
}

const subRecordSize = 2 + 4 + 2 // mag_i16 + t_epoch_u32 + t_msec_scaled_u16

// Ser is the PDU codec: it owns the (ds,page) schedule cursor and
// translates between wire bodies (address and CRC already stripped
// by Transp) and the PayloadApi callbacks.
type Ser struct {
	role Role
	cfg  SerConfig
	api  PayloadApi

	ds, page int

	cmdRcvd     Cmd
	cmdRcvdWord uint16
	cmdXmit     Cmd

	lastPage []int16
	lastSubs []Sub
}

// NewSer constructs a Ser for role, with cfg's zero fields replaced by
// spec defaults and any nil PayloadApi member replaced by a no-op.
// The cursor starts at (DSMax,PageMax) so the first Advance lands on
// (DSMin,0) (spec §3).
func NewSer(role Role, cfg SerConfig, api PayloadApi) *Ser {
	cfg = cfg.withDefaults()
	return &Ser{
		role: role,
		cfg:  cfg,
		api:  fillDefaults(api),
		ds:   cfg.DSMax,
		page: cfg.PageMax,
	}
}

// Cursor reports the current (ds,page) schedule position.
func (s *Ser) Cursor() (ds, page int) {
	return s.ds, s.page
}

// SetCmd sets the command word used for the next POLL-role outgoing
// request (Gateway.set_cmd, spec §4.6).
func (s *Ser) SetCmd(cmd Cmd) {
	s.cmdXmit = cmd
}

// advance mutates the schedule cursor exactly per spec §4.4.3. Apart
// from the exported Advance, it is called only at POLL-role frame
// emission, never on receive.
func (s *Ser) advance() {
	if s.page >= s.cfg.PageMax {
		s.page = 0
	} else {
		s.page++
	}
	if s.page == 0 {
		if s.ds >= s.cfg.DSMax {
			s.ds = s.cfg.DSMin
		} else {
			s.ds++
		}
	}
}

// Advance moves the schedule cursor one step outside the normal emit
// path and reports the new position. Gateway.TestTick does not call
// it; TestTick posts a transmit tick instead.
func (s *Ser) Advance() (ds, page int) {
	s.advance()
	return s.ds, s.page
}

func expectedSlaveBodyLen(cfg SerConfig) int {
	n := 2 + 1 + cfg.PageSize*2
	if !cfg.Reduced {
		n += cfg.NumSubs * subRecordSize
	}
	return n
}

// Decode parses an inbound body (address stripped, CRC already
// verified by Transp) and invokes the matching PayloadApi callbacks.
// It never builds a reply; callers use EncodeReply/EncodeRequest
// afterward as the role requires.
func (s *Ser) Decode(body []byte) error {
	if s.role == RoleSlave {
		return s.decodeSlaveRequest(body)
	}
	return s.decodePollReply(body)
}

func (s *Ser) decodeSlaveRequest(body []byte) error {
	want := expectedSlaveBodyLen(s.cfg)
	if len(body) != want {
		return fmt.Errorf("%w: got %d want %d", ErrSizeMismatch, len(body), want)
	}

	word := UnpackU16BE(body[0:2])
	selector := body[2]
	ds := int(selector >> 4)
	pg := int(selector & 0x0F)
	if ds < s.cfg.DSMin || ds > s.cfg.DSMax || pg < 0 || pg > s.cfg.PageMax {
		return ErrBadSelector
	}

	off := 3
	page := make([]int16, s.cfg.PageSize)
	for i := 0; i < s.cfg.PageSize; i++ {
		page[i] = UnpackI16BE(body[off : off+2])
		off += 2
	}

	var subs []Sub
	if !s.cfg.Reduced {
		subs = make([]Sub, s.cfg.NumSubs)
		for i := 0; i < s.cfg.NumSubs; i++ {
			subs[i] = Sub{
				Mag:         UnpackI16BE(body[off : off+2]),
				TEpoch:      UnpackU32BE(body[off+2 : off+6]),
				TMsecScaled: uint32(UnpackU16BE(body[off+6 : off+8])),
			}
			off += subRecordSize
		}
	}

	s.cmdRcvdWord = word
	s.cmdRcvd = cmdFromWord(word)
	s.lastPage = page
	s.lastSubs = subs

	s.api.ReadPage(page, ds, pg)
	if !s.cfg.Reduced {
		s.api.ReadSubs(subs)
	}
	return nil
}

// EncodeReply builds the slave's reply body for the command most
// recently decoded by Decode. Called only in SLAVE role, only after a
// successful Decode.
func (s *Ser) EncodeReply() ([]byte, error) {
	header := make([]byte, 2)
	PackU16BE(header, s.cmdRcvdWord)

	switch s.cmdRcvd {
	case CmdTimeSet:
		epoch, usec := s.api.GetTime()
		body := make([]byte, 2+4+2)
		copy(body, header)
		PackU32BE(body[2:6], epoch)
		PackU16BE(body[6:8], uint16(usec&0xFFFF))
		return body, nil
	default: // CmdParameters
		answ := s.api.WriteAnswer()
		if len(answ) > s.cfg.AnswLenMax {
			return nil, ErrAnswLenExceed
		}
		body := make([]byte, 2+len(answ)*2)
		copy(body, header)
		off := 2
		for _, v := range answ {
			PackI16BE(body[off:off+2], v)
			off += 2
		}
		return body, nil
	}
}

// EncodeRequest advances the schedule and builds the POLL role's next
// outbound request, in the same shape as a slave-inbound body.
func (s *Ser) EncodeRequest() ([]byte, error) {
	s.advance()

	header := make([]byte, 2)
	var word uint16
	if s.cmdXmit == CmdTimeSet {
		word = 1
	}
	PackU16BE(header, word)

	selector := byte(s.ds<<4) | byte(s.page&0x0F)

	// Callback results are truncated or zero-padded to PageSize values
	// and NumSubs records, so the body always has the slave-inbound length.
	page := make([]int16, s.cfg.PageSize)
	copy(page, s.api.WritePage(s.ds, s.page))

	var subs []Sub
	if !s.cfg.Reduced {
		subs = make([]Sub, s.cfg.NumSubs)
		copy(subs, s.api.WriteSubs())
	}

	body := make([]byte, 0, 3+len(page)*2+len(subs)*subRecordSize)
	body = append(body, header...)
	body = append(body, selector)
	for _, v := range page {
		b := make([]byte, 2)
		PackI16BE(b, v)
		body = append(body, b...)
	}
	for _, sub := range subs {
		b := make([]byte, subRecordSize)
		PackI16BE(b[0:2], sub.Mag)
		PackU32BE(b[2:6], sub.TEpoch)
		PackU16BE(b[6:8], uint16(sub.TMsecScaled))
		body = append(body, b...)
	}
	return body, nil
}

func (s *Ser) decodePollReply(body []byte) error {
	if len(body) < 2 {
		return fmt.Errorf("%w: got %d want >= 2", ErrSizeMismatch, len(body))
	}
	word := UnpackU16BE(body[0:2])
	cmd := cmdFromWord(word)

	switch cmd {
	case CmdTimeSet:
		want := 2 + 4 + 2
		if len(body) != want {
			return fmt.Errorf("%w: got %d want %d", ErrSizeMismatch, len(body), want)
		}
		epoch := UnpackU32BE(body[2:6])
		usec := uint32(UnpackU16BE(body[6:8]))
		s.api.ReadTime(epoch, usec)
	default: // CmdParameters
		want := 2 + s.cfg.AnswLenMax*2
		if len(body) != want {
			return fmt.Errorf("%w: got %d want %d", ErrSizeMismatch, len(body), want)
		}
		n := (len(body) - 2) / 2
		answ := make([]int16, n)
		off := 2
		for i := 0; i < n; i++ {
			answ[i] = UnpackI16BE(body[off : off+2])
			off += 2
		}
		s.api.ReadAnswer(answ)
	}
	return nil
}
