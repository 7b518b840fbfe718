package proto

// Sub is one subscription record: a magnitude and a timestamp split
// into epoch seconds and a scaled sub-second field (msec*1000, spec
// §9c). The wire field is 16 bits: the low 16 bits of TMsecScaled are
// sent and decoded unchanged, with no re-scaling.
type Sub struct {
	Mag         int16
	TEpoch      uint32
	TMsecScaled uint32
}

// PayloadApi is the capability record injected at Gateway construction
// in place of the original's opaque-handle + weak-callback pattern
// (spec §9). Every field defaults to a no-op via DefaultPayloadApi, so
// a Gateway can be built before the host has any attribute-store
// binding ready.
type PayloadApi struct {
	// ReadPage delivers a decoded page to the attribute store (slave
	// inbound, Parameters command).
	ReadPage func(page []int16, ds, pg int)
	// ReadSubs delivers decoded subscriptions (slave inbound, when not
	// reduced).
	ReadSubs func(subs []Sub)
	// WriteAnswer produces the slave's reply values for a Parameters
	// reply. The returned slice's length becomes answ_len; it must not
	// exceed AnswLenMax.
	WriteAnswer func() []int16
	// GetTime produces the timestamp for a TimeSet reply.
	GetTime func() (epoch uint32, usec uint32)
	// WritePage produces the poll side's outgoing page for (ds,page).
	WritePage func(ds, pg int) []int16
	// WriteSubs produces the poll side's outgoing subscriptions.
	WriteSubs func() []Sub
	// ReadAnswer delivers a decoded Parameters reply to the poll side.
	// Not named in the original callback table but required by §4.4.2's
	// "read-answer path" — the poll-receive mirror of WriteAnswer.
	ReadAnswer func(answ []int16)
	// ReadTime delivers a decoded TimeSet reply to the poll side, the
	// mirror of GetTime.
	ReadTime func(epoch, usec uint32)
}

// DefaultPayloadApi returns a PayloadApi where every callback is a
// weak no-op: reads are discarded, writes produce zeroed/empty
// buffers. Callers override only the members their role/build needs
// (spec §6.2).
func DefaultPayloadApi() PayloadApi {
	return PayloadApi{
		ReadPage:    func(page []int16, ds, pg int) {},
		ReadSubs:    func(subs []Sub) {},
		WriteAnswer: func() []int16 { return nil },
		GetTime:     func() (uint32, uint32) { return 0, 0 },
		WritePage:   func(ds, pg int) []int16 { return nil },
		WriteSubs:   func() []Sub { return nil },
		ReadAnswer:  func(answ []int16) {},
		ReadTime:    func(epoch, usec uint32) {},
	}
}

// fillDefaults replaces any nil member of api with its no-op default,
// so Ser never needs a nil check on the hot path.
func fillDefaults(api PayloadApi) PayloadApi {
	def := DefaultPayloadApi()
	if api.ReadPage == nil {
		api.ReadPage = def.ReadPage
	}
	if api.ReadSubs == nil {
		api.ReadSubs = def.ReadSubs
	}
	if api.WriteAnswer == nil {
		api.WriteAnswer = def.WriteAnswer
	}
	if api.GetTime == nil {
		api.GetTime = def.GetTime
	}
	if api.WritePage == nil {
		api.WritePage = def.WritePage
	}
	if api.WriteSubs == nil {
		api.WriteSubs = def.WriteSubs
	}
	if api.ReadAnswer == nil {
		api.ReadAnswer = def.ReadAnswer
	}
	if api.ReadTime == nil {
		api.ReadTime = def.ReadTime
	}
	return api
}
