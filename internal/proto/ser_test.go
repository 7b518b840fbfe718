package proto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSerConfig() SerConfig {
	return SerConfig{
		Reduced:    false,
		PageSize:   3,
		NumSubs:    11,
		AnswLenMax: 3,
		DSMin:      1,
		DSMax:      6,
		PageMax:    3,
	}
}

// TestSer_P1_RoundTrip: decoding what EncodeRequest produced recovers
// the same page values, ds, and page the poll side wrote.
func TestSer_P1_RoundTrip(t *testing.T) {
	cfg := newTestSerConfig()

	var gotPage []int16
	var gotDS, gotPg int
	var gotSubs []Sub

	pollAPI := DefaultPayloadApi()
	pollAPI.WritePage = func(ds, pg int) []int16 { return []int16{11, 22, 33} }
	pollAPI.WriteSubs = func() []Sub {
		return []Sub{{Mag: 7, TEpoch: 1000, TMsecScaled: 50000}}
	}
	poll := NewSer(RolePoll, cfg, pollAPI)

	slaveAPI := DefaultPayloadApi()
	slaveAPI.ReadPage = func(page []int16, ds, pg int) {
		gotPage = append([]int16{}, page...)
		gotDS, gotPg = ds, pg
	}
	slaveAPI.ReadSubs = func(subs []Sub) { gotSubs = append([]Sub{}, subs...) }
	slave := NewSer(RoleSlave, cfg, slaveAPI)

	body, err := poll.EncodeRequest()
	require.NoError(t, err)

	require.NoError(t, slave.Decode(body))

	wantDS, wantPg := poll.Cursor()
	assert.Equal(t, wantDS, gotDS)
	assert.Equal(t, wantPg, gotPg)
	assert.Equal(t, []int16{11, 22, 33}, gotPage)
	require.Len(t, gotSubs, cfg.NumSubs)
	assert.Equal(t, Sub{Mag: 7, TEpoch: 1000, TMsecScaled: 50000}, gotSubs[0])
}

// TestSer_P3_ScheduleMonotonicity checks the closed-form cursor
// formula for N emissions starting from (DSMin,0).
func TestSer_P3_ScheduleMonotonicity(t *testing.T) {
	cfg := newTestSerConfig()
	api := DefaultPayloadApi()
	s := NewSer(RolePoll, cfg, api)

	dsSpan := cfg.DSMax - cfg.DSMin + 1
	pagesPerDS := cfg.PageMax + 1

	// The cursor starts at (DSMax,PageMax); one emission brings it to
	// (DSMin,0), where the formula's count begins.
	_, err := s.EncodeRequest()
	require.NoError(t, err)

	for n := 1; n <= 20; n++ {
		_, err := s.EncodeRequest()
		require.NoError(t, err)

		wantDS := cfg.DSMin + (n/pagesPerDS)%dsSpan
		wantPage := n % pagesPerDS

		ds, page := s.Cursor()
		assert.Equal(t, wantDS, ds, "n=%d", n)
		assert.Equal(t, wantPage, page, "n=%d", n)
	}
}

// TestSer_P4_SelectorBijection checks every (ds,page) pair in range
// round-trips through the selector byte.
func TestSer_P4_SelectorBijection(t *testing.T) {
	for ds := 1; ds <= 6; ds++ {
		for pg := 0; pg <= 3; pg++ {
			selector := byte(ds<<4) | byte(pg)
			gotDS := int(selector >> 4)
			gotPg := int(selector & 0x0F)
			assert.Equal(t, ds, gotDS)
			assert.Equal(t, pg, gotPg)
		}
	}
}

// TestSer_S6_ScheduleWalk reproduces spec scenario S6: from the
// initial (6,3) cursor, five emissions yield (1,0),(1,1),(1,2),(1,3),(2,0).
func TestSer_S6_ScheduleWalk(t *testing.T) {
	cfg := newTestSerConfig()
	s := NewSer(RolePoll, cfg, DefaultPayloadApi())

	ds, page := s.Cursor()
	assert.Equal(t, 6, ds)
	assert.Equal(t, 3, page)

	want := [][2]int{{1, 0}, {1, 1}, {1, 2}, {1, 3}, {2, 0}}
	for i, w := range want {
		_, err := s.EncodeRequest()
		require.NoError(t, err)
		ds, page := s.Cursor()
		assert.Equal(t, w[0], ds, "emission %d", i+1)
		assert.Equal(t, w[1], page, "emission %d", i+1)
	}
}

// TestSer_S1_SlaveHappyPath reproduces scenario S1 at the Ser layer
// (address/CRC are Transp's job, exercised separately).
func TestSer_S1_SlaveHappyPath(t *testing.T) {
	cfg := SerConfig{Reduced: true, PageSize: 3, AnswLenMax: 3, DSMin: 1, DSMax: 6, PageMax: 3}

	var gotPage []int16
	var gotDS, gotPg int
	api := DefaultPayloadApi()
	api.ReadPage = func(page []int16, ds, pg int) {
		gotPage = append([]int16{}, page...)
		gotDS, gotPg = ds, pg
	}
	api.WriteAnswer = func() []int16 { return []int16{9, 8, 7} }

	s := NewSer(RoleSlave, cfg, api)

	body := []byte{0x00, 0x00, 0x10, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03}
	require.NoError(t, s.Decode(body))
	assert.Equal(t, 1, gotDS)
	assert.Equal(t, 0, gotPg)
	assert.Equal(t, []int16{1, 2, 3}, gotPage)

	reply, err := s.EncodeReply()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 9, 0x00, 8, 0x00, 7}, reply)
}

// TestSer_S5_SlaveTimeSet reproduces scenario S5.
func TestSer_S5_SlaveTimeSet(t *testing.T) {
	cfg := SerConfig{Reduced: true, PageSize: 3, AnswLenMax: 3, DSMin: 1, DSMax: 6, PageMax: 3}

	getTimeCalled := false
	api := DefaultPayloadApi()
	api.GetTime = func() (uint32, uint32) {
		getTimeCalled = true
		return 0xEEEEEEEE, 0x1234
	}

	s := NewSer(RoleSlave, cfg, api)
	body := []byte{0x00, 0x01, 0x10, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03}
	require.NoError(t, s.Decode(body))

	reply, err := s.EncodeReply()
	require.NoError(t, err)
	assert.True(t, getTimeCalled)
	assert.Equal(t, []byte{0x00, 0x01, 0xEE, 0xEE, 0xEE, 0xEE, 0x12, 0x34}, reply)
}

func TestSer_BadSelector(t *testing.T) {
	cfg := SerConfig{Reduced: true, PageSize: 3, AnswLenMax: 3, DSMin: 1, DSMax: 6, PageMax: 3}
	s := NewSer(RoleSlave, cfg, DefaultPayloadApi())

	body := []byte{0x00, 0x00, 0x70, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03} // ds=7
	err := s.Decode(body)
	assert.ErrorIs(t, err, ErrBadSelector)
}

func TestSer_SizeMismatch(t *testing.T) {
	cfg := SerConfig{Reduced: true, PageSize: 3, AnswLenMax: 3, DSMin: 1, DSMax: 6, PageMax: 3}
	s := NewSer(RoleSlave, cfg, DefaultPayloadApi())

	err := s.Decode([]byte{0x00, 0x00, 0x10})
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestSer_AnswerLengthExceeded(t *testing.T) {
	cfg := SerConfig{Reduced: true, PageSize: 3, AnswLenMax: 3, DSMin: 1, DSMax: 6, PageMax: 3}
	api := DefaultPayloadApi()
	api.WriteAnswer = func() []int16 { return []int16{1, 2, 3, 4} }
	s := NewSer(RoleSlave, cfg, api)

	require.NoError(t, s.Decode([]byte{0x00, 0x00, 0x10, 0x00, 0x01, 0x00, 0x02, 0x00, 0x03}))
	_, err := s.EncodeReply()
	assert.ErrorIs(t, err, ErrAnswLenExceed)
}
