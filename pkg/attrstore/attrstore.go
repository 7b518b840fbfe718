// Package attrstore is a reference binding of the protocol engine's
// PayloadApi to an IEC-61850-style attribute model, backed by Redis
// hashes. The engine itself never imports this package — the spec
// treats the attribute-store mapping as a thin external collaborator
// (spec §1) — but a gateway process needs a real implementation to
// exercise against, so this one mirrors each decoded parameter as a
// group of mag/t/q fields in a Redis hash, the same three-attribute group the
// original firmware's MMS_SET_ATTRS macros set together.
package attrstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/proglyk/ser2mms-gw/internal/proto"
)

// Store mirrors decoded pages and subscriptions into Redis and
// produces reply/request payloads by reading back from it.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New connects to a Redis instance. addr is host:port; db selects the
// logical database. prefix namespaces every key this Store touches
// (default "ser2mms" when empty).
func New(addr string, db int, prefix string) *Store {
	if prefix == "" {
		prefix = "ser2mms"
	}
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		prefix: prefix,
	}
}

func (s *Store) pageKey(ds, pg int) string {
	return fmt.Sprintf("%s:page:%d:%d", s.prefix, ds, pg)
}

func (s *Store) subKey(i int) string {
	return fmt.Sprintf("%s:sub:%d", s.prefix, i)
}

func (s *Store) answerKey() string {
	return fmt.Sprintf("%s:answer", s.prefix)
}

func (s *Store) timeKey() string {
	return fmt.Sprintf("%s:time", s.prefix)
}

// ReadPage stores a decoded slave-inbound page as one hash per (ds,pg),
// with "i:mag", "i:t" and "i:q" fields for each value i (q fixed "good": arrival through a
// CRC-verified frame is itself the quality signal at this layer).
func (s *Store) ReadPage(page []int16, ds, pg int) {
	ctx := context.Background()
	now := time.Now().Unix()
	key := s.pageKey(ds, pg)
	for i, v := range page {
		field := fmt.Sprintf("%d", i)
		s.rdb.HSet(ctx, key, field+":mag", v, field+":t", now, field+":q", "good")
	}
}

// ReadSubs mirrors decoded subscription records, preserving
// t_msec_scaled verbatim as the spec requires (no re-scaling).
func (s *Store) ReadSubs(subs []proto.Sub) {
	ctx := context.Background()
	for i, sub := range subs {
		key := s.subKey(i)
		s.rdb.HSet(ctx, key,
			"mag", sub.Mag,
			"t_epoch", sub.TEpoch,
			"t_msec_scaled", sub.TMsecScaled,
			"q", "good",
		)
	}
}

// WriteAnswer reads back the three most recently staged answer values
// for a Parameters reply.
func (s *Store) WriteAnswer() []int16 {
	ctx := context.Background()
	vals, err := s.rdb.HMGet(ctx, s.answerKey(), "0", "1", "2").Result()
	if err != nil {
		return nil
	}
	out := make([]int16, 0, len(vals))
	for _, v := range vals {
		if v == nil {
			continue
		}
		var n int64
		fmt.Sscanf(fmt.Sprint(v), "%d", &n)
		out = append(out, int16(n))
	}
	return out
}

// GetTime returns the current wall clock as the TimeSet reply payload.
func (s *Store) GetTime() (epoch, usec uint32) {
	now := time.Now()
	return uint32(now.Unix()), uint32(now.Nanosecond() / 1000)
}

// WritePage reads back the staged outgoing page for (ds,pg), the POLL
// role's mirror of ReadPage.
func (s *Store) WritePage(ds, pg int) []int16 {
	ctx := context.Background()
	key := s.pageKey(ds, pg)
	out := make([]int16, 0, 3)
	for i := 0; i < 3; i++ {
		field := fmt.Sprintf("%d:mag", i)
		v, err := s.rdb.HGet(ctx, key, field).Int64()
		if err != nil {
			break
		}
		out = append(out, int16(v))
	}
	return out
}

// WriteSubs reads back the staged outgoing subscription set.
func (s *Store) WriteSubs() []proto.Sub {
	ctx := context.Background()
	var out []proto.Sub
	for i := 0; ; i++ {
		key := s.subKey(i)
		vals, err := s.rdb.HMGet(ctx, key, "mag", "t_epoch", "t_msec_scaled").Result()
		if err != nil || vals[0] == nil {
			break
		}
		var mag int64
		var tEpoch, tMsec uint64
		fmt.Sscanf(fmt.Sprint(vals[0]), "%d", &mag)
		fmt.Sscanf(fmt.Sprint(vals[1]), "%d", &tEpoch)
		fmt.Sscanf(fmt.Sprint(vals[2]), "%d", &tMsec)
		out = append(out, proto.Sub{
			Mag:         int16(mag),
			TEpoch:      uint32(tEpoch),
			TMsecScaled: uint32(tMsec),
		})
	}
	return out
}

// ReadAnswer stores a decoded poll-reply answer for external
// inspection.
func (s *Store) ReadAnswer(answ []int16) {
	ctx := context.Background()
	args := make([]interface{}, 0, len(answ)*2)
	for i, v := range answ {
		args = append(args, fmt.Sprintf("%d", i), v)
	}
	if len(args) > 0 {
		s.rdb.HSet(ctx, s.answerKey(), args...)
	}
}

// ReadTime stores a decoded poll-reply TimeSet answer.
func (s *Store) ReadTime(epoch, usec uint32) {
	ctx := context.Background()
	s.rdb.HSet(ctx, s.timeKey(), "epoch", epoch, "usec", usec)
}

// PayloadApi binds Store's methods into a proto.PayloadApi the
// Gateway can be constructed with.
func (s *Store) PayloadApi() proto.PayloadApi {
	return proto.PayloadApi{
		ReadPage:    s.ReadPage,
		ReadSubs:    s.ReadSubs,
		WriteAnswer: s.WriteAnswer,
		GetTime:     s.GetTime,
		WritePage:   s.WritePage,
		WriteSubs:   s.WriteSubs,
		ReadAnswer:  s.ReadAnswer,
		ReadTime:    s.ReadTime,
	}
}

// Close releases the Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}
