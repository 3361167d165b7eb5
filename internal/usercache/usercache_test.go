package usercache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	clocktesting "k8s.io/utils/clock/testing"
)

type countingLookup struct {
	calls map[string]int
	names map[string]string
}

func (c *countingLookup) lookup(uid string) (string, error) {
	c.calls[uid]++
	if name, ok := c.names[uid]; ok {
		return name, nil
	}
	return "", errors.New("unknown uid")
}

func newCountingLookup() *countingLookup {
	return &countingLookup{
		calls: map[string]int{},
		names: map[string]string{"0": "root", "1000": "alice"},
	}
}

func TestUsername_CachesHits(t *testing.T) {
	l := newCountingLookup()
	c := NewWithLookup(16, clocktesting.NewFakeClock(time.Now()), l.lookup)

	assert.Equal(t, "root", c.Username(0))
	assert.Equal(t, "root", c.Username(0))
	assert.Equal(t, "alice", c.Username(1000))
	assert.Equal(t, 1, l.calls["0"])
	assert.Equal(t, 1, l.calls["1000"])
}

func TestUsername_MissIsRetriedAfterTTL(t *testing.T) {
	l := newCountingLookup()
	clk := clocktesting.NewFakeClock(time.Now())
	c := NewWithLookup(16, clk, l.lookup)

	assert.Equal(t, "", c.Username(4242))
	assert.Equal(t, "", c.Username(4242))
	assert.Equal(t, 1, l.calls["4242"])

	l.names["4242"] = "late"
	clk.Step(missTTL + time.Second)
	assert.Equal(t, "late", c.Username(4242))
	assert.Equal(t, 2, l.calls["4242"])
}

func TestUsername_Root(t *testing.T) {
	c := New()
	assert.Equal(t, "root", c.Username(0))
}
