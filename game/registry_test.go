package game

import (
	"testing"
	"trivia/protocol"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("keeps join order and removal is idempotent", func(t *testing.T) {
		t.Parallel()
		reg := newRegistry("ABC123")
		a, b, c := &recordingConnection{}, &recordingConnection{}, &recordingConnection{}
		reg.add("a", a)
		reg.add("b", b)
		reg.add("c", c)
		reg.add("a", a)

		assert.Equal(t, []string{"a", "b", "c"}, reg.playerIds())

		conn, ok := reg.remove("b")
		assert.True(t, ok)
		assert.Same(t, b, conn)
		_, ok = reg.remove("b")
		assert.False(t, ok)

		assert.Equal(t, []string{"a", "c"}, reg.playerIds())
		_, ok = reg.idOf(b)
		assert.False(t, ok)
		id, ok := reg.idOf(c)
		assert.True(t, ok)
		assert.Equal(t, "c", id)
	})

	t.Run("broadcast skips failing recipients", func(t *testing.T) {
		t.Parallel()
		reg := newRegistry("ABC123")
		a := &recordingConnection{}
		full := &recordingConnection{sendErr: ErrSendBufferFull}
		c := &recordingConnection{}
		reg.add("a", a)
		reg.add("full", full)
		reg.add("c", c)

		reg.broadcast(protocol.MakePacketError("boom"))

		assert.Equal(t, []string{protocol.TypeError}, a.types(t))
		assert.Empty(t, full.types(t))
		assert.Equal(t, []string{protocol.TypeError}, c.types(t))
	})

	t.Run("unicast only reaches the target", func(t *testing.T) {
		t.Parallel()
		reg := newRegistry("ABC123")
		a, b := &recordingConnection{}, &recordingConnection{}
		reg.add("a", a)
		reg.add("b", b)

		reg.unicast("b", protocol.MakePacketError("only b"))
		reg.unicast("ghost", protocol.MakePacketError("nobody"))

		assert.Empty(t, a.types(t))
		assert.Equal(t, []string{protocol.TypeError}, b.types(t))
	})
}
