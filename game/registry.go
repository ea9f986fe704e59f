package game

import (
	"slices"
	"trivia/logger"
	"trivia/protocol"
)

// registry tracks the live connections of one room in join order. It is
// owned by the room actor and never shared.
type registry struct {
	roomCode string
	order    []string
	conns    map[string]Connection
	ids      map[Connection]string
}

func newRegistry(roomCode string) *registry {
	return &registry{
		roomCode: roomCode,
		conns:    make(map[string]Connection),
		ids:      make(map[Connection]string),
	}
}

func (reg *registry) add(playerId string, conn Connection) {
	if _, exists := reg.conns[playerId]; exists {
		return
	}
	reg.order = append(reg.order, playerId)
	reg.conns[playerId] = conn
	reg.ids[conn] = playerId
}

func (reg *registry) remove(playerId string) (Connection, bool) {
	conn, ok := reg.conns[playerId]
	if !ok {
		return nil, false
	}
	delete(reg.conns, playerId)
	delete(reg.ids, conn)
	reg.order = slices.DeleteFunc(reg.order, func(id string) bool { return id == playerId })
	return conn, true
}

func (reg *registry) idOf(conn Connection) (string, bool) {
	id, ok := reg.ids[conn]
	return id, ok
}

func (reg *registry) playerIds() []string {
	return slices.Clone(reg.order)
}

func (reg *registry) len() int {
	return len(reg.order)
}

func (reg *registry) unicast(playerId string, packet *protocol.ServerPacket) {
	conn, ok := reg.conns[playerId]
	if !ok {
		return
	}
	data, err := packet.Marshal()
	if err != nil {
		logger.Criticalf("[Room %s] Failed to marshal %s packet: %v", reg.roomCode, packet.Type, err)
		return
	}
	if err := conn.Send(data); err != nil {
		logger.Warningf("[Room %s] Dropped %s packet for player %s: %v", reg.roomCode, packet.Type, playerId, err)
	}
}

// broadcast delivers packet to every connection. A failing recipient is
// skipped, it never stops delivery to the others.
func (reg *registry) broadcast(packet *protocol.ServerPacket) {
	data, err := packet.Marshal()
	if err != nil {
		logger.Criticalf("[Room %s] Failed to marshal %s packet: %v", reg.roomCode, packet.Type, err)
		return
	}
	for _, id := range reg.order {
		if err := reg.conns[id].Send(data); err != nil {
			logger.Warningf("[Room %s] Dropped %s packet for player %s: %v", reg.roomCode, packet.Type, id, err)
		}
	}
}
