package game

import (
	"context"
	"time"
	"trivia/domain"
	"trivia/logger"
	"trivia/protocol"
)

const (
	outboxSize          = 256
	defaultPingInterval = 30 * time.Second
)

// Player is one live client connection. ReadPump and WritePump each run in
// their own goroutine; the socket is only ever written from WritePump.
type Player struct {
	socket       WebsocketConnection
	lobby        Joiner
	room         RoomHandle
	name         string
	outbox       chan []byte
	pingInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

func NewPlayer(socket WebsocketConnection, lobby Joiner) *Player {
	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		socket:       socket,
		lobby:        lobby,
		outbox:       make(chan []byte, outboxSize),
		pingInterval: defaultPingInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Send queues data for the socket without blocking the caller.
func (p *Player) Send(data []byte) error {
	select {
	case <-p.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case p.outbox <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (p *Player) Release() {
	p.cancel()
}

func (p *Player) sendPacket(packet *protocol.ServerPacket) {
	data, err := packet.Marshal()
	if err != nil {
		logger.Criticalf("Failed to marshal %s packet: %v", packet.Type, err)
		return
	}
	if err := p.Send(data); err != nil {
		logger.Debugf("Dropped %s packet for %s: %v", packet.Type, p.name, err)
	}
}

func (p *Player) ReadPump() {
	defer p.Release()
	defer p.leaveRoom()

	for {
		data, err := p.socket.Read()
		if err != nil {
			logger.Debugf("Read failed for %s: %v", p.name, err)
			return
		}

		packet, err := protocol.DecodeClientPacket(data)
		if err != nil {
			logger.Debugf("Malformed packet from %s: %v", p.name, err)
			p.sendPacket(protocol.MakePacketError(domain.ErrMalformedPacket.Error()))
			continue
		}

		switch packet := packet.(type) {
		case protocol.JoinRoom:
			p.join(packet)
		case protocol.LeaveRoom:
			if p.room == nil {
				continue
			}
			p.room.Send(context.Background(), NewClientPacketEnvelope(packet, p))
			p.room = nil
		default:
			if p.room == nil {
				continue
			}
			p.room.Send(p.ctx, NewClientPacketEnvelope(packet, p))
		}
	}
}

func (p *Player) join(req protocol.JoinRoom) {
	if p.room != nil {
		p.sendPacket(protocol.MakePacketError(domain.ErrAlreadyInRoom.Error()))
		return
	}

	room, player, err := p.lobby.Join(p.ctx, p, req)
	if err != nil {
		logger.Infof("%s could not join room %s: %v", req.PlayerName, req.RoomCode, err)
		p.sendPacket(protocol.MakePacketError(publicMessage(err)))
		return
	}

	p.room = room
	p.name = player.Name
}

// leaveRoom removes a disconnected player from its room.
func (p *Player) leaveRoom() {
	if p.room == nil {
		return
	}
	p.room.RemoveMe(p)
	p.room = nil
}

func (p *Player) WritePump() {
	ticker := time.NewTicker(p.pingInterval)
	defer func() {
		ticker.Stop()
		p.socket.Close()
	}()

	for {
		select {
		case data := <-p.outbox:
			if err := p.socket.Write(data); err != nil {
				p.Release()
				return
			}
		case <-ticker.C:
			if err := p.socket.Ping(); err != nil {
				p.Release()
				return
			}
		case <-p.ctx.Done():
			p.flush()
			return
		}
	}
}

// flush writes whatever is still queued, so a final error packet reaches
// the client before the socket closes.
func (p *Player) flush() {
	for {
		select {
		case data := <-p.outbox:
			if err := p.socket.Write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}
