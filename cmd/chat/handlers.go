package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-logr/logr"

	socketio "github.com/ioduplex/go-socket.io"
	"github.com/ioduplex/go-socket.io/extensions"
)

const lobby = "default"

// Nickname is the name a socket chats under, kept in its extensions.
type Nickname string

var errNoNickname = errors.New("nickname required")

func nickname(c socketio.Conn) string {
	nick, _ := extensions.Get[Nickname](c.Extensions())
	return string(nick)
}

// registerHandlers wires the chat events on the root namespace.
func registerHandlers(server *socketio.Server, log logr.Logger) {
	server.OnConnect("/", func(c socketio.Conn) error {
		var auth struct {
			Nickname string `json:"nickname"`
		}
		if len(c.Handshake().Auth) > 0 {
			if err := json.Unmarshal(c.Handshake().Auth, &auth); err != nil {
				return fmt.Errorf("invalid auth: %w", err)
			}
		}
		if auth.Nickname == "" {
			return errNoNickname
		}

		extensions.Insert(c.Extensions(), Nickname(auth.Nickname))
		c.Join(lobby)
		log.Info("joined", "sid", c.ID(), "nickname", auth.Nickname)
		return c.Emit("message", "Welcome to the chat!")
	})

	// message sends to the user with that nickname, or to the room.
	server.OnEvent("/", "message", func(c socketio.Conn, room, msg string) error {
		from := nickname(c)
		for _, s := range c.To(lobby).Sockets() {
			if nickname(s) == room {
				return s.Emit("message", from, msg)
			}
		}
		return c.To(room).Emit("message", from, msg)
	})

	server.OnEvent("/", "join", func(c socketio.Conn, room string) error {
		c.Join(room)
		return c.To(room).Emit("message", nickname(c)+" joined "+room)
	})

	server.OnEvent("/", "leave", func(c socketio.Conn, room string) error {
		c.Leave(room)
		return c.To(room).Emit("message", nickname(c)+" left "+room)
	})

	// list answers with the nicknames in room, or with the caller's rooms.
	server.OnEvent("/", "list", func(c socketio.Conn, room string) []string {
		if room == "" {
			rooms := make([]string, 0)
			for _, r := range c.Rooms() {
				if r != c.ID() {
					rooms = append(rooms, r)
				}
			}
			return rooms
		}

		nicks := make([]string, 0)
		for _, s := range server.Of("/").To(room).Sockets() {
			if nick := nickname(s); nick != "" {
				nicks = append(nicks, nick)
			}
		}
		sort.Strings(nicks)
		return nicks
	})

	server.OnEvent("/", "nickname", func(c socketio.Conn, nick string) error {
		if nick == "" {
			return errNoNickname
		}
		old, _ := extensions.Insert(c.Extensions(), Nickname(nick))
		return c.To(lobby).Emit("message", fmt.Sprintf("%s is now %s", old, nick))
	})

	server.OnError("/", func(c socketio.Conn, err error) {
		log.Error(err, "chat handler", "sid", c.ID())
	})

	server.OnDisconnect("/", func(c socketio.Conn, reason string) {
		nick := nickname(c)
		log.Info("left", "sid", c.ID(), "nickname", nick, "reason", reason)
		if err := server.Of("/").To(lobby).Emit("message", nick+" left the chat"); err != nil {
			log.V(1).Info("announce leave", "err", err)
		}
	})
}
