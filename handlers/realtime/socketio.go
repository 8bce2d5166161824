package realtime

import (
	"sync"

	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/engine.io/v2/utils"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

var (
	activeBrowserRooms = make(map[string]int)
	browserRoomsMutex  sync.RWMutex
)

// GetActiveBrowserRooms returns the per-project client counts of the
// socket.io endpoint.
func GetActiveBrowserRooms() map[string]int {
	browserRoomsMutex.RLock()
	defer browserRoomsMutex.RUnlock()

	rooms := make(map[string]int, len(activeBrowserRooms))
	for k, v := range activeBrowserRooms {
		rooms[k] = v
	}
	return rooms
}

// SetupSocketIO runs the browser-facing realtime endpoint. Browser peers
// relay their own payloads through project rooms; the server only does
// room bookkeeping and fan-out, the same way the /ws hub does for Go
// clients.
func SetupSocketIO() *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		me := socket.Id()
		myRoom := socketio.Room(me)
		_ = srv.To(myRoom).Emit("init-project")
		utils.Log().Printf("init project room %v\n", myRoom)

		socket.On("join-project", func(datas ...any) {
			if len(datas) == 0 {
				return
			}
			projectID, ok := datas[0].(string)
			if !ok || projectID == "" {
				return
			}

			room := socketio.Room(projectID)
			socket.Join(room)
			utils.Log().Printf("Socket %v has joined project %v\n", me, room)

			srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, fetchErr error) {
				if fetchErr != nil {
					return
				}

				browserRoomsMutex.Lock()
				activeBrowserRooms[projectID] = len(users)
				browserRoomsMutex.Unlock()

				if len(users) <= 1 {
					_ = srv.To(myRoom).Emit("first-in-project")
				} else {
					utils.Log().Printf("emit new user %v in project %v\n", me, room)
					_ = socket.Broadcast().To(room).Emit("new-user", me)
				}

				roomUsers := make([]socketio.SocketId, 0, len(users))
				for _, user := range users {
					roomUsers = append(roomUsers, user.Id())
				}
				srv.In(room).Emit("project-user-change", roomUsers)
			})
		})

		socket.On("server-broadcast", func(datas ...any) {
			if len(datas) < 3 {
				return
			}
			projectID, ok := datas[0].(string)
			if !ok || projectID == "" {
				return
			}
			utils.Log().Printf("user %v sends update to project %v\n", me, projectID)
			_ = socket.Broadcast().To(socketio.Room(projectID)).Emit("client-broadcast", datas[1], datas[2])
		})

		socket.On("server-volatile-broadcast", func(datas ...any) {
			if len(datas) < 3 {
				return
			}
			projectID, ok := datas[0].(string)
			if !ok || projectID == "" {
				return
			}
			utils.Log().Printf("user %v sends volatile update to project %v\n", me, projectID)
			_ = socket.Volatile().Broadcast().To(socketio.Room(projectID)).Emit("client-broadcast", datas[1], datas[2])
		})

		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				projectID := string(currentRoom)
				srv.In(currentRoom).FetchSockets()(func(users []*socketio.RemoteSocket, _ error) {
					utils.Log().Printf("disconnecting %v from project %v\n", me, currentRoom)

					otherClients := make([]socketio.SocketId, 0, len(users))
					for _, userInRoom := range users {
						if userInRoom.Id() != me {
							otherClients = append(otherClients, userInRoom.Id())
						}
					}

					browserRoomsMutex.Lock()
					if len(otherClients) == 0 {
						delete(activeBrowserRooms, projectID)
					} else {
						activeBrowserRooms[projectID] = len(otherClients)
					}
					browserRoomsMutex.Unlock()

					if len(otherClients) > 0 {
						srv.In(currentRoom).Emit("project-user-change", otherClients)
					}
				})
			}
		})

		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
			socket.Disconnect(true)
		})
	})

	return srv
}
