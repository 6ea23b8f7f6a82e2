package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MsgTypeCreateRoom   = 101
	MsgTypeJoinRoom     = 102
	MsgTypeLeaveRoom    = 103
	MsgTypeListRooms    = 104
	MsgTypePlayerAction = 201
	MsgTypeChat         = 202
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)

	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func sendJSON(c *websocket.Conn, msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return send(c, msgID, data)
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("Read error:", err)
				return
			}
			if len(message) < 4 {
				log.Printf("Received invalid packet of size %d", len(message))
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			data := message[4:]
			log.Printf("<- RECV (ID: %d): %s", msgID, string(data))
		}
	}()

	// Create a room as player one
	log.Println("Sending Create Room request...")
	createReq := map[string]interface{}{
		"name":        "demo room",
		"mode":        "standard",
		"max_players": 4,
		"user_id":     1,
		"player_name": "demo",
	}
	if err := sendJSON(c, MsgTypeCreateRoom, createReq); err != nil {
		log.Println("Write error:", err)
		return
	}

	log.Println("Client started. Commands: buy | recruit | attack <id> | intel <id> | move <x> <y> | say <msg> | rooms | leave")

	// Write loop
	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("Write close error:", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		default:
			text, _ := reader.ReadString('\n')
			fields := strings.Fields(strings.TrimSpace(text))
			if len(fields) == 0 {
				continue
			}

			var msgID uint16
			var payload interface{}

			switch fields[0] {
			case "buy":
				msgID = MsgTypePlayerAction
				payload = map[string]interface{}{
					"kind": "purchase_building",
					"purchase": map[string]interface{}{
						"building_id": "office",
						"name":        "Office",
						"cost":        50000,
					},
				}
			case "recruit":
				msgID = MsgTypePlayerAction
				payload = map[string]interface{}{
					"kind":    "recruit_employee",
					"recruit": map[string]interface{}{"count": 5, "cost": 20000},
				}
			case "attack":
				if len(fields) < 2 {
					continue
				}
				msgID = MsgTypePlayerAction
				payload = map[string]interface{}{
					"kind":   "attack",
					"attack": map[string]interface{}{"target_id": fields[1], "cost": 100000},
				}
			case "intel":
				if len(fields) < 2 {
					continue
				}
				msgID = MsgTypePlayerAction
				payload = map[string]interface{}{
					"kind":  "intelligence",
					"intel": map[string]interface{}{"target_id": fields[1], "cost": 30000},
				}
			case "move":
				if len(fields) < 3 {
					continue
				}
				msgID = MsgTypePlayerAction
				payload = map[string]interface{}{
					"kind": "move",
					"move": map[string]interface{}{"x": atoi(fields[1]), "y": atoi(fields[2])},
				}
			case "say":
				msgID = MsgTypeChat
				payload = map[string]string{"message": strings.Join(fields[1:], " ")}
			case "rooms":
				msgID = MsgTypeListRooms
				payload = map[string]string{}
			case "leave":
				msgID = MsgTypeLeaveRoom
				payload = map[string]string{}
			default:
				log.Printf("Unknown command: %s", fields[0])
				continue
			}

			if err := sendJSON(c, msgID, payload); err != nil {
				log.Println("Write error:", err)
				return
			}
			log.Printf("-> SENT: %s", fields[0])
		}
	}
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}
