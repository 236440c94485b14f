package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

func login(apiAddr, email, password string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(apiAddr+"/api/v1/public/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("login failed: %s", string(body))
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", err
	}

	return loginResp.AccessToken, nil
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "server address")
	apiAddr := flag.String("api", "http://localhost:8080", "api base url")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	conversationID := flag.String("conversation", "", "conversation id to join")
	flag.Parse()

	if *email == "" || *password == "" || *conversationID == "" {
		log.Fatal("-email, -password and -conversation are required")
	}

	// 1. Login to get token
	log.Printf("Logging in as %s...", *email)
	token, err := login(*apiAddr, *email, *password)
	if err != nil {
		log.Fatal("Login failed:", err)
	}
	log.Printf("Login successful. Token: %s...", token[:10])

	// 2. Connect to WebSocket with token
	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/api/v1/ws/chat/" + *conversationID}
	log.Printf("connecting to %s", u.String())

	header := http.Header{}
	header.Add("Authorization", "Bearer "+token)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// 3. Start goroutine to read events
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			printEvent(raw)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// 4. Read from stdin and send events
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := scanner.Text()
			if text == "" {
				fmt.Print("> ")
				continue
			}

			if text == "/quit" {
				close(interrupt)
				break
			}

			payload, ok := buildEvent(text)
			if !ok {
				fmt.Print("> ")
				continue
			}

			if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Println("write:", err)
				break
			}
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")

			// Cleanly close the connection by sending a close message and then
			// waiting (with timeout) for the server to close the connection.
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

// buildEvent maps console input to a wire event. Plain text becomes
// new_message; slash commands cover the rest:
//
//	/read <id>
//	/edit <id> <new text>
//	/delete <id> [self|all]
func buildEvent(text string) ([]byte, bool) {
	event := map[string]string{}
	switch {
	case strings.HasPrefix(text, "/read "):
		event["event"] = "read_message"
		event["message_id"] = strings.TrimSpace(text[len("/read "):])
	case strings.HasPrefix(text, "/edit "):
		parts := strings.SplitN(strings.TrimSpace(text[len("/edit "):]), " ", 2)
		if len(parts) != 2 {
			fmt.Println("usage: /edit <id> <new text>")
			return nil, false
		}
		event["event"] = "edit_message"
		event["message_id"] = parts[0]
		event["text"] = parts[1]
	case strings.HasPrefix(text, "/delete "):
		parts := strings.Fields(text[len("/delete "):])
		if len(parts) == 0 {
			fmt.Println("usage: /delete <id> [self|all]")
			return nil, false
		}
		event["event"] = "delete_message"
		event["message_id"] = parts[0]
		if len(parts) > 1 {
			event["mode"] = parts[1]
		}
	case strings.HasPrefix(text, "/"):
		fmt.Println("commands: /read /edit /delete /quit")
		return nil, false
	default:
		event["event"] = "new_message"
		event["text"] = text
	}

	payload, _ := json.Marshal(event)
	return payload, true
}

func printEvent(raw []byte) {
	var env struct {
		Event     string          `json:"event"`
		Message   json.RawMessage `json:"message"`
		MessageID string          `json:"message_id"`
		ReaderID  string          `json:"reader_id"`
		Mode      string          `json:"mode"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		fmt.Printf("\rReceived raw: %s\n> ", raw)
		return
	}

	switch env.Event {
	case "ping":
		// Heartbeat, nothing to show.
	case "new_message", "message_edited":
		var msg struct {
			ID       string `json:"id"`
			SenderID string `json:"sender_id"`
			Text     string `json:"text"`
			IsEdited bool   `json:"is_edited"`
		}
		if err := json.Unmarshal(env.Message, &msg); err != nil {
			fmt.Printf("\rReceived raw: %s\n> ", raw)
			return
		}
		marker := ""
		if msg.IsEdited {
			marker = " (edited)"
		}
		fmt.Printf("\r[%s] %s: %s%s\n> ", msg.ID, msg.SenderID, msg.Text, marker)
	case "message_read":
		fmt.Printf("\rmessage %s read by %s\n> ", env.MessageID, env.ReaderID)
	case "message_deleted":
		fmt.Printf("\rmessage %s deleted (%s)\n> ", env.MessageID, env.Mode)
	case "error":
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		fmt.Printf("\rserver error: %s\n> ", e.Message)
	default:
		fmt.Printf("\rReceived raw: %s\n> ", raw)
	}
}
