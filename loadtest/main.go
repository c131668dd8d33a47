package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	BaseURL   = "http://localhost:8080"
	WSURL     = "ws://localhost:8080/ws"
	PairCount = 50 // Each pair is a sender plus a connected receiver.
	MsgCount  = 20 // Messages per sender.
)

type userResponse struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName"`
}

type wsEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	log.Printf("starting load test: %d pairs, %d messages each", PairCount, MsgCount)
	var wg sync.WaitGroup

	for i := 0; i < PairCount; i++ {
		wg.Add(1)
		go func(pairID int) {
			defer wg.Done()
			runPair(pairID)
		}(i)
	}

	wg.Wait()
	log.Println("load test complete")
}

func runPair(pairID int) {
	sender := newClient()
	receiver := newClient()

	senderID := authenticate(sender, fmt.Sprintf("Load Sender %d", pairID),
		fmt.Sprintf("sender%d@load.test", pairID))
	receiverID := authenticate(receiver, fmt.Sprintf("Load Receiver %d", pairID),
		fmt.Sprintf("receiver%d@load.test", pairID))
	if senderID == "" || receiverID == "" {
		return
	}

	// Receiver holds a live session so every send exercises the push path.
	conn, _, err := websocket.DefaultDialer.Dial(WSURL+"?userId="+receiverID, nil)
	if err != nil {
		log.Printf("ws connect failed [pair %d]: %v", pairID, err)
		return
	}
	defer conn.Close()

	got := make(chan int, 1)
	go countDeliveries(conn, got)

	for i := 0; i < MsgCount; i++ {
		body := map[string]string{"text": fmt.Sprintf("load msg %d from pair %d", i, pairID)}
		resp, err := postJSON(sender, "/api/messages/send/"+receiverID, body)
		if err != nil {
			log.Printf("send failed [pair %d]: %v", pairID, err)
			return
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			log.Printf("send rejected [pair %d]: %d", pairID, resp.StatusCode)
			return
		}
		// Small delay to simulate real pacing on localhost.
		time.Sleep(10 * time.Millisecond)
	}

	delivered := <-got
	log.Printf("pair %d done: sent %d, delivered live %d", pairID, MsgCount, delivered)
}

// countDeliveries reads events until the connection idles out and reports
// how many newMessage events arrived.
func countDeliveries(conn *websocket.Conn, out chan<- int) {
	n := 0
	for {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			out <- n
			return
		}
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var ev wsEvent
			if json.Unmarshal(line, &ev) == nil && ev.Event == "newMessage" {
				n++
			}
		}
	}
}

func newClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

// authenticate signs up (ignoring duplicates) and logs in, returning the
// user ID. The jwt cookie lands in the client's jar.
func authenticate(client *http.Client, fullName, email string) string {
	pass := "password123"

	if resp, err := postJSON(client, "/api/auth/signup",
		map[string]string{"fullName": fullName, "email": email, "password": pass}); err == nil {
		resp.Body.Close()
	}

	resp, err := postJSON(client, "/api/auth/login",
		map[string]string{"email": email, "password": pass})
	if err != nil {
		log.Printf("login failed [%s]: %v", email, err)
		return ""
	}
	defer resp.Body.Close()

	var u userResponse
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		log.Printf("login decode failed [%s]: %v", email, err)
		return ""
	}
	return u.ID
}

func postJSON(client *http.Client, endpoint string, data interface{}) (*http.Response, error) {
	jsonData, _ := json.Marshal(data)
	return client.Post(BaseURL+endpoint, "application/json", bytes.NewBuffer(jsonData))
}
