// Command wsprobe load-tests realtime notification delivery. It opens many
// websocket connections for one account while a second account repeatedly
// follows and unfollows it, then reports how many notification frames arrived.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the probe results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsTriggered      int64
	FramesReceived       int64
	Notifications        int64
	Errors               int64
}

var metrics Metrics

var httpClient = &http.Client{Timeout: 5 * time.Second}

type session struct {
	Token string
	User  struct {
		ID uint `json:"id"`
	}
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "root@devshelf.local", "listening account email")
	password := flag.String("password", "", "listening account password")
	actorEmail := flag.String("actor-email", "", "account that triggers follow notifications (none when empty)")
	actorPassword := flag.String("actor-password", "", "actor account password")
	clients := flag.Int("clients", 10, "number of concurrent websocket clients")
	interval := flag.Duration("interval", time.Second, "delay between triggered follows")
	duration := flag.Duration("duration", 30*time.Second, "probe duration")
	flag.Parse()

	log.Printf("probing %s with %d clients for %v", *host, *clients, *duration)

	listener, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	var actor *session
	if *actorEmail != "" {
		if actor, err = login(*host, *actorEmail, *actorPassword); err != nil {
			log.Fatalf("actor login failed: %v", err)
		}
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, listener.Token, stop, &wg)
		// Tickets are issued per connection.
		time.Sleep(50 * time.Millisecond)
	}

	if actor != nil {
		wg.Add(1)
		go triggerFollows(*host, actor.Token, listener.User.ID, *interval, stop, &wg)
	}

	select {
	case <-time.After(*duration):
		log.Println("probe duration reached")
	case <-interrupt:
		log.Println("interrupted")
	}

	close(stop)
	wg.Wait()

	printMetrics(*clients)
}

func login(host, email, password string) (*session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Post(fmt.Sprintf("http://%s/api/auth/login", host), "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var s session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func authed(method, rawURL, token string) (*http.Response, error) {
	req, err := http.NewRequest(method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return httpClient.Do(req)
}

func getTicket(host, token string) (string, error) {
	resp, err := authed(http.MethodPost, fmt.Sprintf("http://%s/api/ws/ticket", host), token)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

func runClient(host, token string, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := getTicket(host, token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: url.Values{"ticket": {ticket}}.Encode()}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	defer func() { _ = conn.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.FramesReceived, 1)
			var ev struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(msg, &ev) == nil && ev.Type == "notification" {
				atomic.AddInt64(&metrics.Notifications, 1)
			}
		}
	}()

	select {
	case <-stop:
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
	}
}

// triggerFollows toggles a follow on target so every new follow produces one
// notification for each of target's connections.
func triggerFollows(host, token string, target uint, interval time.Duration, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	followURL := fmt.Sprintf("http://%s/api/users/%d/follow", host, target)

	// Start from a known state.
	if resp, err := authed(http.MethodDelete, followURL, token); err == nil {
		_ = resp.Body.Close()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	following := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		method := http.MethodPost
		if following {
			method = http.MethodDelete
		}
		resp, err := authed(method, followURL, token)
		if err != nil {
			atomic.AddInt64(&metrics.Errors, 1)
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			atomic.AddInt64(&metrics.Errors, 1)
			continue
		}
		if !following {
			atomic.AddInt64(&metrics.EventsTriggered, 1)
		}
		following = !following
	}
}

func printMetrics(clients int) {
	log.Println("probe results")
	log.Printf("connections: %d attempted, %d ok, %d failed",
		metrics.ConnectionsAttempted, metrics.ConnectionsSuccess, metrics.ConnectionsFailed)
	log.Printf("follows triggered: %d", metrics.EventsTriggered)
	log.Printf("frames received: %d (%d notifications)", metrics.FramesReceived, metrics.Notifications)
	if expected := metrics.EventsTriggered * metrics.ConnectionsSuccess; expected > 0 {
		log.Printf("delivery: %.1f%% of %d expected", float64(metrics.Notifications)*100/float64(expected), expected)
	}
	log.Printf("errors: %d", metrics.Errors)
	if metrics.ConnectionsSuccess < int64(clients) {
		os.Exit(1)
	}
}
