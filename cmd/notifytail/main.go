// Command notifytail prints a user's live notifications as JSON lines.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	secure := flag.Bool("tls", false, "Use https/wss")
	token := flag.String("token", os.Getenv("COOKIEGRAM_TOKEN"), "Session JWT (default $COOKIEGRAM_TOKEN)")
	reconnect := flag.Bool("reconnect", true, "Reconnect with backoff when the socket drops")
	flag.Parse()

	if *token == "" {
		log.Fatal("a session token is required (-token or COOKIEGRAM_TOKEN)")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	backoff := time.Second
	for {
		err := tail(*host, *secure, *token, interrupt)
		if err == nil || !*reconnect {
			if err != nil {
				log.Fatalf("❌ %v", err)
			}
			return
		}
		log.Printf("⚠️  %v; reconnecting in %s", err, backoff)
		select {
		case <-time.After(backoff):
		case <-interrupt:
			return
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func getTicket(host string, secure bool, token string) (string, error) {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s://%s/api/ws/ticket", scheme, host), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
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

// tail streams one socket session. It returns nil when interrupted.
func tail(host string, secure bool, token string, interrupt <-chan os.Signal) error {
	ticket, err := getTicket(host, secure, token)
	if err != nil {
		return err
	}

	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: host, Path: "/api/ws", RawQuery: "ticket=" + url.QueryEscape(ticket)}

	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = c.Close() }()
	log.Printf("✅ connected to %s", u.Host)

	done := make(chan error, 1)
	go func() {
		enc := json.NewEncoder(os.Stdout)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					err = errors.New("server closed the connection")
				}
				done <- err
				return
			}
			var msg json.RawMessage = raw
			if !json.Valid(raw) {
				msg, _ = json.Marshal(string(raw))
			}
			_ = enc.Encode(msg)
		}
	}()

	select {
	case err := <-done:
		return err
	case <-interrupt:
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return nil
	}
}
