// Command loadtest drives a running server with concurrent websocket clients
// and checks that every client observes each room's events in sequence order.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/reconcile"
)

type options struct {
	baseURL  string
	users    int
	messages int
	timeout  time.Duration
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Concurrent send/receive check against a chorus server",
	Long: `loadtest registers a set of users, puts them in one server and has
each of them send messages into the #general channel over REST while
listening on the websocket. Every client must see message.created events
with strictly increasing sequence numbers and must end up with the full
history.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(opts)
	},
}

func main() {
	rootCmd.Flags().StringVar(&opts.baseURL, "url", "http://localhost:8080", "server base URL")
	rootCmd.Flags().IntVarP(&opts.users, "users", "u", 10, "number of concurrent users")
	rootCmd.Flags().IntVarP(&opts.messages, "messages", "m", 20, "messages sent per user")
	rootCmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "how long to wait for delivery")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type session struct {
	user  *domain.User
	token string
}

type wsFrame struct {
	Type    string          `json:"type"`
	RoomID  *uuid.UUID      `json:"room_id,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// listener is one websocket client with its local view of the room.
type listener struct {
	conn     *websocket.Conn
	cache    *reconcile.Cache
	lastSeq  int64
	received atomic.Int64
	err      error
	done     chan struct{}
}

func run(o options) error {
	if o.users < 1 || o.messages < 1 {
		return fmt.Errorf("users and messages must be positive")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	suffix := uuid.NewString()[:8]

	fmt.Printf("🚀 Registering %d users...\n", o.users)
	sessions := make([]session, o.users)
	for i := range sessions {
		s, err := register(client, o.baseURL, fmt.Sprintf("lt_%s_%d", suffix, i))
		if err != nil {
			return err
		}
		sessions[i] = s
	}

	var server domain.ServerDetails
	err := postJSON(client, o.baseURL+"/api/servers", sessions[0].token, map[string]string{"name": "loadtest " + suffix}, &server)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	var general *domain.Channel
	for i := range server.Channels {
		if server.Channels[i].Name == "general" {
			general = &server.Channels[i]
		}
	}
	if general == nil {
		return fmt.Errorf("server %s has no general channel", server.ID)
	}
	for _, s := range sessions[1:] {
		if err := postJSON(client, o.baseURL+"/api/invites/"+server.InviteCode, s.token, nil, nil); err != nil {
			return fmt.Errorf("join server: %w", err)
		}
	}
	roomID := general.ID

	fmt.Println("🔌 Connecting websockets...")
	listeners := make([]*listener, o.users)
	for i, s := range sessions {
		l, err := connect(o.baseURL, s.token, roomID)
		if err != nil {
			return err
		}
		listeners[i] = l
		go l.readLoop()
	}

	total := int64(o.users * o.messages)
	fmt.Printf("📨 Sending %d messages...\n", total)
	start := time.Now()

	var wg sync.WaitGroup
	var sendErrs atomic.Int64
	for i, s := range sessions {
		wg.Add(1)
		go func(i int, s session) {
			defer wg.Done()
			endpoint := o.baseURL + "/api/messages?roomId=" + roomID.String()
			for j := 0; j < o.messages; j++ {
				body := map[string]string{"content": fmt.Sprintf("user %d message %d", i, j)}
				if err := postJSON(client, endpoint, s.token, body, nil); err != nil {
					sendErrs.Add(1)
					fmt.Printf("❌ send failed: %v\n", err)
				}
			}
		}(i, s)
	}
	wg.Wait()
	sent := total - sendErrs.Load()
	fmt.Printf("✅ Sent %d messages in %s\n", sent, time.Since(start).Round(time.Millisecond))

	deadline := time.Now().Add(o.timeout)
	for _, l := range listeners {
		for l.received.Load() < sent && time.Now().Before(deadline) && !l.finished() {
			time.Sleep(50 * time.Millisecond)
		}
	}

	for _, l := range listeners {
		l.conn.Close()
		<-l.done
	}

	failed := 0
	for i, l := range listeners {
		got := l.received.Load()
		switch {
		case l.err != nil && got < sent:
			failed++
			fmt.Printf("❌ client %d: %v\n", i, l.err)
		case got < sent:
			failed++
			fmt.Printf("❌ client %d: received %d/%d\n", i, got, sent)
		case l.cache.LastSequence(roomID) != l.lastSeq:
			failed++
			fmt.Printf("❌ client %d: cache at seq %d, stream at %d\n", i, l.cache.LastSequence(roomID), l.lastSeq)
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("📊 %d clients, %d events each, %.0f deliveries/s\n",
		o.users, sent, float64(sent*int64(o.users))/elapsed.Seconds())

	if failed > 0 {
		return fmt.Errorf("%d of %d clients failed", failed, o.users)
	}
	fmt.Println("🎉 All clients observed events in sequence order")
	return nil
}

func register(client *http.Client, baseURL, username string) (session, error) {
	var resp struct {
		User        *domain.User `json:"user"`
		AccessToken string       `json:"access_token"`
	}
	body := map[string]string{
		"email":        username + "@loadtest.local",
		"username":     username,
		"display_name": username,
		"password":     "LoadTest123",
	}
	if err := postJSON(client, baseURL+"/api/v1/auth/register", "", body, &resp); err != nil {
		return session{}, fmt.Errorf("register %s: %w", username, err)
	}
	return session{user: resp.User, token: resp.AccessToken}, nil
}

func connect(baseURL, token string, roomID uuid.UUID) (*listener, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	sub := map[string]any{"type": "room.subscribe", "room_id": roomID}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, err
	}
	// cekamo ack prije slanja poruka
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe: %w", err)
		}
		if f.Type == "room.subscribed" {
			break
		}
		if f.Type == "error" {
			conn.Close()
			return nil, fmt.Errorf("subscribe rejected: %s", f.Payload)
		}
	}
	conn.SetReadDeadline(time.Time{})

	return &listener{conn: conn, cache: reconcile.NewCache(), done: make(chan struct{})}, nil
}

func (l *listener) readLoop() {
	defer close(l.done)
	for {
		var f wsFrame
		if err := l.conn.ReadJSON(&f); err != nil {
			l.err = err
			return
		}
		if f.Type != "message.created" {
			continue
		}
		if f.Seq <= l.lastSeq {
			l.err = fmt.Errorf("out of order: seq %d after %d", f.Seq, l.lastSeq)
			return
		}
		l.lastSeq = f.Seq

		var msg domain.Message
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			l.err = err
			return
		}
		l.cache.Put(msg)
		l.received.Add(1)
	}
}

func (l *listener) finished() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// postJSON retries on 429 using the server's Retry-After hint.
func postJSON(client *http.Client, endpoint, token string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries {
			resp.Body.Close()
			time.Sleep(retryAfter(resp.Header.Get("Retry-After")))
			continue
		}
		return decodeResponse(resp, out)
	}
}

const maxRetries = 50

func retryAfter(h string) time.Duration {
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 200 * time.Millisecond
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
