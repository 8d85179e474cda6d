package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"SafeStack/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event 一条推送；ID 单调递增，供 Last-Event-ID 重放
type Event struct {
	ID   uint64
	Name string
	Data string
}

func (e Event) format() string {
	if e.Name == "" {
		return fmt.Sprintf("id: %d\ndata: %s\n\n", e.ID, e.Data)
	}
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", e.ID, e.Name, e.Data)
}

type Client struct {
	id     string
	groups map[string]bool
	ch     chan Event
	done   chan struct{}
}

func (c *Client) ID() string { return c.id }

// Hub 管理在线客户端；没有加入任何分组的客户端接收全部事件
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	groups   map[string]map[string]bool // group -> clientID set
	interval time.Duration
	retryMs  int

	seq     uint64
	history []historyEntry
	keep    int
}

type historyEntry struct {
	event  Event
	groups []string
}

func NewHub(interval time.Duration, keep int) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if keep < 0 {
		keep = 0
	}
	return &Hub{
		clients:  make(map[string]*Client),
		groups:   make(map[string]map[string]bool),
		interval: interval,
		retryMs:  5000,
		keep:     keep,
	}
}

func (h *Hub) AddClient(id string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{id: id, groups: make(map[string]bool), ch: make(chan Event, 64), done: make(chan struct{})}
	h.clients[id] = c
	return c
}

func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		close(c.done)
		for g := range c.groups {
			delete(h.groups[g], id)
		}
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

func (h *Hub) Join(id, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.groups[group] = true
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]bool)
	}
	h.groups[group][id] = true
}

// Count 在线客户端数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Pending returns the number of undelivered events queued for a client.
func (h *Hub) Pending(id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c := h.clients[id]; c != nil {
		return len(c.ch)
	}
	return 0
}

// PublishJSON 推送给所有未分组客户端以及 groups 中任一分组的成员
func (h *Hub) PublishJSON(name string, v any, groups ...string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Publish(name, string(b), groups...)
	return nil
}

func (h *Hub) Publish(name, data string, groups ...string) {
	h.mu.Lock()
	h.seq++
	ev := Event{ID: h.seq, Name: name, Data: data}
	if h.keep > 0 {
		h.history = append(h.history, historyEntry{event: ev, groups: groups})
		if len(h.history) > h.keep {
			h.history = h.history[len(h.history)-h.keep:]
		}
	}
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.wants(groups) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		select {
		case c.ch <- ev:
		default:
			// 慢客户端直接丢弃
			logger.Warn("sse client queue full, dropping event", zap.String("client", c.id), zap.Uint64("event", ev.ID))
		}
	}
}

func (c *Client) wants(groups []string) bool {
	if len(c.groups) == 0 {
		return true
	}
	for _, g := range groups {
		if c.groups[g] {
			return true
		}
	}
	return false
}

// since returns buffered events after lastID that the client would have received.
func (h *Hub) since(c *Client, lastID uint64) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Event
	for _, e := range h.history {
		if e.event.ID > lastID && c.wants(e.groups) {
			out = append(out, e.event)
		}
	}
	return out
}

// Serve 处理一个 SSE 连接，?group= 可重复，用于只订阅部分事件
func (h *Hub) Serve(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)

	clientID := uuid.NewString()
	client := h.AddClient(clientID)
	defer h.RemoveClient(clientID)
	for _, g := range c.QueryArray("group") {
		h.Join(clientID, g)
	}

	if last := c.GetHeader("Last-Event-ID"); last != "" {
		if lastID, err := strconv.ParseUint(last, 10, 64); err == nil {
			for _, ev := range h.since(client, lastID) {
				c.Writer.WriteString(ev.format())
			}
		}
	}
	flusher.Flush()

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case ev := <-client.ch:
			c.Writer.WriteString(ev.format())
			flusher.Flush()
		}
	}
}
