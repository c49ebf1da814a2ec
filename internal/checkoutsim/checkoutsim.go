// Package checkoutsim is a local stand-in for the hosted payment processor:
// it opens checkout sessions, renders a pay page, redirects the browser back
// and posts a signed webhook, the same round trip a real processor makes.
package checkoutsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/gighub/internal/payments"
)

type Config struct {
	// PublicURL is how browsers reach this server, used in session URLs.
	PublicURL     string
	APIKey        string
	WebhookURL    string
	WebhookSecret string
}

type session struct {
	payments.Session
	SuccessURL string
	CancelURL  string
}

// Server keeps sessions in memory.
type Server struct {
	cfg      Config
	log      zerolog.Logger
	http     *http.Client
	mu       sync.Mutex
	sessions map[string]*session
	byKey    map[string]string
	wg       sync.WaitGroup
}

func New(cfg Config, log zerolog.Logger) *Server {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return &Server{
		cfg:      cfg,
		log:      log,
		http:     &http.Client{Timeout: 10 * time.Second},
		sessions: make(map[string]*session),
		byKey:    make(map[string]string),
	}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	api := r.Group("/v1", s.requireKey())
	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)

	r.GET("/checkout/:id", s.checkoutPage)
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	return r
}

// Wait blocks until in-flight webhook deliveries finish.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) requireKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+s.cfg.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		c.Next()
	}
}

type createSessionRequest struct {
	OrderID    string `json:"order_id" binding:"required"`
	Amount     int64  `json:"amount" binding:"required,gt=0"`
	Currency   string `json:"currency"`
	SuccessURL string `json:"success_url" binding:"required,url"`
	CancelURL  string `json:"cancel_url" binding:"required,url"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key := c.GetHeader("Idempotency-Key")

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byKey[key]; ok && key != "" {
		if existing := s.sessions[id]; existing.Status == payments.StatusOpen || existing.Status == payments.StatusPaid {
			c.JSON(http.StatusOK, existing.Session)
			return
		}
	}
	id := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	sess := &session{
		Session: payments.Session{
			ID:        id,
			OrderID:   req.OrderID,
			Amount:    req.Amount,
			Currency:  req.Currency,
			Status:    payments.StatusOpen,
			URL:       s.cfg.PublicURL + "/checkout/" + id,
			CreatedAt: time.Now().UTC(),
		},
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	s.sessions[id] = sess
	if key != "" {
		s.byKey[key] = id
	}
	s.log.Info().Str("session_id", id).Str("order_id", req.OrderID).Int64("amount", req.Amount).Msg("checkout session opened")
	c.JSON(http.StatusCreated, sess.Session)
}

func (s *Server) getSession(c *gin.Context) {
	s.mu.Lock()
	sess, ok := s.sessions[c.Param("id")]
	var out payments.Session
	if ok {
		out = sess.Session
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, out)
}

var payPage = template.Must(template.New("pay").Parse(`<!doctype html>
<html><head><title>Checkout</title></head>
<body>
<h1>Pay {{.Amount}} {{.Currency}}</h1>
<p>Order {{.OrderID}}</p>
<p><a href="?action=pay">Pay now</a> | <a href="?action=abandon">Cancel</a></p>
</body></html>`))

// checkoutPage is what the browser sees. ?action=pay settles the session
// and redirects to success_url; ?action=abandon goes back to cancel_url.
func (s *Server) checkoutPage(c *gin.Context) {
	s.mu.Lock()
	sess, ok := s.sessions[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.String(http.StatusNotFound, "checkout session not found")
		return
	}
	action := c.Query("action")
	switch action {
	case "pay":
		first := sess.Status == payments.StatusOpen
		if first {
			now := time.Now().UTC()
			sess.Status = payments.StatusPaid
			sess.PaidAt = &now
		}
		snapshot, target := sess.Session, sess.SuccessURL
		s.mu.Unlock()
		if first {
			s.log.Info().Str("session_id", snapshot.ID).Str("order_id", snapshot.OrderID).Msg("checkout paid")
			s.deliverAsync(snapshot)
		}
		c.Redirect(http.StatusSeeOther, withParam(target, "session_id", snapshot.ID))
	case "abandon":
		target := sess.CancelURL
		s.mu.Unlock()
		c.Redirect(http.StatusSeeOther, target)
	default:
		snapshot := sess.Session
		s.mu.Unlock()
		c.Status(http.StatusOK)
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := payPage.Execute(c.Writer, snapshot); err != nil {
			s.log.Error().Err(err).Msg("render checkout page")
		}
	}
}

func withParam(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// deliverAsync posts the completion webhook in the background. Delivery is
// best effort with a few retries; the browser return covers a lost event.
func (s *Server) deliverAsync(sess payments.Session) {
	if s.cfg.WebhookURL == "" {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ev := payments.Event{ID: "evt_" + uuid.NewString(), Type: payments.EventSessionCompleted, Data: sess}
		body, err := json.Marshal(ev)
		if err != nil {
			return
		}
		backoff := 200 * time.Millisecond
		for attempt := 1; attempt <= 3; attempt++ {
			err = s.postWebhook(body)
			if err == nil {
				s.log.Info().Str("session_id", sess.ID).Msg("webhook delivered")
				return
			}
			s.log.Warn().Err(err).Int("attempt", attempt).Str("session_id", sess.ID).Msg("webhook delivery failed")
			time.Sleep(backoff)
			backoff *= 2
		}
	}()
}

func (s *Server) postWebhook(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payments.SignatureHeader, payments.Sign(s.cfg.WebhookSecret, body))
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
