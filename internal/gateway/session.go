package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linuxmatters/tempodetect/internal/beatdetect"
)

// Reading is a single tempo update, published to a session's Redis
// channel and cached as its most recent value.
type Reading struct {
	Timestamp float64 `json:"timestamp"`
	BPM       float32 `json:"bpm"`
}

// Session pairs one Detector with the bookkeeping needed to expose it
// over HTTP: a mutex serializes concurrent block posts onto the single
// thread ProcessBlock requires, and a running sample count lets each
// posted block be stamped with the right timestamp without the caller
// having to track it itself.
type Session struct {
	ID  string
	cfg beatdetect.Config

	mu            sync.Mutex
	detector      *beatdetect.Detector
	samplesPushed int64

	redis   *redis.Client
	channel string
}

func newSession(id string, cfg beatdetect.Config, rdb *redis.Client) (*Session, error) {
	detector, err := beatdetect.New(cfg)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:       id,
		cfg:      cfg,
		detector: detector,
		redis:    rdb,
		channel:  "bpm:" + id,
	}
	detector.SetBeatHandler(s.onBeat)
	return s, nil
}

// onBeat runs synchronously inside ProcessBlock (already under s.mu)
// and publishes the reading to subscribers and the session cache.
func (s *Session) onBeat(timestamp float64, bpm float32) {
	reading := Reading{Timestamp: timestamp, BPM: bpm}
	payload, err := json.Marshal(reading)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s.redis.Publish(ctx, s.channel, payload)
	s.redis.Set(ctx, "bpm:last:"+s.ID, payload, sessionCacheTTL)
}

const sessionCacheTTL = 30 * time.Minute

// PushBlock feeds samples into the detector, stamping them with the
// timestamp implied by the samples already pushed this session.
func (s *Session) PushBlock(samples []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timestamp := float64(s.samplesPushed) / float64(s.cfg.SampleRate)
	s.detector.ProcessBlock(samples, timestamp)
	s.samplesPushed += int64(len(samples))
}

// LastReading fetches the most recently cached reading, if any.
func (s *Session) LastReading(ctx context.Context) (*Reading, error) {
	payload, err := s.redis.Get(ctx, "bpm:last:"+s.ID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var reading Reading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return nil, err
	}
	return &reading, nil
}

// Store is the in-process registry of live sessions. Detector state is
// held in memory, so a gateway restart drops in-flight sessions; the
// Redis-cached last reading and pub/sub fan-out survive restarts of
// any other replica, which is the scalability property the pack's
// reference service (its Redis-backed rate limiter, same shape) is
// grounded on.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	redis    *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		redis:    rdb,
	}
}

// Create starts a new session with cfg and returns its Session.
func (st *Store) Create(id string, cfg beatdetect.Config) (*Session, error) {
	s, err := newSession(id, cfg, st.redis)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	st.sessions[id] = s
	st.mu.Unlock()
	return s, nil
}

// Get looks up a session by ID.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Delete removes a session, e.g. once its client disconnects for good.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}
