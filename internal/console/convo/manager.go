package convo

import (
	"sync"

	"github.com/cloudcrafter/console/internal/console/jobs"
	"github.com/cloudcrafter/console/internal/console/oracle"
)

// Manager owns the live conversations of one process.  Conversations share
// the stateless transport clients but nothing mutable: each has its own
// session, message log, and poller.
type Manager struct {
	oracle      oracle.Client
	jobs        jobs.Client
	pollOptions jobs.Options
	recorder    Recorder

	mu    sync.Mutex
	convs map[string]*Conversation
}

// NewManager creates an empty Manager.  recorder may be nil to disable
// persistence.
func NewManager(oracleClient oracle.Client, jobsClient jobs.Client, pollOptions jobs.Options, recorder Recorder) *Manager {
	return &Manager{
		oracle:      oracleClient,
		jobs:        jobsClient,
		pollOptions: pollOptions,
		recorder:    recorder,
		convs:       make(map[string]*Conversation),
	}
}

// Create starts a new conversation bound to the given oracle session id
// (empty means anonymous).
func (m *Manager) Create(sessionID string) *Conversation {
	c := New(Config{
		SessionID:   sessionID,
		Oracle:      m.oracle,
		Jobs:        m.jobs,
		PollOptions: m.pollOptions,
		Recorder:    m.recorder,
	})
	m.mu.Lock()
	m.convs[c.ID()] = c
	m.mu.Unlock()
	return c
}

// Get returns the live conversation with the given id, or nil.
func (m *Manager) Get(id string) *Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.convs[id]
}

// List returns every live conversation.
func (m *Manager) List() []*Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	convs := make([]*Conversation, 0, len(m.convs))
	for _, c := range m.convs {
		convs = append(convs, c)
	}
	return convs
}

// Remove tears down and forgets the conversation with the given id.
// Unknown ids are a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	c := m.convs[id]
	delete(m.convs, id)
	m.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

// CloseAll tears down every live conversation; used at process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	convs := make([]*Conversation, 0, len(m.convs))
	for _, c := range m.convs {
		convs = append(convs, c)
	}
	m.convs = make(map[string]*Conversation)
	m.mu.Unlock()
	for _, c := range convs {
		c.Close()
	}
}
