package server

import (
	"github.com/rs/zerolog/log"
	"sync"
	"sync/atomic"
)

type SessionManager struct {
	mu             sync.RWMutex
	ssidSeed       uint64
	sessionCounter int64
	sessionMap     map[uint64]*TCPSession
}

func (m *SessionManager) Init() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ssidSeed = 0
	atomic.StoreInt64(&m.sessionCounter, 0)
	m.sessionMap = make(map[uint64]*TCPSession)
}

func (m *SessionManager) Close() {
	m.mu.Lock()
	sessions := m.sessionMap
	m.sessionMap = make(map[uint64]*TCPSession)
	atomic.StoreInt64(&m.sessionCounter, 0)
	m.mu.Unlock()
	for _, session := range sessions {
		err := session.Close()
		if err != nil {
			log.Error().
				Err(err).
				Uint64("ssid", session.GetID()).
				Msg("close session error")
		}
	}
}

func (m *SessionManager) registerSession(session *TCPSession) {
	ssid := atomic.AddUint64(&m.ssidSeed, 1)
	session.id = ssid
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionMap[ssid] = session
	atomic.AddInt64(&m.sessionCounter, 1)
}

// unregisterSession 返回会话是否仍在管理中
func (m *SessionManager) unregisterSession(session *TCPSession) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessionMap[session.GetID()]; !ok {
		return false
	}
	delete(m.sessionMap, session.GetID())
	atomic.AddInt64(&m.sessionCounter, -1)
	return true
}

func (m *SessionManager) GetSession(ssid uint64) (*TCPSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessionMap[ssid]
	return session, ok
}

func (m *SessionManager) SessionCount() int64 {
	return atomic.LoadInt64(&m.sessionCounter)
}

// SessionMap 返回当前会话的快照
func (m *SessionManager) SessionMap() map[uint64]*TCPSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := make(map[uint64]*TCPSession, len(m.sessionMap))
	for ssid, session := range m.sessionMap {
		snapshot[ssid] = session
	}
	return snapshot
}
