package model

import "time"

// ConnState : состояние подключения к внешнему хранилищу кэша
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
	ConnDegraded
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnDegraded:
		return "degraded"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CacheStatus : снимок состояния кэша для health-проверки
type CacheStatus struct {
	Configured  bool
	State       ConnState
	Attempt     int
	LastProbeAt time.Time
	LastError   string
}

// Сторожевые значения TTL, совпадают с ответом Redis
const (
	TTLNoKey    int64 = -2
	TTLNoExpiry int64 = -1
)
