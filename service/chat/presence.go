package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chatty/logger"
	"chatty/service/storage"
)

// Presence announces the full online-user set to every connection after
// each registry change. Snapshots, not diffs: a missed broadcast heals
// itself on the next change. The redis mirror is best effort and never
// blocks or fails an announcement.
type Presence struct {
	reg    *Registry
	fanout *Fanout
	mirror *storage.PresenceMirror
}

func NewPresence(reg *Registry, fanout *Fanout, mirror *storage.PresenceMirror) *Presence {
	return &Presence{reg: reg, fanout: fanout, mirror: mirror}
}

// Announce pushes the current roster snapshot to all connections of all
// users. Called synchronously after every register/unregister so no
// client is more than one round trip stale.
func (p *Presence) Announce() {
	users := p.reg.OnlineUsers()
	payload, err := BuildOnlineUsers(users)
	if err != nil {
		logger.Error("encode roster", zap.Error(err))
		return
	}
	p.fanout.Broadcast(p.reg.ListAll(), payload)
}

// UserOnline records the user in the mirror and re-announces.
func (p *Presence) UserOnline(user string) {
	p.mirrorWrite(func(ctx context.Context) error {
		return p.mirror.Online(ctx, user)
	})
	p.Announce()
}

// UserOffline removes the user from the mirror and re-announces.
func (p *Presence) UserOffline(user string) {
	p.mirrorWrite(func(ctx context.Context) error {
		return p.mirror.Offline(ctx, user)
	})
	p.Announce()
}

func (p *Presence) mirrorWrite(f func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f(ctx); err != nil {
		logger.Warn("presence mirror write failed", zap.Error(err))
	}
}
