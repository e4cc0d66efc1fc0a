package sqlcgen

import "time"

type ConsoleSession struct {
	ID            string
	UpstreamToken string
	Username      string
	MFAPending    bool
	CreatedAt     time.Time
	LastSeenAt    time.Time
}
