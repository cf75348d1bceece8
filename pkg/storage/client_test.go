package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackupKey(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		prefix string
		host   string
		want   string
	}{
		{"fstab-backups", "nas01", "fstab-backups/nas01/20260314T082653Z-run1.fstab"},
		{"/fstab-backups/", "nas01", "fstab-backups/nas01/20260314T082653Z-run1.fstab"},
		{"", "nas01", "nas01/20260314T082653Z-run1.fstab"},
		{"b", "", "b/unknown-host/20260314T082653Z-run1.fstab"},
		{"b", "odd/host", "b/odd_host/20260314T082653Z-run1.fstab"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BackupKey(tt.prefix, tt.host, "run1", at))
	}
}

func TestHostPrefix(t *testing.T) {
	assert.Equal(t, "fstab-backups/nas01/", HostPrefix("fstab-backups", "nas01"))
	assert.Equal(t, "nas01/", HostPrefix("", "nas01"))
}
