package security

import (
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
)

func TestCreateAndParseInvite(t *testing.T) {
	h, err := libp2p.New()
	if err != nil {
		t.Fatalf("create host: %v", err)
	}
	defer h.Close()

	invite, err := CreateInvite(h, 24*time.Hour)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if invite.PeerID != h.ID().String() {
		t.Error("peer ID mismatch")
	}
	if len(invite.Addresses) == 0 {
		t.Error("should have addresses")
	}
	if invite.IsExpired() {
		t.Error("invite should not be expired")
	}

	code, err := invite.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	parsed, err := ParseInvite(code)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.PeerID != invite.PeerID {
		t.Error("parsed peer ID mismatch")
	}
}

func TestExpiredInvite(t *testing.T) {
	h, _ := libp2p.New()
	defer h.Close()

	invite, _ := CreateInvite(h, -1*time.Second)

	code, _ := invite.Encode()
	if _, err := ParseInvite(code); err == nil {
		t.Error("should reject expired invite")
	}
}

func TestInviteQRGeneration(t *testing.T) {
	h, _ := libp2p.New()
	defer h.Close()

	invite, _ := CreateInvite(h, 24*time.Hour)

	png, err := invite.ToQR()
	if err != nil {
		t.Fatalf("generate QR: %v", err)
	}
	if len(png) == 0 {
		t.Error("QR PNG should not be empty")
	}

	qrStr, err := invite.ToQRString()
	if err != nil {
		t.Fatalf("generate QR string: %v", err)
	}
	if len(qrStr) == 0 {
		t.Error("QR string should not be empty")
	}
}

func TestInviteToPeerAddrInfo(t *testing.T) {
	h, _ := libp2p.New()
	defer h.Close()

	invite, _ := CreateInvite(h, 24*time.Hour)

	info, err := invite.ToPeerAddrInfo()
	if err != nil {
		t.Fatalf("to peer addr info: %v", err)
	}
	if info.ID.String() != invite.PeerID {
		t.Error("peer ID mismatch in addr info")
	}
	if len(info.Addrs) == 0 {
		t.Error("expected at least one parsed address")
	}
}
