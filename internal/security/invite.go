package security

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/skip2/go-qrcode"
)

// InvitePrefix is the URL scheme a jsoncrdt pairing invite is encoded
// under.
const InvitePrefix = "jsoncrdt://"

// DefaultInviteExpiry is how long a freshly-created invite stays
// valid.
const DefaultInviteExpiry = 24 * time.Hour

// PeerInvite is the signed bundle one replica hands another (by QR
// code or otherwise) so the receiver can connect and the sender's
// identity can be verified. Field names are single letters to keep
// the JSON-then-base64 encoding short enough for a QR code.
type PeerInvite struct {
	PeerID    string   `json:"p"`
	Addresses []string `json:"a"`
	PublicKey []byte   `json:"k"`
	CreatedAt int64    `json:"c"`
	ExpiresAt int64    `json:"e"`
	Signature []byte   `json:"s"`
	Key       []byte   `json:"y,omitempty"` // optional pre-shared pairing secret
}

// CreateInvite builds and signs an invite for h, valid for expiry (0
// uses DefaultInviteExpiry).
func CreateInvite(h host.Host, expiry time.Duration) (*PeerInvite, error) {
	now := time.Now()
	if expiry == 0 {
		expiry = DefaultInviteExpiry
	}

	addrs := h.Addrs()
	addrStrs := make([]string, 0, 2)
	for _, a := range addrs {
		str := a.String()
		if !strings.Contains(str, "127.0.0.1") && !strings.Contains(str, "::1") {
			addrStrs = append(addrStrs, str)
			if len(addrStrs) >= 2 {
				break
			}
		}
	}
	if len(addrStrs) == 0 && len(addrs) > 0 {
		addrStrs = append(addrStrs, addrs[0].String())
	}

	pubKey := h.Peerstore().PubKey(h.ID())
	if pubKey == nil {
		return nil, fmt.Errorf("security: host has no public key")
	}
	pubKeyBytes, err := crypto.MarshalPublicKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("security: marshal public key: %w", err)
	}

	invite := &PeerInvite{
		PeerID:    h.ID().String(),
		Addresses: addrStrs,
		PublicKey: pubKeyBytes,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(expiry).Unix(),
	}

	privKey := h.Peerstore().PrivKey(h.ID())
	if privKey == nil {
		return nil, fmt.Errorf("security: host has no private key")
	}

	sig, err := privKey.Sign(invite.signableData())
	if err != nil {
		return nil, fmt.Errorf("security: sign invite: %w", err)
	}
	invite.Signature = sig

	return invite, nil
}

// signableData returns the bytes CreateInvite signs and ParseInvite
// verifies: PeerID, Addresses, CreatedAt and ExpiresAt. PublicKey and
// Key are not part of it; ParseInvite instead checks that PublicKey
// hashes to PeerID.
func (i *PeerInvite) signableData() []byte {
	return []byte(fmt.Sprintf("%s|%s|%d|%d",
		i.PeerID,
		strings.Join(i.Addresses, ","),
		i.CreatedAt,
		i.ExpiresAt,
	))
}

// Encode serializes the invite to a compact, URL-safe string.
func (i *PeerInvite) Encode() (string, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return "", err
	}
	return InvitePrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// ToQR renders the invite as a PNG QR code.
func (i *PeerInvite) ToQR() ([]byte, error) {
	return qrcode.Encode(i.ToMinimalCode(), qrcode.Low, 256)
}

// ToQRString renders the invite as an ASCII-art QR code for terminal
// display.
func (i *PeerInvite) ToQRString() (string, error) {
	qr, err := qrcode.New(i.ToMinimalCode(), qrcode.Low)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

// ToMinimalCode returns a short "jsoncrdt://PEERID@ADDR" form, used
// for QR codes where the full signed JSON payload would be too dense
// to scan reliably.
func (i *PeerInvite) ToMinimalCode() string {
	addr := ""
	if len(i.Addresses) > 0 {
		addr = i.Addresses[0]
	}
	return fmt.Sprintf("%s%s@%s", InvitePrefix, i.PeerID, addr)
}

// ParseInvite decodes an invite string and verifies its signature and
// expiry.
func ParseInvite(s string) (*PeerInvite, error) {
	if !strings.HasPrefix(s, InvitePrefix) {
		return nil, fmt.Errorf("security: invite missing %q prefix", InvitePrefix)
	}
	data := strings.TrimPrefix(s, InvitePrefix)

	jsonData, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("security: invalid invite encoding: %w", err)
	}

	var invite PeerInvite
	if err := json.Unmarshal(jsonData, &invite); err != nil {
		return nil, fmt.Errorf("security: invalid invite data: %w", err)
	}

	if invite.IsExpired() {
		return nil, fmt.Errorf("security: invite expired")
	}

	pubKey, err := crypto.UnmarshalPublicKey(invite.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("security: invalid public key: %w", err)
	}

	valid, err := pubKey.Verify(invite.signableData(), invite.Signature)
	if err != nil || !valid {
		return nil, fmt.Errorf("security: invalid invite signature")
	}

	derivedID, err := peer.IDFromPublicKey(pubKey)
	if err != nil {
		return nil, fmt.Errorf("security: derive peer ID: %w", err)
	}
	if derivedID.String() != invite.PeerID {
		return nil, fmt.Errorf("security: peer ID does not match public key")
	}

	return &invite, nil
}

// ToPeerAddrInfo converts the invite into a libp2p peer.AddrInfo,
// parsing every address that's valid.
func (i *PeerInvite) ToPeerAddrInfo() (*peer.AddrInfo, error) {
	peerID, err := peer.Decode(i.PeerID)
	if err != nil {
		return nil, fmt.Errorf("security: invalid peer ID: %w", err)
	}

	addrInfo := &peer.AddrInfo{ID: peerID}
	for _, addrStr := range i.Addresses {
		ma, err := multiaddr.NewMultiaddr(addrStr)
		if err != nil {
			continue
		}
		addrInfo.Addrs = append(addrInfo.Addrs, ma)
	}

	return addrInfo, nil
}

// IsExpired reports whether the invite's expiry has passed.
func (i *PeerInvite) IsExpired() bool {
	return time.Now().Unix() > i.ExpiresAt
}

// ExpiresIn returns the duration until the invite expires.
func (i *PeerInvite) ExpiresIn() time.Duration {
	return time.Until(time.Unix(i.ExpiresAt, 0))
}
